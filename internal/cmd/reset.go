package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calla-labs/reloop/internal/progress"
	"github.com/calla-labs/reloop/internal/quota"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear persisted detector and quota state",
	Long: `Reset deletes the persisted stuck-detection ledger and quota tracker
so the next run starts fresh. Use the flags to clear just one of them.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().Bool("progress", false, "reset only the progress ledger")
	resetCmd.Flags().Bool("quota", false, "reset only the quota tracker")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	onlyProgress, _ := cmd.Flags().GetBool("progress")
	onlyQuota, _ := cmd.Flags().GetBool("quota")
	both := onlyProgress == onlyQuota

	if both || onlyProgress {
		if err := progress.Reset(env.stateDir); err != nil {
			return err
		}
		fmt.Println("progress ledger cleared")
	}
	if both || onlyQuota {
		if err := quota.Reset(env.stateDir); err != nil {
			return err
		}
		fmt.Println("quota tracker cleared")
	}
	return nil
}
