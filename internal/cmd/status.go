package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calla-labs/reloop/internal/research"
	"github.com/calla-labs/reloop/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show detector, quota, and research state",
	Long:  `Display the persisted stuck-detection counters, the quota window, and any research artifacts on disk.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	detector, err := env.loadDetector()
	if err != nil {
		return err
	}
	gate, err := env.loadGate()
	if err != nil {
		return err
	}

	fmt.Printf("State dir: %s\n\n", env.stateDir)

	detectorLine := detector.Status()
	if detector.Tripped() {
		detectorLine = failStyle.Render(detectorLine)
	}
	fmt.Printf("Detector: %s\n", detectorLine)

	quotaLine := gate.Status()
	if !gate.Check() {
		quotaLine = warnStyle.Render(quotaLine)
	}
	fmt.Printf("Quota:    %s", quotaLine)
	if secs := gate.SecondsUntilReset(); secs > 0 {
		fmt.Printf(" (window resets in %ds)", secs)
	}
	fmt.Println()

	outputs := research.ListOutputs(env.cfg.Research.OutputDir)
	fmt.Printf("\nResearch artifacts: %d\n", len(outputs))
	for _, path := range outputs {
		name := artifactStyle.Render(filepath.Base(path))
		fmt.Printf("  %s\n", util.TruncateANSI(name, statusLineWidth))
	}

	return nil
}
