package cmd

import (
	"strings"

	"github.com/calla-labs/reloop/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "reloop",
	Short: "Iteration harness for long-running coding-agent workflows",
	Long: `Reloop drives a coding agent through repeated iterations against a
story file, halting when the work completes, when the agent stops making
progress, or when the hourly call budget runs out. Background research
agents can be spawned alongside the main loop.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/reloop/config.yaml)")
	rootCmd.PersistentFlags().String("state-dir", "", "state directory (default is .reloop)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("paths.state_dir", rootCmd.PersistentFlags().Lookup("state-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/reloop")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RELOOP")
	// Replace dots with underscores for nested keys in env vars
	// e.g., RELOOP_QUOTA_HOURLY_CALL_LIMIT for quota.hourly_call_limit
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
