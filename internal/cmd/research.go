package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calla-labs/reloop/internal/agent"
	"github.com/calla-labs/reloop/internal/research"
	"github.com/calla-labs/reloop/internal/util"
)

var researchCmd = &cobra.Command{
	Use:   "research <topic>...",
	Short: "Run background research agents for one or more topics",
	Long: `Research spawns one agent per topic, capped at the configured
concurrency, and waits for all of them. Each agent writes a markdown
artifact named RESEARCH-<topic>.md into the research output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().Bool("watch", false, "print artifacts as they are written")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	runner, err := agent.NewRunner(
		env.cfg.Agent.Command, env.cfg.Agent.Args, env.cfg.Research.Model, "", env.logger)
	if err != nil {
		return err
	}

	pool := research.NewPool(runner, research.Options{
		MaxConcurrent: env.cfg.Research.MaxConcurrent,
		Timeout:       env.cfg.Research.Timeout(),
		OutputDir:     env.cfg.Research.OutputDir,
		TemplateFile:  env.cfg.Research.TemplateFile,
	}, env.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer pool.KillAll()

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		if err := os.MkdirAll(env.cfg.Research.OutputDir, 0o755); err != nil {
			return err
		}
		watchCtx, cancelWatch := context.WithCancel(ctx)
		defer cancelWatch()
		go func() {
			_ = research.WatchOutputs(watchCtx, env.cfg.Research.OutputDir, env.logger, func(path string) {
				fmt.Println(okStyle.Render("artifact: " + path))
			})
		}()
	}

	for _, topic := range args {
		// Block for a slot when the pool is full.
		for !pool.CanSpawn() {
			if _, err := pool.WaitForAny(ctx); err != nil {
				return err
			}
		}

		label, err := pool.Spawn(ctx, topic)
		if err != nil {
			return err
		}
		fmt.Printf("spawned %s (%d active)\n",
			util.TruncateString(label, statusLineWidth), pool.CountActive())
	}

	if err := pool.WaitForAll(ctx); err != nil {
		return err
	}

	outputs := research.ListOutputs(env.cfg.Research.OutputDir)
	fmt.Printf("\n%d artifact(s) in %s\n", len(outputs), env.cfg.Research.OutputDir)
	return nil
}
