package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/calla-labs/reloop/internal/agent"
	"github.com/calla-labs/reloop/internal/loop"
)

var (
	iterationStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	artifactStyle  = lipgloss.NewStyle().Faint(true)
)

// statusLineWidth caps styled status lines so long labels and artifact
// names do not wrap.
const statusLineWidth = 72

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the iteration loop until done, stuck, or out of budget",
	Long: `Run drives the agent through iterations against the story file,
checking a story off per iteration. The loop halts when all stories are
done, the agent emits its completion promise, stuck detection trips, or
the iteration cap is reached. Ctrl-C stops cleanly after the current
iteration's state is saved.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("stories", "", "story file to work through (default from config)")
	runCmd.Flags().Int("max-iterations", 0, "iteration cap for this run (default from config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	if stories, _ := cmd.Flags().GetString("stories"); stories != "" {
		env.cfg.Loop.StoriesFile = stories
	}
	if max, _ := cmd.Flags().GetInt("max-iterations"); max > 0 {
		env.cfg.Loop.MaxIterations = max
	}

	detector, err := env.loadDetector()
	if err != nil {
		return err
	}
	gate, err := env.loadGate()
	if err != nil {
		return err
	}
	// Tag every log entry from this invocation with a run ID.
	runLogger := env.logger.WithRun(time.Now().Format("20060102-150405"))

	runner, err := agent.NewRunner(
		env.cfg.Agent.Command, env.cfg.Agent.Args, env.cfg.Agent.Model, "", runLogger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord := loop.NewCoordinator(env.cfg, runner, detector, gate, env.stateDir, runLogger)
	coord.SetCallbacks(loop.Callbacks{
		OnIterationStart: func(n int) {
			fmt.Println(iterationStyle.Render(fmt.Sprintf("=== iteration %d/%d ===", n, env.cfg.Loop.MaxIterations)))
		},
		OnIterationEnd: func(n int, result *agent.Result, progressed bool) {
			mark := "progress"
			if !progressed {
				mark = "no progress"
			}
			fmt.Printf("  exit %d in %s (%s)\n",
				result.ExitCode, result.Duration.Round(time.Second), mark)
		},
		OnQuotaWait: func(seconds int) {
			fmt.Println(warnStyle.Render(fmt.Sprintf("quota exhausted: %s, resets in %ds", gate.Status(), seconds)))
		},
		OnStuck: func(status string) {
			fmt.Println(failStyle.Render("stuck: " + status))
		},
		OnComplete: func(n int, reason string) {
			fmt.Println(okStyle.Render(fmt.Sprintf("complete after %d iteration(s): %s", n, reason)))
		},
	})

	outcome, err := coord.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\noutcome: %s\n", outcome)
	fmt.Printf("detector: %s\n", detector.Status())
	fmt.Printf("quota: %s\n", gate.Status())

	if outcome == loop.OutcomeStuck {
		return fmt.Errorf("run halted: %s", detector.Status())
	}
	return nil
}
