package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgolem/uacsim/internal/scenario"

	"github.com/spf13/cobra"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario [a|b|c|order]...",
	Short: "Run the canonical buffer scenarios",
	Long: `Run buffer scenarios and check that their expectations hold.

Scenarios:
  a      consumer alone, 3072 byte buffer: no frames consumed, every microframe underruns
  b      producer alone, 3072 byte buffer: exactly 8 frames produced, then only overruns
  c      consumer then producer, 30720 byte buffer: about 8 frames per ms, underruns near zero
  order  producer started first, 3072 byte buffer: produced + overruns equals write attempts

Without arguments every scenario runs. The exit status is 1 if any check fails.

Examples:
  uacsim scenario
  uacsim scenario b
  uacsim scenario c --duration 100ms`,
	ValidArgs: scenario.Names,
	Args:      cobra.OnlyValidArgs,
	Run:       runScenario,
}

func init() {
	rootCmd.AddCommand(scenarioCmd)

	scenarioCmd.Flags().Duration("duration", time.Millisecond, "Timed duration of scenarios a, c and order")
}

func runScenario(cmd *cobra.Command, args []string) {
	setupLogging()

	duration, err := cmd.Flags().GetDuration("duration")
	if err != nil {
		slog.Error("Failed to get duration flag", "error", err)
		os.Exit(1)
	}

	names := args
	if len(names) == 0 {
		names = scenario.Names
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, name := range names {
		r, err := scenario.Run(ctx, name, scenario.Options{Duration: duration})
		if err != nil {
			slog.Error("Scenario failed to run", "scenario", name, "error", err)
			failed++
			continue
		}
		fmt.Println(renderScenario(r))
		if !r.Passed() {
			failed++
		}
	}

	if failed > 0 {
		slog.Error("Scenarios failed", "failed", failed, "total", len(names))
		stop()
		os.Exit(1)
	}
	slog.Info("All scenarios passed", "total", len(names))
}
