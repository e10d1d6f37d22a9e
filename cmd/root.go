package cmd

import (
	"log/slog"
	"os"

	"github.com/drgolem/uacsim/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uacsim",
	Short: "USB Audio Class isochronous stream simulator",
	Long: `uacsim - simulates the timing of a USB Audio Class isochronous OUT
endpoint. A producer fills a lock-free SPSC ring buffer as fast as it can while
a consumer, standing in for the host controller, drains exactly one 384 byte
microframe every 125µs.

Overruns (producer finds the buffer full) and underruns (consumer finds less
than a frame) are counted per stream.

Commands:
  - simulate: Run one or more streams with live buffer status
  - scenario: Run the canonical buffer scenarios and check their outcome
  - config:   Print the effective configuration as YAML`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// loadConfig returns the defaults, or the --config file laid over them
func loadConfig() (config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.Load(configFile)
}
