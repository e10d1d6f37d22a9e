package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration simulate would start from: the defaults, or
the --config file laid over them. The output is a valid config file.

Examples:
  uacsim config > uacsim.yaml
  uacsim config -c uacsim.yaml`,
	Args: cobra.NoArgs,
	Run:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	data, err := cfg.Marshal()
	if err != nil {
		slog.Error("Failed to marshal config", "error", err)
		os.Exit(1)
	}
	os.Stdout.Write(data)
}
