package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/petasbytes/chatloop/internal/config"
	"github.com/petasbytes/chatloop/internal/logging"
)

var (
	cfgPath string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with a tool-using model from the terminal or over HTTP",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load(".env")

		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
		logger = logging.New(cfg.LogLevel, os.Stderr)
		slog.SetDefault(logger)

		// Tools resolve their sandbox from the environment on first use.
		if cfg.ReadRoot != "" {
			_ = os.Setenv("AGT_READ_ROOT", cfg.ReadRoot)
		}
		if cfg.WriteRoot != "" {
			_ = os.Setenv("AGT_WRITE_ROOT", cfg.WriteRoot)
		}
		return nil
	},
	SilenceUsage: true,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "agent.yaml", "config file path")
	rootCmd.AddCommand(chatCmd, serveCmd)
}
