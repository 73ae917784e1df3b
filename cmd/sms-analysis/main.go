package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sms-decline-analysis/internal/config"
	"sms-decline-analysis/internal/logger"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sms-analysis",
	Short: "Pre/post decline analysis of an SMS delivery report",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath == "" {
			cfg = config.Default()
		} else if cfg, err = config.LoadConfig(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return logger.InitLogger(cfg.Log.Level, cfg.Log.File)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
