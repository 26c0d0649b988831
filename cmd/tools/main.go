package main

import (
	"fmt"
	"os"

	"github.com/lychee-technology/dataeditor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "dataeditor-tools",
	Short:         "Operator tools for the data editor",
	Long:          "Validate schema directories, prepare storage tables and export model collections.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", getenvDefault("DATAEDITOR_CONFIG", ""), "Path to a YAML or JSON configuration file")
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := RootCmd.Execute(); err != nil {
		logger.Sugar().Errorw("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig returns the configured file, or defaults when no file is given.
func loadConfig() (*dataeditor.Config, error) {
	if configPath == "" {
		return dataeditor.DefaultConfig(), nil
	}
	return dataeditor.LoadConfig(configPath)
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
