package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"RiskCast/internal/di"
	"RiskCast/pkg/config"
	"RiskCast/pkg/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "riskcast",
	Short: "Stock risk classification and return forecasting",
	Long: `RiskCast trains and serves per-ticker risk, return and similarity models
from daily price bars.

Commands:
    serve     HTTP API with model-event reload and queued training
    train     run the training pipeline once
    worker    process queued training jobs only
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(workerCmd)
}

// loadEnv reads the dotenv file. A missing file is fine; variables may come from the environment.
func loadEnv() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if verbose {
				fmt.Fprintf(os.Stderr, "%s not found, using environment variables\n", envFile)
			}
			return nil
		}
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func buildApp() (*server.App, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	app, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return app, cfg, nil
}
