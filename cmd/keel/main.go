package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/keel/internal/app"
	"github.com/bobmcallan/keel/internal/common"
)

var (
	configPath string
	verbose    bool
)

// rootCmd is the base command for the keel CLI
var rootCmd = &cobra.Command{
	Use:   "keel",
	Short: "Daily portfolio intelligence pipeline",
	Long: `Keel runs a daily trading decision pipeline over a configured equity
portfolio: it classifies the market regime, scores each holding's health,
screens the universe for new candidates, and produces a capital allocation
plan, delivered as an email report and stored for later inspection.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file (falls back to keel.toml, config/keel.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	common.LoadVersionFromFile()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initApp loads config and builds the wired application.
func initApp() (*app.App, error) {
	paths := []string{"keel.toml", "config/keel.toml"}
	if configPath != "" {
		paths = []string{configPath}
	}
	if env := os.Getenv("KEEL_CONFIG"); env != "" && configPath == "" {
		paths = append([]string{env}, paths...)
	}

	cfg, err := common.LoadConfig(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := common.NewLogger(level)

	return app.NewApp(cfg, logger)
}
