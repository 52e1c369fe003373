package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FaceStabilityServer/config"
	"FaceStabilityServer/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const Version = "0.1.0"

var (
	configPath string
	// cfg is loaded once in PersistentPreRunE and shared by subcommands
	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "facestability",
	Short:   "Face stability classification server",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log, err = logger.Init(cfg.Log.Development, cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
}
