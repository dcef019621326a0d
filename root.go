package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gpu-hunter/pkg/config"
	"gpu-hunter/pkg/logger"
	"gpu-hunter/pkg/telemetry"
)

var (
	configPath string
	verbose    bool

	cfg config.Config
	tel telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "gpu-hunter",
	Short: "gpu-hunter rates secondhand graphics card listings against market prices.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Verbose = verbose
		}
		logger.SetVerbose(cfg.Verbose)

		tel, err = telemetry.Setup(cmd.Context(), telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Flush()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			log.Printf("[TELEMETRY] shutdown: %v", err)
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the config file; <name>.local.json5 next to it is merged on top.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every outgoing request.")
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
