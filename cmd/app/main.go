package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"SensorPull/internal/di"
	"SensorPull/internal/services/forecast"
	"SensorPull/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sensorpull",
		Short:         "Sample data sources, fan batches out and forecast them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), forecastCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sampling service and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.Run()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	return cmd
}

func forecastCmd() *cobra.Command {
	var (
		inputPath string
		pretty    bool
		cfg       = forecast.DefaultConfig()
	)
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast a series of samples read from a JSON file and print the result",
		Long: `Reads [{"x": <unix ms or RFC3339>, "y": <number>}, ...] from --input
(or stdin when --input is "-") and prints statistics and the forecast as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runForecast(in, cmd.OutOrStdout(), cfg, pretty)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "samples JSON file")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "pretty-print JSON output")
	cmd.Flags().IntVar(&cfg.Window, "window", cfg.Window, "trailing points analysed")
	cmd.Flags().IntVar(&cfg.MinSamples, "min-samples", cfg.MinSamples, "forecast only with more points than this")
	cmd.Flags().IntVar(&cfg.Order, "order", cfg.Order, "autoregressive model order")
	cmd.Flags().IntVar(&cfg.Horizon, "horizon", cfg.Horizon, "points to forecast")
	return cmd
}
