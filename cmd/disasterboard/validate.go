package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/disasterboard/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a disasterboard configuration file without starting the server.

This command parses the YAML, expands environment variables, validates all
fields and builds the dashboard without starting it. It's useful for CI/CD
pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  disasterboard validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	b, err := config.Build(cfg, nil)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	names := make([]string, 0, len(b.Views()))
	for _, v := range b.Views() {
		names = append(names, v.Name())
	}

	location := "(select in dashboard)"
	if b.HasLocation() {
		location = b.Location().Address
		if location == "" {
			location = fmt.Sprintf("%.4f, %.4f", b.Location().Latitude, b.Location().Longitude)
		}
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "(default)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  API URL:    %s\n", apiURL)
	fmt.Fprintf(out, "  Port:       %d\n", b.Port())
	fmt.Fprintf(out, "  Views:      %s\n", strings.Join(names, ", "))
	fmt.Fprintf(out, "  Location:   %s\n", location)
	fmt.Fprintf(out, "  Retry:      %s base delay\n", cfg.Retry.BaseDelay.Duration())
	if cfg.Kafka != nil {
		fmt.Fprintf(out, "  Kafka:      %s -> %s\n", strings.Join(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic)
	}

	return nil
}
