package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ojalaai/ojala/pkg/config"
	"github.com/ojalaai/ojala/pkg/metrics"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a configuration file with the defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   config.DefaultPath(),
					},
				},
				Action: runConfigInit,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration file",
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	outputPath := c.String("output")

	if err := config.DefaultConfig().Save(outputPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Created configuration file at %s\n", outputPath)
	return nil
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := loadConfig(c, "warn")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Println("Configuration is valid")
	return nil
}

func usageCommand() *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Summarize token usage recorded by the server",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c, "warn")
			if err != nil {
				return err
			}
			tracker, err := metrics.NewTracker(cfg.Server.MetricsDir)
			if err != nil {
				return err
			}
			s, err := tracker.Summarize()
			if err != nil {
				return fmt.Errorf("failed to read usage log: %w", err)
			}

			fmt.Printf("Exchanges:     %d (%d failed)\n", s.Exchanges, s.Failed)
			fmt.Printf("Input tokens:  %d\n", s.InputTokens)
			fmt.Printf("Output tokens: %d\n", s.OutputTokens)
			fmt.Printf("Cost:          $%.4f\n", s.CostUSD)
			return nil
		},
	}
}
