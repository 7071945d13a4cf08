package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ojalaai/ojala/pkg/config"
	"github.com/ojalaai/ojala/pkg/logger"
)

const version = "0.3.0"

func main() {
	app := &cli.App{
		Name:    "ojala",
		Usage:   "Multimodal chat with streaming replies",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   config.DefaultPath(),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			chatCommand(),
			serveCommand(),
			configCommand(),
			usageCommand(),
		},
		DefaultCommand: "chat",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config and applies the logging
// section. A non-empty quietLevel replaces the configured level unless
// --log-level is given, so log lines do not interleave with a chat.
func loadConfig(c *cli.Context, quietLevel string) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	switch {
	case c.IsSet("log-level"):
		level = c.String("log-level")
	case quietLevel != "":
		level = quietLevel
	}

	logger.Init(os.Stderr, cfg.Log.JSON)
	logger.SetLevel(logger.ParseLevel(level))
	return cfg, nil
}
