package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ojalaai/ojala/pkg/logger"
	"github.com/ojalaai/ojala/pkg/metrics"
	"github.com/ojalaai/ojala/pkg/providers"
	"github.com/ojalaai/ojala/pkg/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the streaming chat endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.addr",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Completion provider (openai, anthropic)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c, "")
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("provider") {
		cfg.Server.Provider = c.String("provider")
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	tracker, err := metrics.NewTracker(cfg.Server.MetricsDir)
	if err != nil {
		logger.WarnCF("serve", "Usage tracking disabled",
			map[string]interface{}{"error": err.Error()})
		tracker = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoCF("serve", "Starting chat server",
		map[string]interface{}{
			"addr":     cfg.Server.Addr,
			"provider": cfg.Server.Provider,
			"model":    cfg.Server.Model,
		})
	return server.NewServer(cfg.Server, provider, tracker).Start(ctx)
}
