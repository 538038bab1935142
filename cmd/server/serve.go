package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/billing-engine/internal/container"
	httpserver "github.com/garyjia/billing-engine/internal/interfaces/http"
	"github.com/garyjia/billing-engine/pkg/utils"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	a.logger.Info("Starting billing engine",
		zap.String("version", version),
		zap.Int("port", a.cfg.Server.Port))

	c, err := container.NewContainer(a.cfg.ToContainerConfig(), a.logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			a.logger.Error("Container close failed", zap.Error(err))
		}
	}()

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		ReadTimeout:    a.cfg.Server.ReadTimeout,
		WriteTimeout:   a.cfg.Server.WriteTimeout,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}, c.InvoiceService(), c.Exporter(), c, utils.NewZapAdapter(a.logger))

	// Blocks until SIGINT/SIGTERM, then shuts down gracefully
	if err := server.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("Server exited")
	return nil
}
