package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("initializing: %w", err)
			}
			return run(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.address)")
	return cmd
}

// run starts the service, serves until ctx is done or the listener fails,
// then drains, shuts the server down and stops the service.
func run(ctx context.Context, a *app) error {
	if err := a.service.Start(ctx); err != nil {
		return fmt.Errorf("starting: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		a.logger.Info("agentgate: shutdown requested")
	case err = <-serveErr:
		if err != nil {
			a.logger.Error("agentgate: server stopped unexpectedly", "error", err)
		}
	}

	// The signal context is already done; shutdown gets a fresh one and is
	// bounded by the server's shutdown timeout.
	shutdownCtx := context.WithoutCancel(ctx)
	if derr := a.service.Drain(shutdownCtx); derr != nil {
		a.logger.Warn("agentgate: drain failed", "error", derr)
	}
	if serr := a.server.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	if serr := a.service.Stop(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	a.logger.Info("agentgate: stopped", "state", a.service.State().String())
	return err
}
