package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/infrastructure/tracing"
	"github.com/ersonp/pivot/internal/interface/rest"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Long: `Starts the HTTP API. Change events are streamed to websocket clients at
/events; with events.redis_channel set they are shared between processes
through Redis pub/sub.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		if addr == "" {
			addr = d.Config.Server.Addr
		}

		if d.Relay != nil {
			go func() {
				if err := d.Relay.Subscribe(ctx, d.RelaySink); err != nil {
					d.Logger.Error("event relay stopped", slog.String("error", err.Error()))
				}
			}()
		}

		serviceName := d.Config.Tracing.ServiceName
		if serviceName == "" {
			serviceName = tracing.DefaultServiceName
		}

		h := rest.NewHandler(d.PivotHandler, d.EntityHandler, d.AssociationHandler, d.ImportHandler, d.ExportHandler, d.Hub)
		e := rest.NewServer(h, serviceName, d.Logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- e.Start(addr)
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serving: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	})
}
