package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	transporthttp "github.com/datkrb/resfood-payments/internal/transport/http"
	"github.com/spf13/cobra"
)

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and webhook receivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadWiring(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()
			return serve(rt)
		},
	}
}

func serve(rt *wiring) error {
	logger := rt.logger

	deps := transporthttp.RouterDeps{
		Logger:      logger,
		Health:      rt.store,
		QR:          rt.qr,
		Admin:       rt.admin,
		CORSOrigins: rt.cfg.HTTP.CORSOrigins,
	}
	if rt.gateway != nil {
		deps.Gateway = rt.gateway
	}

	server := &http.Server{
		Addr:    ":" + rt.cfg.HTTP.Port,
		Handler: transporthttp.NewRouter(deps),
	}

	logger.Info("api listening", "addr", server.Addr, "gateway", rt.gateway != nil)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			runErr = err
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), rt.cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return runErr
}
