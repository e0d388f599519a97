package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chathub-presence-svc/src/internal/dependency"
)

// Start serves HTTP until the context is canceled, then drains in-flight
// requests before returning.
func Start(ctx context.Context, deps *dependency.Manager) error {
	SetupRoutes(deps)

	cfg := deps.Config.Server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      deps.Router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on :%s", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}
