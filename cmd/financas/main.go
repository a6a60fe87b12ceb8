package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"financas/internal/cli"
	apphttp "financas/internal/http"
	"financas/internal/log"
)

func main() {
	app, err := cli.Bootstrap(log.ComponentApp)
	if err != nil {
		cli.Fatal(nil, "Startup failed", err)
	}
	defer app.Close()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	svc := app.Services(ctx)
	app.Caches.StartCleanup(ctx, 10*time.Minute)

	srv, err := apphttp.NewServer(":"+app.Config.Port, apphttp.Deps{
		Recurring:    svc.Recurring,
		Transactions: svc.Transactions,
		Reports:      svc.Reports,
		Import:       svc.Import,
		Catalog:      app.Repo,
		Store:        app.Repo,
		Logger:       app.Logger,
	}, apphttp.Options{RateLimitPerMinute: app.Config.RateLimitPerMinute})
	if err != nil {
		cli.Fatal(app.Logger, "Server setup failed", err)
	}

	go func() {
		<-ctx.Done()
		app.Logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.LogError(shutdownCtx, "Server shutdown error", err, log.OpShutdown)
		}
	}()

	app.Logger.Info("Starting financas server", "port", app.Config.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.Logger.LogError(ctx, "Server error", err, log.OpStartup, "port", app.Config.Port)
		return
	}
	app.Logger.Info("Server stopped gracefully")
}
