package main

import (
	"context"
	"errors"

	"financas/internal/cli"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/sheets"
	gsheet "financas/internal/sheets/google"
	mem "financas/internal/sheets/memory"
	"financas/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	app, err := cli.Bootstrap(log.ComponentWorker)
	if err != nil {
		cli.Fatal(nil, "Startup failed", err)
	}
	defer app.Close()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	var writer sheets.TransactionWriter
	switch app.Config.SyncBackend {
	case "sheets":
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   app.Config.GoogleSpreadsheetID,
			SheetName:       app.Config.GoogleSheetName,
			CredentialsFile: app.Config.GoogleServiceAccountFile,
			CredentialsJSON: app.Config.GoogleServiceAccountJSON,
			Logger:          app.Logger,
		})
		if err != nil {
			app.Logger.LogError(ctx, "Failed to initialize Google Sheets client", err, log.OpStartup)
			return
		}
		writer = client
		app.Logger.Info("Google Sheets client initialized", "spreadsheet_id", app.Config.GoogleSpreadsheetID)
	default:
		writer = mem.New()
		app.Logger.Info("Using in-memory sheet, rows are not persisted")
	}

	syncWorker := worker.NewSyncWorker(app.Repo, writer, app.Logger)

	client, err := app.AMQP()
	if err != nil {
		app.Logger.LogError(ctx, "Failed to initialize AMQP client", err, log.OpStartup)
		return
	}

	g, gctx := errgroup.WithContext(ctx)

	// messages lost while nothing was consuming are recovered from the store
	g.Go(func() error {
		month := core.MonthPeriod(core.Today(app.Location))
		n, err := syncWorker.Backfill(gctx, month)
		if err != nil {
			app.Logger.LogError(gctx, "Startup backfill failed", err, log.OpSync, log.FieldPeriod, month.String())
			return nil
		}
		app.Logger.Info("Startup backfill complete", log.FieldPeriod, month.String(), log.FieldCount, n)
		return nil
	})

	if client == nil {
		app.Logger.Warn("AMQP disabled, running startup backfill only")
	} else {
		g.Go(func() error {
			app.Logger.Info("Consuming transaction sync messages", "queue", app.Config.AMQPQueue)
			return client.ConsumeTransactionSync(gctx, syncWorker.HandleSyncMessage)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.LogError(ctx, "Sync worker stopped", err, log.OpSync)
		return
	}
	app.Logger.Info("Sync worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
