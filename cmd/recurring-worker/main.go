package main

import (
	"context"
	"time"

	"financas/internal/cli"
	"financas/internal/log"

	"github.com/robfig/cron/v3"
)

func main() {
	app, err := cli.Bootstrap(log.ComponentScheduler)
	if err != nil {
		cli.Fatal(nil, "Startup failed", err)
	}
	defer app.Close()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	processor := app.Services(ctx).Recurring

	run := func(trigger string) {
		asOf := processor.Today()
		start := time.Now()
		summary, err := processor.ProcessDue(ctx, asOf)
		if err != nil {
			app.Logger.LogError(ctx, "Recurring run incomplete", err, log.OpFire,
				log.FieldAsOf, asOf.String(), "trigger", trigger, "failures", len(summary.Failures))
			return
		}
		app.Logger.Info("Recurring run complete",
			log.FieldAsOf, asOf.String(),
			"trigger", trigger,
			"checked", summary.Checked,
			"created", len(summary.Created),
			"duplicate", summary.Duplicate,
			log.FieldDuration, time.Since(start).Milliseconds())
	}

	// catch up on anything missed while the worker was down
	run("startup")

	c := cron.New(cron.WithLocation(app.Location))
	if _, err := c.AddFunc(app.Config.RecurringSchedule, func() { run("cron") }); err != nil {
		app.Logger.LogError(ctx, "Invalid recurring schedule", err, log.OpStartup,
			"schedule", app.Config.RecurringSchedule)
		return
	}
	c.Start()
	app.Logger.Info("Recurring worker started",
		"schedule", app.Config.RecurringSchedule,
		"timezone", app.Location.String())

	<-ctx.Done()
	app.Logger.Info("Shutting down recurring worker", log.FieldOperation, log.OpShutdown)

	// wait for a running job, bounded
	select {
	case <-c.Stop().Done():
	case <-time.After(30 * time.Second):
		app.Logger.Warn("Shutdown timeout reached")
	}
}
