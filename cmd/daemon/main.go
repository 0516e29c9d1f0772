// daemon runs the integration pass on a cron schedule and pushes any
// freshly raised alerts through the configured notifier.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"recon-engine/internal/app"
	"recon-engine/internal/core"
	"recon-engine/internal/db"
	"recon-engine/internal/notify"
	"recon-engine/internal/scheduler"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultSchedule = "0 */5 * * * *"

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx)
	if err != nil {
		log.WithError(err).Fatal("unable to connect to database")
	}
	defer pool.Close()

	tenantID := os.Getenv("RECON_TENANT_ID")
	if tenantID == "" {
		tenantID = "default"
	}

	policy := core.Merge
	if raw := os.Getenv("RECON_RESOLUTION_POLICY"); raw != "" {
		p, ok := core.ParsePolicy(raw)
		if !ok {
			log.WithField("policy", raw).Fatal("unknown RECON_RESOLUTION_POLICY")
		}
		policy = p
	}

	schedule := os.Getenv("RECON_PASS_SCHEDULE")
	if schedule == "" {
		schedule = defaultSchedule
	}

	svc := app.NewReconService(pool, app.Options{Policy: policy, Log: log})
	notifier := notify.NewLogNotifier(log)

	sched := scheduler.NewCronScheduler(log)
	err = sched.Schedule(schedule, func() {
		report := svc.RunIntegrationPass(ctx, tenantID)
		notify.FanOut(notifier, report.FreshAlerts)
	})
	if err != nil {
		log.WithError(err).Fatal("invalid schedule")
	}

	log.WithFields(logrus.Fields{"tenant": tenantID, "schedule": schedule}).Info("daemon started")
	sched.Start()
	<-ctx.Done()
	sched.Stop()
	log.Info("daemon stopped")
}
