package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"

	"credready/internal/compliance/handler"
	"credready/internal/compliance/locker"
	"credready/internal/compliance/onboarding"
	"credready/internal/compliance/override"
	"credready/internal/compliance/ports"
	clinicianstore "credready/internal/compliance/store/clinician"
	definitionstore "credready/internal/compliance/store/definition"
	itemstore "credready/internal/compliance/store/item"
	"credready/internal/compliance/status"
	"credready/internal/compliance/submission"
	"credready/internal/compliance/sweep"
	"credready/internal/notify"
	"credready/internal/platform/config"
	"credready/internal/platform/httpserver"
	"credready/internal/platform/logger"
	"credready/internal/platform/metrics"
	"credready/internal/platform/middleware"
	platformredis "credready/internal/platform/redis"
	"credready/internal/storage"
	"credready/pkg/platform/audit"
	auditmemory "credready/pkg/platform/audit/store/memory"
	auditpostgres "credready/pkg/platform/audit/store/postgres"
	auditworker "credready/pkg/platform/audit/worker"
)

// main wires the dependency graph and owns the process lifecycle: HTTP
// server, audit worker, outbox publisher, and the daily sweep schedule.
// Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores: postgres when a DSN is configured, otherwise the in-memory
	// chain used in development and tests.
	var (
		db          *sql.DB
		clinicians  ports.ClinicianStore
		items       ports.ItemStore
		definitions ports.DefinitionStore
		auditStore  audit.Store
	)
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		clinicians = clinicianstore.NewPostgres(db)
		items = itemstore.NewPostgres(db)
		definitions = definitionstore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		memDefs := definitionstore.NewMemory()
		memItems := itemstore.NewMemory(memDefs)
		clinicians = clinicianstore.NewMemory(memItems)
		items = memItems
		definitions = memDefs
		auditStore = auditmemory.New()
	}

	group, ctx := errgroup.WithContext(ctx)

	// Audit events leave the hot path through a channel; the worker owns
	// persistence.
	inbox := make(chan audit.Event, 256)
	sink := auditworker.NewChannelSink(inbox)
	group.Go(func() error {
		return auditworker.NewWorker(auditStore, inbox).Run(ctx)
	})

	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		kafka, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
		)
		if err != nil {
			return err
		}
		defer kafka.Close()
		group.Go(func() error {
			return auditworker.NewOutboxPublisher(db, kafka, log).Run(ctx)
		})
	}

	// Recompute serialization: redis in multi-instance deployments, an
	// in-process lock otherwise. The same client backs the rate limiter.
	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var recomputeLock ports.RecomputeLocker
	var rateCounter middleware.Counter
	if rdb != nil {
		defer rdb.Close()
		recomputeLock = locker.NewRedis(rdb)
		rateCounter = middleware.NewRedisCounter(rdb.Client)
	} else {
		recomputeLock = locker.NewMemory()
		rateCounter = middleware.NewMemoryCounter()
	}

	engine, err := status.New(clinicians, items,
		status.WithLogger(log),
		status.WithAuditSink(sink),
		status.WithLocker(recomputeLock),
		status.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	submissions, err := submission.New(items, definitions, clinicians, engine,
		submission.WithLogger(log),
		submission.WithAuditSink(sink),
		submission.WithReceiptStorage(storage.NewMemoryReceipts()),
	)
	if err != nil {
		return err
	}

	overrides, err := override.New(clinicians, items, engine,
		override.WithLogger(log),
		override.WithAuditSink(sink),
		override.WithMetrics(m),
		override.WithMaxDuration(time.Duration(cfg.Compliance.OverrideMaxHours)*time.Hour),
	)
	if err != nil {
		return err
	}

	onboard, err := onboarding.New(clinicians, definitions,
		onboarding.WithLogger(log),
		onboarding.WithAuditSink(sink),
	)
	if err != nil {
		return err
	}

	admins := notify.NewStaticAdminDirectory(os.Getenv("CREDREADY_ADMIN_ALERT_EMAILS"))
	sweeps, err := sweep.New(clinicians, items, engine,
		sweep.WithLogger(log),
		sweep.WithAuditSink(sink),
		sweep.WithMetrics(m),
		sweep.WithNotifier(notify.NewLogNotifier(log)),
		sweep.WithAdminDirectory(admins),
		sweep.WithReminderOffsets(cfg.Compliance.ReminderOffsetsDays),
		sweep.WithAdminAlertThreshold(cfg.Compliance.AdminAlertThresholdDays),
		sweep.WithRecomputeConcurrency(cfg.Compliance.RecomputeConcurrency),
	)
	if err != nil {
		return err
	}

	h := handler.New(submissions, overrides, onboard, sweeps,
		handler.StoreStatusReader{Clinicians: clinicians, Items: items},
		[]byte(cfg.Auth.JWTSigningKey), log)
	if cfg.Server.RateLimitPerMinute > 0 {
		h.UseRateLimit(middleware.RateLimit(rateCounter,
			cfg.Server.RateLimitPerMinute, time.Minute, log))
	}

	router := chi.NewRouter()
	h.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Daily sweeps: expirations first so the reminder run sees final item
	// states for the day.
	schedule := cron.New()
	addJob := func(spec, name string, job func(context.Context) (*sweep.Result, error)) error {
		_, err := schedule.AddFunc(spec, func() {
			if _, err := job(ctx); err != nil {
				log.Error("scheduled sweep failed", "job", name, "error", err)
			}
		})
		return err
	}
	if err := addJob("0 2 * * *", "item_expiration", sweeps.RunItemExpiration); err != nil {
		return err
	}
	if err := addJob("5 2 * * *", "override_expiration", sweeps.RunOverrideExpiration); err != nil {
		return err
	}
	if err := addJob("0 9 * * *", "reminders", sweeps.RunReminders); err != nil {
		return err
	}
	schedule.Start()
	defer schedule.Stop()

	srv := httpserver.New(cfg.Server.Addr, router)
	group.Go(func() error {
		log.Info("starting credready server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
