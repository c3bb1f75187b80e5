package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"subreg/internal/chain/inmem"
	"subreg/internal/events"
	eventskafka "subreg/internal/events/kafka"
	"subreg/internal/payments"
	"subreg/internal/platform/config"
	"subreg/internal/platform/httpserver"
	"subreg/internal/platform/logger"
	"subreg/internal/platform/metrics"
	platformredis "subreg/internal/platform/redis"
	"subreg/internal/registrar/lock"
	"subreg/internal/registrar/service"
	"subreg/internal/registrar/store"
	httptransport "subreg/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the registrar service. Empty database/redis/kafka
// config selects the in-process implementations for local development; the
// chain ports are in-memory in this build pending real chain clients.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var (
		listings store.Store
		ledger   payments.Ledger
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.EnsureSchema(ctx, db); err != nil {
			cancel()
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		cancel()
		listings = store.NewPostgresStore(db)
		ledger = payments.NewPostgresLedger(db)
	} else {
		listings = store.NewInMemoryStore()
		ledger = payments.NewMemoryLedger()
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient.Client)
	}

	var publisher events.Publisher = events.NewMemoryPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = eventskafka.NewPublisher(cfg.KafkaBrokers, cfg.EventTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
	}
	defer publisher.Close()

	emitter := events.NewEmitter(1024, log)
	worker := events.NewWorker(emitter, publisher, log)

	// TODO(chain): replace the in-memory chain with RPC-backed clients once
	// the node endpoints are provisioned.
	registry := inmem.NewRegistry()
	resolver := inmem.NewResolver()
	legacy := inmem.NewLegacyRegistrar()

	svc := service.New(
		service.Config{
			RootNode:            cfg.RootNode(),
			RegistrarAccount:    cfg.RegistrarAccount,
			LegacyRegistrarAddr: cfg.LegacyRegistrar,
		},
		listings, ledger, registry, resolver, legacy, locker, emitter, log, m,
	)

	handler := httptransport.NewHandler(svc, ledger, log, m)
	router := httptransport.NewRouter(handler, []byte(cfg.JWTSigningKey), log)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting subreg", "addr", cfg.Addr, "root", cfg.RootName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		err := worker.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
