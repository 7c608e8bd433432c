// Command server runs the entity resolution and confidence grading engine.
// Wiring only: business logic lives in the internal service packages. With no
// DATABASE_URL the process runs entirely on in-memory stores, which is the
// development mode.
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

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	claimhandler "yeto/internal/claim/handler"
	claimmetrics "yeto/internal/claim/metrics"
	claimports "yeto/internal/claim/ports"
	claimservice "yeto/internal/claim/service"
	claimStore "yeto/internal/claim/store/claim"
	citationStore "yeto/internal/claim/store/citation"
	"yeto/internal/contradiction"
	contradictionhandler "yeto/internal/contradiction/handler"
	contradictionports "yeto/internal/contradiction/ports"
	contradictionservice "yeto/internal/contradiction/service"
	contradictionStore "yeto/internal/contradiction/store"
	entityhandler "yeto/internal/entity/handler"
	"yeto/internal/entity/lock"
	entitymetrics "yeto/internal/entity/metrics"
	entityports "yeto/internal/entity/ports"
	entityservice "yeto/internal/entity/service"
	entityStore "yeto/internal/entity/store/entity"
	reviewcaseStore "yeto/internal/entity/store/reviewcase"
	"yeto/internal/grading"
	jwttoken "yeto/internal/jwt_token"
	"yeto/internal/platform/config"
	"yeto/internal/platform/httpserver"
	"yeto/internal/platform/logger"
	platformredis "yeto/internal/platform/redis"
	"yeto/internal/provenance"
	"yeto/internal/registry"
	"yeto/internal/storage"
	httptransport "yeto/internal/transport/http"
	"yeto/pkg/platform/audit"
	"yeto/pkg/platform/audit/consumer"
	"yeto/pkg/platform/audit/publisher"
	auditmemory "yeto/pkg/platform/audit/store/memory"
	auditpostgres "yeto/pkg/platform/audit/store/postgres"
	"yeto/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Load()
	if err != nil {
		return err
	}

	// Stores: postgres when configured, memory otherwise.
	var (
		entities   entityports.EntityStore
		reviews    entityports.ReviewCaseStore
		claims     claimports.ClaimStore
		citations  claimports.CitationStore
		records    contradictionports.ContradictionStore
		auditStore audit.Store
		txRunner   entityports.TxRunner
	)

	if cfg.DatabaseURL != "" {
		db, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.Migrate(ctx, db); err != nil {
			return err
		}

		entities = entityStore.NewPostgres(db)
		reviews = reviewcaseStore.NewPostgres(db)
		claims = claimStore.NewPostgres(db)
		citations = citationStore.NewPostgres(db)
		records = contradictionStore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		txRunner = storage.NewSQLTxRunner(db)

		if len(cfg.Kafka.Brokers) > 0 {
			if err := startAuditPipeline(ctx, cfg, db, log); err != nil {
				return err
			}
		}
		log.Info("storage ready", "backend", "postgres")
	} else {
		entities = entityStore.NewInMemoryStore()
		reviews = reviewcaseStore.NewInMemoryStore()
		mem := claimStore.NewInMemoryStore()
		claims = mem
		citations = citationStore.NewInMemory(mem)
		records = contradictionStore.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
		txRunner = storage.NewNoopTxRunner()
		log.Warn("no DATABASE_URL configured, running on in-memory stores")
	}

	// Locks: Redis when configured so resolution serializes across replicas.
	var locks entityports.NameLocker = lock.NewInMemoryLocker()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		locks = lock.NewRedisLocker(redisClient.Client)
		log.Info("resolution locks backed by redis")
	}

	auditPub := publisher.NewPublisher(auditStore, publisher.WithLogger(log))
	defer auditPub.Close()

	grader, err := grading.New(grading.DefaultConfig())
	if err != nil {
		return err
	}

	resolver := entityservice.NewResolver(reg, entities, reviews, locks, txRunner,
		entityservice.WithLogger(log),
		entityservice.WithAuditPublisher(auditPub),
		entityservice.WithMetrics(entitymetrics.New()),
	)
	review := entityservice.NewReview(entities, reviews, locks, txRunner, resolver,
		entityservice.WithReviewLogger(log),
		entityservice.WithReviewAuditPublisher(auditPub),
	)
	claimSvc := claimservice.New(claims, citations, grader, txRunner,
		claimservice.WithLogger(log),
		claimservice.WithAuditPublisher(auditPub),
		claimservice.WithMetrics(claimmetrics.New()),
	)
	detector, err := contradictionservice.New(contradiction.DefaultConfig(),
		records, claims, citations, claimSvc,
		contradictionservice.WithLogger(log),
		contradictionservice.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return err
	}
	checker := provenance.New(claims, citations,
		provenance.WithLogger(log),
		provenance.WithAuditPublisher(auditPub),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "yeto", "yeto-reviewers")

	router := httptransport.NewRouter(httptransport.Handlers{
		Entity:        entityhandler.New(resolver, review, log),
		Claim:         claimhandler.New(claimSvc, log),
		Contradiction: contradictionhandler.New(detector, log),
		Provenance:    provenance.NewHandler(checker, log),
	}, jwtService, log)

	srv := httpserver.New(httpserver.Config{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}, router)
	log.Info("starting yeto engine", "addr", cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// startAuditPipeline runs the outbox worker and the materializing consumer.
func startAuditPipeline(ctx context.Context, cfg config.Server, db *sql.DB, log *slog.Logger) error {
	producer, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
	if err != nil {
		return err
	}
	if err := worker.EnsureTopic(ctx, producer, cfg.Kafka.AuditTopic); err != nil {
		return err
	}
	cons, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Kafka.Brokers...),
		kgo.ConsumerGroup("yeto-audit-materializer"),
		kgo.ConsumeTopics(cfg.Kafka.AuditTopic),
	)
	if err != nil {
		return err
	}

	go func() {
		defer producer.Close()
		if err := worker.New(db, producer, cfg.Kafka.AuditTopic, log).Run(ctx); err != nil &&
			!errors.Is(err, context.Canceled) {
			log.Error("audit outbox worker stopped", "error", err)
		}
	}()
	go func() {
		defer cons.Close()
		if err := consumer.New(cons, auditpostgres.New(db), log).Run(ctx); err != nil &&
			!errors.Is(err, context.Canceled) {
			log.Error("audit consumer stopped", "error", err)
		}
	}()
	log.Info("audit pipeline running", "topic", cfg.Kafka.AuditTopic)
	return nil
}
