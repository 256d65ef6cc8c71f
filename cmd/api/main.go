// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Datamira exploration server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Initialize the language model provider and token service.
//  7. Start the actor system and spawn the node components.
//  8. Wire HTTP handlers.
//  9. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/datamira/internal/analysis/graph"
	"github.com/taibuivan/datamira/internal/analysis/schema"
	"github.com/taibuivan/datamira/internal/analysis/vector"
	"github.com/taibuivan/datamira/internal/api"
	"github.com/taibuivan/datamira/internal/core/chat"
	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
	"github.com/taibuivan/datamira/internal/platform/config"
	"github.com/taibuivan/datamira/internal/platform/constants"
	"github.com/taibuivan/datamira/internal/platform/llm"
	"github.com/taibuivan/datamira/internal/platform/migration"
	pgstore "github.com/taibuivan/datamira/internal/platform/postgres"
	redisstore "github.com/taibuivan/datamira/internal/platform/redis"
	"github.com/taibuivan/datamira/internal/platform/sec"
	"github.com/taibuivan/datamira/internal/reasoning/classifier"
	"github.com/taibuivan/datamira/internal/reasoning/executor"
	"github.com/taibuivan/datamira/internal/reasoning/orchestrator"
	"github.com/taibuivan/datamira/internal/reasoning/synthesizer"
	"github.com/taibuivan/datamira/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "datamira"))
	slog.SetDefault(log)

	log.Info("[Datamira] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "datamira"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token Service + Language Model ─────────────────────────────────
	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	// One provider serves both completion and embedding calls.
	model := llm.NewOpenAIModel(cfg.OpenAIAPIKey, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDimension)

	// ── 7. Auth Service ───────────────────────────────────────────────────
	userRepository := auth.NewUserRepository(pool)
	sessionRepository := auth.NewSessionRepository(pool)
	sessionCache := auth.NewSessionCache(rdb)
	authService := auth.NewService(
		userRepository,
		sessionRepository,
		sessionCache,
		jwtSvc,
		time.Duration(cfg.SessionTTLHours)*time.Hour,
		log,
	)
	must(log, authService.BootstrapAdmin(startupCtx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword), "bootstrap admin")

	// ── 8. Actor System ───────────────────────────────────────────────────
	// One worker pool backs every component; the system supervises the
	// component loops across the three logical nodes.
	workerPool := actor.NewPool(0, 128, log)
	system := actor.NewSystem(context.Background(), workerPool, log)

	// Graph store: Neo4j when configured, in-memory otherwise.
	var graphStore graph.Store
	var checkGraph func() error
	if cfg.Neo4jURI != "" {
		neo4jStore, err := graph.Connect(startupCtx, cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword)
		must(log, err, "connect to neo4j")
		defer neo4jStore.Close(context.Background())
		graphStore = neo4jStore
		checkGraph = func() error { return neo4jStore.Ping(context.Background()) }
	} else {
		log.Info("graph_store_in_memory")
		graphStore = graph.NewMemoryStore()
	}

	vectorIndex := vector.NewIndex(vector.NewRedisStore(rdb, cfg.EmbeddingDimension), log)
	graphIndex := graph.NewIndex(graphStore, log)

	connectionRepository := connection.NewSavedConnectionRepository(pool)
	manager := connection.NewManager(connectionRepository, workerPool, log, vectorIndex, graphIndex)

	ingestor := schema.NewIngestor(manager.Ref(), vectorIndex.Ref(), graphIndex.Ref(), model, workerPool, log)

	// A handle going live triggers ingestion so the schema is searchable by
	// the time the user asks their first question. Fire and forget; the
	// ingest endpoint covers manual re-runs.
	manager.OnLive(func(userID, connectionID string) {
		ingestContext, cancel := context.WithTimeout(context.Background(), constants.DefaultAskTimeout)
		defer cancel()
		discard := actor.NewReply[*schema.Report]()
		if err := ingestor.Ref().Tell(ingestContext, schema.Command{Ingest: &schema.IngestCommand{
			UserID:       userID,
			ConnectionID: connectionID,
			ReplyTo:      discard,
		}}); err != nil {
			log.Warn("auto_ingest_enqueue_failed", slog.String("connection_id", connectionID), slog.Any("error", err))
		}
	})

	classifiers := classifier.NewClassifier(model, workerPool, log)
	synthesizers := synthesizer.NewSynthesizer(model, workerPool, log)
	executors := executor.NewExecutor(manager.Ref(), cfg.QueryDenylist, cfg.DenylistWarnOnly, cfg.MaxRows, log)
	orchestrators := orchestrator.NewOrchestrator(
		classifiers.Ref(), synthesizers.Ref(), executors.Ref(),
		vectorIndex.Ref(), graphIndex.Ref(), manager.Ref(),
		model, workerPool, log,
	)

	turnRepository := chat.NewTurnRepository(pool)
	chatRouter := chat.NewRouter(authService, orchestrators.Ref(), turnRepository, workerPool, log)

	sweeper := auth.NewSweeper(sessionRepository, constants.SessionSweepInterval, log)

	// Core node: user-facing entry points.
	system.Spawn(actor.NodeCore, manager)
	system.Spawn(actor.NodeCore, chatRouter)
	system.Spawn(actor.NodeCore, sweeper)

	// Reasoning node: the turn pipeline.
	system.Spawn(actor.NodeReasoning, classifiers)
	system.Spawn(actor.NodeReasoning, synthesizers)
	system.Spawn(actor.NodeReasoning, executors)
	system.Spawn(actor.NodeReasoning, orchestrators)

	// Analysis node: schema indexes.
	system.Spawn(actor.NodeAnalysis, vectorIndex)
	system.Spawn(actor.NodeAnalysis, graphIndex)
	system.Spawn(actor.NodeAnalysis, ingestor)

	// ── 9. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
		CheckGraph: checkGraph,
	}, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService),
		Database:  connection.NewHandler(manager.Ref()),
		Chat:      chat.NewHandler(chatRouter),
		Analysis:  schema.NewHandler(ingestor.Ref(), graphIndex.Ref(), manager.Ref()),
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()
	server := api.NewServer(serverCtx, cfg, log, authService, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete, then stop the
	// component loops. The manager's teardown closes remaining handles.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
	}

	if !system.Stop(shutdownTimeout) {
		log.Error("actor system stop timed out")
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
