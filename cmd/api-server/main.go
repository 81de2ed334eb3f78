package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"clubmedia/database"
	"clubmedia/internal/config"
	"clubmedia/internal/microservices/graphql-api/schema"
	"clubmedia/internal/microservices/http-api/handler"
	"clubmedia/internal/microservices/http-api/repository"
	"clubmedia/internal/microservices/http-api/service"
	"clubmedia/internal/microservices/rpcapi"
	"clubmedia/internal/observability"
	"clubmedia/internal/rpc"
	rpcamqp "clubmedia/internal/rpc/amqp"
	"clubmedia/internal/rpc/redisq"
	"clubmedia/internal/txscope"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Setup structured logging
	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_error", "error", err)
		os.Exit(1)
	}
	logger.Info("server_stopped_gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	var metrics *prometheus.Registry
	if cfg.PrometheusEnabled {
		metrics = prometheus.NewRegistry()
		metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if err := observability.Register(metrics); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	// HTTP and GraphQL share the gorm client; their scopes differ only in timeout
	gormClient := txscope.NewGormClient(db)
	httpScope := txscope.NewCoordinator[*gorm.DB](gormClient, txscope.Options{
		Name: "http", Timeout: cfg.HTTPTxTimeout, Logger: logger,
	})
	gqlScope := txscope.NewCoordinator[*gorm.DB](gormClient, txscope.Options{
		Name: "graphql", Timeout: cfg.GraphQLTxTimeout, Logger: logger,
	})

	clubRepo := repository.NewClubRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	mediaSvc := service.NewMediaService(mediaRepo, clubRepo)
	clubSvc := service.NewClubService(clubRepo)
	mediaHandler := handler.NewMediaHandler(mediaSvc)

	gqlSchema, err := schema.New(mediaSvc)
	if err != nil {
		return fmt.Errorf("parse graphql schema: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: newRouter(routerDeps{
			Logger:      logger,
			HTTPScope:   httpScope,
			GraphQL:     gqlSchema,
			GQLScope:    gqlScope,
			Media:       mediaHandler,
			Clubs:       handler.NewClubHandler(clubSvc, mediaHandler),
			Metrics:     metrics,
			CORSOrigins: cfg.CORSOrigins,
			Ready:       sqlDB.Ping,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received_shutdown_signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.RPCTransport != config.TransportNone {
		registry, closeRPC, err := startRPC(gctx, cfg, logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer closeRPC()
		g.Go(func() error { return registry.Start(gctx) })
	}

	return g.Wait()
}

// startRPC connects the configured broker and registers the media methods. The
// returned func releases the broker and the pgx pool.
func startRPC(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*rpc.Registry, func(), error) {
	pool, err := database.ConnectPool(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var broker rpc.Broker
	switch cfg.RPCTransport {
	case config.TransportAMQP:
		b, err := rpcamqp.Dial(cfg.AMQPURL, cfg.RPCQueue, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		broker = b
	case config.TransportRedis:
		rdb, err := redisq.Connect(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		q := redisq.New(rdb, cfg.RPCQueue, logger)
		if _, err := q.Recover(ctx); err != nil {
			logger.Warn("redisq_recover_failed", "error", err)
		}
		broker = closerFunc{Broker: q, close: rdb.Close}
	default:
		pool.Close()
		return nil, nil, fmt.Errorf("unknown rpc transport %q", cfg.RPCTransport)
	}

	registry := rpc.NewRegistry(broker, broker, logger)
	pgxClient := txscope.NewPgxClient(pool).WithIsolation(pgx.ReadCommitted)
	rpcapi.Register(registry, pgxClient, cfg.RPCTxTimeout)

	return registry, func() {
		if err := broker.Close(); err != nil {
			logger.Warn("rpc_broker_close_failed", "error", err)
		}
		pool.Close()
	}, nil
}

// closerFunc adds an owned resource to a broker's Close.
type closerFunc struct {
	rpc.Broker
	close func() error
}

func (c closerFunc) Close() error {
	return errors.Join(c.Broker.Close(), c.close())
}
