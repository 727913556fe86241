// Command node boots one shard of the access graph engine: the in-memory
// Manager (C2-C5 collapsed), a DynamoDB-backed temporal persister (C6) as
// its downstream event sink, and the REST adapter (C7) over both.
//
// Grounded on the teacher's cmd/api/main.go bootstrap: config load,
// explicit wiring of every dependency in main, a chi router, and a
// graceful-shutdown HTTP server driven by SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"github.com/accessgraph/engine/internal/accessmanager"
	"github.com/accessgraph/engine/internal/config"
	"github.com/accessgraph/engine/internal/fanout"
	"github.com/accessgraph/engine/internal/metrics"
	"github.com/accessgraph/engine/internal/persist"
	"github.com/accessgraph/engine/internal/persist/dynamopersist"
	"github.com/accessgraph/engine/internal/restapi"
	"github.com/accessgraph/engine/pkg/auth"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Fatal("failed to load AWS configuration", zap.Error(err))
	}
	ddb := dynamodb.NewFromConfig(awsCfg)
	persister := dynamopersist.New[string, string, string, string](ddb, cfg.DynamoDBTable)

	downstream := accessmanager.EventSink[string, string, string, string](
		&persist.Adapter[string, string, string, string]{Persister: persister},
	)
	if cfg.EventBusName != "" {
		ebClient := eventbridge.NewFromConfig(awsCfg)
		replication := fanout.NewEventBridgeSink[string, string, string, string](ebClient, cfg.EventBusName, "accessgraph.node")
		downstream = fanout.NewMultiSink[string, string, string, string](downstream, replication)
	}

	var sink metrics.Sink[string, string]
	if cfg.EnableTracing {
		cwClient := cloudwatch.NewFromConfig(awsCfg)
		sink = metrics.NewCloudWatchSink[string, string](cwClient, "AccessGraphEngine", logger, metrics.TripCircuitBreaker)
	} else {
		sink = metrics.NewInMemorySink[string, string]()
	}

	engine := accessmanager.NewBuilder[string, string, string, string]().
		WithMetrics(sink).
		WithDownstream(downstream).
		DependencyFree(cfg.DependencyFree).
		ThrowIdempotencyExceptions(cfg.ThrowIdempotencyExceptions).
		Build()

	var jwtSecret []byte
	if cfg.JWTSecret != "" {
		jwtSecret = []byte(cfg.JWTSecret)
	}

	var limiter auth.RateLimiter
	if cfg.IsProduction() {
		limiter = auth.NewDistributedIPRateLimiter(ddb, cfg.DynamoDBTable+"-ratelimit", 6000)
	}
	router := restapi.New(engine, logger, jwtSecret, cfg.CORSOrigins, limiter)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting node", zap.String("address", cfg.ServerAddress), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down node")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	log.Println("node stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
