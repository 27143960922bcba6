package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiserver "github.com/dcm-project/cloud-instance-manager/internal/api_server"
	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/config"
	"github.com/dcm-project/cloud-instance-manager/internal/events"
	"github.com/dcm-project/cloud-instance-manager/internal/handlers"
	"github.com/dcm-project/cloud-instance-manager/internal/logging"
	"github.com/dcm-project/cloud-instance-manager/internal/metrics"
	"github.com/dcm-project/cloud-instance-manager/internal/reconcile"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/tracing"
	"go.uber.org/zap"
)

const serviceName = "cloud-instance-manager"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.Init(cfg.Service.LogLevel, cfg.Service.Environment, serviceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := tracing.Init(cfg.Tracing.Enabled, serviceName, os.Stdout)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	metrics.Register()

	// Initialize database
	db, err := store.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	dataStore := store.NewStore(db)
	defer dataStore.Close()

	publisher := newPublisher(cfg.Events)
	defer publisher.Close()

	// Services
	gateway := cloud.NewGateway(cloud.NewClientCache(cfg.Cloud.Timeout))
	composer := service.NewComposer(gateway)
	users := service.NewUserService(dataStore)
	members := service.NewMemberService(dataStore, users)
	tokens := service.NewTokenService(dataStore, gateway, members, service.NewTokenSettings(cfg.Token))
	reconciler := reconcile.NewJob(dataStore, gateway, publisher)

	handler := handlers.NewHandler(
		dataStore,
		service.NewProviderService(dataStore, gateway),
		service.NewPlanService(dataStore, gateway, composer),
		service.NewInstanceService(dataStore, gateway, composer, members, users, publisher),
		members,
		tokens,
		reconciler,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Reconcile.Enabled {
		scheduler := reconcile.NewScheduler(reconciler, cfg.Reconcile.Interval)
		scheduler.Start(ctx)
		defer scheduler.Stop()
		logger.Info("Started reconciliation scheduler", zap.Duration("interval", cfg.Reconcile.Interval))
	}

	// Start server
	listener, err := net.Listen("tcp", cfg.Service.Address)
	if err != nil {
		logger.Fatal("Failed to listen", zap.String("address", cfg.Service.Address), zap.Error(err))
	}

	srv := apiserver.New(cfg, listener, handler)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server failed", zap.Error(err))
	}
}

// newPublisher connects to NATS when configured. Events are dropped
// otherwise, and also when the broker cannot be reached at startup.
func newPublisher(cfg *config.EventsConfig) events.Publisher {
	if cfg.NATSURL == "" {
		return events.Nop{}
	}
	publisher, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		zap.L().Warn("NATS unavailable, instance events disabled", zap.String("url", cfg.NATSURL), zap.Error(err))
		return events.Nop{}
	}
	return publisher
}
