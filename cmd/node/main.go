package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/alpha-fi/cheddar-nft-minter/internal/adapter"
	"github.com/alpha-fi/cheddar-nft-minter/internal/api/middleware"
	"github.com/alpha-fi/cheddar-nft-minter/internal/api/rest"
	"github.com/alpha-fi/cheddar-nft-minter/internal/api/server"
	"github.com/alpha-fi/cheddar-nft-minter/internal/config"
	"github.com/alpha-fi/cheddar-nft-minter/internal/contract"
	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/linkdrop"
	"github.com/alpha-fi/cheddar-nft-minter/internal/logger"
	"github.com/alpha-fi/cheddar-nft-minter/internal/metrics"
	"github.com/alpha-fi/cheddar-nft-minter/internal/providers/jetstream"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/xcall"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadNodeConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "nft-minter-node",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.Info("Starting NFT minter node")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	dataStore := store.NewStore(db)

	// Event publisher over NATS JetStream
	publisher, err := jetstream.NewPublisher(ctx, jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
	}, adapter.NewNatsJetStream())
	if err != nil {
		logger.Fatal("Failed to create event publisher", zap.Error(err))
	}
	defer publisher.Close()
	logger.Info("Connected to NATS JetStream", zap.String("stream", cfg.NATS.StreamName))

	// Separate NATS connection for receiver hook request/reply
	callerConn, err := nats.Connect(cfg.NATS.URL,
		nats.Name(cfg.NATS.ConnectionName+"-xcall"),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
	)
	if err != nil {
		logger.Fatal("Failed to connect to NATS for receiver hooks", zap.Error(err))
	}
	defer callerConn.Close()
	receiver := xcall.NewNATSCaller(callerConn)

	// Linkdrop facility client
	facility := linkdrop.NewHTTPFacility(linkdrop.Config{
		URL:            cfg.Linkdrop.URL,
		RequestTimeout: cfg.Linkdrop.RequestTimeout,
	}, adapter.NewHTTPClient(cfg.Linkdrop.RequestTimeout))

	tokenStorageCost, err := domain.ParseU128(cfg.Contract.TokenStorageCost)
	if err != nil {
		logger.Fatal("Invalid token storage cost", zap.Error(err), zap.String("value", cfg.Contract.TokenStorageCost))
	}
	linkdropBaseCost, err := domain.ParseU128(cfg.Linkdrop.BaseCost)
	if err != nil {
		logger.Fatal("Invalid linkdrop base cost", zap.Error(err), zap.String("value", cfg.Linkdrop.BaseCost))
	}

	engine := contract.New(dataStore, adapter.NewClock(), publisher, receiver, facility, contract.Config{
		TokenStorageCost: tokenStorageCost,
		LinkdropBaseCost: linkdropBaseCost,
		ContractID:       domain.AccountID(cfg.Contract.AccountID),
		RaffleSeed:       cfg.Contract.RaffleSeed,
		ReceiverTimeout:  cfg.Contract.ReceiverTimeout,
		ResolverWorkers:  cfg.Contract.ResolverWorkers,
	})
	defer engine.Close()

	metrics.MustRegister()

	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	})

	authCfg := middleware.AuthConfig{
		JWTPublicKey: cfg.Auth.JWTPublicKey,
		APIKeys:      cfg.Auth.APIKeys,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(rest.NewHandler(engine), authCfg); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.Error(err, zap.String("component", "server"))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Node stopped")
}
