package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/liora-bloom/internal/adapter/backend"
	"github.com/rl1809/liora-bloom/internal/adapter/handler"
	"github.com/rl1809/liora-bloom/internal/adapter/messaging"
	"github.com/rl1809/liora-bloom/internal/adapter/storage"
	"github.com/rl1809/liora-bloom/internal/config"
	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/core/service"
	"github.com/rl1809/liora-bloom/internal/logger"
	"github.com/rl1809/liora-bloom/internal/port"
)

const (
	eventWorkers   = 4
	eventQueueSize = 1024
	janitorEvery   = time.Minute
)

type publisher interface {
	port.EventPublisher
	io.Closer
}

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Service: cfg.App.Name, Env: cfg.App.Env, Level: cfg.App.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.CheckBackOffice(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	log.Info("connected to mysql")

	if cfg.MySQL.Migrate {
		if err := storage.RunMigrations(db); err != nil {
			db.Close()
			return err
		}
		log.Info("migrations applied")
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.Redis.DeviceTTL, cfg.Redis.ProductTTL)

	// Events
	var pub publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		log.Info("publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		pub = messaging.NewNopPublisher(log)
		log.Info("no kafka brokers configured, order events are only logged")
	}
	dispatcher := service.NewEventDispatcher(pub, eventQueueSize, log)
	dispatcher.Start(eventWorkers)

	// Services
	addons, err := addOnsFromConfig(cfg.Store.AddOns)
	if err != nil {
		return err
	}
	catalog := service.NewCatalogService(mysqlAdapter, redisAdapter, service.NewAddOnCatalog(addons), log)

	backendClient := backend.NewClient(backend.Options{
		BaseURL: cfg.Backend.URL,
		AnonKey: cfg.Backend.AnonKey,
		Timeout: cfg.Backend.Timeout,
	}, log)

	courierFee, err := cfg.CourierFee()
	if err != nil {
		return err
	}

	visitors := service.NewVisitors(service.VisitorDeps{
		LocalStore: func(deviceID string) port.LocalStore { return redisAdapter.DeviceStore(deviceID) },
		Auth: func(deviceID string, store port.LocalStore) port.AuthBackend {
			return backendClient.Auth(store, log.With(zap.String("device_id", deviceID)))
		},
		Profiles: mysqlAdapter,
		Orders:   mysqlAdapter,
		Refs:     service.NewReferenceGenerator(cfg.Store.ReferencePrefix),
		Events:   dispatcher,
		Settings: service.CheckoutSettings{
			CourierFee:      courierFee,
			DefaultCity:     cfg.Store.DefaultCity,
			RejectEmptyCart: true,
			Bank: service.BankDetails{
				Bank:          cfg.Store.Bank.Bank,
				AccountName:   cfg.Store.Bank.AccountName,
				AccountNumber: cfg.Store.Bank.AccountNumber,
				BranchCode:    cfg.Store.Bank.BranchCode,
				ProofEmail:    cfg.Store.Bank.ProofEmail,
			},
		},
	}, cfg.Store.VisitorIdleTTL, log)
	visitors.StartJanitor(janitorEvery)

	account := service.NewAccountService(mysqlAdapter, mysqlAdapter, mysqlAdapter, mysqlAdapter)
	backOffice := service.NewBackOfficeService(service.BackOfficeDeps{
		Orders:     mysqlAdapter,
		Products:   mysqlAdapter,
		Promotions: mysqlAdapter,
		Profiles:   mysqlAdapter,
		Blobs:      backendClient.Blobs(cfg.Backend.ImageBucket, cfg.Backend.ServiceKey),
		Catalog:    catalog,
		Events:     dispatcher,
	}, log)

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.TokenInterceptor(cfg.GRPC.Token, log)))
	if cfg.GRPC.Token != "" {
		grpcServer.RegisterService(&handler.BackOfficeServiceDesc, handler.NewGRPCHandler(backOffice, log))
	} else {
		log.Warn("grpc.token is empty, back-office RPCs are not served")
	}
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		log.Info("gRPC server listening", zap.Int("port", cfg.GRPC.Port))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP server
	httpHandler := handler.NewHTTPHandler(visitors, catalog, account, backOffice,
		handler.NewMetrics(visitors.Len), log,
		handler.HTTPOptions{
			RequestTimeout: cfg.HTTP.RequestTimeout,
			MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
			SecureCookies:  cfg.App.Env != "dev",
		},
	)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	// visitors first so no checkout can enqueue after the dispatcher drains
	visitors.Close()
	dispatcher.Close()
	if err := pub.Close(); err != nil {
		log.Warn("close publisher", zap.Error(err))
	}
	log.Info("event workers stopped")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
	return nil
}

func addOnsFromConfig(in []config.AddOnConfig) ([]domain.AddOn, error) {
	out := make([]domain.AddOn, 0, len(in))
	for _, a := range in {
		price, err := decimal.NewFromString(a.Price)
		if err != nil {
			return nil, fmt.Errorf("add-on %s: %w", a.ID, err)
		}
		out = append(out, domain.AddOn{ID: a.ID, Name: a.Name, Price: price})
	}
	return out, nil
}
