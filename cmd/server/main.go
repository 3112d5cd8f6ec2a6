package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/trustmesh/escrow-engine/internal/adapter/accesscontrol"
	"github.com/trustmesh/escrow-engine/internal/adapter/gateway"
	"github.com/trustmesh/escrow-engine/internal/adapter/handler"
	"github.com/trustmesh/escrow-engine/internal/adapter/storage"
	"github.com/trustmesh/escrow-engine/internal/config"
	"github.com/trustmesh/escrow-engine/internal/core/fee"
	"github.com/trustmesh/escrow-engine/internal/core/service"
	"github.com/trustmesh/escrow-engine/internal/metrics"
	"github.com/trustmesh/escrow-engine/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("ESCROW_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	memory := storage.NewMemory()

	// Order existence map: Redis when configured, otherwise in-process.
	var store port.OrderStateStore = memory
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		store = storage.NewRedisStore(rdb)
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	// Fee vault and event journal: MySQL when configured.
	var vault port.FeeVault = memory
	var journal port.EventJournal = memory
	var db *sql.DB
	if cfg.MySQLDSN != "" {
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logger.Fatal("failed to open mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlStore := storage.NewMySQLStore(db)
		vault = mysqlStore
		journal = mysqlStore
		logger.Info("connected to mysql")
	}

	access := accesscontrol.NewStatic(parseAddresses(cfg.Admins), parseAddresses(cfg.FeeExempt))
	ledger := gateway.NewMemoryLedger()

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	escrow := service.NewEscrowService(service.Deps{
		Store:   store,
		Vault:   vault,
		Journal: journal,
		Assets:  ledger,
		Access:  access,
		Policy:  fee.NewPolicy(cfg.FeeRate),
		Logger:  logger,
	})

	router := handler.NewRouter(escrow, logger, registry)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// gRPC health endpoint for orchestrator probes.
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCHealthPort))
	if err != nil {
		logger.Fatal("failed to listen for grpc health", zap.Error(err))
	}
	go func() {
		logger.Info("gRPC health server listening", zap.Int("port", cfg.GRPCHealthPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Info("stopped")
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Env == "dev" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env)), nil
}

func parseAddresses(raw []string) []common.Address {
	out := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if common.IsHexAddress(s) {
			out = append(out, common.HexToAddress(s))
		} else {
			log.Printf("ignoring malformed address in config: %q", s)
		}
	}
	return out
}
