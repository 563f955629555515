// server runs the NAMQR token service: the gRPC API (TokenService, DeviceService, HealthService)
// and the operational HTTP listener (/metrics, /healthz, /readyz).
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/config"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/db"
	devicerepo "github.com/thependalorian/ketchup-smartpay-sub006/internal/device/repository"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/trust"
	healthhandler "github.com/thependalorian/ketchup-smartpay-sub006/internal/health/handler"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/logging"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/metrics"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/redemption"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/server"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/server/interceptors"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/settlement"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry"
	telemetryotel "github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry/otel"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry/producer"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/codec"
	tokenrepo "github.com/thependalorian/ketchup-smartpay-sub006/internal/token/repository"
)

const serviceName = "namqr-token-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics.Register()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", zap.Error(err))
		}
	}()

	var (
		database *sql.DB
		tokens   tokenrepo.Repository
		devices  devicerepo.Repository
	)
	if cfg.DatabaseURL != "" {
		database, err = db.OpenContext(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer database.Close()
		tokens = tokenrepo.NewPostgresRepository(database)
		devices = devicerepo.NewPostgresRepository(database)
	} else {
		if cfg.Env == "production" {
			return errors.New("database: DATABASE_URL is required when APP_ENV=production")
		}
		logger.Warn("DATABASE_URL is not set; using in-memory token store and device registry")
		tokens = tokenrepo.NewMemoryRepository()
		devices = devicerepo.NewMemoryRepository()
	}

	keys, err := codec.NewKeyring(cfg.SigningKeyID, cfg.SigningSecret, cfg.PreviousSigningSecretsList()...)
	if err != nil {
		return fmt.Errorf("signing keys: %w", err)
	}

	gate, policy, err := gateFor(ctx, cfg, devices, logger)
	if err != nil {
		return err
	}
	var cache *trust.CachedGate
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		cache = trust.NewCachedGate(gate, trust.NewRedisCache(rdb), cfg.DeviceCacheTTL(), logger)
		gate = cache
		logger.Info("device trust cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	settler, err := settlerFor(cfg, logger)
	if err != nil {
		return err
	}

	emitters := telemetry.Multi{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kp, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer kp.Close()
		emitters = append(emitters, kp)
		logger.Info("redemption events streaming to kafka", zap.String("topic", cfg.TelemetryKafkaTopic))
	}

	co := redemption.New(codec.New(keys), tokens, gate, settler,
		redemption.Config{DefaultTTL: cfg.DefaultTokenTTL(), MaxTTL: cfg.MaxTokenTTL()},
		redemption.WithLogger(logger),
		redemption.WithEmitter(emitters),
	)

	authInterceptor, err := authFor(cfg, logger)
	if err != nil {
		return err
	}
	grpcServer := server.NewGRPCServer(
		interceptors.RequestLogUnary(logger, server.PublicMethods),
		authInterceptor,
	)
	health := healthhandler.NewServer(pingerFor(database), policyCheckerFor(policy))
	deps := server.Deps{Tokens: co, Devices: devices, Health: health, Logger: logger}
	if cache != nil {
		deps.DeviceCache = cache
	}
	server.RegisterServices(grpcServer, deps)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr), zap.String("signing_key_id", keys.KeyID()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			logger.Info("HTTP listener", zap.String("addr", cfg.MetricsAddr))
			return server.NewHTTPServer(server.NewHTTPRouter(health, logger)).Run(gctx, cfg.MetricsAddr)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gRPC server", zap.Duration("drain", cfg.ShutdownDrainDuration()))
		drainStop(grpcServer, cfg.ShutdownDrainDuration())
		return nil
	})
	err = g.Wait()
	// Deferred closes of the producer and exporters run after this.
	time.Sleep(telemetry.EmitDrain)
	return err
}

// drainStop lets in-flight RPCs finish for up to drain, then closes remaining connections.
func drainStop(s *grpc.Server, drain time.Duration) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drain):
		s.Stop()
	}
}

func gateFor(ctx context.Context, cfg *config.Config, devices devicerepo.Repository, logger *zap.Logger) (trust.Gate, *trust.PolicyGate, error) {
	switch cfg.DeviceTrustMode {
	case "policy":
		pg, err := trust.NewPolicyGate(ctx, devices, cfg.DeviceMaxStaleDays, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("device policy: %w", err)
		}
		return pg, pg, nil
	case "allow":
		logger.Warn("DEVICE_TRUST_MODE=allow: every device is trusted")
		return trust.AllowAll{}, nil, nil
	}
	return trust.NewRepositoryGate(devices), nil, nil
}

func settlerFor(cfg *config.Config, logger *zap.Logger) (settlement.Settler, error) {
	if cfg.SettlementURL != "" {
		return settlement.NewHTTPSettler(cfg.SettlementURL, cfg.SettlementCallTimeout(), nil), nil
	}
	if cfg.Env == "production" {
		return nil, errors.New("settlement: SETTLEMENT_URL is required when APP_ENV=production")
	}
	logger.Warn("SETTLEMENT_URL is not set; redemptions settle against a local stub")
	return settlement.Func(func(_ context.Context, in settlement.Instruction) (string, error) {
		return "DEV-" + in.TokenID, nil
	}), nil
}

func authFor(cfg *config.Config, logger *zap.Logger) (grpc.UnaryServerInterceptor, error) {
	if cfg.JWTPublicKey == "" {
		logger.Warn("JWT_PUBLIC_KEY is not set; all callers act as operator")
		return interceptors.AnonymousUnary(security.Caller{Subject: "anonymous", Role: security.RoleOperator}), nil
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("jwt public key: %w", err)
	}
	return interceptors.AuthUnary(security.NewTokenProvider(nil, pub, cfg.JWTIssuer, cfg.JWTAudience), server.PublicMethods), nil
}

func pingerFor(database *sql.DB) healthhandler.Pinger {
	if database == nil {
		return nil
	}
	return database
}

func policyCheckerFor(pg *trust.PolicyGate) healthhandler.PolicyChecker {
	if pg == nil {
		return nil
	}
	return pg
}
