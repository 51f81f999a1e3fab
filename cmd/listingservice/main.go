package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/boxspot/internal/identity"
	"github.com/example/boxspot/internal/listing/booking"
	"github.com/example/boxspot/internal/listing/domain"
	"github.com/example/boxspot/internal/listing/handler"
	"github.com/example/boxspot/internal/listing/repository"
	"github.com/example/boxspot/internal/listing/search"
	listingservice "github.com/example/boxspot/internal/listing/service"
	"github.com/example/boxspot/internal/occupancy"
	outboxworker "github.com/example/boxspot/internal/outbox"
	"github.com/example/boxspot/pkg/observability"
	outboxpkg "github.com/example/boxspot/pkg/outbox"
)

type appConfig struct {
	HTTPAddr     string
	GRPCAddr     string
	PostgresDSN  string
	RedisAddr    string
	NATSURL      string
	BookAttempts int
	BookBackoff  time.Duration
	HoldTTL      time.Duration
	IdemTTL      time.Duration
	OutboxPoll   time.Duration
	OutboxBatch  int
	OutboxRetry  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("listing-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "listing-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		defer db.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("listingservice")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	listings := repository.NewMemoryListingRepository()
	rentals := repository.NewMemoryRentalRepository()
	hosts := identity.NewMemoryDirectory()
	publisher := outboxpkg.NewPublisher(natsConn, "listing.events")

	var geoIndex search.GeoIndex
	var idem domain.IdempotencyRepository
	holds := buildHoldStore(redisClient)
	if redisClient != nil {
		geoIndex = search.NewRedisGeoIndex(redisClient, "")
		idem = repository.NewRedisIdempotencyRepo(redisClient, "", cfg.IdemTTL)
	} else {
		idem = repository.NewMemoryIdempotencyRepo()
	}

	engine := search.NewEngine(listings, hosts, geoIndex, domain.SystemClock{}, logger.Named("search"))
	allocator, err := booking.NewAllocator(listings, rentals, holds, domain.SystemClock{}, logger.Named("booking"), booking.Config{
		MaxAttempts: cfg.BookAttempts,
		Backoff:     cfg.BookBackoff,
		HoldTTL:     cfg.HoldTTL,
	})
	if err != nil {
		logger.Fatal("allocator setup", zap.Error(err))
	}

	svc := listingservice.New(listings, rentals, engine, allocator, hosts, geoIndex, publisher, domain.SystemClock{}, idem, logger.Named("service"))
	listingHTTP := handler.NewHTTP(svc)

	observer := occupancy.NewStreamObserver()
	recon := occupancy.NewReconciler(listings, rentals, observer)

	r := chi.NewRouter()
	r.Mount("/", listingHTTP.Router())
	r.Mount("/v1/occupancy", occupancy.NewHTTP(recon).Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if db != nil && natsConn != nil {
		worker := outboxworker.NewWorker(db, natsConn, logger.Named("outbox"), outboxworker.WorkerConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("outbox worker disabled", zap.Bool("db", db != nil), zap.Bool("nats", natsConn != nil))
	}

	go runGRPC(cfg.GRPCAddr, logger, observer)

	go func() {
		logger.Info("listing service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildHoldStore(redisClient *redis.Client) booking.HoldStore {
	if redisClient == nil {
		return booking.NewMemoryHoldStore()
	}
	return booking.NewRedisHoldStore(redisClient, "")
}

func runGRPC(addr string, logger *zap.Logger, observer *occupancy.StreamObserver) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}

	srv := grpc.NewServer()
	occupancy.RegisterOccupancyServer(srv, occupancy.NewServer(observer))
	logger.Info("occupancy grpc listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil {
		logger.Fatal("grpc serve", zap.Error(err))
	}
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:     getenv("GRPC_ADDR", ":9090"),
		PostgresDSN:  firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		NATSURL:      os.Getenv("NATS_URL"),
		BookAttempts: parseIntEnv("BOOK_MAX_ATTEMPTS", 3),
		BookBackoff:  time.Duration(parseIntEnv("BOOK_BACKOFF_MS", 50)) * time.Millisecond,
		HoldTTL:      time.Duration(parseIntEnv("HOLD_TTL_SEC", 5)) * time.Second,
		IdemTTL:      time.Duration(parseIntEnv("IDEM_TTL_SEC", 86400)) * time.Second,
		OutboxPoll:   time.Duration(parseIntEnv("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		OutboxBatch:  parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry:  parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
