package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/infra/alert"
	"stockledger/internal/infra/catalog"
	"stockledger/internal/infra/db"
	"stockledger/internal/infra/memory"
	"stockledger/internal/infra/observability"
	infraRepo "stockledger/internal/infra/repository"
	repo "stockledger/internal/repository"
	"stockledger/internal/server"
	"stockledger/internal/usecase"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now().UTC()
}

// 保存先ごとの部品
type stores struct {
	tx           repo.TransactionManager
	inventory    repo.InventoryRepository
	reservations repo.ReservationRepository
	movements    repo.MovementRepository
	audits       repo.AuditLogRepository
	catalog      usecase.CatalogChecker
}

func main() {
	//.envは無くてもよい
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}

	sink, closeSink, err := newAlertSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	notifier := usecase.NewLowStockNotifier(sink, clock, logger, cfg.AlertTimeout)
	defer notifier.Wait()

	coordinator := usecase.NewStockCoordinator(st.tx, st.reservations, notifier, clock, idGen, logger,
		usecase.CoordinatorConfig{
			MaxAttempts:  cfg.MutationMaxAttempts,
			RetryBackoff: cfg.MutationRetryBackoff,
		})
	reservationUC := usecase.NewReservationUsecase(coordinator, st.reservations, usecase.ReservationConfig{
		DefaultTTL: cfg.ReservationDefaultTTL,
		MaxTTL:     cfg.ReservationMaxTTL,
	})
	inventoryUC := usecase.NewInventoryUsecase(coordinator, st.inventory, st.reservations, st.movements, st.audits, st.catalog,
		usecase.InventoryConfig{StrictCatalog: cfg.CatalogStrict}, logger)
	sweeper := usecase.NewExpirationSweeper(st.reservations, coordinator, clock, logger, usecase.SweeperConfig{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
	})

	e := server.New(cfg, logger, server.Handlers{
		Home:        handler.NewHomeHandler(cfg),
		Inventory:   handler.NewInventoryHandler(inventoryUC),
		Reservation: handler.NewReservationHandler(reservationUC),
	})

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	logger.Info("starting",
		zap.String("addr", addr),
		zap.String("store", cfg.StoreDriver),
		zap.String("alert_sink", cfg.AlertSink),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx, e, addr)
	})
	return g.Wait()
}

func openStores(cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		s := memory.NewStore()
		return stores{
			tx:           s,
			inventory:    s.Inventory(),
			reservations: s.Reservations(),
			movements:    s.Movements(),
			audits:       s.AuditLogs(),
		}, nil
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		return stores{}, err
	}
	if err := db.Migrate(gormDB); err != nil {
		return stores{}, err
	}

	var checker usecase.CatalogChecker = catalog.NewProductCatalog(infraRepo.NewProductGormRepository(gormDB))
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		checker = catalog.NewCachedCatalog(checker, catalog.NewRedisCache(client), cfg.CatalogCacheTTL)
	}

	return stores{
		tx:           infraRepo.NewTxManagerGorm(gormDB),
		inventory:    infraRepo.NewInventoryGormRepository(gormDB),
		reservations: infraRepo.NewReservationGormRepository(gormDB),
		movements:    infraRepo.NewMovementGormRepository(gormDB),
		audits:       infraRepo.NewAuditLogGormRepository(gormDB),
		catalog:      checker,
	}, nil
}

func newAlertSink(cfg config.Config, logger *zap.Logger) (usecase.AlertSink, func(), error) {
	switch cfg.AlertSink {
	case config.AlertSinkRabbitMQ:
		conn, ch, err := alert.SetupConn(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
		if err != nil {
			return nil, nil, err
		}
		return alert.NewRabbitMQSink(ch, cfg.RabbitMQExchange), func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	case config.AlertSinkKafka:
		w := alert.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaAlertTopic)
		return alert.NewKafkaSink(w), func() {
			if err := w.Close(); err != nil {
				logger.Warn("kafka writer close", zap.Error(err))
			}
		}, nil
	default:
		return alert.NewLogSink(logger), func() {}, nil
	}
}
