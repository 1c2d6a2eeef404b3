package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightseats/config"
	"github.com/Domenick1991/flightseats/internal/cache"
	"github.com/Domenick1991/flightseats/internal/kafka"
	"github.com/Domenick1991/flightseats/internal/lock"
	"github.com/Domenick1991/flightseats/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Infra holds the shared backends both binaries build on. Optional backends
// are nil when not configured.
type Infra struct {
	Store    repository.Store
	Cache    *cache.RedisCache
	Locker   lock.Locker
	Producer *kafka.Producer

	closers []func()
}

func NewInfra(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Infra, error) {
	infra := &Infra{}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit and not shared between processes")
		infra.Store = repository.NewMemoryStore()
	default:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		infra.closers = append(infra.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := repository.Migrate(ctx, pool); err != nil {
				infra.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("database schema applied")
		}
		infra.Store = repository.NewPGStore(pool, time.Duration(cfg.Database.LockTimeoutMs)*time.Millisecond)
	}

	local := lock.NewKeyedMutex(time.Duration(cfg.Booking.FlightLockWait) * time.Millisecond)
	infra.Locker = local

	if cfg.Redis.Enabled {
		infra.Cache = cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
		infra.closers = append(infra.closers, func() {
			if err := infra.Cache.Close(); err != nil {
				log.Warn("close redis client", zap.Error(err))
			}
		})
		if err := infra.Cache.Ping(ctx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		infra.Locker = lock.Chain(local, lock.NewRedisLocker(
			infra.Cache,
			time.Duration(cfg.Booking.FlightLockTTL)*time.Second,
			time.Duration(cfg.Booking.FlightLockWait)*time.Millisecond,
			log,
		))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		infra.Producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		infra.closers = append(infra.closers, func() {
			if err := infra.Producer.Close(); err != nil {
				log.Warn("close kafka producer", zap.Error(err))
			}
		})
		if err := infra.Producer.CheckConnection(ctx); err != nil {
			log.Warn("kafka unavailable, notifications will fail until it recovers", zap.Error(err))
		}
	}

	return infra, nil
}

// Notifier returns nil when kafka is not configured.
func (i *Infra) Notifier(cfg *config.Config, log *zap.Logger) *kafka.Notifier {
	if i.Producer == nil {
		return nil
	}
	return kafka.NewNotifier(i.Producer, log,
		kafka.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		kafka.WithEventsTopic(cfg.Kafka.BookingEventsTopic),
	)
}

func (i *Infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
	i.closers = nil
}
