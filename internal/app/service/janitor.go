package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/weerhq/weer/internal/app/repository"
	infraprom "github.com/weerhq/weer/internal/infra/prometheus"
	"go.uber.org/zap"
)

const janitorLockKey = "weer:janitor:leader"

// Janitor periodically deletes expired digit leases and sessions so pool
// capacity is returned for reuse. Ultra slots are swept lazily inside claims
// instead, where staleness actually matters. Deletes of already-expired rows
// commute with any concurrent claim, so ticks are safe alongside live
// traffic; a redis lock keeps one janitor active across replicas.
type Janitor struct {
	logger     *zap.Logger
	store      repository.Store
	redis      *redis.Client
	interval   time.Duration
	instanceID string
	now        func() time.Time
	stopChan   chan struct{}
}

// NewJanitor creates a janitor sweeping at the given interval.
func NewJanitor(logger *zap.Logger, store repository.Store, redisClient *redis.Client, interval time.Duration) *Janitor {
	return &Janitor{
		logger:     logger,
		store:      store,
		redis:      redisClient,
		interval:   interval,
		instanceID: uuid.New().String(),
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the periodic sweep, including one immediate pass.
func (j *Janitor) Start() {
	go j.run()
}

// Stop stops the periodic sweep.
func (j *Janitor) Stop() {
	close(j.stopChan)
}

func (j *Janitor) run() {
	j.Tick(context.Background())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Tick(context.Background())
		case <-j.stopChan:
			j.logger.Info("janitor stopped")
			return
		}
	}
}

// Tick runs a single sweep pass if this instance holds the leader lock.
func (j *Janitor) Tick(ctx context.Context) {
	if !j.acquireLeadership(ctx) {
		j.logger.Debug("janitor tick skipped, another instance leads")
		return
	}

	now := j.now()

	reclaimed, err := j.store.DigitLeases().DeleteExpired(ctx, now)
	if err != nil {
		j.logger.Error("failed to delete expired digit leases", zap.Error(err))
	} else if reclaimed > 0 {
		infraprom.JanitorReclaimed.WithLabelValues("digit_lease").Add(float64(reclaimed))
		j.logger.Info("cleaned up expired digit codes", zap.Int64("count", reclaimed))
	}

	sessions, err := j.store.Sessions().DeleteExpired(ctx, now)
	if err != nil {
		j.logger.Error("failed to delete expired sessions", zap.Error(err))
	} else if sessions > 0 {
		infraprom.JanitorReclaimed.WithLabelValues("session").Add(float64(sessions))
		j.logger.Info("cleaned up expired sessions", zap.Int64("count", sessions))
	}
}

// acquireLeadership takes or refreshes the cluster-wide leader lock. With no
// redis client configured the janitor assumes single-instance deployment and
// always proceeds.
func (j *Janitor) acquireLeadership(ctx context.Context) bool {
	if j.redis == nil {
		return true
	}

	// Lock lives slightly longer than the interval so leadership is sticky
	// while the leader is healthy, and moves on after a crash.
	ok, err := j.redis.SetNX(ctx, janitorLockKey, j.instanceID, j.interval+j.interval/2).Result()
	if err != nil {
		j.logger.Error("janitor leader lock error", zap.Error(err))
		return false
	}
	if ok {
		return true
	}

	holder, err := j.redis.Get(ctx, janitorLockKey).Result()
	if err != nil {
		return false
	}
	if holder == j.instanceID {
		// Still the leader; extend the lease.
		j.redis.Expire(ctx, janitorLockKey, j.interval+j.interval/2)
		return true
	}
	return false
}
