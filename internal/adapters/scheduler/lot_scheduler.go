package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"vehicle-auction-service/internal/domain/shared"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ExpirationsKey is the sorted set of auction IDs scored by their current lot's deadline in ms
const ExpirationsKey = "lot:expirations"

// LotAdvancer is the engine side of expiry handling
type LotAdvancer interface {
	AdvanceIfExpired(ctx context.Context, auctionID uuid.UUID) (*shared.AdvanceResult, error)
}

// LotScheduler polls the expiration set and hands due auctions to a worker pool
type LotScheduler struct {
	redis      *redis.Client
	advancer   LotAdvancer
	pool       *pond.WorkerPool
	interval   time.Duration
	retryDelay time.Duration
	batchSize  int64
	now        func() time.Time
	logger     zerolog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

type LotSchedulerParams struct {
	RedisClient *redis.Client
	Advancer    LotAdvancer
	Interval    time.Duration
	RetryDelay  time.Duration
	BatchSize   int64
	MaxWorkers  int
	MaxCapacity int
	Clock       func() time.Time
	Logger      zerolog.Logger
}

func NewLotScheduler(params LotSchedulerParams) *LotScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	interval := params.Interval
	if interval <= 0 {
		interval = time.Second
	}
	retryDelay := params.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	workers := params.MaxWorkers
	if workers <= 0 {
		workers = 4
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}

	return &LotScheduler{
		redis:      params.RedisClient,
		advancer:   params.Advancer,
		pool:       pond.New(workers, params.MaxCapacity, pond.Context(ctx), pond.Strategy(pond.Balanced())),
		interval:   interval,
		retryDelay: retryDelay,
		batchSize:  batchSize,
		now:        now,
		logger:     params.Logger.With().Str("component", "lot_scheduler").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ScheduleLotExpiry records the deadline of an auction's current lot, replacing any earlier one
func (s *LotScheduler) ScheduleLotExpiry(ctx context.Context, auctionID uuid.UUID, deadline time.Time) error {
	err := s.redis.ZAdd(ctx, ExpirationsKey, redis.Z{
		Score:  float64(deadline.UnixMilli()),
		Member: auctionID.String(),
	}).Err()
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to schedule lot expiry")
		return fmt.Errorf("failed to schedule lot expiry: %w", err)
	}

	s.logger.Debug().
		Str("auction_id", auctionID.String()).
		Time("deadline", deadline).
		Msg("Lot expiry scheduled")
	return nil
}

// Unschedule forgets an auction
func (s *LotScheduler) Unschedule(ctx context.Context, auctionID uuid.UUID) error {
	if err := s.redis.ZRem(ctx, ExpirationsKey, auctionID.String()).Err(); err != nil {
		return fmt.Errorf("failed to unschedule auction: %w", err)
	}
	return nil
}

// Start begins the scheduler loop
func (s *LotScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting lot scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler and waits for in-flight advances
func (s *LotScheduler) Stop() {
	s.logger.Info().Msg("Stopping lot scheduler")
	s.cancel()
	s.wg.Wait()
	s.pool.StopAndWait()
}

func (s *LotScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dispatchDue(s.ctx)
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// dispatchDue claims due auctions and submits each to the pool. Claiming is
// the ZREM: only the instance whose ZREM removed the member processes it.
func (s *LotScheduler) dispatchDue(ctx context.Context) int {
	due, err := s.redis.ZRangeByScore(ctx, ExpirationsKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(s.now().UnixMilli(), 10),
		Count: s.batchSize,
	}).Result()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get due lots")
		return 0
	}

	dispatched := 0
	for _, member := range due {
		auctionID, err := uuid.Parse(member)
		if err != nil {
			s.logger.Error().Err(err).Str("auction_id", member).Msg("Invalid auction ID")
			s.redis.ZRem(ctx, ExpirationsKey, member)
			continue
		}

		removed, err := s.redis.ZRem(ctx, ExpirationsKey, member).Result()
		if err != nil {
			s.logger.Error().Err(err).Str("auction_id", member).Msg("Failed to claim due lot")
			continue
		}
		if removed == 0 {
			continue
		}

		s.pool.Submit(func() {
			s.advance(auctionID)
		})
		dispatched++
	}
	return dispatched
}

func (s *LotScheduler) advance(auctionID uuid.UUID) {
	result, err := s.advancer.AdvanceIfExpired(s.ctx, auctionID)
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to advance expired lot")
		s.requeue(auctionID)
		return
	}
	if result == nil {
		return
	}

	logger := s.logger.Info().Str("auction_id", auctionID.String())
	if result.Ended != nil {
		logger = logger.Str("ended_lot_id", result.Ended.LotID.String()).Str("outcome", result.Ended.Outcome)
	}
	if result.NextLotID != nil {
		logger = logger.Str("next_lot_id", result.NextLotID.String())
	}
	logger.Bool("auction_ended", result.AuctionEnded).Msg("Expired lot advanced")
}

// requeue puts a claimed auction back after a failed advance. NX keeps a
// deadline that a bid scheduled in the meantime.
func (s *LotScheduler) requeue(auctionID uuid.UUID) {
	retryAt := s.now().Add(s.retryDelay)
	err := s.redis.ZAddNX(s.ctx, ExpirationsKey, redis.Z{
		Score:  float64(retryAt.UnixMilli()),
		Member: auctionID.String(),
	}).Err()
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to requeue expired lot")
		return
	}
	s.logger.Warn().
		Str("auction_id", auctionID.String()).
		Time("retry_at", retryAt).
		Msg("Expired lot requeued")
}
