package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/bidding"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/domain/winner"
	"vehicle-auction-service/internal/ports/inbound"
	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
)

const defaultWinnerCacheSize = 1024

// BidService implements the bid use cases
type BidService struct {
	bidRepo     outbound.BidRepository
	lotRepo     outbound.LotRepository
	auctionRepo outbound.AuctionRepository
	winnerRepo  outbound.WinnerRepository
	bidderRepo  outbound.BidderRepository
	locks       *LockRegistry
	scheduler   outbound.ExpiryScheduler
	metrics     outbound.Metrics
	events      *notifier
	policy      bidding.Policy
	winners     *lru.Cache
	now         func() time.Time
	logger      zerolog.Logger
}

type BidServiceParams struct {
	BidRepo         outbound.BidRepository
	LotRepo         outbound.LotRepository
	AuctionRepo     outbound.AuctionRepository
	WinnerRepo      outbound.WinnerRepository
	BidderRepo      outbound.BidderRepository
	Locks           *LockRegistry
	Scheduler       outbound.ExpiryScheduler
	Broadcaster     outbound.Broadcaster
	Metrics         outbound.Metrics
	Policy          bidding.Policy
	WinnerCacheSize int
	Clock           func() time.Time
	Logger          zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) (*BidService, error) {
	logger := params.Logger.With().Str("component", "bid_service").Logger()

	size := params.WinnerCacheSize
	if size <= 0 {
		size = defaultWinnerCacheSize
	}
	winners, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	s := &BidService{
		bidRepo:     params.BidRepo,
		lotRepo:     params.LotRepo,
		auctionRepo: params.AuctionRepo,
		winnerRepo:  params.WinnerRepo,
		bidderRepo:  params.BidderRepo,
		locks:       params.Locks,
		scheduler:   params.Scheduler,
		metrics:     params.Metrics,
		events:      &notifier{broadcaster: params.Broadcaster, logger: logger},
		policy:      params.Policy,
		winners:     winners,
		now:         params.Clock,
		logger:      logger,
	}
	if s.locks == nil {
		s.locks = NewLockRegistry()
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// SetScheduler sets the expiry scheduler
func (s *BidService) SetScheduler(scheduler outbound.ExpiryScheduler) {
	s.scheduler = scheduler
}

// RegisterBidder records a bidder. Registering an existing ID renames it.
func (s *BidService) RegisterBidder(ctx context.Context, req inbound.RegisterBidderRequest) (*shared.Bidder, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, shared.ErrBidderNameRequired
	}

	b := &shared.Bidder{ID: req.ID, Name: req.Name}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if err := s.bidderRepo.Create(ctx, b); err != nil {
		s.logger.Error().Err(err).Str("bidder_id", b.ID.String()).Msg("Failed to save bidder")
		return nil, err
	}

	s.logger.Info().Str("bidder_id", b.ID.String()).Msg("Bidder registered")
	return b, nil
}

// PlaceBid validates a bid under the lot lock, records it, and for live bids
// runs the proxy cascade before releasing the lock
func (s *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*inbound.BidResult, error) {
	s.logger.Info().
		Str("lot_id", req.LotID.String()).
		Str("bidder_id", req.BidderID.String()).
		Str("amount", req.Amount.String()).
		Str("bid_type", string(req.Kind)).
		Msg("Attempting to place bid")

	if _, err := s.bidderRepo.GetByID(ctx, req.BidderID); err != nil {
		s.logger.Error().Err(err).Str("bidder_id", req.BidderID.String()).Msg("Bidder not found")
		return nil, err
	}

	unlock := s.locks.LockLot(req.LotID)
	defer unlock()

	l, err := s.lotRepo.GetByID(ctx, req.LotID)
	if err != nil {
		s.logger.Error().Err(err).Str("lot_id", req.LotID.String()).Msg("Lot not found")
		return nil, err
	}
	a, err := s.auctionRepo.GetByID(ctx, l.AuctionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	state, err := s.validationState(ctx, a, l, req.BidderID, now)
	if err != nil {
		return nil, err
	}

	validator := bidding.Validator{Calculator: bidding.NewCalculator(a.MinBidIncrement), Policy: s.policy}
	verdict := validator.Validate(bidding.Proposal{
		BidderID:   req.BidderID,
		Kind:       req.Kind,
		Amount:     req.Amount,
		ProxyMax:   req.ProxyMax,
		ValidUntil: req.ValidUntil,
	}, state)

	if !verdict.Valid {
		for _, v := range verdict.Violations {
			s.metrics.BidRejected(string(v.Rule))
		}
		s.logger.Warn().
			Str("lot_id", l.ID.String()).
			Str("bidder_id", req.BidderID.String()).
			Interface("violations", verdict.Rules()).
			Msg("Bid rejected")
		return &inbound.BidResult{
			Violations:  verdict.Violations,
			NextMinimum: verdict.Minimum,
			Suggested:   verdict.Suggested,
		}, nil
	}

	placed := bid.New(l.ID, req.BidderID, req.Amount, req.Kind, now)
	if req.Kind == bid.TypeProxyBid {
		placed.ProxyMax = req.ProxyMax
		placed.ValidUntil = req.ValidUntil
	}

	if req.Kind == bid.TypePreBid {
		return s.recordPreBid(ctx, validator, a, l, placed, state, now)
	}
	return s.recordLiveBid(ctx, validator, a, l, placed, now)
}

func (s *BidService) validationState(ctx context.Context, a *auction.Auction, l *lot.Lot, bidderID uuid.UUID, now time.Time) (bidding.State, error) {
	state := bidding.State{
		Auction: a,
		Lot:     l,
		Expired: l.Expired(a.Timer(), now),
		Now:     now,
	}

	top, err := s.bidRepo.GetHighestBid(ctx, l.ID, true)
	switch {
	case err == nil:
		state.HighestPreBid = &top.Amount
	case !errors.Is(err, shared.ErrNoBidsFound):
		return state, err
	}

	if s.policy.RateLimit > 0 {
		recent, err := s.bidRepo.CountBidderSince(ctx, l.ID, bidderID, now.Add(-s.policy.RateWindow))
		if err != nil {
			return state, err
		}
		state.RecentBids = recent
	}
	return state, nil
}

func (s *BidService) recordPreBid(ctx context.Context, validator bidding.Validator, a *auction.Auction, l *lot.Lot, placed *bid.Bid, state bidding.State, now time.Time) (*inbound.BidResult, error) {
	l.RecordBid(placed.Amount, false, now)
	if err := s.bidRepo.Append(ctx, l, []*bid.Bid{placed}); err != nil {
		s.logger.Error().Err(err).Str("bid_id", placed.ID.String()).Msg("Failed to record pre-bid")
		return nil, err
	}
	s.metrics.BidAccepted(string(placed.Type))

	isHighest := state.HighestPreBid == nil || placed.Amount.GreaterThan(*state.HighestPreBid)
	s.publishBid(ctx, a.ID, l, placed, isHighest, now)

	reference := placed.Amount
	if !isHighest {
		reference = *state.HighestPreBid
	}
	minimum := validator.Calculator.MinimumBid(reference, l.MinPreBid)

	s.logger.Info().
		Str("bid_id", placed.ID.String()).
		Str("lot_id", l.ID.String()).
		Str("amount", placed.Amount.String()).
		Msg("Pre-bid placed")
	return &inbound.BidResult{
		Accepted:    true,
		Bid:         placed,
		IsHighest:   isHighest,
		NextMinimum: minimum,
		Suggested:   minimum.Ceil(),
	}, nil
}

func (s *BidService) recordLiveBid(ctx context.Context, validator bidding.Validator, a *auction.Auction, l *lot.Lot, placed *bid.Bid, now time.Time) (*inbound.BidResult, error) {
	l.RecordBid(placed.Amount, true, now)

	proxies, err := s.bidRepo.GetStandingProxies(ctx, l.ID, now)
	if err != nil {
		return nil, err
	}
	if placed.Type == bid.TypeProxyBid {
		proxies = append(proxies, placed)
	}

	started := time.Now()
	cascade, err := bidding.Cascade(bidding.CascadeInput{
		Price:        l.CurrentPrice,
		Leader:       placed,
		Proxies:      proxies,
		Calculator:   validator.Calculator,
		NextSequence: placed.SequenceNumber + 1,
		Now:          now,
	})
	s.metrics.CascadeDuration(time.Since(started))
	if err != nil {
		s.logger.Error().Err(err).
			Str("lot_id", l.ID.String()).
			Int("passes", cascade.Passes).
			Msg("Proxy cascade did not converge")
		return nil, err
	}

	for _, auto := range cascade.AutoBids {
		l.RecordBid(auto.Amount, true, now)
	}

	batch := append([]*bid.Bid{placed}, cascade.AutoBids...)
	if err := s.bidRepo.Append(ctx, l, batch); err != nil {
		s.logger.Error().Err(err).Str("bid_id", placed.ID.String()).Msg("Failed to record bid")
		return nil, err
	}

	s.metrics.BidAccepted(string(placed.Type))
	s.metrics.AutoBidsEmitted(len(cascade.AutoBids))

	s.publishBid(ctx, a.ID, l, placed, cascade.Leader.ID == placed.ID, now)
	for _, auto := range cascade.AutoBids {
		s.publishBid(ctx, a.ID, l, auto, cascade.Leader.ID == auto.ID, now)
	}
	s.events.publish(ctx, a.ID, outbound.EventTypeTimerReset, map[string]interface{}{
		"lot_id":            l.ID.String(),
		"remaining_seconds": a.TimerSeconds,
	}, now)

	if deadline := l.Deadline(a.Timer()); deadline != nil && s.scheduler != nil {
		if err := s.scheduler.ScheduleLotExpiry(ctx, a.ID, *deadline); err != nil {
			s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to reschedule lot expiry")
		}
	}

	minimum := validator.Calculator.MinimumBid(l.CurrentPrice, l.MinPreBid)
	s.logger.Info().
		Str("bid_id", placed.ID.String()).
		Str("lot_id", l.ID.String()).
		Str("amount", placed.Amount.String()).
		Int("auto_bids", len(cascade.AutoBids)).
		Str("current_price", l.CurrentPrice.String()).
		Msg("Bid placed successfully")
	return &inbound.BidResult{
		Accepted:    true,
		Bid:         placed,
		AutoBids:    cascade.AutoBids,
		IsHighest:   cascade.Leader.BidderID == placed.BidderID,
		NextMinimum: minimum,
		Suggested:   minimum.Ceil(),
	}, nil
}

func (s *BidService) publishBid(ctx context.Context, auctionID uuid.UUID, l *lot.Lot, b *bid.Bid, isHighest bool, now time.Time) {
	s.events.publish(ctx, auctionID, outbound.EventTypeBidAccepted, map[string]interface{}{
		"bid_id":        b.ID.String(),
		"lot_id":        l.ID.String(),
		"bidder_id":     b.BidderID.String(),
		"amount":        b.Amount.String(),
		"bid_type":      string(b.Type),
		"is_highest":    isHighest,
		"current_price": l.CurrentPrice.String(),
	}, now)
}

// RetractBid withdraws a placed bid. Only allowed before the lot opens.
func (s *BidService) RetractBid(ctx context.Context, bidID, bidderID uuid.UUID) (*bid.Bid, error) {
	target, err := s.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.LockLot(target.LotID)
	defer unlock()

	l, err := s.lotRepo.GetByID(ctx, target.LotID)
	if err != nil {
		return nil, err
	}
	if !l.IsPending() {
		return nil, shared.ErrBidNotRetractable
	}

	target, err = s.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if target.BidderID != bidderID {
		return nil, shared.ErrNotBidOwner
	}
	if !target.Retract() {
		return nil, shared.ErrBidAlreadyRetracted
	}
	if err := s.bidRepo.UpdateStatus(ctx, target); err != nil {
		s.logger.Error().Err(err).Str("bid_id", bidID.String()).Msg("Failed to retract bid")
		return nil, err
	}

	s.logger.Info().Str("bid_id", bidID.String()).Str("lot_id", l.ID.String()).Msg("Bid retracted")
	return target, nil
}

// GetBids retrieves the ledger for a lot
func (s *BidService) GetBids(ctx context.Context, lotID uuid.UUID) ([]*bid.Bid, error) {
	if _, err := s.lotRepo.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.bidRepo.GetByLotID(ctx, lotID)
}

// GetLotState returns the live view of a lot
func (s *BidService) GetLotState(ctx context.Context, lotID uuid.UUID) (*inbound.LotState, error) {
	l, err := s.lotRepo.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	a, err := s.auctionRepo.GetByID(ctx, l.AuctionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	state := &inbound.LotState{
		LotID:        l.ID,
		AuctionID:    l.AuctionID,
		LotNumber:    l.LotNumber,
		CurrentPrice: l.CurrentPrice,
		IsActive:     l.IsActive,
		BidCount:     l.BidCount,
		WinnerStatus: l.WinnerStatus,
		NextMinimum:  bidding.NewCalculator(a.MinBidIncrement).MinimumBid(l.CurrentPrice, l.MinPreBid),
	}
	if l.IsActive {
		state.RemainingSeconds = int(l.Remaining(a.Timer(), now).Seconds())
		state.Expired = l.Expired(a.Timer(), now)
	}

	leader, err := s.bidRepo.GetHighestBid(ctx, l.ID, false)
	switch {
	case err == nil:
		bidderID := leader.BidderID
		state.HighestBidderID = &bidderID
		state.ReserveMet = l.ReserveMet(leader.Amount)
	case !errors.Is(err, shared.ErrNoBidsFound):
		return nil, err
	}

	preBid, err := s.bidRepo.GetHighestBid(ctx, l.ID, true)
	switch {
	case err == nil:
		amount := preBid.Amount
		state.HighestPreBid = &amount
	case !errors.Is(err, shared.ErrNoBidsFound):
		return nil, err
	}

	return state, nil
}

// GetWinner returns the lot's winner, or nil when the lot has none
func (s *BidService) GetWinner(ctx context.Context, lotID uuid.UUID) (*winner.Winner, error) {
	if cached, ok := s.winners.Get(lotID); ok {
		return cached.(*winner.Winner), nil
	}

	if _, err := s.lotRepo.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	w, err := s.winnerRepo.GetByLotID(ctx, lotID)
	if errors.Is(err, shared.ErrWinnerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.winners.Add(lotID, w)
	return w, nil
}

// ConfirmWinner moves a won lot to confirmed
func (s *BidService) ConfirmWinner(ctx context.Context, lotID uuid.UUID) (*lot.Lot, error) {
	return s.transitionWinner(ctx, lotID, lot.WinnerStatusWon, lot.WinnerStatusConfirmed)
}

// CompleteWinner moves a confirmed lot to completed
func (s *BidService) CompleteWinner(ctx context.Context, lotID uuid.UUID) (*lot.Lot, error) {
	return s.transitionWinner(ctx, lotID, lot.WinnerStatusConfirmed, lot.WinnerStatusCompleted)
}

func (s *BidService) transitionWinner(ctx context.Context, lotID uuid.UUID, from, to lot.WinnerStatus) (*lot.Lot, error) {
	unlock := s.locks.LockLot(lotID)
	defer unlock()

	l, err := s.lotRepo.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if l.WinnerStatus != from {
		return nil, shared.ErrLotNotWon
	}

	l.WinnerStatus = to
	l.UpdatedAt = s.now()
	if err := s.lotRepo.Update(ctx, l); err != nil {
		s.logger.Error().Err(err).Str("lot_id", lotID.String()).Msg("Failed to update lot")
		return nil, err
	}

	s.logger.Info().
		Str("lot_id", lotID.String()).
		Str("winner_status", string(to)).
		Msg("Winner status updated")
	return l, nil
}
