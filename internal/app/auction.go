package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/bidding"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/domain/winner"
	"vehicle-auction-service/internal/ports/inbound"
	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuctionService implements the auction lifecycle use cases
type AuctionService struct {
	auctionRepo  outbound.AuctionRepository
	lotRepo      outbound.LotRepository
	bidRepo      outbound.BidRepository
	winnerRepo   outbound.WinnerRepository
	vehicleRepo  outbound.VehicleRepository
	locks        *LockRegistry
	scheduler    outbound.ExpiryScheduler
	metrics      outbound.Metrics
	events       *notifier
	defaultTimer int
	now          func() time.Time
	logger       zerolog.Logger
}

type AuctionServiceParams struct {
	AuctionRepo         outbound.AuctionRepository
	LotRepo             outbound.LotRepository
	BidRepo             outbound.BidRepository
	WinnerRepo          outbound.WinnerRepository
	VehicleRepo         outbound.VehicleRepository
	Locks               *LockRegistry
	Scheduler           outbound.ExpiryScheduler
	Broadcaster         outbound.Broadcaster
	Metrics             outbound.Metrics
	DefaultTimerSeconds int
	Clock               func() time.Time
	Logger              zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	logger := params.Logger.With().Str("component", "auction_service").Logger()

	service := &AuctionService{
		auctionRepo:  params.AuctionRepo,
		lotRepo:      params.LotRepo,
		bidRepo:      params.BidRepo,
		winnerRepo:   params.WinnerRepo,
		vehicleRepo:  params.VehicleRepo,
		locks:        params.Locks,
		scheduler:    params.Scheduler,
		metrics:      params.Metrics,
		events:       &notifier{broadcaster: params.Broadcaster, logger: logger},
		defaultTimer: params.DefaultTimerSeconds,
		now:          params.Clock,
		logger:       logger,
	}
	if service.locks == nil {
		service.locks = NewLockRegistry()
	}
	if service.metrics == nil {
		service.metrics = noopMetrics{}
	}
	if service.now == nil {
		service.now = time.Now
	}
	return service
}

// SetScheduler sets the expiry scheduler once it has been built around this service
func (service *AuctionService) SetScheduler(scheduler outbound.ExpiryScheduler) {
	service.scheduler = scheduler
}

// CreateAuction creates a new draft auction
func (service *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	service.logger.Info().
		Str("title", req.Title).
		Int("timer_seconds", req.TimerSeconds).
		Str("min_bid_increment", req.MinBidIncrement.String()).
		Msg("Attempting to create auction")

	timer := req.TimerSeconds
	if timer == 0 {
		timer = service.defaultTimer
	}
	if timer <= 0 {
		service.logger.Warn().Int("timer_seconds", timer).Msg("Timer must be positive")
		return nil, shared.ErrInvalidTimer
	}
	if req.MinBidIncrement.IsNegative() {
		service.logger.Warn().Str("min_bid_increment", req.MinBidIncrement.String()).Msg("Negative bid increment")
		return nil, shared.ErrNegativeAmount
	}

	now := service.now()
	created := &auction.Auction{
		ID:              uuid.New(),
		Title:           req.Title,
		Status:          auction.StatusDraft,
		TimerSeconds:    timer,
		MinBidIncrement: req.MinBidIncrement,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := service.auctionRepo.Create(ctx, created); err != nil {
		service.logger.Error().Err(err).Str("auction_id", created.ID.String()).Msg("Failed to save auction")
		return nil, err
	}

	service.logger.Info().Str("auction_id", created.ID.String()).Msg("Auction created successfully")
	return created, nil
}

// ScheduleAuction sets the session window of a draft or scheduled auction
func (service *AuctionService) ScheduleAuction(ctx context.Context, req inbound.ScheduleAuctionRequest) (*auction.Auction, error) {
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		service.logger.Error().Err(err).Str("start_time", req.StartTime).Msg("Invalid start time format")
		return nil, shared.ErrInvalidTimeFormat
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		service.logger.Error().Err(err).Str("end_time", req.EndTime).Msg("Invalid end time format")
		return nil, shared.ErrInvalidTimeFormat
	}

	unlock := service.locks.LockAuction(req.AuctionID)
	defer unlock()

	a, err := service.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}

	if err := a.Schedule(startTime, endTime, service.now()); err != nil {
		service.logger.Warn().Err(err).
			Str("auction_id", a.ID.String()).
			Time("start_time", startTime).
			Time("end_time", endTime).
			Msg("Auction cannot be scheduled")
		return nil, err
	}

	if err := service.auctionRepo.Update(ctx, a); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to update auction")
		return nil, err
	}

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Time("start_time", startTime).
		Time("end_time", endTime).
		Msg("Auction scheduled")
	return a, nil
}

// RegisterVehicle adds a vehicle to the catalog
func (service *AuctionService) RegisterVehicle(ctx context.Context, req inbound.RegisterVehicleRequest) (*shared.Vehicle, error) {
	if strings.TrimSpace(req.VIN) == "" {
		return nil, shared.ErrVINRequired
	}

	now := service.now()
	v := &shared.Vehicle{
		ID:        uuid.New(),
		VIN:       req.VIN,
		Make:      req.Make,
		Model:     req.Model,
		Year:      req.Year,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := service.vehicleRepo.Create(ctx, v); err != nil {
		service.logger.Error().Err(err).Str("vin", req.VIN).Msg("Failed to save vehicle")
		return nil, err
	}

	service.logger.Info().Str("vehicle_id", v.ID.String()).Str("vin", v.VIN).Msg("Vehicle registered")
	return v, nil
}

// AddLot registers a vehicle lot while the auction has not started
func (service *AuctionService) AddLot(ctx context.Context, req inbound.AddLotRequest) (*lot.Lot, error) {
	if req.LotNumber == "" {
		return nil, shared.ErrInvalidRequest
	}
	if req.MinPreBid.IsNegative() || (req.ReservePrice != nil && req.ReservePrice.IsNegative()) {
		return nil, shared.ErrNegativeAmount
	}
	if req.ReservePrice != nil && req.ReservePrice.LessThan(req.MinPreBid) {
		service.logger.Warn().
			Str("lot_number", req.LotNumber).
			Str("reserve_price", req.ReservePrice.String()).
			Str("min_pre_bid", req.MinPreBid.String()).
			Msg("Reserve below minimum pre-bid")
		return nil, shared.ErrReserveMisconfigured
	}

	unlock := service.locks.LockAuction(req.AuctionID)
	defer unlock()

	a, err := service.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}
	if a.IsRunning() || a.IsTerminal() {
		return nil, shared.ErrAuctionLocked
	}

	if _, err := service.vehicleRepo.GetByID(ctx, req.VehicleID); err != nil {
		service.logger.Error().Err(err).Str("vehicle_id", req.VehicleID.String()).Msg("Vehicle not found")
		return nil, err
	}

	lots, err := service.lotRepo.GetByAuctionID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	for _, existing := range lots {
		if existing.LotNumber == req.LotNumber {
			return nil, shared.ErrDuplicateLotNumber
		}
	}

	itemNumber := req.ItemNumber
	if itemNumber == 0 {
		itemNumber = len(lots) + 1
	}

	now := service.now()
	created := &lot.Lot{
		ID:           uuid.New(),
		AuctionID:    a.ID,
		VehicleID:    req.VehicleID,
		LotNumber:    req.LotNumber,
		ItemNumber:   itemNumber,
		MinPreBid:    req.MinPreBid,
		ReservePrice: req.ReservePrice,
		CurrentPrice: decimal.Zero,
		WinnerStatus: lot.WinnerStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := service.lotRepo.Create(ctx, created); err != nil {
		service.logger.Error().Err(err).Str("lot_number", req.LotNumber).Msg("Failed to save lot")
		return nil, err
	}

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("lot_id", created.ID.String()).
		Str("lot_number", created.LotNumber).
		Int("item_number", created.ItemNumber).
		Msg("Lot added")
	return created, nil
}

// GetAuction retrieves an auction by ID
func (service *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	service.logger.Debug().Str("auction_id", auctionID.String()).Msg("Retrieving auction")
	return service.auctionRepo.GetByID(ctx, auctionID)
}

// ListAuctions retrieves a list of auctions
func (service *AuctionService) ListAuctions(ctx context.Context, req inbound.ListAuctionsRequest) ([]*auction.Auction, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}

	return service.auctionRepo.List(ctx, req.Status, req.Page, req.PageSize)
}

// ListLots returns the auction's lots in running order
func (service *AuctionService) ListLots(ctx context.Context, auctionID uuid.UUID) ([]*lot.Lot, error) {
	if _, err := service.auctionRepo.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return service.lotRepo.GetByAuctionID(ctx, auctionID)
}

// StartAuction runs the auction and activates its first pending lot
func (service *AuctionService) StartAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	service.logger.Info().Str("auction_id", auctionID.String()).Msg("Starting auction")

	unlock := service.locks.LockAuction(auctionID)
	defer unlock()

	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.CanStart() {
		if a.IsTerminal() {
			return nil, shared.ErrAuctionTerminal
		}
		return nil, shared.ErrAuctionNotStartable
	}

	lots, err := service.lotRepo.GetByAuctionID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	// a lot left open by an earlier failed start is reused
	first := activeLot(lots)
	if first == nil {
		first = firstPending(lots)
	}
	if first == nil {
		service.logger.Warn().Str("auction_id", a.ID.String()).Msg("Auction has no pending lots")
		return nil, shared.ErrAuctionHasNoLots
	}

	now := service.now()
	activated, err := service.activateLot(ctx, first.ID, now)
	if err != nil {
		return nil, err
	}
	if err := a.Start(activated.LotNumber, now); err != nil {
		return nil, err
	}
	if err := service.auctionRepo.Update(ctx, a); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to update auction")
		return nil, err
	}

	service.announceLot(ctx, a, activated, now)

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("lot_number", activated.LotNumber).
		Msg("Auction started")
	return a, nil
}

// AdvanceLot resolves the current lot and activates the next pending one
func (service *AuctionService) AdvanceLot(ctx context.Context, auctionID uuid.UUID) (*shared.AdvanceResult, error) {
	unlock := service.locks.LockAuction(auctionID)
	defer unlock()

	a, err := service.runningAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return service.advance(ctx, a, nil, false)
}

// SwitchLot resolves the current lot and jumps to the given pending lot.
// Lots without pre-bids are allowed.
func (service *AuctionService) SwitchLot(ctx context.Context, auctionID, lotID uuid.UUID) (*shared.AdvanceResult, error) {
	unlock := service.locks.LockAuction(auctionID)
	defer unlock()

	a, err := service.runningAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	target, err := service.lotRepo.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if target.AuctionID != a.ID {
		return nil, shared.ErrLotNotFound
	}
	if !target.IsPending() {
		return nil, shared.ErrLotNotPending
	}

	return service.advance(ctx, a, target, false)
}

// AdvanceIfExpired advances only when the current lot's countdown has run out
func (service *AuctionService) AdvanceIfExpired(ctx context.Context, auctionID uuid.UUID) (*shared.AdvanceResult, error) {
	unlock := service.locks.LockAuction(auctionID)
	defer unlock()

	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.IsRunning() {
		service.unschedule(ctx, a.ID)
		return nil, nil
	}

	result, err := service.advance(ctx, a, nil, true)
	if err != nil || result != nil {
		return result, err
	}

	service.rescheduleCurrent(ctx, a)
	return nil, nil
}

// ExtendAuction pushes the end time of a running auction
func (service *AuctionService) ExtendAuction(ctx context.Context, req inbound.ExtendAuctionRequest) (*auction.Auction, error) {
	unlock := service.locks.LockAuction(req.AuctionID)
	defer unlock()

	a, err := service.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}

	now := service.now()
	if err := a.Extend(req.Minutes, req.Reason, now); err != nil {
		service.logger.Warn().Err(err).Str("auction_id", a.ID.String()).Msg("Auction cannot be extended")
		return nil, err
	}
	if err := service.auctionRepo.Update(ctx, a); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to update auction")
		return nil, err
	}

	service.events.publish(ctx, a.ID, outbound.EventTypeAuctionExtended, map[string]interface{}{
		"new_end_time":   a.EndTime.Format(time.RFC3339),
		"minutes":        req.Minutes,
		"reason":         req.Reason,
		"extended_count": a.ExtendedCount,
	}, now)

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Int("minutes", req.Minutes).
		Str("reason", req.Reason).
		Msg("Auction extended")
	return a, nil
}

// CancelAuction stops the auction. The active lot closes unsold; no winner is resolved.
func (service *AuctionService) CancelAuction(ctx context.Context, auctionID uuid.UUID, reason string) (*auction.Auction, error) {
	unlock := service.locks.LockAuction(auctionID)
	defer unlock()

	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := service.now()
	if err := a.Cancel(reason, now); err != nil {
		service.logger.Warn().Err(err).Str("auction_id", a.ID.String()).Msg("Auction cannot be cancelled")
		return nil, err
	}

	lots, err := service.lotRepo.GetByAuctionID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range lots {
		if !l.IsActive {
			continue
		}
		if err := service.closeWithoutWinner(ctx, l.ID, now); err != nil {
			return nil, err
		}
	}

	if err := service.auctionRepo.Update(ctx, a); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to update auction")
		return nil, err
	}
	service.unschedule(ctx, a.ID)

	service.events.publish(ctx, a.ID, outbound.EventTypeAuctionCancelled, map[string]interface{}{
		"reason": reason,
	}, now)

	service.logger.Info().Str("auction_id", a.ID.String()).Str("reason", reason).Msg("Auction cancelled")
	return a, nil
}

func (service *AuctionService) runningAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.IsRunning() {
		return nil, shared.ErrAuctionNotRunning
	}
	return a, nil
}

// advance closes the current lot and moves on to target, or the next pending
// lot when target is nil. With no lot left the auction ends. Callers hold the
// auction lock. Returns nil when onlyIfExpired is set and the lot is still live.
func (service *AuctionService) advance(ctx context.Context, a *auction.Auction, target *lot.Lot, onlyIfExpired bool) (*shared.AdvanceResult, error) {
	now := service.now()

	ended, err := service.endCurrentLot(ctx, a, now, onlyIfExpired)
	if err != nil || ended == nil {
		return nil, err
	}
	result := &shared.AdvanceResult{AuctionID: a.ID, Ended: ended}

	lots, err := service.lotRepo.GetByAuctionID(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	// The current lot is resolved by now, so any open lot is one an earlier
	// advance activated without moving the auction onto it.
	stranded := activeLot(lots)
	switch {
	case target == nil && stranded != nil:
		target = stranded
	case target == nil:
		target = firstPending(lots)
	case stranded != nil && stranded.ID != target.ID:
		if err := service.withdrawLot(ctx, stranded.ID, now); err != nil {
			return nil, err
		}
	}

	if target != nil {
		activated, err := service.activateLot(ctx, target.ID, now)
		if err != nil {
			return nil, err
		}
		a.PointAt(activated.LotNumber, now)
		if err := service.auctionRepo.Update(ctx, a); err != nil {
			service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to update auction")
			return nil, err
		}
		service.announceLot(ctx, a, activated, now)

		result.NextLotID = &activated.ID
		return result, nil
	}

	if err := a.End(now); err != nil {
		return nil, err
	}
	if err := service.auctionRepo.Update(ctx, a); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to update auction")
		return nil, err
	}
	service.unschedule(ctx, a.ID)

	total, err := service.winnerRepo.TotalSales(ctx, a.ID)
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to total sales")
		total = decimal.Zero
	}
	result.AuctionEnded = true
	result.TotalSales = total

	service.events.publish(ctx, a.ID, outbound.EventTypeAuctionEnded, map[string]interface{}{
		"total_sales": total.String(),
	}, now)

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("total_sales", total.String()).
		Msg("Auction ended")
	return result, nil
}

// endCurrentLot resolves the lot the auction points at under its lot lock.
// A lot that was already resolved reports its stored outcome again.
func (service *AuctionService) endCurrentLot(ctx context.Context, a *auction.Auction, now time.Time, onlyIfExpired bool) (*shared.LotEndResult, error) {
	if a.CurrentLotLabel == nil {
		return nil, shared.ErrLotNotActive
	}
	current, err := service.lotRepo.GetByLotNumber(ctx, a.ID, *a.CurrentLotLabel)
	if err != nil {
		return nil, err
	}

	unlock := service.locks.LockLot(current.ID)
	defer unlock()

	current, err = service.lotRepo.GetByID(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	if current.IsResolved() {
		return service.storedOutcome(ctx, current)
	}
	if !current.IsActive {
		return nil, shared.ErrLotNotActive
	}
	if onlyIfExpired && !current.Expired(a.Timer(), now) {
		return nil, nil
	}

	bids, err := service.bidRepo.GetByLotID(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	resolution := bidding.Resolve(current, bids, now)

	existing, err := service.winnerRepo.GetByLotID(ctx, current.ID)
	if err != nil && !errors.Is(err, shared.ErrWinnerNotFound) {
		return nil, err
	}
	if err != nil {
		existing = nil
	}

	w, err := bidding.Reconcile(existing, resolution)
	if err != nil {
		service.logger.Error().Err(err).
			Str("lot_id", current.ID.String()).
			Msg("Resolution disagrees with recorded winner")
		return nil, err
	}
	if w != nil && existing == nil {
		if w, err = service.winnerRepo.Create(ctx, w); err != nil {
			service.logger.Error().Err(err).Str("lot_id", current.ID.String()).Msg("Failed to record winner")
			return nil, err
		}
		if w, err = bidding.Reconcile(w, resolution); err != nil {
			return nil, err
		}
	}

	current.Deactivate(resolution.Outcome, now)
	if err := service.lotRepo.Update(ctx, current); err != nil {
		service.logger.Error().Err(err).Str("lot_id", current.ID.String()).Msg("Failed to update lot")
		return nil, err
	}
	service.metrics.LotEnded(string(resolution.Outcome))

	result := endResult(current, w)
	data := map[string]interface{}{
		"lot_id":     current.ID.String(),
		"lot_number": current.LotNumber,
		"outcome":    result.Outcome,
	}
	if w != nil {
		data["winner_id"] = w.BidderID.String()
		data["amount"] = w.Amount.String()
	}
	service.events.publish(ctx, a.ID, outbound.EventTypeLotEnded, data, now)

	service.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("lot_id", current.ID.String()).
		Str("outcome", result.Outcome).
		Msg("Lot ended")
	return result, nil
}

func (service *AuctionService) storedOutcome(ctx context.Context, l *lot.Lot) (*shared.LotEndResult, error) {
	if l.WinnerStatus == lot.WinnerStatusUnsold {
		return endResult(l, nil), nil
	}
	w, err := service.winnerRepo.GetByLotID(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	return endResult(l, w), nil
}

// activateLot prices the lot from its pre-bids and opens it. A lot that is
// already open restarts its countdown.
func (service *AuctionService) activateLot(ctx context.Context, lotID uuid.UUID, now time.Time) (*lot.Lot, error) {
	unlock := service.locks.LockLot(lotID)
	defer unlock()

	l, err := service.lotRepo.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if l.IsActive {
		l.Activate(now)
		if err := service.lotRepo.Update(ctx, l); err != nil {
			service.logger.Error().Err(err).Str("lot_id", l.ID.String()).Msg("Failed to reopen lot")
			return nil, err
		}
		return l, nil
	}
	if !l.IsPending() {
		return nil, shared.ErrLotNotPending
	}

	var highestPreBid *decimal.Decimal
	top, err := service.bidRepo.GetHighestBid(ctx, l.ID, true)
	switch {
	case err == nil:
		highestPreBid = &top.Amount
	case !errors.Is(err, shared.ErrNoBidsFound):
		return nil, err
	}

	l.Prepare(highestPreBid)
	l.Activate(now)
	if err := service.lotRepo.Update(ctx, l); err != nil {
		service.logger.Error().Err(err).Str("lot_id", l.ID.String()).Msg("Failed to activate lot")
		return nil, err
	}
	return l, nil
}

// closeWithoutWinner deactivates an open lot of a cancelled auction
func (service *AuctionService) closeWithoutWinner(ctx context.Context, lotID uuid.UUID, now time.Time) error {
	unlock := service.locks.LockLot(lotID)
	defer unlock()

	current, err := service.lotRepo.GetByID(ctx, lotID)
	if err != nil {
		return err
	}
	if !current.IsActive {
		return nil
	}
	current.Deactivate(lot.WinnerStatusUnsold, now)
	return service.lotRepo.Update(ctx, current)
}

// withdrawLot puts a stranded open lot back in the queue
func (service *AuctionService) withdrawLot(ctx context.Context, lotID uuid.UUID, now time.Time) error {
	unlock := service.locks.LockLot(lotID)
	defer unlock()

	l, err := service.lotRepo.GetByID(ctx, lotID)
	if err != nil {
		return err
	}
	if !l.IsActive {
		return nil
	}
	l.Withdraw(now)
	if err := service.lotRepo.Update(ctx, l); err != nil {
		service.logger.Error().Err(err).Str("lot_id", l.ID.String()).Msg("Failed to withdraw lot")
		return err
	}
	service.logger.Warn().Str("lot_id", l.ID.String()).Msg("Withdrew stranded lot")
	return nil
}

func (service *AuctionService) announceLot(ctx context.Context, a *auction.Auction, l *lot.Lot, now time.Time) {
	service.events.publish(ctx, a.ID, outbound.EventTypeLotActivated, map[string]interface{}{
		"lot_id":            l.ID.String(),
		"lot_number":        l.LotNumber,
		"start_price":       l.CurrentPrice.String(),
		"remaining_seconds": a.TimerSeconds,
	}, now)

	if deadline := l.Deadline(a.Timer()); deadline != nil {
		service.schedule(ctx, a.ID, *deadline)
	}
}

func (service *AuctionService) rescheduleCurrent(ctx context.Context, a *auction.Auction) {
	if a.CurrentLotLabel == nil {
		return
	}
	current, err := service.lotRepo.GetByLotNumber(ctx, a.ID, *a.CurrentLotLabel)
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to load current lot")
		return
	}
	if deadline := current.Deadline(a.Timer()); deadline != nil {
		service.schedule(ctx, a.ID, *deadline)
	}
}

func (service *AuctionService) schedule(ctx context.Context, auctionID uuid.UUID, deadline time.Time) {
	if service.scheduler == nil {
		return
	}
	if err := service.scheduler.ScheduleLotExpiry(ctx, auctionID, deadline); err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to schedule lot expiry")
	}
}

func (service *AuctionService) unschedule(ctx context.Context, auctionID uuid.UUID) {
	if service.scheduler == nil {
		return
	}
	if err := service.scheduler.Unschedule(ctx, auctionID); err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to unschedule auction")
	}
}

func activeLot(lots []*lot.Lot) *lot.Lot {
	for _, l := range lots {
		if l.IsActive {
			return l
		}
	}
	return nil
}

func firstPending(lots []*lot.Lot) *lot.Lot {
	for _, l := range lots {
		if l.IsPending() {
			return l
		}
	}
	return nil
}

func endResult(l *lot.Lot, w *winner.Winner) *shared.LotEndResult {
	result := &shared.LotEndResult{
		AuctionID: l.AuctionID,
		LotID:     l.ID,
		Outcome:   string(l.WinnerStatus),
	}
	if w != nil {
		bidderID := w.BidderID
		amount := w.Amount
		result.WinnerID = &bidderID
		result.Amount = &amount
	}
	return result
}
