package shared

import "errors"

// Error kinds. Every domain error wraps exactly one of these so callers can
// branch with errors.Is without knowing the concrete error.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrConflictingState   = errors.New("conflicting state")
	ErrBusinessRule       = errors.New("business rule violation")
	ErrInvariantViolation = errors.New("invariant violation")
)

// DomainError is a domain-specific error tagged with its kind
type DomainError struct {
	Kind error
	Msg  string
}

func (e *DomainError) Error() string {
	return e.Msg
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

func newError(kind error, msg string) error {
	return &DomainError{Kind: kind, Msg: msg}
}

// Domain-specific errors
var (
	// Not found
	ErrAuctionNotFound = newError(ErrNotFound, "auction not found")
	ErrLotNotFound     = newError(ErrNotFound, "lot not found")
	ErrBidNotFound     = newError(ErrNotFound, "bid not found")
	ErrWinnerNotFound  = newError(ErrNotFound, "winner not found")
	ErrBidderNotFound  = newError(ErrNotFound, "bidder not found")
	ErrVehicleNotFound = newError(ErrNotFound, "vehicle not found")
	ErrNoBidsFound     = newError(ErrNotFound, "no bids found")

	// Auction lifecycle
	ErrAuctionTerminal      = newError(ErrConflictingState, "auction already ended or cancelled")
	ErrAuctionNotRunning    = newError(ErrConflictingState, "auction is not running")
	ErrAuctionNotStartable  = newError(ErrConflictingState, "auction cannot be started from its current status")
	ErrAuctionNotDraft      = newError(ErrConflictingState, "auction is not in draft")
	ErrAuctionHasNoLots     = newError(ErrConflictingState, "auction has no lots")
	ErrAuctionLocked        = newError(ErrConflictingState, "lots cannot be added once the auction is running")
	ErrLotNotActive         = newError(ErrConflictingState, "lot is not the active lot")
	ErrLotNotPending        = newError(ErrConflictingState, "lot is not pending")
	ErrLotAlreadyResolved   = newError(ErrConflictingState, "lot already resolved")
	ErrLotNotWon            = newError(ErrConflictingState, "lot has no confirmed winner")
	ErrStaleVersion         = newError(ErrConflictingState, "record was modified concurrently")
	ErrBidNotRetractable    = newError(ErrConflictingState, "bid can only be retracted before its lot opens")
	ErrBidAlreadyRetracted  = newError(ErrConflictingState, "bid already retracted")
	ErrDuplicateLotNumber   = newError(ErrConflictingState, "lot number already used in this auction")
	ErrInvalidStartTime     = newError(ErrValidationFailed, "start time must be in the future")
	ErrInvalidEndTime       = newError(ErrValidationFailed, "end time must be after start time")
	ErrInvalidTimer         = newError(ErrValidationFailed, "timer seconds must be positive")
	ErrExtensionReason      = newError(ErrValidationFailed, "extension reason is required")
	ErrExtensionMinutes     = newError(ErrValidationFailed, "extension minutes must be positive")
	ErrCancelReason         = newError(ErrValidationFailed, "cancellation reason is required")
	ErrInvalidTimeFormat    = newError(ErrValidationFailed, "invalid time format")
	ErrInvalidRequest       = newError(ErrValidationFailed, "invalid request")
	ErrNotBidOwner          = newError(ErrValidationFailed, "bid belongs to another bidder")
	ErrVINRequired          = newError(ErrValidationFailed, "vehicle VIN is required")
	ErrBidderNameRequired   = newError(ErrValidationFailed, "bidder name is required")
	ErrReserveMisconfigured = newError(ErrBusinessRule, "reserve price must not be below the minimum pre-bid")
	ErrNegativeAmount       = newError(ErrBusinessRule, "amounts must not be negative")

	// Fatal
	ErrWinnerMismatch = newError(ErrInvariantViolation, "lot already has a different winner")
	ErrCascadeRunaway = newError(ErrInvariantViolation, "proxy cascade did not converge")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrAuctionIDRequired   = errors.New("auction_id is required")
	ErrLotIDRequired       = errors.New("lot_id is required")
	ErrInvalidAmount       = errors.New("valid amount is required")
	ErrUnknownMessageType  = errors.New("unknown message type")

	// Broadcasting errors
	ErrClientEventChannelNotFound = errors.New("client event channel not found")
)
