package app

import (
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// LockRegistry hands out one mutex per auction and per lot.
// Callers that need both take the auction lock first.
type LockRegistry struct {
	auctions *xsync.MapOf[uuid.UUID, *sync.Mutex]
	lots     *xsync.MapOf[uuid.UUID, *sync.Mutex]
}

// NewLockRegistry creates an empty registry
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{
		auctions: xsync.NewMapOf[uuid.UUID, *sync.Mutex](),
		lots:     xsync.NewMapOf[uuid.UUID, *sync.Mutex](),
	}
}

// LockAuction blocks until the auction is free and returns the unlock func
func (r *LockRegistry) LockAuction(auctionID uuid.UUID) func() {
	return acquire(r.auctions, auctionID)
}

// LockLot blocks until the lot is free and returns the unlock func
func (r *LockRegistry) LockLot(lotID uuid.UUID) func() {
	return acquire(r.lots, lotID)
}

func acquire(m *xsync.MapOf[uuid.UUID, *sync.Mutex], id uuid.UUID) func() {
	mu, _ := m.LoadOrCompute(id, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}
