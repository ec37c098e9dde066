package app

import (
	"context"
	"time"

	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// notifier publishes engine events; a failed publish never fails the operation
type notifier struct {
	broadcaster outbound.Broadcaster
	logger      zerolog.Logger
}

func (n *notifier) publish(ctx context.Context, auctionID uuid.UUID, eventType outbound.EventType, data map[string]interface{}, now time.Time) {
	if n.broadcaster == nil {
		return
	}

	event := outbound.Event{
		Type:      eventType,
		AuctionID: auctionID,
		Data:      data,
		Timestamp: now.Unix(),
	}
	if err := n.broadcaster.Publish(ctx, auctionID, event); err != nil {
		n.logger.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Str("event_type", string(eventType)).
			Msg("Failed to broadcast event")
	}
}

type noopMetrics struct{}

func (noopMetrics) BidAccepted(string)            {}
func (noopMetrics) BidRejected(string)            {}
func (noopMetrics) AutoBidsEmitted(int)           {}
func (noopMetrics) CascadeDuration(time.Duration) {}
func (noopMetrics) LotEnded(string)               {}
