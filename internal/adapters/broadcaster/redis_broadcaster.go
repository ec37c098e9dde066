package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChannelName is the Redis pub/sub channel carrying an auction's events
func ChannelName(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction:%s", auctionID.String())
}

// subscription is one client's pubsub connection and the auctions it follows
type subscription struct {
	events   chan outbound.Event
	pubsub   *redis.PubSub
	auctions map[uuid.UUID]struct{}
}

// RedisBroadcaster implements the broadcaster interface using Redis pub/sub,
// so every service instance sees the events of every other
type RedisBroadcaster struct {
	client        *redis.Client
	subscriptions map[string]*subscription
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	logger        zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:        params.RedisClient,
		subscriptions: make(map[string]*subscription),
		ctx:           ctx,
		cancel:        cancel,
		logger:        params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// Subscribe adds an auction to a client's feed. The first call for a client
// opens its pubsub connection and fixes its event channel, which stays owned
// by the caller.
func (r *RedisBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.subscriptions[clientID]
	if exists {
		if _, following := sub.auctions[auctionID]; following {
			r.logger.Debug().
				Str("client_id", clientID).
				Str("auction_id", auctionID.String()).
				Msg("Client already subscribed to auction")
			return nil
		}
	} else {
		sub = &subscription{
			events:   eventChan,
			pubsub:   r.client.Subscribe(ctx),
			auctions: make(map[uuid.UUID]struct{}),
		}
		r.subscriptions[clientID] = sub
		go r.forward(sub, clientID)
	}

	if err := sub.pubsub.Subscribe(ctx, ChannelName(auctionID)); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Str("auction_id", auctionID.String()).Msg("Failed to subscribe to Redis channel")
		return err
	}
	sub.auctions[auctionID] = struct{}{}

	r.logger.Info().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Msg("Client subscribed to auction via Redis")
	return nil
}

// Unsubscribe drops an auction from a client's feed and tears the feed down with the last one
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.subscriptions[clientID]
	if !exists {
		return nil
	}
	delete(sub.auctions, auctionID)

	if len(sub.auctions) > 0 {
		if err := sub.pubsub.Unsubscribe(ctx, ChannelName(auctionID)); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Str("auction_id", auctionID.String()).Msg("Error unsubscribing from Redis channel")
			return err
		}
	} else {
		r.closeSubscription(clientID, sub)
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Msg("Client unsubscribed from auction")
	return nil
}

func (r *RedisBroadcaster) closeSubscription(clientID string, sub *subscription) {
	if err := sub.pubsub.Close(); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
	}
	delete(r.subscriptions, clientID)
}

// Publish publishes an event to all subscribers of an auction via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	event.AuctionID = auctionID

	eventJSON, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, ChannelName(auctionID), eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", auctionID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to auction")
	return nil
}

// IsSubscribed checks if a client follows an auction
func (r *RedisBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.subscriptions[clientID]
	if !exists {
		return false
	}
	_, following := sub.auctions[auctionID]
	return following
}

// forward relays Redis messages to the client's channel, dropping events when it is full
func (r *RedisBroadcaster) forward(sub *subscription, clientID string) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Redis message listener panic for client")
		}
	}()

	ch := sub.pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Debug().Str("client_id", clientID).Msg("Redis channel closed for client")
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message for client")
				continue
			}

			r.mu.RLock()
			live := r.subscriptions[clientID] == sub
			if live {
				select {
				case sub.events <- event:
				default:
					r.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
				}
			}
			r.mu.RUnlock()
			if !live {
				return
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Close stops every listener and closes the Redis client
func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID, sub := range r.subscriptions {
		r.closeSubscription(clientID, sub)
	}

	return r.client.Close()
}
