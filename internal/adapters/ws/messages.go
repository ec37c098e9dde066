package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe       MessageType = "subscribe"
	MessageTypeUnsubscribe     MessageType = "unsubscribe"
	MessageTypePlaceBid        MessageType = "place_bid"
	MessageTypeRetractBid      MessageType = "retract_bid"
	MessageTypeGetBids         MessageType = "get_bids"
	MessageTypeGetLotState     MessageType = "get_lot_state"
	MessageTypeGetWinner       MessageType = "get_winner"
	MessageTypeConfirmWinner   MessageType = "confirm_winner"
	MessageTypeCompleteWinner  MessageType = "complete_winner"
	MessageTypeRegisterBidder  MessageType = "register_bidder"
	MessageTypeRegisterVehicle MessageType = "register_vehicle"
	MessageTypeCreateAuction   MessageType = "create_auction"
	MessageTypeScheduleAuction MessageType = "schedule_auction"
	MessageTypeAddLot          MessageType = "add_lot"
	MessageTypeGetAuction      MessageType = "get_auction"
	MessageTypeListAuctions    MessageType = "list_auctions"
	MessageTypeListLots        MessageType = "list_lots"
	MessageTypeStartAuction    MessageType = "start_auction"
	MessageTypeAdvanceLot      MessageType = "advance_lot"
	MessageTypeSwitchLot       MessageType = "switch_lot"
	MessageTypeExtendAuction   MessageType = "extend_auction"
	MessageTypeCancelAuction   MessageType = "cancel_auction"
	MessageTypePing            MessageType = "ping"

	// Server to Client message types
	MessageTypeBidResult     MessageType = "bid_result"
	MessageTypeBidRetracted  MessageType = "bid_retracted"
	MessageTypeBidList       MessageType = "bid_list"
	MessageTypeLotState      MessageType = "lot_state"
	MessageTypeLotUpdate     MessageType = "lot_update"
	MessageTypeWinner        MessageType = "winner"
	MessageTypeBidder        MessageType = "bidder"
	MessageTypeVehicle       MessageType = "vehicle"
	MessageTypeAuctionUpdate MessageType = "auction_update"
	MessageTypeLotList       MessageType = "lot_list"
	MessageTypeAdvanced      MessageType = "advanced"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	LotID     *uuid.UUID             `json:"lot_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	LotID     *uuid.UUID             `json:"lot_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, auctionID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewEventMessage relays a broadcast event; the event type becomes the message type
func NewEventMessage(event outbound.Event) *ServerMessage {
	auctionID := event.AuctionID
	return &ServerMessage{
		Type:      MessageType(event.Type),
		AuctionID: &auctionID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

func (m *ClientMessage) validateLotID() error {
	if m.LotID == nil || *m.LotID == uuid.Nil {
		return shared.ErrLotIDRequired
	}
	return nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate checks that a message carries the IDs its type needs
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetAuction, MessageTypeListLots,
		MessageTypeScheduleAuction, MessageTypeStartAuction, MessageTypeAdvanceLot,
		MessageTypeExtendAuction, MessageTypeCancelAuction:
		return m.validateAuctionID()
	case MessageTypeAddLot:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		if _, err := m.uuidField("vehicle_id"); err != nil {
			return err
		}
	case MessageTypeSwitchLot:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		return m.validateLotID()
	case MessageTypePlaceBid:
		if err := m.validateLotID(); err != nil {
			return err
		}
		amount, err := m.decimalField("amount")
		if err != nil || amount == nil || !amount.IsPositive() {
			return shared.ErrInvalidAmount
		}
	case MessageTypeGetLotState, MessageTypeGetWinner, MessageTypeGetBids,
		MessageTypeConfirmWinner, MessageTypeCompleteWinner:
		return m.validateLotID()
	case MessageTypeRetractBid:
		if _, err := m.uuidField("bid_id"); err != nil {
			return err
		}
	case MessageTypeListAuctions, MessageTypePing, MessageTypeCreateAuction,
		MessageTypeRegisterBidder, MessageTypeRegisterVehicle:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}

// decimalField reads a money value sent either as a JSON number or a string.
// A missing key yields nil.
func (m *ClientMessage) decimalField(key string) (*decimal.Decimal, error) {
	raw, ok := m.Data[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var value decimal.Decimal
	switch v := raw.(type) {
	case float64:
		value = decimal.NewFromFloat(v)
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, shared.ErrInvalidRequest)
		}
		value = parsed
	default:
		return nil, fmt.Errorf("%s: %w", key, shared.ErrInvalidRequest)
	}
	return &value, nil
}

func (m *ClientMessage) stringField(key string) string {
	s, _ := m.Data[key].(string)
	return s
}

func (m *ClientMessage) intField(key string, fallback int) int {
	if v, ok := m.Data[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func (m *ClientMessage) uuidField(key string) (uuid.UUID, error) {
	id, err := uuid.Parse(m.stringField(key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", key, shared.ErrInvalidRequest)
	}
	return id, nil
}

func (m *ClientMessage) timeField(key string) (*time.Time, error) {
	s := m.stringField(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, shared.ErrInvalidTimeFormat)
	}
	return &t, nil
}
