package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vehicle-auction-service/internal/adapters/memory"
	"vehicle-auction-service/internal/app"
	"vehicle-auction-service/internal/config"
	"vehicle-auction-service/internal/domain/bidding"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/ports/inbound"
	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localBroadcaster delivers events in-process
type localBroadcaster struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[string]chan outbound.Event
}

func (b *localBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[auctionID] == nil {
		b.subs[auctionID] = make(map[string]chan outbound.Event)
	}
	b.subs[auctionID][clientID] = eventChan
	return nil
}

func (b *localBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[auctionID], clientID)
	return nil
}

func (b *localBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	event.AuctionID = auctionID
	for _, ch := range b.subs[auctionID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *localBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[auctionID][clientID]
	return ok
}

type wsFixture struct {
	server    *httptest.Server
	store     *memory.Store
	auctions  *app.AuctionService
	auctionID uuid.UUID
	lot       *lot.Lot
	bidderID  uuid.UUID
}

func newWsFixture(t *testing.T) *wsFixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewStore()
	broadcaster := &localBroadcaster{subs: make(map[uuid.UUID]map[string]chan outbound.Event)}
	locks := app.NewLockRegistry()

	auctions := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo:         store.Auctions(),
		LotRepo:             store.Lots(),
		BidRepo:             store.Bids(),
		WinnerRepo:          store.Winners(),
		VehicleRepo:         store.Vehicles(),
		Locks:               locks,
		Broadcaster:         broadcaster,
		DefaultTimerSeconds: 10,
		Clock:               clock,
		Logger:              zerolog.Nop(),
	})
	bids, err := app.NewBidService(app.BidServiceParams{
		BidRepo:     store.Bids(),
		LotRepo:     store.Lots(),
		AuctionRepo: store.Auctions(),
		WinnerRepo:  store.Winners(),
		BidderRepo:  store.Bidders(),
		Locks:       locks,
		Broadcaster: broadcaster,
		Policy:      bidding.Policy{ProxyCeiling: decimal.NewFromInt(100000)},
		Clock:       clock,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	a, err := auctions.CreateAuction(ctx, inbound.CreateAuctionRequest{Title: "Evening sale"})
	require.NoError(t, err)
	_, err = auctions.ScheduleAuction(ctx, inbound.ScheduleAuctionRequest{
		AuctionID: a.ID,
		StartTime: now.Add(time.Hour).Format(time.RFC3339),
		EndTime:   now.Add(4 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	vehicle := &shared.Vehicle{ID: uuid.New(), VIN: "WVWZZZ1JZXW000001", Make: "Saab", Model: "9-3", Year: 2009}
	require.NoError(t, store.Vehicles().Create(ctx, vehicle))
	l, err := auctions.AddLot(ctx, inbound.AddLotRequest{
		AuctionID: a.ID,
		VehicleID: vehicle.ID,
		LotNumber: "A1",
		MinPreBid: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	bidder := &shared.Bidder{ID: uuid.New(), Name: "carol"}
	require.NoError(t, store.Bidders().Create(ctx, bidder))

	handler := NewHandler(WsHandlerParams{
		Config:         config.WebSocketConfig{MaxWorkers: 1, MaxCapacity: 10},
		AuctionService: auctions,
		BidService:     bids,
		Broadcaster:    broadcaster,
		Logger:         zerolog.Nop(),
	})
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	return &wsFixture{server: server, store: store, auctions: auctions, auctionID: a.ID, lot: l, bidderID: bidder.ID}
}

func (f *wsFixture) dial(t *testing.T, bidderID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?bidder_id=" + bidderID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips messages until one of the wanted type arrives
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) *ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return &msg
		}
	}
}

// collect reads until every wanted type has arrived, in any order
func collect(t *testing.T, conn *websocket.Conn, wanted ...MessageType) map[MessageType]*ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	seen := make(map[MessageType]*ServerMessage)
	for len(seen) < len(wanted) {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		for _, w := range wanted {
			if msg.Type == w {
				m := msg
				seen[w] = &m
			}
		}
	}
	return seen
}

func TestHandleWebSocket_RequiresBidderID(t *testing.T) {
	f := newWsFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleClientMessage_PingPong(t *testing.T) {
	f := newWsFixture(t)
	conn := f.dial(t, f.bidderID)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	msg := readUntil(t, conn, MessageTypePong)
	assert.Nil(t, msg.Error)
}

func TestHandleClientMessage_BidFlow(t *testing.T) {
	f := newWsFixture(t)
	conn := f.dial(t, f.bidderID)
	lotID := f.lot.ID
	auctionID := f.auctionID

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, AuctionID: &auctionID}))
	subscribed := readUntil(t, conn, MessageTypeAuctionUpdate)
	assert.Equal(t, "subscribed", subscribed.Data["status"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeStartAuction, AuctionID: &auctionID}))
	started := readUntil(t, conn, MessageType(outbound.EventTypeLotActivated))
	assert.Equal(t, auctionID, *started.AuctionID)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:  MessageTypePlaceBid,
		LotID: &lotID,
		Data:  map[string]interface{}{"amount": "600"},
	}))
	msgs := collect(t, conn, MessageTypeBidResult, MessageType(outbound.EventTypeBidAccepted))
	verdict, ok := msgs[MessageTypeBidResult].Data["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, verdict["accepted"])
	assert.Equal(t, "700", verdict["next_minimum"])
	assert.Equal(t, auctionID, *msgs[MessageType(outbound.EventTypeBidAccepted)].AuctionID)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeGetLotState, LotID: &lotID}))
	state := readUntil(t, conn, MessageTypeLotState)
	lotState, ok := state.Data["state"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "600", lotState["current_price"])
	assert.Equal(t, true, lotState["is_active"])
}

func TestHandleClientMessage_RejectedBidIsNotAnError(t *testing.T) {
	f := newWsFixture(t)
	conn := f.dial(t, f.bidderID)
	lotID := f.lot.ID

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:  MessageTypePlaceBid,
		LotID: &lotID,
		Data:  map[string]interface{}{"amount": 600.0},
	}))
	result := readUntil(t, conn, MessageTypeBidResult)
	verdict := result.Data["result"].(map[string]interface{})
	assert.Equal(t, false, verdict["accepted"])
	assert.NotEmpty(t, verdict["violations"])
}

func TestHandleClientMessage_DomainErrorsReachClient(t *testing.T) {
	f := newWsFixture(t)
	conn := f.dial(t, f.bidderID)
	missing := uuid.New()

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeGetLotState, LotID: &missing}))
	msg := readUntil(t, conn, MessageTypeError)
	require.NotNil(t, msg.Error)
	assert.Contains(t, *msg.Error, "lot not found")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeGetLotState}))
	msg = readUntil(t, conn, MessageTypeError)
	require.NotNil(t, msg.Error)
	assert.Contains(t, *msg.Error, "lot_id is required")
}

func TestHandleClientMessage_OperatorRunsSaleEndToEnd(t *testing.T) {
	f := newWsFixture(t)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	conn := f.dial(t, uuid.New())

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeRegisterBidder, Data: map[string]interface{}{"name": "dave"}}))
	registered := readUntil(t, conn, MessageTypeBidder)
	assert.Equal(t, "dave", registered.Data["bidder"].(map[string]interface{})["name"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeRegisterVehicle, Data: map[string]interface{}{
		"vin": "YS3FD49Y881000001", "make": "Saab", "model": "9-5", "year": 2008.0,
	}}))
	vehicleMsg := readUntil(t, conn, MessageTypeVehicle)
	vehicleID := vehicleMsg.Data["vehicle"].(map[string]interface{})["id"].(string)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeCreateAuction, Data: map[string]interface{}{
		"title": "Late sale", "timer_seconds": 20.0,
	}}))
	created := readUntil(t, conn, MessageTypeAuctionUpdate)
	require.NotNil(t, created.AuctionID)
	auctionID := *created.AuctionID
	assert.Equal(t, "draft", created.Data["auction"].(map[string]interface{})["status"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeScheduleAuction, AuctionID: &auctionID, Data: map[string]interface{}{
		"start_time": now.Add(time.Hour).Format(time.RFC3339),
		"end_time":   now.Add(2 * time.Hour).Format(time.RFC3339),
	}}))
	scheduled := readUntil(t, conn, MessageTypeAuctionUpdate)
	assert.Equal(t, "scheduled", scheduled.Data["auction"].(map[string]interface{})["status"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeAddLot, AuctionID: &auctionID, Data: map[string]interface{}{
		"vehicle_id": vehicleID, "lot_number": "B7", "min_pre_bid": "500",
	}}))
	added := readUntil(t, conn, MessageTypeLotUpdate)
	require.NotNil(t, added.LotID)
	lotID := *added.LotID

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeStartAuction, AuctionID: &auctionID}))
	readUntil(t, conn, MessageTypeAuctionUpdate)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePlaceBid, LotID: &lotID, Data: map[string]interface{}{"amount": "600"}}))
	bidResult := readUntil(t, conn, MessageTypeBidResult)
	assert.Equal(t, true, bidResult.Data["result"].(map[string]interface{})["accepted"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeGetBids, LotID: &lotID}))
	ledger := readUntil(t, conn, MessageTypeBidList)
	assert.Equal(t, 1.0, ledger.Data["count"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeAdvanceLot, AuctionID: &auctionID}))
	advanced := readUntil(t, conn, MessageTypeAdvanced)
	assert.Equal(t, true, advanced.Data["result"].(map[string]interface{})["auction_ended"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeConfirmWinner, LotID: &lotID}))
	confirmed := readUntil(t, conn, MessageTypeLotUpdate)
	assert.Equal(t, string(lot.WinnerStatusConfirmed), confirmed.Data["lot"].(map[string]interface{})["winner_status"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeCompleteWinner, LotID: &lotID}))
	completed := readUntil(t, conn, MessageTypeLotUpdate)
	assert.Equal(t, string(lot.WinnerStatusCompleted), completed.Data["lot"].(map[string]interface{})["winner_status"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeCompleteWinner, LotID: &lotID}))
	msg := readUntil(t, conn, MessageTypeError)
	require.NotNil(t, msg.Error)
}

func TestValidate_ProvisioningMessages(t *testing.T) {
	auctionID := uuid.New()

	missingVehicle := &ClientMessage{Type: MessageTypeAddLot, AuctionID: &auctionID, Data: map[string]interface{}{"lot_number": "A1"}}
	assert.ErrorIs(t, missingVehicle.Validate(), shared.ErrInvalidRequest)

	assert.ErrorIs(t, (&ClientMessage{Type: MessageTypeScheduleAuction}).Validate(), shared.ErrAuctionIDRequired)
	assert.ErrorIs(t, (&ClientMessage{Type: MessageTypeConfirmWinner}).Validate(), shared.ErrLotIDRequired)
	assert.NoError(t, (&ClientMessage{Type: MessageTypeCreateAuction}).Validate())
	assert.NoError(t, (&ClientMessage{Type: MessageTypeRegisterBidder}).Validate())
}
