package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"vehicle-auction-service/internal/config"
	"vehicle-auction-service/internal/domain/auction"
	"vehicle-auction-service/internal/domain/bid"
	"vehicle-auction-service/internal/domain/lot"
	"vehicle-auction-service/internal/domain/shared"
	"vehicle-auction-service/internal/ports/inbound"
	"vehicle-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> Client
	clientsMu      sync.RWMutex
	eventChannels  map[string]chan outbound.Event // clientID -> local event channel
	subscriptions  map[string]map[uuid.UUID]struct{}
	channelsMu     sync.RWMutex
	upgrader       websocket.Upgrader
	wsConfig       config.WebSocketConfig
	auctionService inbound.AuctionService
	bidService     inbound.BidService
	broadcaster    outbound.Broadcaster
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	Config         config.WebSocketConfig
	AuctionService inbound.AuctionService
	BidService     inbound.BidService
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		eventChannels:  make(map[string]chan outbound.Event),
		subscriptions:  make(map[string]map[uuid.UUID]struct{}),
		upgrader:       params.Upgrader,
		wsConfig:       params.Config,
		auctionService: params.AuctionService,
		bidService:     params.BidService,
		broadcaster:    params.Broadcaster,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket upgrades a bidder's connection. The bidder is identified by
// the bidder_id query parameter.
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	bidderIDStr := r.URL.Query().Get("bidder_id")
	if bidderIDStr == "" {
		http.Error(w, "bidder_id is required", http.StatusBadRequest)
		return
	}

	bidderID, err := uuid.Parse(bidderIDStr)
	if err != nil {
		http.Error(w, "invalid bidder_id format", http.StatusBadRequest)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		BidderID:    bidderID,
		Conn:        conn,
		Handler:     handler,
		MaxWorkers:  handler.wsConfig.MaxWorkers,
		MaxCapacity: handler.wsConfig.MaxCapacity,
		Logger:      handler.logger,
	})

	handler.registerClient(client)
	handler.createEventChannel(client.id)

	client.Start()

	go handler.listenForClientEvents(client)

	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("bidder_id", client.bidderID.String()).Msg("WebSocket client connected")
}

// createEventChannel creates a local event channel for a client
func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan
	handler.subscriptions[clientID] = make(map[uuid.UUID]struct{})

	handler.logger.Debug().Str("client_id", clientID).Msg("Created local event channel for client")
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

func (handler *WsHandler) trackSubscription(clientID string, auctionID uuid.UUID, subscribed bool) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	auctions, exists := handler.subscriptions[clientID]
	if !exists {
		return
	}
	if subscribed {
		auctions[auctionID] = struct{}{}
	} else {
		delete(auctions, auctionID)
	}
}

// removeEventChannel drops the client's broadcaster subscriptions before
// closing its channel, so nothing is relayed into a closed channel
func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	for auctionID := range handler.subscriptions[clientID] {
		if err := handler.broadcaster.Unsubscribe(context.Background(), auctionID, clientID); err != nil {
			handler.logger.Error().Err(err).Str("client_id", clientID).Str("auction_id", auctionID.String()).Msg("Failed to unsubscribe disconnected client")
		}
	}
	delete(handler.subscriptions, clientID)

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		close(eventChan)
		delete(handler.eventChannels, clientID)
		handler.logger.Debug().Str("client_id", clientID).Msg("Removed local event channel for client")
	}
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	delete(handler.clients, client.id)
	total := len(handler.clients)
	handler.clientsMu.Unlock()

	client.Stop()
	handler.removeEventChannel(client.id)

	handler.logger.Info().Str("client_id", client.id).Str("bidder_id", client.bidderID.String()).Int("total_clients", total).Msg("WebSocket client disconnected")
}

// listenForClientEvents relays broadcast events to the client's socket
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return
	}

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := client.Send(NewEventMessage(event)); err != nil {
				handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			} else {
				handler.logger.Debug().Str("client_id", client.id).Str("event_type", string(event.Type)).Msg("Sent event to WebSocket client")
			}

		case <-client.ctx.Done():
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	ctx := client.ctx

	switch msg.Type {
	case MessageTypeSubscribe:
		return handler.handleSubscribe(ctx, client, msg)
	case MessageTypeUnsubscribe:
		return handler.handleUnsubscribe(ctx, client, msg)
	case MessageTypePlaceBid:
		return handler.handlePlaceBid(ctx, client, msg)
	case MessageTypeRetractBid:
		return handler.handleRetractBid(ctx, client, msg)
	case MessageTypeGetBids:
		return handler.handleGetBids(ctx, client, msg)
	case MessageTypeGetLotState:
		return handler.handleGetLotState(ctx, client, msg)
	case MessageTypeGetWinner:
		return handler.handleGetWinner(ctx, client, msg)
	case MessageTypeConfirmWinner:
		return handler.respondLot(client, msg)(handler.bidService.ConfirmWinner(ctx, *msg.LotID))
	case MessageTypeCompleteWinner:
		return handler.respondLot(client, msg)(handler.bidService.CompleteWinner(ctx, *msg.LotID))
	case MessageTypeRegisterBidder:
		return handler.handleRegisterBidder(ctx, client, msg)
	case MessageTypeRegisterVehicle:
		return handler.handleRegisterVehicle(ctx, client, msg)
	case MessageTypeCreateAuction:
		return handler.handleCreateAuction(ctx, client, msg)
	case MessageTypeScheduleAuction:
		return handler.respondAuction(client, msg)(handler.auctionService.ScheduleAuction(ctx, inbound.ScheduleAuctionRequest{
			AuctionID: *msg.AuctionID,
			StartTime: msg.stringField("start_time"),
			EndTime:   msg.stringField("end_time"),
		}))
	case MessageTypeAddLot:
		return handler.handleAddLot(ctx, client, msg)
	case MessageTypeGetAuction:
		return handler.respondAuction(client, msg)(handler.auctionService.GetAuction(ctx, *msg.AuctionID))
	case MessageTypeListAuctions:
		return handler.handleListAuctions(ctx, client, msg)
	case MessageTypeListLots:
		return handler.handleListLots(ctx, client, msg)
	case MessageTypeStartAuction:
		return handler.respondAuction(client, msg)(handler.auctionService.StartAuction(ctx, *msg.AuctionID))
	case MessageTypeAdvanceLot:
		return handler.respondAdvance(client, msg)(handler.auctionService.AdvanceLot(ctx, *msg.AuctionID))
	case MessageTypeSwitchLot:
		return handler.respondAdvance(client, msg)(handler.auctionService.SwitchLot(ctx, *msg.AuctionID, *msg.LotID))
	case MessageTypeExtendAuction:
		return handler.respondAuction(client, msg)(handler.auctionService.ExtendAuction(ctx, inbound.ExtendAuctionRequest{
			AuctionID: *msg.AuctionID,
			Minutes:   msg.intField("minutes", 0),
			Reason:    msg.stringField("reason"),
		}))
	case MessageTypeCancelAuction:
		return handler.respondAuction(client, msg)(handler.auctionService.CancelAuction(ctx, *msg.AuctionID, msg.stringField("reason")))
	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

// sendError reports a failed request to the client. Errors that are not
// domain errors are also logged.
func (handler *WsHandler) sendError(client *WsClient, err error, msg *ClientMessage) error {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Request failed")
	}
	errorMsg := NewErrorMessage(err.Error(), msg.AuctionID)
	errorMsg.LotID = msg.LotID
	return client.Send(errorMsg)
}

func (handler *WsHandler) handleSubscribe(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return shared.ErrClientEventChannelNotFound
	}

	if err := handler.broadcaster.Subscribe(ctx, *msg.AuctionID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Failed to subscribe to auction")
		return err
	}
	handler.trackSubscription(client.id, *msg.AuctionID, true)

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "subscribed"

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client subscribed to auction")
	return client.Send(response)
}

func (handler *WsHandler) handleUnsubscribe(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	if err := handler.broadcaster.Unsubscribe(ctx, *msg.AuctionID, client.id); err != nil {
		return err
	}
	handler.trackSubscription(client.id, *msg.AuctionID, false)

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "unsubscribed"

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client unsubscribed from auction")
	return client.Send(response)
}

// handlePlaceBid places a bid for the connected bidder. The bid type
// defaults to a regular live bid.
func (handler *WsHandler) handlePlaceBid(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	amount, err := msg.decimalField("amount")
	if err != nil {
		return handler.sendError(client, err, msg)
	}
	proxyMax, err := msg.decimalField("proxy_max")
	if err != nil {
		return handler.sendError(client, err, msg)
	}
	validUntil, err := msg.timeField("valid_until")
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	kind := bid.Type(msg.stringField("bid_type"))
	if kind == "" {
		kind = bid.TypeRegular
	}

	result, err := handler.bidService.PlaceBid(ctx, inbound.PlaceBidRequest{
		LotID:      *msg.LotID,
		BidderID:   client.bidderID,
		ClientID:   client.id,
		Amount:     *amount,
		Kind:       kind,
		ProxyMax:   proxyMax,
		ValidUntil: validUntil,
	})
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeBidResult)
	response.LotID = msg.LotID
	response.Data["result"] = result

	handler.logger.Info().
		Str("lot_id", msg.LotID.String()).
		Str("bidder_id", client.bidderID.String()).
		Str("amount", amount.String()).
		Bool("accepted", result.Accepted).
		Msg("Bid placement handled")
	return client.Send(response)
}

func (handler *WsHandler) handleRetractBid(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	bidID, err := msg.uuidField("bid_id")
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	retracted, err := handler.bidService.RetractBid(ctx, bidID, client.bidderID)
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeBidRetracted)
	response.LotID = &retracted.LotID
	response.Data["bid"] = retracted
	return client.Send(response)
}

func (handler *WsHandler) handleGetBids(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	bids, err := handler.bidService.GetBids(ctx, *msg.LotID)
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeBidList)
	response.LotID = msg.LotID
	response.Data["bids"] = bids
	response.Data["count"] = len(bids)
	return client.Send(response)
}

func (handler *WsHandler) handleGetLotState(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	state, err := handler.bidService.GetLotState(ctx, *msg.LotID)
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeLotState)
	response.AuctionID = &state.AuctionID
	response.LotID = msg.LotID
	response.Data["state"] = state
	return client.Send(response)
}

func (handler *WsHandler) handleGetWinner(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	w, err := handler.bidService.GetWinner(ctx, *msg.LotID)
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeWinner)
	response.LotID = msg.LotID
	response.Data["winner"] = w
	return client.Send(response)
}

// handleRegisterBidder records the connected bidder under the given name
func (handler *WsHandler) handleRegisterBidder(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	b, err := handler.bidService.RegisterBidder(ctx, inbound.RegisterBidderRequest{
		ID:   client.bidderID,
		Name: msg.stringField("name"),
	})
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeBidder)
	response.Data["bidder"] = b
	return client.Send(response)
}

func (handler *WsHandler) handleRegisterVehicle(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	v, err := handler.auctionService.RegisterVehicle(ctx, inbound.RegisterVehicleRequest{
		VIN:   msg.stringField("vin"),
		Make:  msg.stringField("make"),
		Model: msg.stringField("model"),
		Year:  msg.intField("year", 0),
	})
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeVehicle)
	response.Data["vehicle"] = v
	return client.Send(response)
}

// handleCreateAuction creates a draft auction. Timer and increment fall back
// to the service defaults when omitted.
func (handler *WsHandler) handleCreateAuction(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	increment, err := msg.decimalField("min_bid_increment")
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	req := inbound.CreateAuctionRequest{
		Title:        msg.stringField("title"),
		TimerSeconds: msg.intField("timer_seconds", 0),
	}
	if increment != nil {
		req.MinBidIncrement = *increment
	}
	return handler.respondAuction(client, msg)(handler.auctionService.CreateAuction(ctx, req))
}

func (handler *WsHandler) handleAddLot(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	vehicleID, err := msg.uuidField("vehicle_id")
	if err != nil {
		return handler.sendError(client, err, msg)
	}
	minPreBid, err := msg.decimalField("min_pre_bid")
	if err != nil {
		return handler.sendError(client, err, msg)
	}
	reserve, err := msg.decimalField("reserve_price")
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	req := inbound.AddLotRequest{
		AuctionID:    *msg.AuctionID,
		VehicleID:    vehicleID,
		LotNumber:    msg.stringField("lot_number"),
		ItemNumber:   msg.intField("item_number", 0),
		ReservePrice: reserve,
	}
	if minPreBid != nil {
		req.MinPreBid = *minPreBid
	}
	return handler.respondLot(client, msg)(handler.auctionService.AddLot(ctx, req))
}

func (handler *WsHandler) handleListAuctions(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	req := inbound.ListAuctionsRequest{
		Page:     msg.intField("page", 1),
		PageSize: msg.intField("page_size", 10),
	}
	if status := msg.stringField("status"); status != "" {
		s := auction.Status(status)
		req.Status = &s
	}

	auctions, err := handler.auctionService.ListAuctions(ctx, req)
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.Data["auctions"] = auctions
	response.Data["count"] = len(auctions)
	return client.Send(response)
}

func (handler *WsHandler) handleListLots(ctx context.Context, client *WsClient, msg *ClientMessage) error {
	lots, err := handler.auctionService.ListLots(ctx, *msg.AuctionID)
	if err != nil {
		return handler.sendError(client, err, msg)
	}

	response := NewServerMessage(MessageTypeLotList)
	response.AuctionID = msg.AuctionID
	response.Data["lots"] = lots
	response.Data["count"] = len(lots)
	return client.Send(response)
}

// respondAuction replies with the auction an operation returned
func (handler *WsHandler) respondAuction(client *WsClient, msg *ClientMessage) func(*auction.Auction, error) error {
	return func(a *auction.Auction, err error) error {
		if err != nil {
			return handler.sendError(client, err, msg)
		}
		response := NewServerMessage(MessageTypeAuctionUpdate)
		response.AuctionID = &a.ID
		response.Data["auction"] = a
		return client.Send(response)
	}
}

// respondLot replies with the lot an operation returned
func (handler *WsHandler) respondLot(client *WsClient, msg *ClientMessage) func(*lot.Lot, error) error {
	return func(l *lot.Lot, err error) error {
		if err != nil {
			return handler.sendError(client, err, msg)
		}
		response := NewServerMessage(MessageTypeLotUpdate)
		response.AuctionID = &l.AuctionID
		response.LotID = &l.ID
		response.Data["lot"] = l
		return client.Send(response)
	}
}

// respondAdvance replies with the outcome of a lot advance
func (handler *WsHandler) respondAdvance(client *WsClient, msg *ClientMessage) func(*shared.AdvanceResult, error) error {
	return func(result *shared.AdvanceResult, err error) error {
		if err != nil {
			return handler.sendError(client, err, msg)
		}
		response := NewServerMessage(MessageTypeAdvanced)
		response.AuctionID = msg.AuctionID
		response.Data["result"] = result
		return client.Send(response)
	}
}
