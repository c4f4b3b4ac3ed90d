package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/marketdata"
	"fenrir/internal/workerpool"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultNWorkers    = 16
	defaultConnTimeout = 30 * time.Second
)

// Server is the TCP front end for a MatchingEngine: request/response verbs
// (SUBMIT_ORDER, CANCEL_ORDER, ...) are dispatched off a worker pool one
// frame at a time per connection; for streaming verbs (STREAM_MARKET_DATA,
// STREAM_TRADES) the worker that read the request keeps the connection and
// pumps the subscription to it for the connection's remaining lifetime.
//
// Grounded on the teacher's internal/net/server.go Server (listener loop,
// worker pool, per-connection handling), adapted from its bare
// PlaceOrder/CancelOrder/LogBook Engine interface to the full
// engine.MatchingEngine surface and extended with the streaming verbs the
// teacher never implemented (its ReportTrade pushed synchronously to every
// tracked client session instead of through a subscription model).
type Server struct {
	address string
	port    int
	engine  *engine.MatchingEngine
	pool    *workerpool.Pool
	cancel  context.CancelFunc
}

// New constructs a Server bound to address:port, dispatching requests
// against eng.
func New(address string, port int, eng *engine.MatchingEngine) *Server {
	return &Server{
		address: address,
		port:    port,
		engine:  eng,
		pool:    workerpool.New(defaultNWorkers),
	}
}

// Shutdown stops accepting connections and tears down the worker pool.
func (s *Server) Shutdown() {
	log.Info().Msg("transport server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run starts the listener and blocks until ctx is cancelled or Shutdown is
// called.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("transport: unable to start listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("transport: error closing listener")
		}
	}()

	s.pool.Setup(t, s.handleConnection)

	log.Info().Str("address", listener.Addr().String()).Msg("transport server listening")

	t.Go(func() error {
		<-t.Dying()
		return listener.Close()
	})

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Error().Err(err).Msg("transport: error accepting connection")
				continue
			}
		}
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("transport: client connected")
		s.pool.AddTask(conn)
	}
}

// handleConnection is the workerpool.WorkerFunction driving one connection
// at a time: it reads and dispatches one frame, then, unless the connection
// was handed off to a stream, re-enqueues itself for its next frame.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return nil
	}

	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("transport: failed setting read deadline")
		_ = conn.Close()
		return nil
	}

	env, err := readFrame(conn)
	if err != nil {
		if err != io.EOF {
			log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("transport: connection closed")
		}
		_ = conn.Close()
		return nil
	}

	if env.Type == VerbStreamMarketData || env.Type == VerbStreamTrades {
		s.handleStream(t, conn, env)
		return nil
	}

	s.dispatch(conn, env)
	s.pool.AddTask(conn)
	return nil
}

// dispatch decodes one request envelope, invokes the corresponding engine
// operation, and writes back a single response frame (OK payload or ERROR).
func (s *Server) dispatch(conn net.Conn, env Envelope) {
	var (
		verb    Verb
		payload any
	)

	switch env.Type {
	case VerbSubmitOrder:
		verb, payload = s.handleSubmitOrder(env)
	case VerbCancelOrder:
		verb, payload = s.handleCancelOrder(env)
	case VerbGetOrder:
		verb, payload = s.handleGetOrder(env)
	case VerbGetBookSnapshot:
		verb, payload = s.handleGetBookSnapshot(env)
	case VerbGetBBO:
		verb, payload = s.handleGetBBO(env)
	case VerbDumpBook:
		verb, payload = s.handleDumpBook(env)
	default:
		verb, payload = VerbError, errorResponse(common.NewValidationError(
			fmt.Sprintf("unknown verb %q", env.Type), nil))
	}

	if err := writeFrame(conn, verb, payload); err != nil {
		log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("transport: failed writing response frame")
	}
}

func (s *Server) handleSubmitOrder(env Envelope) (Verb, any) {
	var req SubmitOrderRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return VerbError, errorResponse(common.NewValidationError("malformed submit_order payload", nil))
	}

	side, orderType, err := parseSideAndType(req.Side, req.Type)
	if err != nil {
		return VerbError, errorResponse(err)
	}

	order, err := s.engine.Submit(engine.SubmitRequest{
		Symbol:      common.Symbol(req.Symbol),
		Side:        side,
		Type:        orderType,
		QuantityStr: req.Quantity,
		PriceStr:    req.Price,
		UserID:      req.UserID,
	})
	if err != nil {
		return VerbError, errorResponse(err)
	}
	return VerbOK, orderResponse(order)
}

func (s *Server) handleCancelOrder(env Envelope) (Verb, any) {
	var req CancelOrderRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return VerbError, errorResponse(common.NewValidationError("malformed cancel_order payload", nil))
	}
	order, err := s.engine.Cancel(common.Symbol(req.Symbol), req.OrderID)
	if err != nil {
		return VerbError, errorResponse(err)
	}
	return VerbOK, orderResponse(order)
}

func (s *Server) handleGetOrder(env Envelope) (Verb, any) {
	var req GetOrderRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return VerbError, errorResponse(common.NewValidationError("malformed get_order payload", nil))
	}
	order, err := s.engine.GetOrder(common.Symbol(req.Symbol), req.OrderID)
	if err != nil {
		return VerbError, errorResponse(err)
	}
	// Get order returns the full record, per spec.md §6, unlike
	// submit/cancel's condensed {order_id, status, filled, remaining}.
	return VerbOK, order
}

func (s *Server) handleGetBookSnapshot(env Envelope) (Verb, any) {
	var req GetBookSnapshotRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return VerbError, errorResponse(common.NewValidationError("malformed get_book_snapshot payload", nil))
	}
	snap, err := s.engine.GetBookSnapshot(common.Symbol(req.Symbol), req.Depth)
	if err != nil {
		return VerbError, errorResponse(err)
	}
	return VerbOK, snap
}

func (s *Server) handleGetBBO(env Envelope) (Verb, any) {
	var req GetBBORequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return VerbError, errorResponse(common.NewValidationError("malformed get_bbo payload", nil))
	}
	bbo, err := s.engine.GetBBO(common.Symbol(req.Symbol))
	if err != nil {
		return VerbError, errorResponse(err)
	}
	return VerbOK, bbo
}

// handleDumpBook is the renamed successor of the teacher's LogBook verb: it
// logs the book, up to the engine's depth cap, server-side and acknowledges
// the caller, rather than serializing the book onto the wire.
func (s *Server) handleDumpBook(env Envelope) (Verb, any) {
	var req DumpBookRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return VerbError, errorResponse(common.NewValidationError("malformed dump_book payload", nil))
	}
	snap, err := s.engine.GetBookSnapshot(common.Symbol(req.Symbol), 0)
	if err != nil {
		return VerbError, errorResponse(err)
	}
	log.Info().Str("symbol", req.Symbol).Interface("bids", snap.Bids).Interface("asks", snap.Asks).Msg("book dump")
	return VerbOK, struct{}{}
}

func orderResponse(order *common.Order) OrderResponse {
	return OrderResponse{
		OrderID:           order.ID,
		Status:            order.Status.String(),
		FilledQuantity:    order.FilledQuantity.String(),
		RemainingQuantity: order.RemainingQuantity().String(),
	}
}

func parseSideAndType(rawSide, rawType string) (common.Side, common.OrderType, error) {
	var side common.Side
	switch rawSide {
	case "buy":
		side = common.Buy
	case "sell":
		side = common.Sell
	default:
		return 0, 0, common.NewValidationError(fmt.Sprintf("unknown side %q", rawSide), nil)
	}

	var orderType common.OrderType
	switch rawType {
	case "market":
		orderType = common.Market
	case "limit":
		orderType = common.Limit
	case "ioc":
		orderType = common.IOC
	case "fok":
		orderType = common.FOK
	default:
		return 0, 0, common.NewValidationError(fmt.Sprintf("unknown order_type %q", rawType), nil)
	}
	return side, orderType, nil
}

// handleStream subscribes conn to symbol's market-data or trade channel and
// pushes framed messages until the connection closes, the tomb dies, or the
// subscriber is evicted for backpressure by the hub itself.
func (s *Server) handleStream(t *tomb.Tomb, conn net.Conn, env Envelope) {
	var req StreamRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		_ = writeFrame(conn, VerbError, errorResponse(common.NewValidationError("malformed stream payload", nil)))
		_ = conn.Close()
		return
	}

	sub, err := s.engine.Subscribe(common.Symbol(req.Symbol))
	if err != nil {
		_ = writeFrame(conn, VerbError, errorResponse(err))
		_ = conn.Close()
		return
	}

	_ = conn.SetReadDeadline(time.Time{})

	defer func() {
		sub.Unsubscribe()
		_ = conn.Close()
	}()

	if env.Type == VerbStreamMarketData {
		s.pumpMarketData(t, conn, sub)
		return
	}
	s.pumpTrades(t, conn, sub)
}

func (s *Server) pumpMarketData(t *tomb.Tomb, conn net.Conn, sub *marketdata.Subscription) {
	for {
		select {
		case <-t.Dying():
			return
		case msg, ok := <-sub.MarketData:
			if !ok {
				return
			}
			if err := writeFrame(conn, marketDataVerb(msg.Type), marketDataPayload(msg)); err != nil {
				return
			}
		}
	}
}

func (s *Server) pumpTrades(t *tomb.Tomb, conn net.Conn, sub *marketdata.Subscription) {
	for {
		select {
		case <-t.Dying():
			return
		case msg, ok := <-sub.Trades:
			if !ok {
				return
			}
			if err := writeFrame(conn, VerbTradeMessage, msg.Trade); err != nil {
				return
			}
		}
	}
}

func marketDataVerb(t marketdata.MessageType) Verb {
	switch t {
	case marketdata.Snapshot:
		return VerbSnapshotMessage
	case marketdata.BBOUpdate:
		return VerbBBOUpdateMessage
	default:
		return VerbBookUpdateMessage
	}
}

func marketDataPayload(msg marketdata.MarketDataMessage) any {
	if msg.Type == marketdata.BBOUpdate {
		return msg.BBO
	}
	return msg.Snapshot
}
