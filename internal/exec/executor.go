package exec

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bnf-quoter-bot/internal/metrics"
	"bnf-quoter-bot/internal/order"
	"bnf-quoter-bot/internal/rest"
	"bnf-quoter-bot/internal/store"
)

// Gateway is the exchange surface the executor drives.
type Gateway interface {
	PlaceOrder(ctx context.Context, req rest.PlaceOrderRequest) (rest.OrderAck, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// Executor sends single place/cancel requests and journals every action.
// It performs no retries: a rejection has to surface immediately so the
// quoting engine can roll back its pending state; anything transient is
// left to the engine's count heal.
type Executor struct {
	gw      Gateway
	journal *store.OrderLog
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(gw Gateway, journal *store.OrderLog, m *metrics.Metrics, log *zap.Logger) *Executor {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Executor{gw: gw, journal: journal, metrics: m, log: log}
}

func (e *Executor) Place(ctx context.Context, o order.Order) error {
	clientID := uuid.NewString()
	e.log.Info("sending order",
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.String("size", o.Size.String()),
		zap.String("price", o.Price.String()),
		zap.String("client_order_id", clientID),
	)
	ack, err := e.gw.PlaceOrder(ctx, rest.PlaceOrderRequest{
		Symbol:        o.Symbol,
		Side:          o.Side,
		Quantity:      o.Size,
		Price:         o.Price,
		ClientOrderID: clientID,
	})
	if err != nil {
		e.metrics.OrdersRejected.Inc()
		e.append(ctx, "place_failed", o, "", clientID)
		return err
	}
	e.metrics.OrdersPlaced.Inc()
	e.append(ctx, "placed", o, strconv.FormatInt(ack.OrderID, 10), clientID)
	return nil
}

func (e *Executor) Cancel(ctx context.Context, o order.Order) error {
	if o.OrderID == "" {
		return errors.New("cancel requires an exchange order id")
	}
	e.log.Info("sending cancel",
		zap.String("order_id", o.OrderID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.String("size", o.Size.String()),
		zap.String("price", o.Price.String()),
	)
	if err := e.gw.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
		e.metrics.CancelsFailed.Inc()
		e.append(ctx, "cancel_failed", o, o.OrderID, "")
		return err
	}
	e.metrics.CancelsSent.Inc()
	e.append(ctx, "cancel_sent", o, o.OrderID, "")
	return nil
}

func (e *Executor) append(ctx context.Context, action string, o order.Order, orderID, clientID string) {
	if e.journal == nil {
		return
	}
	entry := store.Entry{
		Action:        action,
		Symbol:        o.Symbol,
		Side:          string(o.Side),
		Size:          o.Size.String(),
		Price:         o.Price.String(),
		OrderID:       orderID,
		ClientOrderID: clientID,
	}
	if err := e.journal.Append(ctx, entry); err != nil {
		e.log.Warn("order journal append failed", zap.Error(err))
	}
}
