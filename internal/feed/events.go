package feed

import (
	"context"

	"github.com/shopspring/decimal"

	"bnf-quoter-bot/internal/order"
)

type Status string

const (
	StatusNew      Status = "NEW"
	StatusCanceled Status = "CANCELED"
	StatusTrade    Status = "TRADE"
)

// Level is one price level of the book, best first.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookEvent carries the ordered levels present in a depth update. A nil
// side slice means the side was absent from the payload. HasBook is false
// when the event carried no book payload at all, which signals a depth
// subscription gap.
type BookEvent struct {
	Symbol  string
	HasBook bool
	Bids    []Level
	Asks    []Level
}

// PositionEvent carries the full signed position, positive when long.
type PositionEvent struct {
	Symbol   string
	Position decimal.Decimal
}

// OrderStatusEvent is a normalized ORDER_TRADE_UPDATE. Statuses other
// than NEW, CANCELED and TRADE pass through and are ignored downstream.
type OrderStatusEvent struct {
	Symbol   string
	Side     order.Side
	OrigQty  decimal.Decimal
	ExecQty  decimal.Decimal
	Price    decimal.Decimal
	OrderID  string
	ClientID string
	Status   Status
}

// Order converts the event into the order it refers to. The symbol comes
// from configuration, not the event, because the stream may report a
// different symbol format than the one the bot is configured with. The
// size is the original quantity so the result compares equal to the order
// recorded at confirmation even after partial fills.
func (ev OrderStatusEvent) Order(symbol string) order.Order {
	return order.Order{
		Symbol:  symbol,
		Side:    ev.Side,
		Size:    ev.OrigQty,
		Price:   ev.Price,
		OrderID: ev.OrderID,
	}
}

// Handler receives normalized events, one call per incoming message, and
// returns once the event is fully processed.
type Handler interface {
	OnBook(ctx context.Context, ev BookEvent)
	OnPosition(ctx context.Context, ev PositionEvent)
	OnOrderStatus(ctx context.Context, ev OrderStatusEvent)
}
