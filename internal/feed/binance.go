package feed

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"bnf-quoter-bot/internal/order"
)

func formatOrderID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// Raw payload shapes of the Binance USDⓈ-M futures streams. Sides are
// kept as json.RawMessage so an absent key can be told apart from an
// empty list.
type depthPayload struct {
	Event  string          `json:"e"`
	Symbol string          `json:"s"`
	Bids   json.RawMessage `json:"b"`
	Asks   json.RawMessage `json:"a"`
}

type userPayload struct {
	Event   string             `json:"e"`
	Order   *orderUpdate       `json:"o"`
	Account *accountUpdateData `json:"a"`
}

type orderUpdate struct {
	Symbol   string          `json:"s"`
	Side     string          `json:"S"`
	OrigQty  decimal.Decimal `json:"q"`
	ExecQty  decimal.Decimal `json:"z"`
	Price    decimal.Decimal `json:"p"`
	ExecType string          `json:"x"`
	OrderID  int64           `json:"i"`
	ClientID string          `json:"c"`
}

type accountUpdateData struct {
	Positions []positionUpdate `json:"P"`
}

type positionUpdate struct {
	Symbol      string          `json:"s"`
	PositionAmt decimal.Decimal `json:"pa"`
}

func parseBookEvent(msg json.RawMessage) (BookEvent, bool) {
	var payload depthPayload
	if err := json.Unmarshal(msg, &payload); err != nil {
		return BookEvent{}, false
	}
	if payload.Event != "depthUpdate" {
		return BookEvent{}, false
	}
	ev := BookEvent{Symbol: payload.Symbol}
	if payload.Bids == nil && payload.Asks == nil {
		return ev, true
	}
	ev.HasBook = true
	ev.Bids = parseLevels(payload.Bids)
	ev.Asks = parseLevels(payload.Asks)
	return ev, true
}

func parseLevels(raw json.RawMessage) []Level {
	if raw == nil {
		return nil
	}
	var pairs [][2]decimal.Decimal
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil
	}
	levels := make([]Level, 0, len(pairs))
	for _, pair := range pairs {
		levels = append(levels, Level{Price: pair[0], Size: pair[1]})
	}
	return levels
}

func parseOrderStatusEvent(payload userPayload) (OrderStatusEvent, bool) {
	if payload.Event != "ORDER_TRADE_UPDATE" || payload.Order == nil {
		return OrderStatusEvent{}, false
	}
	o := payload.Order
	return OrderStatusEvent{
		Symbol:   o.Symbol,
		Side:     order.Side(o.Side),
		OrigQty:  o.OrigQty,
		ExecQty:  o.ExecQty,
		Price:    o.Price,
		OrderID:  formatOrderID(o.OrderID),
		ClientID: o.ClientID,
		Status:   Status(o.ExecType),
	}, true
}

func parsePositionEvents(payload userPayload) []PositionEvent {
	if payload.Event != "ACCOUNT_UPDATE" || payload.Account == nil {
		return nil
	}
	events := make([]PositionEvent, 0, len(payload.Account.Positions))
	for _, pos := range payload.Account.Positions {
		events = append(events, PositionEvent{Symbol: pos.Symbol, Position: pos.PositionAmt})
	}
	return events
}
