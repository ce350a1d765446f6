package state

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bnf-quoter-bot/internal/feed"
	"bnf-quoter-bot/internal/order"
)

func newTestStore() *Store {
	return New("BTCUSDT", "BTC", zap.NewNop())
}

func level(price, size string) feed.Level {
	return feed.Level{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func TestHandleBookReplacesTop(t *testing.T) {
	s := newTestStore()
	s.HandleBook(feed.BookEvent{
		Symbol:  "BTCUSDT",
		HasBook: true,
		Bids:    []feed.Level{level("100", "5"), level("99", "1")},
		Asks:    []feed.Level{level("101", "2")},
	})
	top := s.TopMarket()
	if !top[order.SideBuy].Price.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("unexpected best bid: %v", top[order.SideBuy])
	}
	if !top[order.SideSell].Price.Equal(decimal.RequireFromString("101")) {
		t.Fatalf("unexpected best ask: %v", top[order.SideSell])
	}
}

func TestHandleBookKeepsAbsentSide(t *testing.T) {
	s := newTestStore()
	s.HandleBook(feed.BookEvent{
		Symbol:  "BTCUSDT",
		HasBook: true,
		Bids:    []feed.Level{level("100", "5")},
		Asks:    []feed.Level{level("101", "2")},
	})
	s.HandleBook(feed.BookEvent{
		Symbol:  "BTCUSDT",
		HasBook: true,
		Bids:    []feed.Level{level("100.5", "3")},
	})
	top := s.TopMarket()
	if !top[order.SideBuy].Price.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("bid should have been replaced")
	}
	if !top[order.SideSell].Price.Equal(decimal.RequireFromString("101")) {
		t.Fatalf("ask should have been retained")
	}
}

func TestHandleBookWithoutPayloadClearsTop(t *testing.T) {
	s := newTestStore()
	s.HandleBook(feed.BookEvent{
		Symbol:  "BTCUSDT",
		HasBook: true,
		Bids:    []feed.Level{level("100", "5")},
	})
	s.HandleBook(feed.BookEvent{Symbol: "BTCUSDT"})
	if len(s.TopMarket()) != 0 {
		t.Fatalf("top should be empty after a payload-less event")
	}
}

func TestHandleBookIgnoresOtherSymbols(t *testing.T) {
	s := newTestStore()
	s.HandleBook(feed.BookEvent{
		Symbol:  "ETHUSDT",
		HasBook: true,
		Bids:    []feed.Level{level("100", "5")},
	})
	if len(s.TopMarket()) != 0 {
		t.Fatalf("book event for another symbol should be ignored")
	}
}

func TestHandlePositionReplacesBalance(t *testing.T) {
	s := newTestStore()
	s.InitializeBalance(decimal.RequireFromString("0.5"))
	s.HandlePosition(feed.PositionEvent{
		Symbol:   "BTCUSDT",
		Position: decimal.RequireFromString("-2"),
	})
	if !s.Balance().Equal(decimal.RequireFromString("-2")) {
		t.Fatalf("expected balance -2, got %s", s.Balance())
	}
}

func TestHandleOrderStatusLifecycle(t *testing.T) {
	s := newTestStore()
	ev := feed.OrderStatusEvent{
		Symbol:  "BTCUSDT",
		Side:    order.SideBuy,
		OrigQty: decimal.RequireFromString("0.01"),
		Price:   decimal.RequireFromString("100"),
		OrderID: "42",
		Status:  feed.StatusNew,
	}
	s.HandleOrderStatus(ev)
	if len(s.OpenOrders()) != 1 {
		t.Fatalf("expected one open order")
	}

	ev.Status = feed.StatusCanceled
	s.HandleOrderStatus(ev)
	if len(s.OpenOrders()) != 0 {
		t.Fatalf("cancel should remove the order")
	}
}

func TestHandleOrderStatusTradeRemovesAfterPartialFill(t *testing.T) {
	s := newTestStore()
	neu := feed.OrderStatusEvent{
		Symbol:  "BTCUSDT",
		Side:    order.SideSell,
		OrigQty: decimal.RequireFromString("0.01"),
		Price:   decimal.RequireFromString("101"),
		Status:  feed.StatusNew,
	}
	s.HandleOrderStatus(neu)

	fill := neu
	fill.Status = feed.StatusTrade
	fill.ExecQty = decimal.RequireFromString("0.004")
	s.HandleOrderStatus(fill)
	if len(s.OpenOrders()) != 0 {
		t.Fatalf("trade should remove the order recorded at confirmation")
	}
}

func TestHandleOrderStatusRemoveAbsentIsBenign(t *testing.T) {
	s := newTestStore()
	s.HandleOrderStatus(feed.OrderStatusEvent{
		Symbol:  "BTCUSDT",
		Side:    order.SideBuy,
		OrigQty: decimal.RequireFromString("0.01"),
		Price:   decimal.RequireFromString("100"),
		Status:  feed.StatusCanceled,
	})
	if len(s.OpenOrders()) != 0 {
		t.Fatalf("expected no orders")
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := newTestStore()
	s.HandleOrderStatus(feed.OrderStatusEvent{
		Symbol:  "BTCUSDT",
		Side:    order.SideBuy,
		OrigQty: decimal.RequireFromString("0.01"),
		Price:   decimal.RequireFromString("100"),
		Status:  feed.StatusNew,
	})
	orders := s.OpenOrders()
	orders[0].Price = decimal.RequireFromString("1")
	if s.OpenOrders()[0].Price.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("mutating the returned slice must not affect the store")
	}

	s.HandleBook(feed.BookEvent{
		Symbol:  "BTCUSDT",
		HasBook: true,
		Bids:    []feed.Level{level("100", "5")},
	})
	top := s.TopMarket()
	top[order.SideBuy] = level("1", "1")
	if s.TopMarket()[order.SideBuy].Price.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("mutating the returned map must not affect the store")
	}
}
