package state

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bnf-quoter-bot/internal/feed"
	"bnf-quoter-bot/internal/order"
)

// Store is the single mutable view of market and account state: signed
// balance, confirmed open orders and top-of-book per side. All mutators
// and accessors serialize on one lock; accessors return copies so callers
// can never alias the internal containers.
type Store struct {
	mu         sync.Mutex
	symbol     string
	asset      string
	balance    decimal.Decimal
	openOrders []order.Order
	topMarket  map[order.Side]feed.Level
	log        *zap.Logger
}

func New(symbol, asset string, log *zap.Logger) *Store {
	return &Store{
		symbol:    symbol,
		asset:     asset,
		topMarket: make(map[order.Side]feed.Level),
		log:       log,
	}
}

func (s *Store) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

func (s *Store) Asset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

func (s *Store) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Store) OpenOrders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order.Order, len(s.openOrders))
	copy(out, s.openOrders)
	return out
}

// TopMarket returns the best level per side. A side missing from the map
// has no actionable price.
func (s *Store) TopMarket() map[order.Side]feed.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[order.Side]feed.Level, len(s.topMarket))
	for side, level := range s.topMarket {
		out[side] = level
	}
	return out
}

// InitializeBalance seeds the balance during bootstrap, before any event
// delivery starts.
func (s *Store) InitializeBalance(balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
}

// HandleBook replaces the top level of every side present in the event.
// A side absent from the event keeps its last value. An event with no
// book payload at all clears the whole top, which downstream treats as
// "no market".
func (s *Store) HandleBook(ev feed.BookEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Symbol != s.symbol {
		return
	}
	if !ev.HasBook {
		s.topMarket = make(map[order.Side]feed.Level)
		return
	}
	if len(ev.Bids) > 0 {
		s.topMarket[order.SideBuy] = ev.Bids[0]
	}
	if len(ev.Asks) > 0 {
		s.topMarket[order.SideSell] = ev.Asks[0]
	}
}

// HandlePosition replaces the balance with the event's signed position.
func (s *Store) HandlePosition(ev feed.PositionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = ev.Position
}

// HandleOrderStatus tracks confirmed open orders. NEW adds, TRADE and
// CANCELED remove by equality key; a missing match is benign because the
// order may already be gone or the cache may lag the stream.
func (s *Store) HandleOrderStatus(ev feed.OrderStatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := ev.Order(s.symbol)
	switch ev.Status {
	case feed.StatusNew:
		s.openOrders = append(s.openOrders, o)
	case feed.StatusTrade, feed.StatusCanceled:
		s.openOrders = order.Remove(s.openOrders, o)
	}
}
