package quoter

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bnf-quoter-bot/internal/feed"
	"bnf-quoter-bot/internal/metrics"
	"bnf-quoter-bot/internal/order"
	"bnf-quoter-bot/internal/rest"
	"bnf-quoter-bot/internal/state"
)

const ordersPerSide = 2

// Executor performs one exchange operation and returns its outcome. The
// engine always calls it off the evaluation path.
type Executor interface {
	Place(ctx context.Context, o order.Order) error
	Cancel(ctx context.Context, o order.Order) error
}

type Config struct {
	OrderSize    decimal.Decimal
	PriceOffset  decimal.Decimal
	BalanceLimit decimal.Decimal
}

// Engine decides, after every book or order event, which resting orders
// to pull and which to insert. It tracks in-flight operations in two
// pending sets: entries are added when an operation is dispatched and
// removed either by the matching status event (NEW clears an insert,
// CANCELED clears a cancel) or, on explicit rejection, by the completion
// callback.
type Engine struct {
	exec    Executor
	state   *state.Store
	cfg     Config
	metrics *metrics.Metrics
	log     *zap.Logger

	mu             sync.Mutex
	pendingInserts []order.Order
	pendingCancels []order.Order
	bidEnabled     bool
	askEnabled     bool
	paused         bool

	// spawn runs dispatched operations; tests replace it to make
	// completions deterministic.
	spawn func(func())
}

func New(exec Executor, st *state.Store, cfg Config, m *metrics.Metrics, log *zap.Logger) *Engine {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{
		exec:       exec,
		state:      st,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		bidEnabled: true,
		askEnabled: true,
		spawn:      func(f func()) { go f() },
	}
}

// Evaluate recomputes the desired book mutations from the current state.
// Called after every book update.
func (e *Engine) Evaluate(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	top := e.state.TopMarket()
	open := e.state.OpenOrders()
	if e.paused {
		e.pullOrders(ctx, open)
		return
	}
	bids, asks := order.Partition(open)
	bestBid, hasBid := top[order.SideBuy]
	bestAsk, hasAsk := top[order.SideSell]

	if e.shouldPull(order.SideBuy, bids, bestBid, hasBid) {
		e.log.Info("pulling bid orders")
		e.pullOrders(ctx, bids)
	}
	if e.shouldPull(order.SideSell, asks, bestAsk, hasAsk) {
		e.log.Info("pulling ask orders")
		e.pullOrders(ctx, asks)
	}

	// Outstanding inserts pause all new quoting until confirmed or
	// rolled back; the count heal below is also skipped because the
	// pending entries would be double counted.
	if len(e.pendingInserts) > 0 {
		e.log.Debug("pending inserts outstanding, skipping insertion")
		return
	}

	if len(bids) == 0 && e.bidEnabled && e.inventoryWithinLimit(order.SideBuy) && hasBid {
		e.log.Info("inserting new bid orders")
		e.insertOrders(ctx, e.buildLadder(order.SideBuy, bestBid.Price))
	}
	if len(asks) == 0 && e.askEnabled && e.inventoryWithinLimit(order.SideSell) && hasAsk {
		e.log.Info("inserting new ask orders")
		e.insertOrders(ctx, e.buildLadder(order.SideSell, bestAsk.Price))
	}

	e.healIfCountInconsistent(ctx)
}

// HandleOrderStatus reconciles pending sets against confirmations.
// Called after every order status event, once the state store has
// already applied it.
func (e *Engine) HandleOrderStatus(ctx context.Context, ev feed.OrderStatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := ev.Order(e.state.Symbol())
	switch ev.Status {
	case feed.StatusNew:
		e.log.Info("order confirmed", zap.String("order", o.String()))
		e.pendingInserts = order.Remove(e.pendingInserts, o)
	case feed.StatusCanceled:
		e.log.Info("order cancelled", zap.String("order", o.String()))
		e.pendingCancels = order.Remove(e.pendingCancels, o)
	case feed.StatusTrade:
		// A fill invalidates the intended ladder; force a full
		// requote instead of repairing incrementally.
		e.log.Info("order traded", zap.String("order", o.String()))
		e.metrics.FillsObserved.Inc()
		e.pullOrders(ctx, e.state.OpenOrders())
	}
}

// Pause stops all quoting and pulls whatever is resting. Resume lets the
// next book update rebuild the ladder.
func (e *Engine) Pause(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return
	}
	e.paused = true
	e.log.Info("quoting paused")
	e.pullOrders(ctx, e.state.OpenOrders())
}

func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		return
	}
	e.paused = false
	e.log.Info("quoting resumed")
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// shouldPull decides whether a side's resting orders must go. An absent
// top never pulls by itself; only an inventory breach does on an empty
// book, and the count heal covers the rest.
func (e *Engine) shouldPull(side order.Side, orders []order.Order, top feed.Level, hasTop bool) bool {
	if len(orders) == 0 {
		return false
	}
	if !e.inventoryWithinLimit(side) {
		return true
	}
	if !hasTop {
		return false
	}
	return !soleResidentAtTop(orders, top)
}

// soleResidentAtTop reports whether one of our orders is the entire top
// level: same price and the full displayed size. In that configuration
// the quote is exactly where it should be and no cancel is needed; any
// other arrangement at the best price means the book moved or someone
// joined the level, so the side gets requoted.
func soleResidentAtTop(orders []order.Order, top feed.Level) bool {
	for _, o := range orders {
		if o.Price.Equal(top.Price) && o.Size.Equal(top.Size) {
			return true
		}
	}
	return false
}

// inventoryWithinLimit recomputes the side's enable flag from the
// current balance: bids stay enabled while balance <= +limit, asks while
// balance >= -limit.
func (e *Engine) inventoryWithinLimit(side order.Side) bool {
	balance := e.state.Balance()
	if side == order.SideBuy {
		e.bidEnabled = balance.LessThanOrEqual(e.cfg.BalanceLimit)
		return e.bidEnabled
	}
	e.askEnabled = balance.GreaterThanOrEqual(e.cfg.BalanceLimit.Neg())
	return e.askEnabled
}

// buildLadder constructs the side's two target orders: one at the best
// price, one a fixed offset further from the mid.
func (e *Engine) buildLadder(side order.Side, bestPrice decimal.Decimal) []order.Order {
	offsetPrice := bestPrice.Sub(e.cfg.PriceOffset)
	if side == order.SideSell {
		offsetPrice = bestPrice.Add(e.cfg.PriceOffset)
	}
	symbol := e.state.Symbol()
	return []order.Order{
		{Symbol: symbol, Side: side, Size: e.cfg.OrderSize, Price: bestPrice},
		{Symbol: symbol, Side: side, Size: e.cfg.OrderSize, Price: offsetPrice},
	}
}

// healIfCountInconsistent pulls everything when pending plus confirmed
// orders diverge from the two-per-enabled-side target. This is the
// recovery path for missed events, duplicate fills and stuck calls.
func (e *Engine) healIfCountInconsistent(ctx context.Context) {
	expected := 0
	if e.bidEnabled {
		expected += ordersPerSide
	}
	if e.askEnabled {
		expected += ordersPerSide
	}
	open := e.state.OpenOrders()
	if len(e.pendingInserts)+len(open) == expected {
		return
	}
	e.log.Warn("order count inconsistent, pulling all open orders",
		zap.Int("expected", expected),
		zap.Int("pending_inserts", len(e.pendingInserts)),
		zap.Int("open_orders", len(open)),
	)
	e.metrics.HealsTriggered.Inc()
	e.pullOrders(ctx, open)
}

func (e *Engine) insertOrders(ctx context.Context, orders []order.Order) {
	for _, o := range orders {
		o := o
		e.pendingInserts = append(e.pendingInserts, o)
		e.spawn(func() {
			e.onInsertDone(o, e.exec.Place(ctx, o))
		})
	}
}

// pullOrders cancels every order not already pending cancel, so repeated
// pulls of the same order never send duplicate cancel requests.
func (e *Engine) pullOrders(ctx context.Context, orders []order.Order) {
	for _, o := range orders {
		if order.Contains(e.pendingCancels, o) {
			continue
		}
		o := o
		e.pendingCancels = append(e.pendingCancels, o)
		e.spawn(func() {
			e.onCancelDone(o, e.exec.Cancel(ctx, o))
		})
	}
}

// onInsertDone rolls back the pending entry when the exchange explicitly
// rejected the order. Success leaves the entry for the NEW event to
// clear; unclassified faults leave it too, and the count heal recovers.
func (e *Engine) onInsertDone(o order.Order, err error) {
	if err == nil {
		return
	}
	var apiErr *rest.APIError
	if !errors.As(err, &apiErr) {
		e.log.Error("order insert failed", zap.String("order", o.String()), zap.Error(err))
		return
	}
	e.log.Warn("order insert rejected", zap.String("order", o.String()), zap.Error(err))
	e.mu.Lock()
	e.pendingInserts = order.Remove(e.pendingInserts, o)
	e.mu.Unlock()
}

func (e *Engine) onCancelDone(o order.Order, err error) {
	if err == nil {
		return
	}
	var apiErr *rest.APIError
	if !errors.As(err, &apiErr) {
		e.log.Error("order cancel failed", zap.String("order", o.String()), zap.Error(err))
		return
	}
	e.log.Warn("order cancel rejected", zap.String("order", o.String()), zap.Error(err))
	e.mu.Lock()
	e.pendingCancels = order.Remove(e.pendingCancels, o)
	e.mu.Unlock()
}
