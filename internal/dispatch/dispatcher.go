package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"bnf-quoter-bot/internal/feed"
	"bnf-quoter-bot/internal/journal"
	"bnf-quoter-bot/internal/state"
)

// Strategy is the decision side of the loop: it sees the state store
// after every event has been applied.
type Strategy interface {
	Evaluate(ctx context.Context)
	HandleOrderStatus(ctx context.Context, ev feed.OrderStatusEvent)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Dispatcher serializes every incoming event behind one lock: state
// mutation first, then the strategy's reaction. Events from the market
// stream and the user stream therefore never interleave mid-decision.
type Dispatcher struct {
	mu       sync.Mutex
	state    *state.Store
	strategy Strategy
	journal  *journal.Writer
	alerts   Notifier
	log      *zap.Logger
}

func New(st *state.Store, strategy Strategy, jw *journal.Writer, alerts Notifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		state:    st,
		strategy: strategy,
		journal:  jw,
		alerts:   alerts,
		log:      log,
	}
}

func (d *Dispatcher) OnBook(ctx context.Context, ev feed.BookEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.HandleBook(ev)
	d.enqueueTick(ev)
	d.strategy.Evaluate(ctx)
}

func (d *Dispatcher) OnPosition(ctx context.Context, ev feed.PositionEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.HandlePosition(ev)
	d.journal.EnqueueBalance(journal.BalanceSnapshot{
		Time:       time.Now().UTC(),
		Symbol:     ev.Symbol,
		Balance:    ev.Position.InexactFloat64(),
		OpenOrders: len(d.state.OpenOrders()),
	})
}

func (d *Dispatcher) OnOrderStatus(ctx context.Context, ev feed.OrderStatusEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.HandleOrderStatus(ev)
	d.strategy.HandleOrderStatus(ctx, ev)
	if ev.Status == feed.StatusTrade {
		d.notifyFill(ctx, ev)
	}
}

func (d *Dispatcher) enqueueTick(ev feed.BookEvent) {
	if d.journal == nil || !ev.HasBook {
		return
	}
	tick := journal.Tick{
		Time:   time.Now().UTC(),
		Symbol: ev.Symbol,
	}
	if len(ev.Bids) > 0 {
		tick.HasBid = true
		tick.BidPrice = ev.Bids[0].Price.InexactFloat64()
		tick.BidSize = ev.Bids[0].Size.InexactFloat64()
	}
	if len(ev.Asks) > 0 {
		tick.HasAsk = true
		tick.AskPrice = ev.Asks[0].Price.InexactFloat64()
		tick.AskSize = ev.Asks[0].Size.InexactFloat64()
	}
	d.journal.EnqueueTick(tick)
}

// notifyFill alerts off the event path so a slow notifier can never stall
// the loop.
func (d *Dispatcher) notifyFill(ctx context.Context, ev feed.OrderStatusEvent) {
	if d.alerts == nil {
		return
	}
	message := fmt.Sprintf("Fill: %s %s %s @ %s", ev.Symbol, ev.Side, ev.ExecQty.String(), ev.Price.String())
	go func() {
		if err := d.alerts.Send(ctx, message); err != nil {
			d.log.Warn("alert send failed", zap.Error(err))
		}
	}()
}
