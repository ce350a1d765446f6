package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"bnf-quoter-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// Tick is one top-of-book observation.
type Tick struct {
	Time     time.Time
	Symbol   string
	BidPrice float64
	BidSize  float64
	AskPrice float64
	AskSize  float64
	HasBid   bool
	HasAsk   bool
}

// BalanceSnapshot records the signed position after a position update.
type BalanceSnapshot struct {
	Time       time.Time
	Symbol     string
	Balance    float64
	OpenOrders int
}

// Writer persists ticks and balance snapshots to TimescaleDB off the hot
// path. Enqueue never blocks: when a queue is full the sample is dropped
// and the first drop is logged.
type Writer struct {
	db          *sql.DB
	log         *zap.Logger
	schema      string
	ticks       chan Tick
	balances    chan BalanceSnapshot
	started     atomic.Bool
	dropTick    atomic.Uint64
	dropBalance atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:       db,
		log:      log,
		schema:   schema,
		ticks:    make(chan Tick, queueSize),
		balances: make(chan BalanceSnapshot, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueTick(tick Tick) {
	if w == nil {
		return
	}
	select {
	case w.ticks <- tick:
		return
	default:
		if w.dropTick.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale tick queue full")
		}
	}
}

func (w *Writer) EnqueueBalance(snapshot BalanceSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.balances <- snapshot:
		return
	default:
		if w.dropBalance.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale balance queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-w.ticks:
			w.writeTick(ctx, tick)
		case snap := <-w.balances:
			w.writeBalance(ctx, snap)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		bid_price DOUBLE PRECISION NOT NULL,
		bid_size DOUBLE PRECISION NOT NULL,
		ask_price DOUBLE PRECISION NOT NULL,
		ask_size DOUBLE PRECISION NOT NULL,
		has_bid BOOLEAN NOT NULL,
		has_ask BOOLEAN NOT NULL
	)`, w.table("book_ticks"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		balance DOUBLE PRECISION NOT NULL,
		open_orders INTEGER NOT NULL
	)`, w.table("balance_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("book_ticks"))); err != nil && w.log != nil {
		w.log.Warn("timescale book_ticks hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("balance_snapshots"))); err != nil && w.log != nil {
		w.log.Warn("timescale balance_snapshots hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeTick(ctx context.Context, tick Tick) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, bid_price, bid_size, ask_price, ask_size, has_bid, has_ask
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, w.table("book_ticks"))
	if _, err := w.db.ExecContext(ctx, query,
		tick.Time,
		tick.Symbol,
		tick.BidPrice,
		tick.BidSize,
		tick.AskPrice,
		tick.AskSize,
		tick.HasBid,
		tick.HasAsk,
	); err != nil && w.log != nil {
		w.log.Warn("timescale tick insert failed", zap.Error(err))
	}
}

func (w *Writer) writeBalance(ctx context.Context, snap BalanceSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, balance, open_orders
	) VALUES ($1,$2,$3,$4)`, w.table("balance_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time,
		snap.Symbol,
		snap.Balance,
		snap.OpenOrders,
	); err != nil && w.log != nil {
		w.log.Warn("timescale balance insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
