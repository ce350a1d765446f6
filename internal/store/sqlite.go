package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// OrderLog journals every order action the bot sends to the exchange.
// It is an audit artifact only: the quoting loop never reads it back.
type OrderLog struct {
	db *sql.DB
}

type Entry struct {
	Time          time.Time
	Action        string
	Symbol        string
	Side          string
	Size          string
	Price         string
	OrderID       string
	ClientOrderID string
}

func Open(path string) (*OrderLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &OrderLog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS order_log (
		ts INTEGER NOT NULL,
		action TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		size TEXT NOT NULL,
		price TEXT NOT NULL,
		order_id TEXT NOT NULL,
		client_order_id TEXT NOT NULL
	)`)
	return err
}

func (l *OrderLog) Append(ctx context.Context, entry Entry) error {
	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO order_log (ts, action, symbol, side, size, price, order_id, client_order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UnixMilli(), entry.Action, entry.Symbol, entry.Side, entry.Size, entry.Price, entry.OrderID, entry.ClientOrderID)
	return err
}

// OrderID resolves a previously journaled client order id to its exchange
// order id, useful when reconciling by hand after the fact.
func (l *OrderLog) OrderID(ctx context.Context, clientOrderID string) (string, bool, error) {
	var orderID string
	err := l.db.QueryRowContext(ctx,
		`SELECT order_id FROM order_log WHERE client_order_id = ? AND order_id != '' ORDER BY ts DESC LIMIT 1`,
		clientOrderID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return orderID, true, nil
}

func (l *OrderLog) Close() error {
	return l.db.Close()
}
