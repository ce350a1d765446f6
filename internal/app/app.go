package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bnf-quoter-bot/internal/alerts"
	"bnf-quoter-bot/internal/config"
	"bnf-quoter-bot/internal/dispatch"
	"bnf-quoter-bot/internal/exec"
	"bnf-quoter-bot/internal/feed"
	"bnf-quoter-bot/internal/journal"
	"bnf-quoter-bot/internal/metrics"
	"bnf-quoter-bot/internal/quoter"
	"bnf-quoter-bot/internal/rest"
	"bnf-quoter-bot/internal/state"
	"bnf-quoter-bot/internal/store"
)

// App wires the quoting loop together: REST client, state store, engine,
// dispatcher and the two websocket streams.
type App struct {
	cfg          *config.Config
	log          *zap.Logger
	rest         *rest.Client
	state        *state.Store
	orderLog     *store.OrderLog
	journal      *journal.Writer
	prom         *metrics.Prometheus
	engine       *quoter.Engine
	dispatcher   *dispatch.Dispatcher
	alerts       *alerts.Telegram
	marketStream *feed.MarketStream
	userStream   *feed.UserStream
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	apiKey := strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("BINANCE_API_KEY is required")
	}
	apiSecret := strings.TrimSpace(os.Getenv("BINANCE_API_SECRET"))
	if apiSecret == "" {
		return nil, errors.New("BINANCE_API_SECRET is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Journal.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	orderLog, err := store.Open(cfg.Journal.SQLitePath)
	if err != nil {
		return nil, err
	}
	writer, err := journal.New(cfg.Timescale, log)
	if err != nil {
		_ = orderLog.Close()
		return nil, err
	}

	restClient := rest.New(cfg.REST.BaseURL, apiKey, apiSecret, cfg.REST.Timeout, log)
	st := state.New(cfg.Quoter.Symbol, cfg.Quoter.Asset, log)

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	executor := exec.New(restClient, orderLog, m, log)
	engine := quoter.New(executor, st, quoter.Config{
		OrderSize:    cfg.Quoter.OrderSize,
		PriceOffset:  cfg.Quoter.PriceOffset,
		BalanceLimit: cfg.Quoter.BalanceLimit,
	}, m, log)
	alertsClient := alerts.NewTelegram(cfg.Telegram, log)
	dispatcher := dispatch.New(st, engine, writer, alertsClient, log)

	return &App{
		cfg:          cfg,
		log:          log,
		rest:         restClient,
		state:        st,
		orderLog:     orderLog,
		journal:      writer,
		prom:         prom,
		engine:       engine,
		dispatcher:   dispatcher,
		alerts:       alertsClient,
		marketStream: feed.NewMarketStream(cfg.WS.MarketURL, cfg.Quoter.Symbol, cfg.WS.ReconnectDelay, dispatcher, log),
		userStream:   feed.NewUserStream(cfg.WS.UserURL, cfg.Quoter.Symbol, cfg.WS.ReconnectDelay, restClient, dispatcher, log),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.orderLog.Close()
	defer a.journal.Close()

	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	a.journal.Start(ctx)
	a.startOperator(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.userStream.Run(ctx) })
	g.Go(func() error { return a.marketStream.Run(ctx) })
	if a.prom != nil {
		g.Go(func() error { return a.serveMetrics(ctx) })
	}
	return g.Wait()
}

// bootstrap seeds the balance from the account endpoint and clears any
// orders left over from a previous run, so the loop starts from a known
// book.
func (a *App) bootstrap(ctx context.Context) error {
	symbol := a.cfg.Quoter.Symbol
	info, err := a.rest.AccountInfo(ctx)
	if err != nil {
		return err
	}
	balance := info.PositionAmt(symbol)
	a.state.InitializeBalance(balance)
	a.log.Info("reconciled account state",
		zap.String("symbol", symbol),
		zap.String("balance", balance.String()),
	)
	if err := a.rest.CancelAllOpenOrders(ctx, symbol); err != nil {
		return err
	}
	a.log.Info("cancelled resting orders from previous session", zap.String("symbol", symbol))
	return nil
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info("metrics server listening", zap.String("addr", a.cfg.Metrics.Listen))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
