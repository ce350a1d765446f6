package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bnf-quoter-bot/internal/ws"
)

const listenKeyKeepAlive = 25 * time.Minute

// ListenKeyClient provides the user-data stream lifecycle calls.
type ListenKeyClient interface {
	StartUserStream(ctx context.Context) (string, error)
	KeepAliveUserStream(ctx context.Context) error
}

// UserStream consumes the account user-data stream (order status and
// position updates) and forwards normalized events to the handler.
// Position events are filtered to the tracked symbol.
type UserStream struct {
	client  *ws.Client
	rest    ListenKeyClient
	symbol  string
	handler Handler
	log     *zap.Logger
}

func NewUserStream(baseURL, symbol string, reconnectDelay time.Duration, rest ListenKeyClient, handler Handler, log *zap.Logger) *UserStream {
	base := strings.TrimRight(baseURL, "/")
	urlFn := func(ctx context.Context) (string, error) {
		key, err := rest.StartUserStream(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s/ws/%s", base, key), nil
	}
	return &UserStream{
		client:  ws.New(urlFn, reconnectDelay, log),
		rest:    rest,
		symbol:  symbol,
		handler: handler,
		log:     log,
	}
}

func (s *UserStream) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.keepAliveLoop(ctx) })
	g.Go(func() error {
		return s.client.Run(ctx, func(msg json.RawMessage) { s.handleMessage(ctx, msg) })
	})
	return g.Wait()
}

func (s *UserStream) keepAliveLoop(ctx context.Context) error {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.rest.KeepAliveUserStream(ctx); err != nil {
				s.log.Warn("listen key keepalive failed", zap.Error(err))
			}
		}
	}
}

func (s *UserStream) handleMessage(ctx context.Context, msg json.RawMessage) {
	var payload userPayload
	if err := json.Unmarshal(msg, &payload); err != nil {
		s.log.Debug("user stream decode failed", zap.Error(err))
		return
	}
	switch payload.Event {
	case "ORDER_TRADE_UPDATE":
		if ev, ok := parseOrderStatusEvent(payload); ok {
			s.handler.OnOrderStatus(ctx, ev)
		}
	case "ACCOUNT_UPDATE":
		for _, ev := range parsePositionEvents(payload) {
			if ev.Symbol != s.symbol {
				continue
			}
			s.handler.OnPosition(ctx, ev)
		}
	}
}
