package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bnf-quoter-bot/internal/ws"
)

const depthStream = "@depth10@100ms"

// MarketStream consumes the partial book depth stream for one symbol and
// forwards normalized book events to the handler.
type MarketStream struct {
	client  *ws.Client
	handler Handler
	log     *zap.Logger
}

func NewMarketStream(baseURL, symbol string, reconnectDelay time.Duration, handler Handler, log *zap.Logger) *MarketStream {
	url := fmt.Sprintf("%s/ws/%s%s", strings.TrimRight(baseURL, "/"), strings.ToLower(symbol), depthStream)
	return &MarketStream{
		client:  ws.New(ws.StaticURL(url), reconnectDelay, log),
		handler: handler,
		log:     log,
	}
}

func (s *MarketStream) Run(ctx context.Context) error {
	return s.client.Run(ctx, func(msg json.RawMessage) {
		ev, ok := parseBookEvent(msg)
		if !ok {
			s.log.Debug("unhandled market stream message", zap.ByteString("payload", msg))
			return
		}
		s.handler.OnBook(ctx, ev)
	})
}
