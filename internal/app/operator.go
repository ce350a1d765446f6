package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"bnf-quoter-bot/internal/alerts"
	"bnf-quoter-bot/internal/order"
)

type operatorMeta struct {
	UpdateID int64
	UserID   int64
	Username string
	ChatID   int64
	Raw      string
}

// startOperator polls Telegram for operator commands when enabled. The
// command surface is deliberately small: pause pulls all quotes, resume
// lets the next book update requote.
func (a *App) startOperator(ctx context.Context) {
	if a.cfg == nil || a.alerts == nil || a.log == nil {
		return
	}
	if !a.cfg.Telegram.OperatorEnabled {
		return
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(a.cfg.Telegram.ChatID), 10, 64)
	if err != nil {
		a.log.Warn("telegram operator disabled: invalid chat_id", zap.Error(err))
		return
	}
	pollInterval := a.cfg.Telegram.OperatorPollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	allowedUsers := make(map[int64]struct{}, len(a.cfg.Telegram.OperatorAllowedUserIDs))
	for _, id := range a.cfg.Telegram.OperatorAllowedUserIDs {
		allowedUsers[id] = struct{}{}
	}
	go a.operatorLoop(ctx, chatID, allowedUsers, pollInterval)
}

func (a *App) operatorLoop(ctx context.Context, chatID int64, allowedUsers map[int64]struct{}, pollInterval time.Duration) {
	var offset int64
	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		updates, err := a.alerts.GetUpdates(ctx, offset, pollInterval)
		if err != nil {
			if !warned {
				warned = true
				a.log.Warn("telegram operator failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		if warned {
			a.log.Info("telegram operator recovered")
			warned = false
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			a.handleOperatorUpdate(ctx, upd, chatID, allowedUsers)
		}
	}
}

func (a *App) handleOperatorUpdate(ctx context.Context, upd alerts.Update, chatID int64, allowedUsers map[int64]struct{}) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.Chat == nil || msg.From == nil {
		return
	}
	if msg.Chat.ID != chatID {
		return
	}
	if len(allowedUsers) > 0 {
		if _, ok := allowedUsers[msg.From.ID]; !ok {
			return
		}
	}
	cmd, ok := parseOperatorCommand(msg.Text)
	if !ok {
		return
	}
	meta := operatorMeta{
		UpdateID: upd.UpdateID,
		UserID:   msg.From.ID,
		Username: msg.From.Username,
		ChatID:   msg.Chat.ID,
		Raw:      msg.Text,
	}
	resp := a.handleOperatorCommand(ctx, cmd, meta)
	if resp == "" {
		return
	}
	if err := a.alerts.Send(ctx, resp); err != nil {
		a.log.Warn("operator response failed", zap.Error(err))
	}
}

func parseOperatorCommand(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(strings.TrimPrefix(fields[0], "/")), true
}

func (a *App) handleOperatorCommand(ctx context.Context, cmd string, meta operatorMeta) string {
	switch cmd {
	case "status":
		return a.operatorStatus()
	case "pause":
		if a.engine.Paused() {
			return "quoting already paused"
		}
		a.engine.Pause(ctx)
		a.log.Info("operator paused quoting",
			zap.Int64("user_id", meta.UserID),
			zap.String("username", meta.Username),
		)
		return "quoting paused, resting orders pulled"
	case "resume":
		if !a.engine.Paused() {
			return "quoting already active"
		}
		a.engine.Resume()
		a.log.Info("operator resumed quoting",
			zap.Int64("user_id", meta.UserID),
			zap.String("username", meta.Username),
		)
		return "quoting resumed"
	case "help":
		return operatorHelpText()
	default:
		return operatorHelpText()
	}
}

func (a *App) operatorStatus() string {
	top := a.state.TopMarket()
	bestBid := "n/a"
	if level, ok := top[order.SideBuy]; ok {
		bestBid = level.Price.String()
	}
	bestAsk := "n/a"
	if level, ok := top[order.SideSell]; ok {
		bestAsk = level.Price.String()
	}
	return strings.Join([]string{
		fmt.Sprintf("symbol: %s", a.state.Symbol()),
		fmt.Sprintf("paused: %t", a.engine.Paused()),
		fmt.Sprintf("balance: %s", a.state.Balance().String()),
		fmt.Sprintf("open_orders: %d", len(a.state.OpenOrders())),
		fmt.Sprintf("best_bid: %s", bestBid),
		fmt.Sprintf("best_ask: %s", bestAsk),
	}, "\n")
}

func operatorHelpText() string {
	return strings.Join([]string{
		"commands:",
		"/status - current quoting status",
		"/pause - pull quotes and stop quoting",
		"/resume - resume quoting",
	}, "\n")
}
