package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func TestRunDeliversMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"hello": "world"}`))
		<-ctx.Done()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(StaticURL(wsURL), 10*time.Millisecond, zap.NewNop())

	received := make(chan json.RawMessage, 1)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- client.Run(runCtx, func(msg json.RawMessage) {
			select {
			case received <- msg:
			default:
			}
		})
	}()

	select {
	case msg := <-received:
		if !strings.Contains(string(msg), "hello") {
			t.Fatalf("unexpected message: %s", msg)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for message")
	}

	stop()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestRunStopsWhenURLResolutionFailsAndContextEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := New(func(context.Context) (string, error) {
		return "", errors.New("listen key unavailable")
	}, 10*time.Millisecond, zap.NewNop())

	err := client.Run(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
