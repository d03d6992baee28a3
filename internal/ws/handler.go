// Package ws bridges websocket connections and the dispatch loop: one reader
// loop and one writer goroutine per connection, no game logic.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/Trios-de-tryharders/site-de-quiz/internal/dispatch"
	"github.com/Trios-de-tryharders/site-de-quiz/internal/registry"
)

const writeTimeout = 3 * time.Second

func Handler(d *dispatch.Dispatcher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		client := registry.NewClient()

		// Writer goroutine: drains the outbox until the dispatch loop closes
		// it while dropping the connection.
		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()
		go func() {
			for payload := range client.Outbox() {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Any exit path counts as the player leaving.
		defer func() { d.Inbox() <- dispatch.Closed{Client: client} }()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				log.Debug("websocket read ended", zap.String("client", client.ID), zap.Error(err))
				return
			}
			d.Inbox() <- dispatch.Inbound{Client: client, Data: data}
		}
	}
}
