package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Hub fans wallet-change events out to websocket subscribers. Events carry
// no balances, only a nudge; clients re-fetch the summary over HTTP so a
// dropped frame can never show a stale number as authoritative.
type Hub struct {
	Logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		Logger: logger,
		subs:   map[string]map[chan []byte]struct{}{},
	}
}

type walletEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	At     string `json:"at"`
}

// WalletChanged implements service.WalletNotifier. Slow subscribers drop
// frames instead of blocking the settlement path.
func (h *Hub) WalletChanged(userID string) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(walletEvent{
		Type:   "wallet_update",
		UserID: userID,
		At:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *Hub) subscribe(userID string) chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = map[chan []byte]struct{}{}
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(userID string, ch chan []byte) {
	h.mu.Lock()
	if set, ok := h.subs[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
	h.mu.Unlock()
}

// Serve upgrades the request and streams events for userID until the client
// disconnects or the server shuts down.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	ch := h.subscribe(userID)
	defer h.unsubscribe(userID, ch)

	ctx := r.Context()
	// Reads are discarded; the socket is one-way. The read loop still has
	// to run so pings and the close handshake are processed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
