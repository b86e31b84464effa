package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	listenerMaxBackoff  = 30 * time.Second
	listenerReadTimeout = 90 * time.Second
)

// AccountUpdate is a single push notification from the chain's
// account-subscription feed: a position account changed at the given slot.
type AccountUpdate struct {
	PositionID string
	Slot       uint64
	Data       []byte
}

// AccountListener subscribes to account-change notifications over a
// WebSocket connection and applies decoded updates directly into a
// Reconciler, short-circuiting the poll-based RefreshPositions path for
// positions under active management. Reconnects with exponential backoff
// and re-subscribes to all tracked accounts on reconnection.
type AccountListener struct {
	url        string
	reconciler *Reconciler
	decoder    ProgramDecoder
	logger     *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.Mutex
	subscribed   map[string]bool
}

// NewAccountListener wires an AccountListener against a WebSocket endpoint
// and the Reconciler it feeds.
func NewAccountListener(wsURL string, reconciler *Reconciler, decoder ProgramDecoder, logger *slog.Logger) *AccountListener {
	return &AccountListener{
		url:        wsURL,
		reconciler: reconciler,
		decoder:    decoder,
		logger:     logger.With("component", "account_listener"),
		subscribed: make(map[string]bool),
	}
}

// Subscribe adds position account IDs to the tracked set and, if
// currently connected, sends the subscription immediately.
func (l *AccountListener) Subscribe(ids []string) {
	l.subscribedMu.Lock()
	for _, id := range ids {
		l.subscribed[id] = true
	}
	l.subscribedMu.Unlock()

	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()
	if conn != nil {
		_ = l.sendSubscription(conn, ids)
	}
}

// Run connects and maintains the WebSocket connection with auto-reconnect,
// blocking until ctx is cancelled.
func (l *AccountListener) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := l.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.logger.Warn("account listener disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > listenerMaxBackoff {
			backoff = listenerMaxBackoff
		}
	}
}

func (l *AccountListener) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	defer func() {
		l.connMu.Lock()
		conn.Close()
		l.conn = nil
		l.connMu.Unlock()
	}()

	l.subscribedMu.Lock()
	ids := make([]string, 0, len(l.subscribed))
	for id := range l.subscribed {
		ids = append(ids, id)
	}
	l.subscribedMu.Unlock()
	if len(ids) > 0 {
		if err := l.sendSubscription(conn, ids); err != nil {
			return fmt.Errorf("resubscribe: %w", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(listenerReadTimeout))
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		update, err := l.readUpdate(conn)
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(listenerReadTimeout))

		pos, err := l.decoder.DecodePosition(update.Data)
		if err != nil {
			l.logger.Warn("failed to decode account update", "position", update.PositionID, "error", err)
			continue
		}
		l.reconciler.Apply(update.PositionID, pos)
	}
}

func (l *AccountListener) sendSubscription(conn *websocket.Conn, ids []string) error {
	type subscribeMsg struct {
		Operation string   `json:"operation"`
		Accounts  []string `json:"accounts"`
	}
	return conn.WriteJSON(subscribeMsg{Operation: "subscribe", Accounts: ids})
}

func (l *AccountListener) readUpdate(conn *websocket.Conn) (AccountUpdate, error) {
	var msg struct {
		PositionID string `json:"position_id"`
		Slot       uint64 `json:"slot"`
		Data       []byte `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return AccountUpdate{}, err
	}
	return AccountUpdate{PositionID: msg.PositionID, Slot: msg.Slot, Data: msg.Data}, nil
}

// Close shuts down the underlying connection, if any.
func (l *AccountListener) Close() error {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
