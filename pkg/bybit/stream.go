package bybit

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// OrderStream listens to the private v5 order topic and hands each batch of
// raw order updates to a callback. It reconnects with backoff until the
// context is done.
type OrderStream struct {
	cfg      Config
	handler  func([]OrderUpdate)
	stopChan chan struct{}
}

// NewOrderStream creates a private order-stream listener.
func NewOrderStream(cfg Config, handler func([]OrderUpdate)) *OrderStream {
	return &OrderStream{
		cfg:      cfg,
		handler:  handler,
		stopChan: make(chan struct{}),
	}
}

// Start runs the stream until ctx is done or Stop is called. Connection
// failures are logged and retried; they never propagate to the caller.
func (s *OrderStream) Start(ctx context.Context) {
	go func() {
		backoff := time.Second
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			default:
			}

			if err := s.run(ctx); err != nil {
				log.Printf("order stream: %v, reconnecting in %s", err, backoff)
			}

			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
}

// Stop terminates the reconnect loop.
func (s *OrderStream) Stop() {
	close(s.stopChan)
}

func (s *OrderStream) run(ctx context.Context) error {
	u := url.URL{Scheme: "wss", Host: s.host(), Path: "/v5/private"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := s.authenticate(conn); err != nil {
		return err
	}
	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": []string{"order"}}); err != nil {
		return err
	}
	log.Printf("order stream connected (demo=%v)", s.cfg.Demo)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteJSON(map[string]any{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(msg)
	}
}

func (s *OrderStream) host() string {
	if s.cfg.Demo {
		return "stream-demo.bybit.com"
	}
	return "stream.bybit.com"
}

// authenticate signs GET/realtime with an expiry window, per the v5 private
// stream handshake.
func (s *OrderStream) authenticate(conn *websocket.Conn) error {
	expires := strconv.FormatInt(time.Now().Add(10*time.Second).UnixMilli(), 10)
	return conn.WriteJSON(map[string]any{
		"op":   "auth",
		"args": []any{s.cfg.APIKey, expires, sign("GET/realtime"+expires, s.cfg.APISecret)},
	})
}

func (s *OrderStream) handleMessage(msg []byte) {
	var frame struct {
		Topic string          `json:"topic"`
		Op    string          `json:"op"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		log.Printf("order stream: parse frame: %v", err)
		return
	}
	if frame.Topic != "order" {
		return // auth/subscribe acks and pongs
	}

	var updates []OrderUpdate
	if err := json.Unmarshal(frame.Data, &updates); err != nil {
		log.Printf("order stream: parse order data: %v", err)
		return
	}
	if len(updates) > 0 && s.handler != nil {
		s.handler(updates)
	}
}
