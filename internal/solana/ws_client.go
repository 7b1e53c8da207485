package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errWSClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is the first redial delay; it doubles up to MaxReconnectDelay.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	// SubscribeTimeout bounds the wait for a subscription acknowledgement.
	SubscribeTimeout time.Duration
	// Commitment is the level a signature must reach before notifying.
	Commitment string
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Commitment:        DefaultCommitment,
	}
}

// SignatureClient implements WSClient over a single gorilla/websocket
// connection. Watched signatures survive reconnects: the read loop redials
// and re-sends signatureSubscribe for every unresolved watch.
type SignatureClient struct {
	endpoint string
	cfg      WSClientConfig
	logger   *log.Logger

	mu      sync.Mutex // guards every field below and all connection writes
	conn    *websocket.Conn
	closed  bool
	nextID  uint64
	watches map[int64]*watch  // by subscription ID
	pending map[uint64]*watch // by request ID, awaiting acknowledgement

	done chan struct{}
	wg   sync.WaitGroup
}

// watch is one signatureSubscribe registration. subID is zero until the
// first acknowledgement and changes on every resubscription.
type watch struct {
	signature string
	out       chan SignatureNotification
	acked     chan struct{}
	subID     int64
	reqID     uint64
}

var _ WSClient = (*SignatureClient)(nil)

// NewWSClient dials endpoint and starts the read and ping loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*SignatureClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}
	if cfg.Commitment == "" {
		cfg.Commitment = DefaultCommitment
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	conn, err := dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	c := &SignatureClient{
		endpoint: endpoint,
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		watches:  make(map[int64]*watch),
		pending:  make(map[uint64]*watch),
		done:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readLoop(conn)
	if cfg.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop()
	}
	return c, nil
}

func dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// SubscribeSignature registers signature and waits for the node to
// acknowledge the subscription.
func (c *SignatureClient) SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error) {
	w := &watch{
		signature: signature,
		out:       make(chan SignatureNotification, 1),
		acked:     make(chan struct{}),
	}

	c.mu.Lock()
	err := c.sendLocked(w)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.cfg.SubscribeTimeout)
	defer timer.Stop()

	select {
	case <-w.acked:
		return w.out, nil
	case <-timer.C:
		err = fmt.Errorf("subscribe %s: no acknowledgement after %s", signature, c.cfg.SubscribeTimeout)
	case <-c.done:
		err = errWSClosed
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	delete(c.pending, w.reqID)
	c.mu.Unlock()
	return nil, err
}

// sendLocked writes a signatureSubscribe request for w under a fresh request ID.
func (c *SignatureClient) sendLocked(w *watch) error {
	if c.closed {
		return errWSClosed
	}
	if c.conn == nil {
		return fmt.Errorf("websocket not connected")
	}

	c.nextID++
	w.reqID = c.nextID
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      w.reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			w.signature,
			map[string]string{"commitment": c.cfg.Commitment},
		},
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	c.pending[w.reqID] = w
	return nil
}

// Close closes the connection and every outstanding notification channel.
func (c *SignatureClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
	}
	for id, w := range c.watches {
		close(w.out)
		delete(c.watches, id)
	}
	clear(c.pending)
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *SignatureClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readLoop is the only reader. A read error triggers redial in place.
func (c *SignatureClient) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			c.logger.Printf("[ws] read: %v, reconnecting", err)
			if conn = c.redial(); conn == nil {
				return
			}
			continue
		}
		c.dispatch(message)
	}
}

// redial replaces the connection with exponential backoff and re-sends every
// unresolved watch. It returns nil once the client is closed.
func (c *SignatureClient) redial() *websocket.Conn {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	delay := c.cfg.ReconnectDelay
	for {
		select {
		case <-c.done:
			return nil
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		conn, err := dial(ctx, c.endpoint)
		cancel()
		if err != nil {
			c.logger.Printf("[ws] redial: %v", err)
			delay = min(delay*2, c.cfg.MaxReconnectDelay)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		c.conn = conn
		// Unacknowledged requests died with the old connection.
		clear(c.pending)
		for _, w := range c.watches {
			if err := c.sendLocked(w); err != nil {
				c.logger.Printf("[ws] resubscribe %s: %v", w.signature, err)
			}
		}
		c.mu.Unlock()
		return conn
	}
}

func (c *SignatureClient) dispatch(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Printf("[ws] malformed message: %v", err)
		return
	}

	switch {
	case msg.Method == "signatureNotification" && msg.Params != nil:
		c.notify(msg.Params)
	case msg.Error != nil:
		// The waiting subscriber times out.
		c.logger.Printf("[ws] error response: id=%d code=%d msg=%s", msg.ID, msg.Error.Code, msg.Error.Message)
	case msg.ID > 0 && len(msg.Result) > 0:
		var subID int64
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			c.logger.Printf("[ws] subscription id: %v", err)
			return
		}
		c.ack(msg.ID, subID)
	}
}

// ack moves a pending watch under its new subscription ID.
func (c *SignatureClient) ack(reqID uint64, subID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.pending[reqID]
	if !ok {
		return
	}
	delete(c.pending, reqID)

	first := w.subID == 0
	if !first {
		delete(c.watches, w.subID)
	}
	w.subID = subID
	c.watches[subID] = w
	if first {
		close(w.acked)
	}
}

// notify delivers the single notification of a subscription. The node drops
// the subscription after sending it.
func (c *SignatureClient) notify(p *wsNotificationParams) {
	c.mu.Lock()
	w, ok := c.watches[p.Subscription]
	if ok {
		delete(c.watches, p.Subscription)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	n := SignatureNotification{Signature: w.signature, Err: p.Result.Value.Err}
	if p.Result.Context != nil {
		n.Slot = p.Result.Context.Slot
	}
	w.out <- n
	close(w.out)
}

func (c *SignatureClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				// Failures surface on the next read.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.mu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsMessage covers acknowledgements, error responses and notifications.
type wsMessage struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *RPCError             `json:"error,omitempty"`
	Method  string                `json:"method,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsSlotContext struct {
	Slot int64 `json:"slot"`
}

type wsSignatureResult struct {
	Context *wsSlotContext `json:"context"`
	Value   struct {
		Err interface{} `json:"err"`
	} `json:"value"`
}

type wsNotificationParams struct {
	Subscription int64             `json:"subscription"`
	Result       wsSignatureResult `json:"result"`
}
