package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AltairaLabs/specter/logger"
)

// WebSocket connection constants
const (
	wsDialTimeout      = 10 * time.Second
	wsWriteWait        = 10 * time.Second
	wsMaxMessageSize   = 64 * 1024 * 1024 // 64MB for audio
	wsMaxRetries       = 3
	wsRetryBackoffBase = time.Second
	wsRetryBackoffMax  = 10 * time.Second
	wsCloseGracePeriod = 5 * time.Second
)

// Transport manages the duplex WebSocket connection to the realtime
// transcription backend.
type Transport struct {
	conn      *websocket.Conn
	url       string
	apiKey    string
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
}

// NewTransport creates a transport for the given endpoint. An empty
// endpoint selects DefaultEndpoint.
func NewTransport(endpoint, apiKey string) *Transport {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Transport{
		url:       endpoint,
		apiKey:    apiKey,
		closeChan: make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transport is closed")
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+t.apiKey)
	headers.Set("OpenAI-Beta", RealtimeBetaHeader)

	dialer := websocket.Dialer{
		HandshakeTimeout: wsDialTimeout,
	}

	logger.Debug("transcription: connecting", "url", t.url)

	conn, resp, err := dialer.DialContext(ctx, t.url, headers)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			logger.Error("transcription: dial failed",
				"error", err,
				"status", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	conn.SetReadLimit(wsMaxMessageSize)
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set read deadline: %w", err)
	}

	t.conn = conn
	logger.Info("transcription: connected")

	return nil
}

// ConnectWithRetry attempts to connect with exponential backoff.
func (t *Transport) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	backoff := wsRetryBackoffBase

	for attempt := 1; attempt <= wsMaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := t.Connect(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		logger.Warn("transcription: connection attempt failed",
			"attempt", attempt,
			"maxAttempts", wsMaxRetries,
			"error", err)

		if attempt < wsMaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > wsRetryBackoffMax {
				backoff = wsRetryBackoffMax
			}
		}
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", wsMaxRetries, lastErr)
}

// Send marshals and writes a message to the WebSocket.
func (t *Transport) Send(msg interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.conn == nil {
		return fmt.Errorf("transport is not connected")
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// ReceiveLoop reads messages into msgCh until the connection closes,
// ctx is canceled or an error occurs. The loop is the connection's only
// reader; cancellation unblocks the pending read by expiring the read
// deadline, so no goroutine outlives the loop.
func (t *Transport) ReceiveLoop(ctx context.Context, msgCh chan<- []byte) error {
	t.mu.Lock()
	if t.closed || t.conn == nil {
		t.mu.Unlock()
		return fmt.Errorf("transport is not connected")
	}
	conn := t.conn
	t.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-t.closeChan:
		case <-stop:
			return
		}
		_ = conn.SetReadDeadline(time.Now())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-t.closeChan:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		select {
		case msgCh <- data:
		case <-ctx.Done():
			return ctx.Err()
		case <-t.closeChan:
			return nil
		}
	}
}

// Close closes the WebSocket connection gracefully. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true
	close(t.closeChan)

	if t.conn == nil {
		return nil
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(wsCloseGracePeriod))
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteMessage(websocket.CloseMessage, closeMsg)

	return t.conn.Close()
}

// IsClosed reports whether the transport has been closed.
func (t *Transport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
