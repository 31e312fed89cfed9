package sink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/prism/internal/broadcast"
	"github.com/Iron-Ham/prism/internal/logging"
)

// ErrClosed is returned when sending to a sink whose connection is gone.
var ErrClosed = errors.New("sink closed")

// ackMessage is the text message a client sends to acknowledge a frame.
const ackMessage = "ack"

// WebSocket streams frames to one client as binary messages. The client may
// acknowledge each frame by sending the text message "ack"; acknowledgments
// are counted, not matched to sequence numbers.
type WebSocket struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration
	logger       *logging.Logger

	writeMu   sync.Mutex
	acks      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocket wraps an upgraded connection and starts reading client
// messages. Done is closed once the client goes away.
func NewWebSocket(id string, conn *websocket.Conn, writeTimeout time.Duration, logger *logging.Logger) *WebSocket {
	if logger == nil {
		logger = logging.NopLogger()
	}
	w := &WebSocket{
		id:           id,
		conn:         conn,
		writeTimeout: writeTimeout,
		logger:       logger.With("sink", "websocket", "consumer", id),
		acks:         make(chan struct{}, 16),
		done:         make(chan struct{}),
	}
	go w.readLoop()
	return w
}

// ID returns the consumer id.
func (w *WebSocket) ID() string { return w.id }

// Done is closed when the connection is no longer readable.
func (w *WebSocket) Done() <-chan struct{} { return w.done }

// Send writes f as a single binary message.
func (w *WebSocket) Send(ctx context.Context, f broadcast.Frame) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	var deadline time.Time
	if w.writeTimeout > 0 {
		deadline = time.Now().Add(w.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, f.Data)
}

// AwaitAck blocks until the client acknowledges a frame.
func (w *WebSocket) AwaitAck(ctx context.Context) error {
	select {
	case <-w.acks:
		return nil
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends a close message and tears down the connection. It is safe to
// call more than once.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

func (w *WebSocket) readLoop() {
	defer close(w.done)
	for {
		mt, msg, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Warn("websocket read failed", "error", err.Error())
			} else {
				w.logger.Debug("websocket client disconnected")
			}
			return
		}
		if mt != websocket.TextMessage || strings.TrimSpace(string(msg)) != ackMessage {
			continue
		}
		select {
		case w.acks <- struct{}{}:
		default:
		}
	}
}
