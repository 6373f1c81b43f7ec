package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	maxFrameSize     = 16 * 1024 * 1024
)

// Transport is one open socket carrying JSON text frames. ReadMessage is
// only called from the session read loop. WriteMessage may be called
// concurrently and must serialize itself; Close must not wait for an
// in-flight write.
type Transport interface {
	// ReadMessage blocks for the next frame. It returns io.EOF when the
	// peer closed the connection normally.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Transport, error) {
	return f(ctx, url)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial: %v (status %d)", ErrTransport, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial: %v", ErrTransport, err)
	}
	return NewWebsocketTransport(conn), nil
}

// WebsocketTransport adapts a *websocket.Conn to Transport.
type WebsocketTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWebsocketTransport wraps an established connection.
func NewWebsocketTransport(conn *websocket.Conn) *WebsocketTransport {
	conn.SetReadLimit(maxFrameSize)
	return &WebsocketTransport{conn: conn}
}

func (t *WebsocketTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (t *WebsocketTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame, best effort, then closes the socket.
// WriteControl is safe alongside a pending WriteMessage, and closing the
// socket fails that write.
func (t *WebsocketTransport) Close() error {
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return t.conn.Close()
}
