// Package geminitest provides an in-memory gemini.Transport for tests.
package geminitest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/room4-2/gemini-live/gemini"
)

// ErrClosed is returned by WriteMessage after Close.
var ErrClosed = errors.New("geminitest: transport closed")

// Transport is a scripted remote. Frames pushed with Push are returned by
// ReadMessage; frames the session writes are recorded.
type Transport struct {
	// AutoAck replies with setupComplete as soon as a setup frame is written.
	AutoAck bool

	inbound chan []byte
	failCh  chan error
	writes  chan []byte

	mu         sync.Mutex
	written    [][]byte
	closeCount int

	closed    chan struct{}
	closeOnce sync.Once
}

// NewTransport returns an open transport.
func NewTransport() *Transport {
	return &Transport{
		inbound: make(chan []byte, 256),
		failCh:  make(chan error, 1),
		writes:  make(chan []byte, 1024),
		closed:  make(chan struct{}),
	}
}

// Push queues an inbound frame.
func (t *Transport) Push(frame string) {
	t.inbound <- []byte(frame)
}

// Fail makes the pending or next ReadMessage return err.
func (t *Transport) Fail(err error) {
	t.failCh <- err
}

// PeerClose simulates the remote closing the socket normally.
func (t *Transport) PeerClose() {
	t.closeOnce.Do(func() { close(t.closed) })
}

func (t *Transport) ReadMessage() ([]byte, error) {
	select {
	case data := <-t.inbound:
		return data, nil
	case err := <-t.failCh:
		return nil, err
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *Transport) WriteMessage(data []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	frame := append([]byte(nil), data...)
	t.mu.Lock()
	t.written = append(t.written, frame)
	t.mu.Unlock()

	select {
	case t.writes <- frame:
	default:
	}

	if t.AutoAck && bytes.HasPrefix(frame, []byte(`{"setup"`)) {
		t.Push(`{"setupComplete":{}}`)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closeCount++
	t.mu.Unlock()
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// Written returns a copy of every frame written so far.
func (t *Transport) Written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.written))
	copy(out, t.written)
	return out
}

// CloseCount reports how many times Close was called.
func (t *Transport) CloseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCount
}

// Next waits up to timeout for the next written frame.
func (t *Transport) Next(timeout time.Duration) ([]byte, bool) {
	select {
	case frame := <-t.writes:
		return frame, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Dialer hands out transports, one per Dial, and records dialed URLs.
type Dialer struct {
	// New builds the transport for each dial. Defaults to an AutoAck
	// transport.
	New func() *Transport
	// Err, when set, is returned by every Dial.
	Err error

	mu         sync.Mutex
	urls       []string
	transports []*Transport
}

func (d *Dialer) Dial(_ context.Context, url string) (gemini.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)
	if d.Err != nil {
		return nil, d.Err
	}
	var t *Transport
	if d.New != nil {
		t = d.New()
	} else {
		t = NewTransport()
		t.AutoAck = true
	}
	d.transports = append(d.transports, t)
	return t, nil
}

// URLs returns the dialed URLs.
func (d *Dialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// Transports returns the transports handed out so far.
func (d *Dialer) Transports() []*Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Transport(nil), d.transports...)
}
