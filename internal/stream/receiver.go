// Package stream attaches to the push channel of a streaming message and
// accumulates its fragments into a display buffer until the termination
// sentinel, a channel failure, or an explicit detach.
package stream

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"course-copilot/internal/chat"
	"course-copilot/internal/logging"
	"course-copilot/internal/render"
)

// Sentinel is the reserved end-of-stream marker. It is never part of the
// displayed content, and nothing after it is appended.
const Sentinel = "<<<END_OF_STREAM>>>"

type Dialer interface {
	OpenStream(ctx context.Context, uri string) (*websocket.Conn, error)
}

// Handler callbacks fire on the receiver's goroutine for the message.
// OnDone fires exactly once per attach, on every termination path.
type Handler struct {
	OnUpdate func(messageID, display string)
	OnScroll func(messageID string)
	OnDone   func(messageID string)
}

type session struct {
	buf *render.Buffer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// adopt hands the dialed connection to the session unless it was already
// torn down while the dial was in flight.
func (s *session) adopt(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

type Receiver struct {
	dialer Dialer

	mu     sync.Mutex
	active map[string]*session
}

func New(dialer Dialer) *Receiver {
	return &Receiver{dialer: dialer, active: make(map[string]*session)}
}

// Attach starts receiving for a streaming message. It is idempotent per
// message id: while a stream is live, further calls are suppressed and
// return false. After termination the guard clears, so a future stream
// on the same id may attach again.
func (r *Receiver) Attach(ctx context.Context, msg chat.Message, h Handler) bool {
	if !msg.Streamable() {
		return false
	}

	r.mu.Lock()
	if _, ok := r.active[msg.MessageID]; ok {
		r.mu.Unlock()
		return false
	}
	sess := &session{buf: render.NewBuffer()}
	r.active[msg.MessageID] = sess
	r.mu.Unlock()

	go r.run(ctx, msg, sess, h)
	return true
}

// Attached reports whether a live stream owns the message id.
func (r *Receiver) Attached(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[messageID]
	return ok
}

// Detach tears down the stream for one message, releasing the channel.
func (r *Receiver) Detach(messageID string) {
	r.mu.Lock()
	sess, ok := r.active[messageID]
	r.mu.Unlock()
	if ok {
		sess.close()
	}
}

// CloseAll releases every live channel, e.g. when the owning view goes
// away. Each receiver goroutine still delivers its OnDone.
func (r *Receiver) CloseAll() {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.active))
	for _, s := range r.active {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

func (r *Receiver) run(ctx context.Context, msg chat.Message, sess *session, h Handler) {
	defer r.finish(msg.MessageID, sess, h)

	conn, err := r.dialer.OpenStream(ctx, *msg.StreamURI)
	if err != nil {
		// Same termination path as a mid-stream failure.
		logging.Warnf("stream: dial failed for message %s: %v", msg.MessageID, err)
		return
	}
	if !sess.adopt(conn) {
		_ = conn.Close()
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			sess.close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Error and graceful close are handled identically: the
			// partial content already delivered stays meaningful.
			logging.Debugf("stream: channel closed for message %s: %v", msg.MessageID, err)
			return
		}
		frag := string(data)
		if frag == Sentinel {
			return
		}
		scrolled := sess.buf.Append(frag)
		if h.OnUpdate != nil {
			h.OnUpdate(msg.MessageID, sess.buf.Display())
		}
		if scrolled && h.OnScroll != nil {
			h.OnScroll(msg.MessageID)
		}
	}
}

// finish is the single cleanup routine shared by every exit path: close
// the channel, clear the attach guard, then report termination.
func (r *Receiver) finish(messageID string, sess *session, h Handler) {
	sess.close()
	r.mu.Lock()
	delete(r.active, messageID)
	r.mu.Unlock()
	if h.OnDone != nil {
		h.OnDone(messageID)
	}
}
