package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"course-copilot/internal/chat"
)

var upgrader = websocket.Upgrader{}

type testDialer struct {
	base string
}

func (d *testDialer) OpenStream(ctx context.Context, uri string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.base+uri, nil)
	return conn, err
}

// wsServer serves one websocket per request, driving it with script.
func wsServer(t *testing.T, script func(conn *websocket.Conn)) *testDialer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return &testDialer{base: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

type capture struct {
	mu      sync.Mutex
	display string
	scrolls int
	done    chan string
}

func newCapture() *capture {
	return &capture{done: make(chan string, 2)}
}

func (c *capture) handler() Handler {
	return Handler{
		OnUpdate: func(_, display string) {
			c.mu.Lock()
			c.display = display
			c.mu.Unlock()
		},
		OnScroll: func(string) {
			c.mu.Lock()
			c.scrolls++
			c.mu.Unlock()
		},
		OnDone: func(id string) { c.done <- id },
	}
}

func (c *capture) current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

func (c *capture) waitDone(t *testing.T) string {
	t.Helper()
	select {
	case id := <-c.done:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not terminate")
		return ""
	}
}

func streamingMsg(id, uri string) chat.Message {
	return chat.Message{MessageID: id, Sender: chat.SenderAssistant, State: chat.StateReady, Streaming: true, StreamURI: &uri}
}

func TestSentinelTerminatesStream(t *testing.T) {
	d := wsServer(t, func(conn *websocket.Conn) {
		for _, frag := range []string{"Hel", "lo", Sentinel, "never-appended"} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frag)); err != nil {
				return
			}
		}
		// Keep the connection open; the client must be the one to
		// stop at the sentinel.
		time.Sleep(200 * time.Millisecond)
	})
	r := New(d)
	sink := newCapture()

	if !r.Attach(context.Background(), streamingMsg("m1", "/ws/s1"), sink.handler()) {
		t.Fatalf("attach refused")
	}
	if id := sink.waitDone(t); id != "m1" {
		t.Fatalf("done for wrong message: %s", id)
	}
	if got := sink.current(); got != "Hello" {
		t.Fatalf("display buffer = %q, want %q", got, "Hello")
	}
	if r.Attached("m1") {
		t.Fatalf("attach guard not cleared after termination")
	}
}

func TestAttachIdempotentWhileLive(t *testing.T) {
	release := make(chan struct{})
	d := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("partial "))
		<-release
		_ = conn.WriteMessage(websocket.TextMessage, []byte(Sentinel))
	})
	r := New(d)
	sink := newCapture()
	msg := streamingMsg("m1", "/ws/s1")

	if !r.Attach(context.Background(), msg, sink.handler()) {
		t.Fatalf("first attach refused")
	}
	// Wait for the first fragment so the stream is known live.
	deadline := time.Now().Add(2 * time.Second)
	for sink.current() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if r.Attach(context.Background(), msg, sink.handler()) {
		t.Fatalf("re-attach not suppressed while live")
	}

	close(release)
	sink.waitDone(t)

	// Guard cleared: a future stream on the same id may attach again.
	if !r.Attach(context.Background(), msg, sink.handler()) {
		t.Fatalf("attach after termination refused")
	}
	sink.waitDone(t)
}

func TestAttachRefusedForNonStreaming(t *testing.T) {
	r := New(&testDialer{base: "ws://unused"})
	content := "done"
	static := chat.Message{MessageID: "m1", State: chat.StateReady, Content: &content}
	if r.Attach(context.Background(), static, Handler{}) {
		t.Fatalf("attached to a non-streaming message")
	}
}

func TestAbruptCloseIsNormalTermination(t *testing.T) {
	d := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("partial answer"))
		// Drop the connection without a sentinel.
	})
	r := New(d)
	sink := newCapture()

	if !r.Attach(context.Background(), streamingMsg("m1", "/ws/s1"), sink.handler()) {
		t.Fatalf("attach refused")
	}
	sink.waitDone(t)
	if got := sink.current(); got != "partial answer" {
		t.Fatalf("partial content lost: %q", got)
	}
	if r.Attached("m1") {
		t.Fatalf("guard not cleared after abrupt close")
	}
}

func TestDetachClosesChannel(t *testing.T) {
	d := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("x"))
		// Block until the client closes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	r := New(d)
	sink := newCapture()

	if !r.Attach(context.Background(), streamingMsg("m1", "/ws/s1"), sink.handler()) {
		t.Fatalf("attach refused")
	}
	deadline := time.Now().Add(2 * time.Second)
	for sink.current() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	r.Detach("m1")
	sink.waitDone(t)
	if r.Attached("m1") {
		t.Fatalf("still attached after detach")
	}
}

func TestScrollOnWordBoundaries(t *testing.T) {
	frags := []string{"one two three ", "four five six ", "seven "}
	d := wsServer(t, func(conn *websocket.Conn) {
		for _, f := range frags {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(Sentinel))
	})
	r := New(d)
	sink := newCapture()

	if !r.Attach(context.Background(), streamingMsg("m1", "/ws/s1"), sink.handler()) {
		t.Fatalf("attach refused")
	}
	sink.waitDone(t)

	// Words go 3 -> 6 -> 7: only the second fragment crosses a
	// multiple of five.
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.scrolls != 1 {
		t.Fatalf("want 1 scroll, got %d", sink.scrolls)
	}
}
