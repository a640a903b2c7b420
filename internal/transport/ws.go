// ABOUTME: WebSocket link carrying the frame stream as binary messages
// ABOUTME: Adapts gorilla/websocket message framing to a byte pipe
package transport

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsLink presents a websocket connection as a byte stream. Incoming
// binary messages are concatenated in order; text messages are ignored.
type wsLink struct {
	conn     *websocket.Conn
	incoming chan []byte
	done     chan struct{}
	rest     []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSLink(conn *websocket.Conn) *wsLink {
	l := &wsLink{
		conn:     conn,
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	go l.readMessages()
	return l
}

func (l *wsLink) readMessages() {
	defer close(l.done)
	for {
		msgType, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		select {
		case l.incoming <- data:
		case <-l.done:
			return
		}
	}
}

// Read returns buffered bytes if any, otherwise waits up to PollInterval
// for the next binary message. A quiet interval reports (0, nil).
func (l *wsLink) Read(p []byte) (int, error) {
	if len(l.rest) == 0 {
		select {
		case data := <-l.incoming:
			l.rest = data
		case <-l.done:
			return 0, io.EOF
		case <-time.After(PollInterval):
			return 0, nil
		}
	}
	n := copy(p, l.rest)
	l.rest = l.rest[n:]
	return n, nil
}

func (l *wsLink) Write(p []byte) (int, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("write message: %w", err)
	}
	return len(p), nil
}

func (l *wsLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = l.conn.Close()
	})
	return err
}

// DialWS connects to a device serving the link over WebSocket.
func DialWS(url string) (Link, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newWSLink(conn), nil
}

// ListenWS serves the link endpoint on addr and blocks until one peer
// connects, returning that connection as a Link. Later connection
// attempts are refused while the first is up.
func ListenWS(addr string) (Link, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	accepted := make(chan *websocket.Conn, 1)
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Printf("WebSocket upgrade failed: %v", err)
				return
			}
			select {
			case accepted <- conn:
			default:
				conn.Close()
			}
		}),
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("WebSocket server error: %v", err)
		}
	}()

	conn := <-accepted
	log.Printf("Link peer connected from %s", conn.RemoteAddr())

	link := newWSLink(conn)
	// Tear the listener down with the link; a reconnecting peer starts a
	// fresh listen cycle.
	return &closerLink{Link: link, extra: srv.Close}, nil
}

type closerLink struct {
	Link
	extra func() error
}

func (c *closerLink) Close() error {
	err := c.Link.Close()
	if c.extra != nil {
		c.extra()
	}
	return err
}
