// ABOUTME: Host-side link client with ack tracking
// ABOUTME: Sends commands, retries on ack timeout, routes capture frames
package host

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/AudioLink-Protocol/audiolink-go/internal/link"
	"github.com/AudioLink-Protocol/audiolink-go/internal/session"
	"github.com/AudioLink-Protocol/audiolink-go/internal/transport"
)

const (
	ackTimeout = 2 * time.Second
	ackRetries = 3
)

// Client drives a device over a link. Command methods block until the
// device acks or retries are exhausted; audio-data frames are fire and
// forget in both directions.
type Client struct {
	conn   transport.Link
	parser *link.Parser
	acks   chan []byte
	closed chan struct{}

	writeMu sync.Mutex

	captureMu sync.Mutex
	onCapture func(pcm []byte)
}

// NewClient wraps an open link and starts the read loop
func NewClient(conn transport.Link) *Client {
	c := &Client{
		conn:   conn,
		parser: link.NewParser(),
		acks:   make(chan []byte, 8),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// OnCapture registers the sink for incoming microphone frames. Set it
// before StartRecord; frames arriving with no sink are dropped.
func (c *Client) OnCapture(fn func(pcm []byte)) {
	c.captureMu.Lock()
	c.onCapture = fn
	c.captureMu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.closed)
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		c.parser.Feed(buf[:n], c.handleFrame)
	}
}

func (c *Client) handleFrame(cmd link.Command, payload []byte) {
	switch cmd {
	case link.CmdAck:
		ack := make([]byte, len(payload))
		copy(ack, payload)
		select {
		case c.acks <- ack:
		default:
			log.Printf("host: dropping unexpected ack %x", ack)
		}

	case link.CmdAudioData:
		c.captureMu.Lock()
		fn := c.onCapture
		c.captureMu.Unlock()
		if fn != nil {
			fn(payload)
		}

	default:
		log.Printf("host: ignoring %s frame from device", cmd)
	}
}

// command sends cmd and waits for the ack echoing its byte, retrying on
// timeout. Stale acks from earlier retries are discarded.
func (c *Client) command(cmd link.Command, payload []byte) error {
	for attempt := 1; attempt <= ackRetries; attempt++ {
		ack, err := c.sendAwaitAck(cmd, payload)
		if err != nil {
			return err
		}
		if ack == nil {
			log.Printf("host: %s not acked, retrying (%d/%d)", cmd, attempt, ackRetries)
			continue
		}
		if len(ack) >= 1 && ack[0] == byte(cmd) {
			return nil
		}
		log.Printf("host: discarding stale ack %x while waiting for %s", ack, cmd)
	}
	return fmt.Errorf("%s: no ack after %d attempts", cmd, ackRetries)
}

// sendAwaitAck writes one frame and waits one timeout for any ack. A nil
// ack with nil error means the wait timed out.
func (c *Client) sendAwaitAck(cmd link.Command, payload []byte) ([]byte, error) {
	if err := c.writeFrame(cmd, payload); err != nil {
		return nil, err
	}
	select {
	case ack := <-c.acks:
		return ack, nil
	case <-time.After(ackTimeout):
		return nil, nil
	case <-c.closed:
		return nil, fmt.Errorf("link closed")
	}
}

func (c *Client) writeFrame(cmd link.Command, payload []byte) error {
	frame, err := link.Encode(cmd, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("link write: %w", err)
	}
	return nil
}

// Handshake probes the device and returns its current mode
func (c *Client) Handshake() (session.Mode, error) {
	for attempt := 1; attempt <= ackRetries; attempt++ {
		ack, err := c.sendAwaitAck(link.CmdHandshake, nil)
		if err != nil {
			return 0, err
		}
		if ack == nil {
			log.Printf("host: handshake not acked, retrying (%d/%d)", attempt, ackRetries)
			continue
		}
		if len(ack) < 1 {
			return 0, fmt.Errorf("handshake ack carried no mode byte")
		}
		return session.Mode(ack[0]), nil
	}
	return 0, fmt.Errorf("handshake: no ack after %d attempts", ackRetries)
}

// StartRecord puts the device into recording mode
func (c *Client) StartRecord() error {
	return c.command(link.CmdStartRecord, nil)
}

// StopRecord returns the device to idle
func (c *Client) StopRecord() error {
	return c.command(link.CmdStopRecord, nil)
}

// StartPlay puts the device into playback mode with the current format
func (c *Client) StartPlay() error {
	return c.command(link.CmdStartPlay, nil)
}

// StopPlay returns the device to idle and resets its format
func (c *Client) StopPlay() error {
	return c.command(link.CmdStopPlay, nil)
}

// SetFormat selects the payload format for the next playback session
func (c *Client) SetFormat(f session.Format) error {
	return c.command(link.CmdSetFormat, []byte{byte(f)})
}

// SendAudio ships one audio payload; the device never acks these
func (c *Client) SendAudio(payload []byte) error {
	return c.writeFrame(link.CmdAudioData, payload)
}

// Close shuts the link down
func (c *Client) Close() error {
	return c.conn.Close()
}
