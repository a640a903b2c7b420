// ABOUTME: Device orchestration tying link, session, capture, and render
// ABOUTME: Runs the receive/dispatch loop and the capture loop
package device

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/AudioLink-Protocol/audiolink-go/internal/link"
	"github.com/AudioLink-Protocol/audiolink-go/internal/session"
	"github.com/AudioLink-Protocol/audiolink-go/internal/transport"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio/input"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio/output"
)

// captureBlock is the payload size of one microphone frame
const captureBlock = 512

// idlePoll paces the capture loop while nothing is recording
const idlePoll = 10 * time.Millisecond

// Device runs one end of the link: frames in, acks and capture frames
// out. Dispatch owns all state transitions; the capture loop only reads
// the session mode.
type Device struct {
	conn   transport.Link
	sess   *session.Session
	ctrl   *session.Controller
	parser *link.Parser
	writer *frameWriter
	in     input.Input
}

// New wires a device around the given link and audio backends
func New(conn transport.Link, in input.Input, out output.Output) *Device {
	sess := session.NewSession()
	render := NewRenderPath(out)
	writer := &frameWriter{conn: conn}
	hw := &audioHardware{in: in, render: render}

	return &Device{
		conn:   conn,
		sess:   sess,
		ctrl:   session.NewController(sess, hw, render, writer),
		parser: link.NewParser(),
		writer: writer,
		in:     in,
	}
}

// Session exposes the mode/format state for status reporting
func (d *Device) Session() *session.Session {
	return d.sess
}

// Run services the link until ctx is cancelled or the link fails
func (d *Device) Run(ctx context.Context) error {
	// The capture loop follows the receive loop down: a link EOF must not
	// leave Run waiting on a loop that only watches the caller's context.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.captureLoop(ctx)
	}()

	err := d.receiveLoop(ctx)
	cancel()
	wg.Wait()
	return err
}

// receiveLoop reads link bytes and feeds the frame parser. Each complete
// frame dispatches on this goroutine, so the parser's payload buffer is
// safe to reuse across reads.
func (d *Device) receiveLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := d.conn.Read(buf)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n == 0 {
			continue
		}
		d.parser.Feed(buf[:n], d.ctrl.Handle)
	}
}

// captureLoop ships microphone blocks while the session is recording
func (d *Device) captureLoop(ctx context.Context) {
	block := make([]byte, captureBlock)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if d.sess.Mode() != session.ModeRecording {
			time.Sleep(idlePoll)
			continue
		}

		n, err := d.in.Read(block)
		if err != nil {
			log.Printf("device: capture read failed: %v", err)
			time.Sleep(idlePoll)
			continue
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		if err := d.writer.WriteFrame(link.CmdAudioData, block[:n]); err != nil {
			log.Printf("device: capture send failed: %v", err)
		}
	}
}

// frameWriter serializes frame writes onto the link. Acks from dispatch
// and capture frames come from different goroutines; each frame goes out
// as one atomic write.
type frameWriter struct {
	mu   sync.Mutex
	conn io.Writer
}

func (w *frameWriter) WriteFrame(cmd link.Command, payload []byte) error {
	frame, err := link.Encode(cmd, payload)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.conn.Write(frame)
	return err
}

// audioHardware maps session mode changes onto the audio backends. The
// render sink opens on the first Render call, once the stream's real
// sample rate is known.
type audioHardware struct {
	in     input.Input
	render *RenderPath
}

func (h *audioHardware) ConfigureCapture() error {
	return h.in.Open(audio.CaptureSampleRate, audio.CaptureChannels)
}

func (h *audioHardware) ConfigureRender() error {
	return nil
}

func (h *audioHardware) StopCapture() {
	if err := h.in.Close(); err != nil {
		log.Printf("device: capture close: %v", err)
	}
}

func (h *audioHardware) StopRender() {
	h.render.Stop()
}
