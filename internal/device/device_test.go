// ABOUTME: End-to-end device tests over an in-memory link
// ABOUTME: Drives the device with encoded frames and fake audio backends
package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AudioLink-Protocol/audiolink-go/internal/link"
	"github.com/AudioLink-Protocol/audiolink-go/internal/transport"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
)

type fakeInput struct {
	mu     sync.Mutex
	opened bool
	closed bool
	data   []byte
}

func (f *fakeInput) Open(sampleRate, channels int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	f.closed = false
	return nil
}

func (f *fakeInput) Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.opened || len(f.data) == 0 {
		return 0, nil
	}
	n := copy(buf, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *fakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = false
	f.closed = true
	return nil
}

func (f *fakeInput) feed(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, data...)
}

type fakeOutput struct {
	mu       sync.Mutex
	rate     int
	channels int
	opens    int
	closes   int
	closeErr error
	samples  []int16
}

func (f *fakeOutput) Open(sampleRate, channels int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = sampleRate
	f.channels = channels
	f.opens++
	return nil
}

func (f *fakeOutput) Write(samples []int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, samples...)
	return nil
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func (f *fakeOutput) snapshot() ([]int16, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int16, len(f.samples))
	copy(out, f.samples)
	return out, f.rate, f.channels
}

type hostEnd struct {
	t      *testing.T
	conn   transport.Link
	parser *link.Parser
	frames chan recvFrame
}

type recvFrame struct {
	cmd     link.Command
	payload []byte
}

func newHostEnd(t *testing.T, conn transport.Link) *hostEnd {
	h := &hostEnd{t: t, conn: conn, parser: link.NewParser(), frames: make(chan recvFrame, 64)}
	go h.readLoop()
	return h
}

func (h *hostEnd) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := h.conn.Read(buf)
		if err != nil {
			close(h.frames)
			return
		}
		if n == 0 {
			continue
		}
		h.parser.Feed(buf[:n], func(cmd link.Command, payload []byte) {
			p := make([]byte, len(payload))
			copy(p, payload)
			h.frames <- recvFrame{cmd: cmd, payload: p}
		})
	}
}

func (h *hostEnd) send(cmd link.Command, payload []byte) {
	h.t.Helper()
	frame, err := link.Encode(cmd, payload)
	if err != nil {
		h.t.Fatalf("encode %s: %v", cmd, err)
	}
	if _, err := h.conn.Write(frame); err != nil {
		h.t.Fatalf("write %s: %v", cmd, err)
	}
}

// recv waits for the next frame matching cmd, discarding others
func (h *hostEnd) recv(cmd link.Command) recvFrame {
	h.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-h.frames:
			if !ok {
				h.t.Fatalf("link closed waiting for %s", cmd)
			}
			if f.cmd == cmd {
				return f
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s", cmd)
		}
	}
}

func startDevice(t *testing.T) (*hostEnd, *fakeInput, *fakeOutput, context.CancelFunc) {
	t.Helper()
	devConn, hostConn := transport.Pipe()
	in := &fakeInput{}
	out := &fakeOutput{}
	dev := New(devConn, in, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := dev.Run(ctx); err != nil {
			t.Errorf("device run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		devConn.Close()
		hostConn.Close()
		<-done
	})

	return newHostEnd(t, hostConn), in, out, cancel
}

func TestHandshakeReportsMode(t *testing.T) {
	host, _, _, _ := startDevice(t)

	host.send(link.CmdHandshake, nil)
	ack := host.recv(link.CmdAck)
	if len(ack.payload) != 1 || ack.payload[0] != 0 {
		t.Errorf("handshake ack payload %v, want [0] (idle)", ack.payload)
	}

	host.send(link.CmdStartRecord, nil)
	host.recv(link.CmdAck)

	host.send(link.CmdHandshake, nil)
	ack = host.recv(link.CmdAck)
	if len(ack.payload) != 1 || ack.payload[0] != 1 {
		t.Errorf("handshake ack payload %v, want [1] (recording)", ack.payload)
	}
}

func TestRecordingShipsCaptureFrames(t *testing.T) {
	host, in, _, _ := startDevice(t)

	host.send(link.CmdStartRecord, nil)
	ack := host.recv(link.CmdAck)
	if len(ack.payload) != 1 || ack.payload[0] != byte(link.CmdStartRecord) {
		t.Fatalf("ack payload %v, want command echo", ack.payload)
	}

	pcm := make([]byte, 1024)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	in.feed(pcm)

	var got []byte
	for len(got) < len(pcm) {
		f := host.recv(link.CmdAudioData)
		if len(f.payload) > captureBlock {
			t.Fatalf("capture frame %d bytes exceeds block size %d", len(f.payload), captureBlock)
		}
		got = append(got, f.payload...)
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("capture byte %d = %d, want %d", i, got[i], pcm[i])
		}
	}

	host.send(link.CmdStopRecord, nil)
	host.recv(link.CmdAck)

	in.mu.Lock()
	closed := in.closed
	in.mu.Unlock()
	if !closed {
		t.Error("capture device not closed after stop-record")
	}
}

func TestRawPlaybackUpmixesToStereo(t *testing.T) {
	host, _, out, _ := startDevice(t)

	host.send(link.CmdStartPlay, nil)
	host.recv(link.CmdAck)

	mono := []int16{100, -200, 300, -400}
	host.send(link.CmdAudioData, audio.SamplesToBytes(mono))

	want := []int16{100, 100, -200, -200, 300, 300, -400, -400}
	deadline := time.After(2 * time.Second)
	for {
		samples, rate, channels := out.snapshot()
		if len(samples) >= len(want) {
			for i := range want {
				if samples[i] != want[i] {
					t.Fatalf("sample %d = %d, want %d", i, samples[i], want[i])
				}
			}
			if rate != audio.CaptureSampleRate {
				t.Errorf("output rate %d, want %d", rate, audio.CaptureSampleRate)
			}
			if channels != audio.DefaultChannels {
				t.Errorf("output channels %d, want %d", channels, audio.DefaultChannels)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("rendered %d samples, want %d", len(samples), len(want))
		case <-time.After(5 * time.Millisecond):
		}
	}

	host.send(link.CmdStopPlay, nil)
	host.recv(link.CmdAck)
}

func TestRunReturnsAfterPeerCloses(t *testing.T) {
	devConn, hostConn := transport.Pipe()
	dev := New(devConn, &fakeInput{}, &fakeOutput{})

	done := make(chan error, 1)
	go func() {
		done <- dev.Run(context.Background())
	}()

	// Let both loops start before hanging up
	time.Sleep(20 * time.Millisecond)
	hostConn.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned error on peer close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the link closed")
	}
	devConn.Close()
}

func TestAudioDataIgnoredWhileIdle(t *testing.T) {
	host, _, out, _ := startDevice(t)

	host.send(link.CmdAudioData, audio.SamplesToBytes([]int16{1, 2, 3, 4}))

	// Handshake after the data frame proves dispatch handled it (frames
	// process in order) without rendering anything.
	host.send(link.CmdHandshake, nil)
	host.recv(link.CmdAck)

	samples, _, _ := out.snapshot()
	if len(samples) != 0 {
		t.Errorf("rendered %d samples while idle, want 0", len(samples))
	}
}
