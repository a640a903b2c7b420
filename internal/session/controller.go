// ABOUTME: Command dispatch driving the Idle/Recording/Playing state machine
// ABOUTME: Owns format selection and the decode pipeline lifecycle
package session

import (
	"log"

	"github.com/AudioLink-Protocol/audiolink-go/internal/link"
	"github.com/AudioLink-Protocol/audiolink-go/internal/pipeline"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
)

// Hardware abstracts the codec/amplifier calls around mode changes
type Hardware interface {
	ConfigureCapture() error
	ConfigureRender() error
	StopCapture()
	StopRender()
}

// Renderer delivers PCM to the output sink, adapting channels as needed
type Renderer interface {
	Render(samples []int16, format audio.Format) error
}

// FrameWriter sends one frame over the link as a single write. It must be
// safe for concurrent use: acks from dispatch interleave with capture
// frames.
type FrameWriter interface {
	WriteFrame(cmd link.Command, payload []byte) error
}

// drainBufSamples fits one MP3 frame of stereo PCM per drain call
const drainBufSamples = 2304

// Controller interprets parsed frames. All methods run on the dispatch
// goroutine; the decode pipeline is touched by no one else.
type Controller struct {
	session  *Session
	hw       Hardware
	renderer Renderer
	out      FrameWriter

	pipe     *pipeline.Pipeline
	drainBuf []int16
}

// NewController wires the dispatch path
func NewController(s *Session, hw Hardware, r Renderer, out FrameWriter) *Controller {
	return &Controller{
		session:  s,
		hw:       hw,
		renderer: r,
		out:      out,
		drainBuf: make([]int16, drainBufSamples),
	}
}

// Handle processes one checksum-valid frame. Invalid-state commands are
// acked no-ops; nothing here reports an error back to the host.
func (c *Controller) Handle(cmd link.Command, payload []byte) {
	switch cmd {
	case link.CmdStartRecord:
		c.startRecord()
		c.ack(cmd)

	case link.CmdStopRecord:
		c.stopRecord()
		c.ack(cmd)

	case link.CmdStartPlay:
		c.startPlay()
		c.ack(cmd)

	case link.CmdStopPlay:
		c.stopPlay()
		c.ack(cmd)

	case link.CmdSetFormat:
		c.setFormat(payload)
		c.ack(cmd)

	case link.CmdHandshake:
		c.reply(link.CmdAck, []byte{byte(c.session.Mode())})

	case link.CmdAudioData:
		c.audioData(payload)

	default:
		log.Printf("session: ignoring %s frame (%d bytes)", cmd, len(payload))
	}
}

func (c *Controller) startRecord() {
	if c.session.Mode() != ModeIdle {
		return
	}
	if err := c.hw.ConfigureCapture(); err != nil {
		log.Printf("session: capture hardware setup failed: %v", err)
		return
	}
	c.session.setMode(ModeRecording)
	log.Printf("session: recording started")
}

func (c *Controller) stopRecord() {
	if c.session.Mode() != ModeRecording {
		return
	}
	c.session.setMode(ModeIdle)
	c.hw.StopCapture()
	log.Printf("session: recording stopped")
}

func (c *Controller) startPlay() {
	if c.session.Mode() != ModeIdle {
		return
	}

	format := c.session.Format()
	if format != FormatRaw {
		pipe, err := pipeline.New(byte(format))
		if err != nil {
			// Compressed playback cannot start, but capture and raw
			// playback stay available
			log.Printf("session: cannot start %s playback: %v", format, err)
			return
		}
		c.pipe = pipe
	}

	if err := c.hw.ConfigureRender(); err != nil {
		log.Printf("session: render hardware setup failed: %v", err)
		c.closePipeline()
		return
	}

	c.session.setMode(ModePlaying)
	log.Printf("session: playback started (%s)", format)
}

func (c *Controller) stopPlay() {
	if c.session.Mode() != ModePlaying {
		return
	}
	c.session.setMode(ModeIdle)
	c.hw.StopRender()
	c.closePipeline()
	c.session.setFormat(FormatRaw)
	log.Printf("session: playback stopped")
}

func (c *Controller) setFormat(payload []byte) {
	if len(payload) < 1 {
		return
	}
	f := Format(payload[0])
	c.session.setFormat(f)
	log.Printf("session: format set to %s", f)
}

func (c *Controller) audioData(payload []byte) {
	if c.session.Mode() != ModePlaying || len(payload) == 0 {
		return
	}

	if c.pipe == nil {
		// Raw mono PCM straight to the render path
		samples := audio.BytesToSamples(payload)
		if err := c.renderer.Render(samples, audio.CaptureFormat()); err != nil {
			log.Printf("session: render failed: %v", err)
		}
		return
	}

	c.pipe.Feed(payload)
	for {
		n, rate, channels := c.pipe.Drain(c.drainBuf)
		if n == 0 {
			return
		}
		format := audio.Format{SampleRate: rate, Channels: channels}
		if err := c.renderer.Render(c.drainBuf[:n], format); err != nil {
			log.Printf("session: render failed: %v", err)
		}
	}
}

func (c *Controller) closePipeline() {
	if c.pipe == nil {
		return
	}
	if err := c.pipe.Close(); err != nil {
		log.Printf("session: pipeline close: %v", err)
	}
	c.pipe = nil
}

func (c *Controller) ack(cmd link.Command) {
	c.reply(link.CmdAck, []byte{byte(cmd)})
}

func (c *Controller) reply(cmd link.Command, payload []byte) {
	if err := c.out.WriteFrame(cmd, payload); err != nil {
		log.Printf("session: reply write failed: %v", err)
	}
}
