// ABOUTME: Session controller tests
// ABOUTME: Verifies mode transitions, acks, and audio-data routing
package session

import (
	"testing"

	"github.com/AudioLink-Protocol/audiolink-go/internal/link"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
)

type fakeHardware struct {
	captureOn  int
	captureOff int
	renderOn   int
	renderOff  int
}

func (h *fakeHardware) ConfigureCapture() error { h.captureOn++; return nil }
func (h *fakeHardware) ConfigureRender() error  { h.renderOn++; return nil }
func (h *fakeHardware) StopCapture()            { h.captureOff++ }
func (h *fakeHardware) StopRender()             { h.renderOff++ }

type fakeRenderer struct {
	blocks  [][]int16
	formats []audio.Format
}

func (r *fakeRenderer) Render(samples []int16, format audio.Format) error {
	cp := make([]int16, len(samples))
	copy(cp, samples)
	r.blocks = append(r.blocks, cp)
	r.formats = append(r.formats, format)
	return nil
}

type fakeWriter struct {
	frames []struct {
		cmd     link.Command
		payload []byte
	}
}

func (w *fakeWriter) WriteFrame(cmd link.Command, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	w.frames = append(w.frames, struct {
		cmd     link.Command
		payload []byte
	}{cmd, cp})
	return nil
}

func newTestController() (*Controller, *Session, *fakeHardware, *fakeRenderer, *fakeWriter) {
	s := NewSession()
	hw := &fakeHardware{}
	r := &fakeRenderer{}
	w := &fakeWriter{}
	return NewController(s, hw, r, w), s, hw, r, w
}

func TestStartRecordFromIdle(t *testing.T) {
	c, s, hw, _, w := newTestController()

	c.Handle(link.CmdStartRecord, nil)
	if s.Mode() != ModeRecording {
		t.Errorf("expected recording, got %s", s.Mode())
	}
	if hw.captureOn != 1 {
		t.Errorf("expected capture hardware configured once, got %d", hw.captureOn)
	}
	if len(w.frames) != 1 || w.frames[0].cmd != link.CmdAck {
		t.Fatalf("expected one ack, got %+v", w.frames)
	}
	if w.frames[0].payload[0] != byte(link.CmdStartRecord) {
		t.Errorf("expected ack to echo the command byte")
	}
}

func TestStartRecordWhileBusyIsAckedNoOp(t *testing.T) {
	c, s, hw, _, w := newTestController()

	c.Handle(link.CmdStartRecord, nil)
	c.Handle(link.CmdStartRecord, nil)
	if s.Mode() != ModeRecording {
		t.Errorf("expected recording, got %s", s.Mode())
	}
	if hw.captureOn != 1 {
		t.Errorf("expected no second hardware configure, got %d", hw.captureOn)
	}
	if len(w.frames) != 2 {
		t.Errorf("expected an ack for the no-op too, got %d frames", len(w.frames))
	}

	// From Playing it is also a no-op
	c.Handle(link.CmdStopRecord, nil)
	c.Handle(link.CmdStartPlay, nil)
	c.Handle(link.CmdStartRecord, nil)
	if s.Mode() != ModePlaying {
		t.Errorf("expected playing, got %s", s.Mode())
	}
}

func TestStopRecord(t *testing.T) {
	c, s, hw, _, _ := newTestController()

	c.Handle(link.CmdStartRecord, nil)
	c.Handle(link.CmdStopRecord, nil)
	if s.Mode() != ModeIdle {
		t.Errorf("expected idle, got %s", s.Mode())
	}
	if hw.captureOff != 1 {
		t.Errorf("expected capture stopped once, got %d", hw.captureOff)
	}
}

func TestStopPlayWhileIdle(t *testing.T) {
	c, s, _, _, w := newTestController()

	c.Handle(link.CmdStopPlay, nil)
	if s.Mode() != ModeIdle {
		t.Errorf("expected idle, got %s", s.Mode())
	}
	if len(w.frames) != 1 || w.frames[0].cmd != link.CmdAck {
		t.Fatalf("expected exactly one ack, got %d frames", len(w.frames))
	}
	if c.pipe != nil {
		t.Error("expected no pipeline allocation")
	}
}

func TestStartPlayRawLeavesPipelineNil(t *testing.T) {
	c, s, hw, _, _ := newTestController()

	c.Handle(link.CmdStartPlay, nil)
	if s.Mode() != ModePlaying {
		t.Errorf("expected playing, got %s", s.Mode())
	}
	if hw.renderOn != 1 {
		t.Errorf("expected render hardware configured, got %d", hw.renderOn)
	}
	if c.pipe != nil {
		t.Error("raw playback must not allocate a pipeline")
	}
}

func TestStartPlayCompressedAllocatesPipeline(t *testing.T) {
	c, s, _, _, _ := newTestController()

	c.Handle(link.CmdSetFormat, []byte{byte(FormatMP3)})
	c.Handle(link.CmdStartPlay, nil)
	if s.Mode() != ModePlaying {
		t.Fatalf("expected playing, got %s", s.Mode())
	}
	if c.pipe == nil {
		t.Fatal("expected a decode pipeline for compressed playback")
	}
}

func TestStartPlayUnknownFormatStaysIdle(t *testing.T) {
	c, s, hw, _, w := newTestController()

	c.Handle(link.CmdSetFormat, []byte{0x77})
	c.Handle(link.CmdStartPlay, nil)
	if s.Mode() != ModeIdle {
		t.Errorf("expected idle after failed pipeline init, got %s", s.Mode())
	}
	if hw.renderOn != 0 {
		t.Errorf("expected render hardware untouched, got %d", hw.renderOn)
	}
	// Both commands still acked
	if len(w.frames) != 2 {
		t.Errorf("expected 2 acks, got %d", len(w.frames))
	}
}

func TestStopPlayResetsFormat(t *testing.T) {
	c, s, hw, _, _ := newTestController()

	c.Handle(link.CmdSetFormat, []byte{byte(FormatMP3)})
	c.Handle(link.CmdStartPlay, nil)
	c.Handle(link.CmdStopPlay, nil)

	if s.Mode() != ModeIdle {
		t.Errorf("expected idle, got %s", s.Mode())
	}
	if s.Format() != FormatRaw {
		t.Errorf("expected format reset to raw, got %s", s.Format())
	}
	if c.pipe != nil {
		t.Error("expected pipeline torn down")
	}
	if hw.renderOff != 1 {
		t.Errorf("expected render hardware stopped, got %d", hw.renderOff)
	}
}

func TestStopPlayWhileIdleKeepsFormat(t *testing.T) {
	c, s, _, _, _ := newTestController()

	c.Handle(link.CmdSetFormat, []byte{byte(FormatMP3)})
	c.Handle(link.CmdStopPlay, nil)
	if s.Format() != FormatMP3 {
		t.Errorf("format resets only on the playing-to-idle transition, got %s", s.Format())
	}
}

func TestHandshakeReportsMode(t *testing.T) {
	c, _, _, _, w := newTestController()

	c.Handle(link.CmdHandshake, nil)
	c.Handle(link.CmdStartRecord, nil)
	c.Handle(link.CmdHandshake, nil)

	if len(w.frames) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(w.frames))
	}
	if w.frames[0].payload[0] != byte(ModeIdle) {
		t.Errorf("expected idle mode byte, got %d", w.frames[0].payload[0])
	}
	if w.frames[2].payload[0] != byte(ModeRecording) {
		t.Errorf("expected recording mode byte, got %d", w.frames[2].payload[0])
	}
}

func TestAudioDataDroppedWhenNotPlaying(t *testing.T) {
	c, _, _, r, w := newTestController()

	c.Handle(link.CmdAudioData, []byte{1, 2, 3, 4})
	if len(r.blocks) != 0 {
		t.Error("expected audio-data dropped while idle")
	}
	if len(w.frames) != 0 {
		t.Error("audio-data must not be acked")
	}
}

func TestRawAudioDataRendered(t *testing.T) {
	c, _, _, r, _ := newTestController()

	c.Handle(link.CmdStartPlay, nil)
	pcm := audio.SamplesToBytes([]int16{100, -200, 300})
	c.Handle(link.CmdAudioData, pcm)

	if len(r.blocks) != 1 {
		t.Fatalf("expected one rendered block, got %d", len(r.blocks))
	}
	want := []int16{100, -200, 300}
	for i, s := range want {
		if r.blocks[0][i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, r.blocks[0][i])
		}
	}
	if r.formats[0].Channels != 1 {
		t.Errorf("raw input is mono, got %d channels", r.formats[0].Channels)
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	c, s, _, _, w := newTestController()

	c.Handle(link.Command(0xEE), []byte{1})
	if s.Mode() != ModeIdle {
		t.Errorf("expected state untouched, got %s", s.Mode())
	}
	if len(w.frames) != 0 {
		t.Error("unknown commands receive no reply")
	}
}

func TestSetFormatEmptyPayloadIgnored(t *testing.T) {
	c, s, _, _, w := newTestController()

	c.Handle(link.CmdSetFormat, nil)
	if s.Format() != FormatRaw {
		t.Errorf("expected format unchanged, got %s", s.Format())
	}
	if len(w.frames) != 1 {
		t.Errorf("expected ack even for empty payload, got %d", len(w.frames))
	}
}
