// ABOUTME: Session state shared between dispatch and capture
// ABOUTME: Mode and format as single-word atomics, mutated only by dispatch
package session

import (
	"fmt"
	"sync/atomic"

	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio/decode"
)

// Mode is the device's operating state
type Mode byte

const (
	ModeIdle      Mode = 0
	ModeRecording Mode = 1
	ModePlaying   Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModePlaying:
		return "playing"
	default:
		return fmt.Sprintf("mode(%d)", byte(m))
	}
}

// Format is the negotiated audio payload format
type Format byte

const (
	FormatRaw  Format = decode.TagRaw
	FormatMP3  Format = decode.TagMP3
	FormatOpus Format = decode.TagOpus
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatMP3:
		return "mp3"
	case FormatOpus:
		return "opus"
	default:
		return fmt.Sprintf("format(0x%02X)", byte(f))
	}
}

// Session holds the mode and format shared across goroutines. Only the
// dispatch path writes; the capture loop reads. Each field is an
// independent word, no invariant spans both.
type Session struct {
	mode   atomic.Uint32
	format atomic.Uint32
}

// NewSession starts idle with raw format
func NewSession() *Session {
	return &Session{}
}

// Mode returns the current operating mode
func (s *Session) Mode() Mode {
	return Mode(s.mode.Load())
}

// Format returns the current audio format
func (s *Session) Format() Format {
	return Format(s.format.Load())
}

func (s *Session) setMode(m Mode) {
	s.mode.Store(uint32(m))
}

func (s *Session) setFormat(f Format) {
	s.format.Store(uint32(f))
}
