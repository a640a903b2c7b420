// ABOUTME: Streaming decoder contract and format registry
// ABOUTME: Chunk-in/PCM-out decoding for compressed playback formats
package decode

import (
	"errors"
	"fmt"
)

// Format tag bytes carried by the set-format command
const (
	TagRaw  = 0x00
	TagMP3  = 0x01
	TagOpus = 0x02
)

// Result reports the outcome of one Process call. Consumed is valid even
// when Process returns an error; input reported consumed must never be
// presented again.
type Result struct {
	Consumed int // input bytes consumed
	Produced int // PCM bytes written to out
	Needed   int // required output size when ErrShortOutput is returned
}

// ErrShortOutput signals that out was too small for one decoded block.
// Result.Needed carries the required size; the caller may grow and retry.
var ErrShortOutput = errors.New("output buffer too small")

// ErrInvalidData signals undecodable bytes at the front of the input
var ErrInvalidData = errors.New("invalid compressed data")

// StreamDecoder turns compressed chunks into 16-bit little-endian PCM.
// Implementations are not safe for concurrent use.
type StreamDecoder interface {
	// Process decodes at most one block from in into out
	Process(in, out []byte) (Result, error)

	// StreamInfo reports the last decoded sample rate and channel count.
	// Zero values mean nothing has been decoded yet.
	StreamInfo() (sampleRate, channels int)

	// Reset discards internal decoder state
	Reset()

	// Close releases decoder resources
	Close() error
}

// Open creates a decoder for the given format tag
func Open(tag byte) (StreamDecoder, error) {
	switch tag {
	case TagMP3:
		return newMP3(), nil
	case TagOpus:
		return newOpus()
	default:
		return nil, fmt.Errorf("no decoder for format tag 0x%02X", tag)
	}
}

// SyncScan returns the bitstream sync search for the given format tag, or
// nil when the format has no recoverable sync pattern. The returned
// function reports the offset of the first sync marker, or -1.
func SyncScan(tag byte) func([]byte) int {
	switch tag {
	case TagMP3:
		return FindMP3Sync
	default:
		return nil
	}
}
