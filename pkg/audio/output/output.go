// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback backends
package output

import "fmt"

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write outputs interleaved 16-bit samples (blocks until written)
	Write(samples []int16) error

	// Close releases output resources
	Close() error
}

// New creates the named playback backend
func New(backend string) (Output, error) {
	switch backend {
	case "oto":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", backend)
	}
}
