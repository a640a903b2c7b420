// ABOUTME: Audio capture interface definition
// ABOUTME: Common interface for microphone capture backends
package input

import "fmt"

// Input represents an audio capture device
type Input interface {
	// Open initializes the capture device
	Open(sampleRate, channels int) error

	// Read fills buf with captured 16-bit little-endian PCM and returns
	// the byte count. Zero bytes means no audio is available yet.
	Read(buf []byte) (int, error)

	// Close releases capture resources
	Close() error
}

// New creates the named capture backend
func New(backend string) (Input, error) {
	switch backend {
	case "malgo":
		return NewMalgo(), nil
	default:
		return nil, fmt.Errorf("unknown input backend: %s", backend)
	}
}
