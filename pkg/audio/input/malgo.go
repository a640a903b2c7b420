// ABOUTME: Malgo-based microphone capture implementation
// ABOUTME: Callback-driven capture through miniaudio with a byte ring buffer
package input

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo capture implementation using the malgo/miniaudio library
type Malgo struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	ready      bool

	ring *byteRing
	mu   sync.Mutex
}

// byteRing is a thread-safe circular byte buffer. The capture callback
// writes, Read drains; overflow drops the newest bytes.
type byteRing struct {
	buffer   []byte
	readPos  int
	writePos int
	size     int
	count    int
	mu       sync.Mutex
}

func newByteRing(capacity int) *byteRing {
	return &byteRing{
		buffer: make([]byte, capacity),
		size:   capacity,
	}
}

func (rb *byteRing) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i < len(data) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = data[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

func (rb *byteRing) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(data) && rb.count > 0; i++ {
		data[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}
	return read
}

// NewMalgo creates a new Malgo capture device
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Open initializes the capture device with the given format
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		return nil
	}

	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	// One second of buffered capture. The callback closes over the ring
	// directly so it never touches fields guarded by m.mu.
	ring := newByteRing(sampleRate * channels * 2)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			// When the consumer falls behind, the excess is dropped
			ring.Write(pInput)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.device = device
	m.ring = ring
	m.sampleRate = sampleRate
	m.channels = channels
	m.ready = true

	log.Printf("Audio capture initialized: %dHz, %d channels (malgo)", sampleRate, channels)

	return nil
}

// Read drains captured bytes into buf without blocking. Safe against a
// concurrent Open or Close: the loop calling Read races the dispatch
// goroutine tearing the device down.
func (m *Malgo) Read(buf []byte) (int, error) {
	m.mu.Lock()
	ready, ring := m.ready, m.ring
	m.mu.Unlock()

	if !ready {
		return 0, fmt.Errorf("capture not initialized")
	}
	return ring.Read(buf), nil
}

// Close releases the device and context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		m.malgoCtx.Uninit()
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.ready = false
	return nil
}
