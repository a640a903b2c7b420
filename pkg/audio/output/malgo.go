// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Callback-driven playback through miniaudio with a ring buffer
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Malgo output implementation using the malgo/miniaudio library
type Malgo struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	ready      bool

	ring *sampleRing
	mu   sync.Mutex
}

// sampleRing is a thread-safe circular buffer of interleaved samples
type sampleRing struct {
	buffer   []int16
	readPos  int
	writePos int
	size     int
	count    int
	mu       sync.Mutex
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{
		buffer: make([]int16, capacity),
		size:   capacity,
	}
}

// Write adds samples, returning how many fit
func (rb *sampleRing) Write(samples []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i < len(samples) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// Read retrieves samples, zero-filling on underrun
func (rb *sampleRing) Read(samples []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(samples) && rb.count > 0; i++ {
		samples[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}
	for i := read; i < len(samples); i++ {
		samples[i] = 0
	}
	return read
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Open initializes the playback device with the given format
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		return nil
	}

	if m.device != nil {
		log.Printf("Format change (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
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

	// 500 ms of buffered playback. The callback closes over the ring and
	// channel count directly so it never touches fields guarded by m.mu.
	ring := newSampleRing(sampleRate * channels / 2)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			fillOutput(ring, pOutput, int(frameCount)*channels)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	m.device = device
	m.ring = ring
	m.sampleRate = sampleRate
	m.channels = channels
	m.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (malgo)", sampleRate, channels)

	return nil
}

// Write queues samples for playback, blocking while the ring is full.
// Safe against a concurrent Open or Close; a reopen mid-write leaves the
// remainder in the superseded ring.
func (m *Malgo) Write(samples []int16) error {
	m.mu.Lock()
	ready, ring := m.ready, m.ring
	m.mu.Unlock()

	if !ready {
		return fmt.Errorf("output not initialized")
	}

	written := 0
	for written < len(samples) {
		n := ring.Write(samples[written:])
		written += n
		if n == 0 {
			// Full: the device callback drains continuously
			time.Sleep(5 * time.Millisecond)
		}
	}
	return nil
}

// fillOutput is called by malgo to fill the device buffer
func fillOutput(ring *sampleRing, pOutput []byte, total int) {
	samples := make([]int16, total)
	ring.Read(samples)

	for i, s := range samples {
		pOutput[i*2] = byte(s)
		pOutput[i*2+1] = byte(s >> 8)
	}
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
