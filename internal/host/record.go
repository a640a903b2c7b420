// ABOUTME: Capture-to-WAV recording on the host side
// ABOUTME: Writes 16kHz mono 16-bit PCM with the header finalized on close
package host

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
)

const wavHeaderSize = 44

// Recorder accumulates capture frames into a WAV file. The header is a
// placeholder until Close fills in the chunk sizes.
type Recorder struct {
	f         *os.File
	dataBytes uint32
}

// NewRecorder creates the file and reserves space for the header
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	if _, err := f.Write(make([]byte, wavHeaderSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("reserve wav header: %w", err)
	}
	return &Recorder{f: f}, nil
}

// Write appends one capture payload of little-endian PCM
func (r *Recorder) Write(pcm []byte) error {
	n, err := r.f.Write(pcm)
	r.dataBytes += uint32(n)
	if err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// Close writes the RIFF header over the placeholder and closes the file
func (r *Recorder) Close() error {
	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+r.dataBytes)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], audio.CaptureChannels)
	binary.LittleEndian.PutUint32(header[24:28], audio.CaptureSampleRate)
	byteRate := uint32(audio.CaptureSampleRate * audio.CaptureChannels * audio.BytesPerSample)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	blockAlign := uint16(audio.CaptureChannels * audio.BytesPerSample)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], r.dataBytes)

	if _, err := r.f.WriteAt(header, 0); err != nil {
		r.f.Close()
		return fmt.Errorf("finalize wav header: %w", err)
	}
	return r.f.Close()
}

// RecordTo captures microphone audio into a WAV file until ctx is
// cancelled, then stops the device and finalizes the file.
func (c *Client) RecordTo(ctx context.Context, path string) error {
	rec, err := NewRecorder(path)
	if err != nil {
		return err
	}

	c.OnCapture(func(pcm []byte) {
		if err := rec.Write(pcm); err != nil {
			log.Printf("host: record write failed: %v", err)
		}
	})
	defer c.OnCapture(nil)

	if err := c.StartRecord(); err != nil {
		rec.Close()
		return err
	}

	<-ctx.Done()

	stopErr := c.StopRecord()
	if err := rec.Close(); err != nil {
		return err
	}
	return stopErr
}
