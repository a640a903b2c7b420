// ABOUTME: Oto-based audio output implementation
// ABOUTME: PCM playback through a persistent pipe-fed oto player
package output

import (
	"fmt"
	"io"
	"log"

	"github.com/ebitengine/oto/v3"

	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
)

// Oto output implementation using the oto library
type Oto struct {
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	// If already initialized with the same format, reuse the context
	if o.otoCtx != nil && o.sampleRate == sampleRate && o.channels == channels {
		if !o.ready {
			o.startPlayer()
		}
		return nil
	}

	// oto allows one context per process; a format change mid-session
	// keeps the existing context
	if o.otoCtx != nil {
		log.Printf("Warning: format change (%dHz %dch -> %dHz %dch) but oto cannot reinitialize, keeping existing context",
			o.sampleRate, o.channels, sampleRate, channels)
		if !o.ready {
			o.startPlayer()
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	o.startPlayer()

	log.Printf("Audio output initialized: %dHz, %d channels", sampleRate, channels)

	return nil
}

// startPlayer wires a fresh pipe-fed player onto the context. A
// persistent player reading from a pipe keeps playback continuous.
func (o *Oto) startPlayer() {
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true
}

// Write outputs audio samples, blocking until the player accepts them
func (o *Oto) Write(samples []int16) error {
	if !o.ready {
		return fmt.Errorf("output not initialized")
	}

	data := audio.SamplesToBytes(samples)
	for len(data) > 0 {
		n, err := o.pipeWriter.Write(data)
		if err != nil {
			return fmt.Errorf("playback write failed: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
	}
	if o.player != nil {
		o.player.Close()
	}
	o.ready = false
	return nil
}
