// ABOUTME: Render path from decoded PCM to the playback sink
// ABOUTME: Upmixes mono to stereo and reopens the sink on format changes
package device

import (
	"fmt"
	"log"

	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio/output"
)

// RenderPath feeds PCM blocks to an output backend. The sink opens
// lazily at the stream's real rate; mono streams are duplicated to both
// channels because the amplifier path is wired for stereo.
type RenderPath struct {
	out      output.Output
	opened   bool
	rate     int
	channels int
	upmix    []int16
}

// NewRenderPath wraps the playback sink
func NewRenderPath(out output.Output) *RenderPath {
	return &RenderPath{out: out}
}

// Render writes one block of interleaved samples in the given format
func (r *RenderPath) Render(samples []int16, format audio.Format) error {
	if len(samples) == 0 {
		return nil
	}

	src := samples
	channels := format.Channels
	if channels == 1 {
		channels = audio.DefaultChannels
		need := len(samples) * 2
		if cap(r.upmix) < need {
			r.upmix = make([]int16, need)
		}
		n := audio.UpmixMonoToStereo(r.upmix[:need], samples)
		src = r.upmix[:n]
	}

	if !r.opened || r.rate != format.SampleRate || r.channels != channels {
		if r.opened {
			log.Printf("render: format change %dHz/%dch -> %dHz/%dch",
				r.rate, r.channels, format.SampleRate, channels)
			if err := r.out.Close(); err != nil {
				log.Printf("render: close output: %v", err)
			}
			r.opened = false
		}
		if err := r.out.Open(format.SampleRate, channels); err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		r.opened = true
		r.rate = format.SampleRate
		r.channels = channels
	}

	return r.out.Write(src)
}

// Stop closes the sink; the next Render reopens it
func (r *RenderPath) Stop() {
	if !r.opened {
		return
	}
	if err := r.out.Close(); err != nil {
		log.Printf("render: close output: %v", err)
	}
	r.opened = false
}
