// ABOUTME: MP3 streaming decoder
// ABOUTME: Frame-header walking for consumed accounting, go-mp3 for PCM
package decode

import (
	"bytes"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// mp3FrameHeaderSize is the fixed MP3 frame header length
const mp3FrameHeaderSize = 4

// go-mp3 always emits stereo 16-bit PCM, 4 bytes per sample pair
const mp3OutBytesPerSample = 4

var (
	// MPEG1 Layer III bitrates (kbit/s), indexed by header bitrate field
	mp3BitratesV1 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

	// MPEG2/2.5 Layer III bitrates (kbit/s)
	mp3BitratesV2 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}

	// MPEG1 sample rates; halved for MPEG2, quartered for MPEG2.5
	mp3SampleRates = [4]int{44100, 48000, 32000, 0}
)

// mp3Frame describes one parsed frame header
type mp3Frame struct {
	size       int // whole frame length in bytes, header included
	samples    int // samples per channel in this frame
	sampleRate int
	channels   int
}

// parseMP3Frame validates and decodes the frame header at the front of b
func parseMP3Frame(b []byte) (mp3Frame, error) {
	if len(b) < mp3FrameHeaderSize {
		return mp3Frame{}, fmt.Errorf("%w: short header", ErrInvalidData)
	}
	if b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return mp3Frame{}, fmt.Errorf("%w: no frame sync", ErrInvalidData)
	}

	version := (b[1] >> 3) & 0x03 // 0=MPEG2.5, 2=MPEG2, 3=MPEG1
	layer := (b[1] >> 1) & 0x03   // 1=Layer III
	if version == 1 || layer != 1 {
		return mp3Frame{}, fmt.Errorf("%w: unsupported version/layer", ErrInvalidData)
	}

	bitrateIdx := (b[2] >> 4) & 0x0F
	rateIdx := (b[2] >> 2) & 0x03
	padding := int((b[2] >> 1) & 0x01)
	mode := (b[3] >> 6) & 0x03

	sampleRate := mp3SampleRates[rateIdx]
	if sampleRate == 0 {
		return mp3Frame{}, fmt.Errorf("%w: bad sample rate index", ErrInvalidData)
	}

	var bitrate, samples, sizeCoeff int
	if version == 3 {
		bitrate = mp3BitratesV1[bitrateIdx]
		samples = 1152
		sizeCoeff = 144
	} else {
		bitrate = mp3BitratesV2[bitrateIdx]
		samples = 576
		sizeCoeff = 72
		sampleRate /= 2
		if version == 0 {
			sampleRate /= 2
		}
	}
	if bitrate == 0 {
		return mp3Frame{}, fmt.Errorf("%w: bad bitrate index", ErrInvalidData)
	}

	channels := 2
	if mode == 3 {
		channels = 1
	}

	return mp3Frame{
		size:       sizeCoeff*bitrate*1000/sampleRate + padding,
		samples:    samples,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// FindMP3Sync reports the offset of the first plausible MP3 frame header
// in data, or -1
func FindMP3Sync(data []byte) int {
	for i := 0; i+mp3FrameHeaderSize <= len(data); i++ {
		if data[i] != 0xFF {
			continue
		}
		if _, err := parseMP3Frame(data[i:]); err == nil {
			return i
		}
	}
	return -1
}

// mp3Decoder decodes one MP3 frame per Process call
type mp3Decoder struct {
	sampleRate int
	channels   int
}

func newMP3() *mp3Decoder {
	return &mp3Decoder{}
}

// Process decodes the frame at the front of in. A zero Result with nil
// error means the frame is incomplete and more input is needed.
func (d *mp3Decoder) Process(in, out []byte) (Result, error) {
	if len(in) < mp3FrameHeaderSize {
		return Result{}, nil
	}

	frame, err := parseMP3Frame(in)
	if err != nil {
		return Result{}, err
	}
	if frame.size > len(in) {
		return Result{}, nil
	}

	pcmBytes := frame.samples * mp3OutBytesPerSample
	if pcmBytes > len(out) {
		return Result{Needed: pcmBytes}, ErrShortOutput
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(in))
	if err != nil {
		// The frame header looked valid but the payload did not decode;
		// drop the frame so it is never re-presented.
		return Result{Consumed: frame.size}, fmt.Errorf("mp3 decode: %w", err)
	}

	n, err := io.ReadFull(dec, out[:pcmBytes])
	if n == 0 && err != nil {
		return Result{Consumed: frame.size}, fmt.Errorf("mp3 decode: %w", err)
	}

	d.sampleRate = dec.SampleRate()
	d.channels = 2

	return Result{Consumed: frame.size, Produced: n}, nil
}

func (d *mp3Decoder) StreamInfo() (int, int) {
	return d.sampleRate, d.channels
}

// Reset is a no-op: each Process call decodes from a clean reader
func (d *mp3Decoder) Reset() {}

func (d *mp3Decoder) Close() error {
	return nil
}
