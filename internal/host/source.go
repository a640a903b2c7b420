// ABOUTME: File loaders producing 16-bit PCM for streaming
// ABOUTME: WAV via RIFF chunk walk, FLAC via mewkiz/flac
package host

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mewkiz/flac"
)

// Source holds a fully decoded clip as interleaved 16-bit PCM
type Source struct {
	PCM        []int16
	SampleRate int
	Channels   int
}

// LoadPCM decodes a WAV or FLAC file into memory
func LoadPCM(path string) (*Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return loadWAV(path)
	case ".flac":
		return loadFLAC(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .wav, .flac)", ext)
	}
}

func loadWAV(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return parseWAV(data)
}

// parseWAV walks RIFF chunks for fmt and data. Only PCM 16-bit is
// accepted; anything else on the device side would need a decoder.
func parseWAV(data []byte) (*Source, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcmBytes   []byte
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return nil, fmt.Errorf("unsupported WAV encoding %d (PCM only)", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcmBytes = data[body : body+size]
		}

		// Chunks are word aligned
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt || pcmBytes == nil {
		return nil, fmt.Errorf("missing fmt or data chunk")
	}
	if bits != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d (16-bit only)", bits)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, fmt.Errorf("bad format: %d channels at %d Hz", channels, sampleRate)
	}

	pcm := make([]int16, len(pcmBytes)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(pcmBytes[i*2 : i*2+2]))
	}

	return &Source{PCM: pcm, SampleRate: sampleRate, Channels: channels}, nil
}

func loadFLAC(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flac: %w", err)
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("decode flac: %w", err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)

	var pcm []int16
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse flac frame: %w", err)
		}
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				sample := frame.Subframes[ch].Samples[i]
				switch {
				case bitDepth == 16:
				case bitDepth > 16:
					sample >>= uint(bitDepth - 16)
				default:
					sample <<= uint(16 - bitDepth)
				}
				pcm = append(pcm, int16(sample))
			}
		}
	}

	log.Printf("host: loaded FLAC %s (%d Hz, %d ch, %d bit)",
		filepath.Base(path), info.SampleRate, channels, bitDepth)

	return &Source{PCM: pcm, SampleRate: int(info.SampleRate), Channels: channels}, nil
}

// DownmixToMono averages interleaved channels into one
func (s *Source) DownmixToMono() {
	if s.Channels <= 1 {
		return
	}
	frames := len(s.PCM) / s.Channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < s.Channels; ch++ {
			sum += int(s.PCM[i*s.Channels+ch])
		}
		mono[i] = int16(sum / s.Channels)
	}
	s.PCM = mono
	s.Channels = 1
}

// Resample converts to the target rate by nearest-frame selection. Crude
// but free of dependencies; playback quality is bounded by the device
// speaker anyway.
func (s *Source) Resample(rate int) {
	if rate == s.SampleRate || rate <= 0 {
		return
	}
	frames := len(s.PCM) / s.Channels
	outFrames := int(int64(frames) * int64(rate) / int64(s.SampleRate))
	out := make([]int16, outFrames*s.Channels)
	for i := 0; i < outFrames; i++ {
		src := int(int64(i) * int64(s.SampleRate) / int64(rate))
		if src >= frames {
			src = frames - 1
		}
		copy(out[i*s.Channels:(i+1)*s.Channels], s.PCM[src*s.Channels:(src+1)*s.Channels])
	}
	s.PCM = out
	s.SampleRate = rate
}
