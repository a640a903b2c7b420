// ABOUTME: Shared audio type definitions
// ABOUTME: Stream formats, sample/byte conversion, and channel upmixing
package audio

import "encoding/binary"

const (
	// DefaultSampleRate is assumed until a decoder reports the real rate
	DefaultSampleRate = 44100

	// DefaultChannels is assumed until a decoder reports the real count
	DefaultChannels = 2

	// CaptureSampleRate is the microphone capture rate
	CaptureSampleRate = 16000

	// CaptureChannels is the microphone channel count
	CaptureChannels = 1

	// BytesPerSample is the size of one 16-bit PCM sample
	BytesPerSample = 2
)

// Format describes a PCM stream
type Format struct {
	SampleRate int
	Channels   int
}

// CaptureFormat returns the fixed microphone format
func CaptureFormat() Format {
	return Format{SampleRate: CaptureSampleRate, Channels: CaptureChannels}
}

// BytesToSamples converts little-endian 16-bit PCM bytes to samples.
// A trailing odd byte is ignored.
func BytesToSamples(data []byte) []int16 {
	n := len(data) / BytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
	}
	return samples
}

// SamplesToBytes converts samples to little-endian 16-bit PCM bytes
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*BytesPerSample:], uint16(s))
	}
	return data
}

// UpmixMonoToStereo duplicates each mono sample of src into adjacent
// left/right slots of dst and returns the number of stereo samples written.
// dst must hold at least 2*len(src) samples. Expansion runs from the last
// source sample to the first, so src may alias the front of dst.
func UpmixMonoToStereo(dst, src []int16) int {
	n := len(src)
	for i := n - 1; i >= 0; i-- {
		s := src[i]
		dst[i*2] = s
		dst[i*2+1] = s
	}
	return n * 2
}
