// ABOUTME: Tests for the PCM file loaders
// ABOUTME: Covers WAV parsing, downmix, and resampling
package host

import (
	"encoding/binary"
	"testing"
)

func makeWAV(rate, channels int, samples []int16) []byte {
	dataBytes := len(samples) * 2
	buf := make([]byte, 44+dataBytes)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataBytes))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(rate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataBytes))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(s))
	}
	return buf
}

func TestParseWAVStereo(t *testing.T) {
	samples := []int16{10, -10, 20, -20, 30, -30}
	src, err := parseWAV(makeWAV(44100, 2, samples))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if src.SampleRate != 44100 || src.Channels != 2 {
		t.Errorf("format %d Hz/%d ch, want 44100/2", src.SampleRate, src.Channels)
	}
	if len(src.PCM) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(src.PCM), len(samples))
	}
	for i, s := range samples {
		if src.PCM[i] != s {
			t.Errorf("sample %d = %d, want %d", i, src.PCM[i], s)
		}
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("ID3\x03abcdefghijklm")},
		{"truncated header", []byte("RIFF\x00\x00")},
	}
	for _, tc := range cases {
		if _, err := parseWAV(tc.data); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestParseWAVRejectsFloatEncoding(t *testing.T) {
	data := makeWAV(44100, 2, []int16{1, 2})
	binary.LittleEndian.PutUint16(data[20:22], 3) // IEEE float
	if _, err := parseWAV(data); err == nil {
		t.Error("expected error for non-PCM encoding")
	}
}

func TestParseWAVRejects24Bit(t *testing.T) {
	data := makeWAV(44100, 2, []int16{1, 2})
	binary.LittleEndian.PutUint16(data[34:36], 24)
	if _, err := parseWAV(data); err == nil {
		t.Error("expected error for 24-bit depth")
	}
}

func TestDownmixToMono(t *testing.T) {
	src := &Source{
		PCM:        []int16{100, 200, -100, 100, 0, 50},
		SampleRate: 44100,
		Channels:   2,
	}
	src.DownmixToMono()

	want := []int16{150, 0, 25}
	if src.Channels != 1 {
		t.Fatalf("channels %d after downmix", src.Channels)
	}
	if len(src.PCM) != len(want) {
		t.Fatalf("got %d samples, want %d", len(src.PCM), len(want))
	}
	for i, s := range want {
		if src.PCM[i] != s {
			t.Errorf("sample %d = %d, want %d", i, src.PCM[i], s)
		}
	}
}

func TestDownmixMonoNoop(t *testing.T) {
	src := &Source{PCM: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1}
	src.DownmixToMono()
	if src.Channels != 1 || len(src.PCM) != 3 {
		t.Errorf("mono downmix changed the clip: %d ch, %d samples", src.Channels, len(src.PCM))
	}
}

func TestResampleHalvesRate(t *testing.T) {
	src := &Source{
		PCM:        []int16{0, 1, 2, 3, 4, 5, 6, 7},
		SampleRate: 32000,
		Channels:   1,
	}
	src.Resample(16000)

	if src.SampleRate != 16000 {
		t.Errorf("rate %d after resample", src.SampleRate)
	}
	want := []int16{0, 2, 4, 6}
	if len(src.PCM) != len(want) {
		t.Fatalf("got %d samples, want %d", len(src.PCM), len(want))
	}
	for i, s := range want {
		if src.PCM[i] != s {
			t.Errorf("sample %d = %d, want %d", i, src.PCM[i], s)
		}
	}
}

func TestResampleSameRateNoop(t *testing.T) {
	src := &Source{PCM: []int16{9, 8, 7}, SampleRate: 16000, Channels: 1}
	src.Resample(16000)
	if len(src.PCM) != 3 || src.PCM[0] != 9 {
		t.Error("same-rate resample modified the clip")
	}
}

func TestResampleKeepsFramesInterleaved(t *testing.T) {
	// Stereo frames: (1,-1) (2,-2) (3,-3) (4,-4)
	src := &Source{
		PCM:        []int16{1, -1, 2, -2, 3, -3, 4, -4},
		SampleRate: 32000,
		Channels:   2,
	}
	src.Resample(16000)

	want := []int16{1, -1, 3, -3}
	if len(src.PCM) != len(want) {
		t.Fatalf("got %d samples, want %d", len(src.PCM), len(want))
	}
	for i, s := range want {
		if src.PCM[i] != s {
			t.Errorf("sample %d = %d, want %d", i, src.PCM[i], s)
		}
	}
}
