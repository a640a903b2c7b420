// ABOUTME: File streaming over the link with real-time pacing
// ABOUTME: MP3 passthrough, raw PCM for WAV/FLAC, optional Opus encode
package host

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	mp3 "github.com/hajimehoshi/go-mp3"
	"gopkg.in/hraban/opus.v2"

	"github.com/AudioLink-Protocol/audiolink-go/internal/link"
	"github.com/AudioLink-Protocol/audiolink-go/internal/session"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
)

// chunkSize is the audio payload per frame, the link maximum
const chunkSize = link.MaxPayload

// streamLead keeps the device buffer this far ahead of real time
const streamLead = 50 * time.Millisecond

// opusFrameMs is the encoded frame duration
const opusFrameMs = 20

// PlayFile streams an audio file to the device and blocks until it
// finishes or ctx is cancelled. MP3 goes over the wire as-is; WAV and
// FLAC are sent as raw PCM at the device's native raw rate.
func (c *Client) PlayFile(ctx context.Context, path string) error {
	transfer := uuid.New().String()[:8]
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return c.streamMP3(ctx, path, transfer)
	case ".wav", ".flac":
		return c.streamRaw(ctx, path, transfer)
	default:
		return fmt.Errorf("unsupported audio format: %s (supported: .mp3, .wav, .flac)", ext)
	}
}

// PlayFileOpus streams a WAV or FLAC file Opus-encoded. The clip is
// converted to 48kHz stereo first, the rate the device decodes at.
func (c *Client) PlayFileOpus(ctx context.Context, path string) error {
	transfer := uuid.New().String()[:8]

	src, err := LoadPCM(path)
	if err != nil {
		return err
	}
	if src.Channels == 1 {
		stereo := make([]int16, len(src.PCM)*2)
		audio.UpmixMonoToStereo(stereo, src.PCM)
		src.PCM = stereo
		src.Channels = 2
	}
	src.Resample(48000)

	packets, frameDur, err := encodeOpus(src)
	if err != nil {
		return err
	}
	log.Printf("host: transfer %s: %s -> %d opus packets", transfer, filepath.Base(path), len(packets))

	return c.playSession(ctx, session.FormatOpus, func(send func([]byte, time.Duration) error) error {
		chunk := make([]byte, 0, chunkSize)
		var chunkDur time.Duration
		for _, pkt := range packets {
			framed := make([]byte, 2+len(pkt))
			binary.BigEndian.PutUint16(framed, uint16(len(pkt)))
			copy(framed[2:], pkt)

			if len(chunk)+len(framed) > chunkSize {
				if err := send(chunk, chunkDur); err != nil {
					return err
				}
				chunk = chunk[:0]
				chunkDur = 0
			}
			chunk = append(chunk, framed...)
			chunkDur += frameDur
		}
		if len(chunk) > 0 {
			return send(chunk, chunkDur)
		}
		return nil
	})
}

func (c *Client) streamMP3(ctx context.Context, path, transfer string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read mp3: %w", err)
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("probe mp3: %w", err)
	}
	// Length is decoded bytes of 16-bit stereo at the stream rate, which
	// gives the clip duration and thus the per-chunk pace.
	total := time.Duration(0)
	if pcmBytes := dec.Length(); pcmBytes > 0 {
		total = time.Duration(pcmBytes) * time.Second / time.Duration(dec.SampleRate()*4)
	}
	chunkDur := 128 * time.Millisecond
	if total > 0 {
		chunkDur = total * time.Duration(chunkSize) / time.Duration(len(data))
	}
	log.Printf("host: transfer %s: %s (%d bytes, ~%s)", transfer, filepath.Base(path), len(data), total.Round(time.Second))

	return c.playSession(ctx, session.FormatMP3, func(send func([]byte, time.Duration) error) error {
		for off := 0; off < len(data); off += chunkSize {
			end := off + chunkSize
			if end > len(data) {
				end = len(data)
			}
			dur := chunkDur * time.Duration(end-off) / time.Duration(chunkSize)
			if err := send(data[off:end], dur); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) streamRaw(ctx context.Context, path, transfer string) error {
	src, err := LoadPCM(path)
	if err != nil {
		return err
	}
	src.DownmixToMono()
	src.Resample(audio.CaptureSampleRate)
	data := audio.SamplesToBytes(src.PCM)
	log.Printf("host: transfer %s: %s as raw PCM (%d bytes)", transfer, filepath.Base(path), len(data))

	bytesPerSec := audio.CaptureSampleRate * audio.BytesPerSample
	return c.playSession(ctx, session.FormatRaw, func(send func([]byte, time.Duration) error) error {
		for off := 0; off < len(data); off += chunkSize {
			end := off + chunkSize
			if end > len(data) {
				end = len(data)
			}
			dur := time.Duration(end-off) * time.Second / time.Duration(bytesPerSec)
			if err := send(data[off:end], dur); err != nil {
				return err
			}
		}
		return nil
	})
}

// playSession brackets a paced stream with format/start/stop commands.
// stop-play is sent even when the stream aborts, so the device never
// sticks in playing mode.
func (c *Client) playSession(ctx context.Context, format session.Format, stream func(send func([]byte, time.Duration) error) error) error {
	if err := c.SetFormat(format); err != nil {
		return err
	}
	if err := c.StartPlay(); err != nil {
		return err
	}

	p := newPacer()
	err := stream(func(chunk []byte, dur time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.SendAudio(chunk); err != nil {
			return err
		}
		p.pace(dur)
		return nil
	})

	if stopErr := c.StopPlay(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

// pacer throttles sends so the device stays a small lead ahead of real
// time instead of drowning its ingest buffer.
type pacer struct {
	start time.Time
	sent  time.Duration
}

func newPacer() *pacer {
	return &pacer{start: time.Now()}
}

func (p *pacer) pace(d time.Duration) {
	p.sent += d
	ahead := p.sent - time.Since(p.start)
	if ahead > streamLead {
		time.Sleep(ahead - streamLead)
	}
}

// encodeOpus splits the clip into 20ms frames and encodes each one
func encodeOpus(src *Source) ([][]byte, time.Duration, error) {
	enc, err := opus.NewEncoder(src.SampleRate, src.Channels, opus.AppAudio)
	if err != nil {
		return nil, 0, fmt.Errorf("create opus encoder: %w", err)
	}

	frameSamples := src.SampleRate / 1000 * opusFrameMs * src.Channels
	frameDur := opusFrameMs * time.Millisecond

	var packets [][]byte
	buf := make([]byte, 4000)
	for off := 0; off+frameSamples <= len(src.PCM); off += frameSamples {
		n, err := enc.Encode(src.PCM[off:off+frameSamples], buf)
		if err != nil {
			return nil, 0, fmt.Errorf("opus encode: %w", err)
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		packets = append(packets, pkt)
	}
	return packets, frameDur, nil
}
