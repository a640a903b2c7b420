// ABOUTME: Opus streaming decoder
// ABOUTME: Length-prefixed Opus packets decoded with pure-Go gopus
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/thesyncim/gopus"
)

const (
	// opusPacketPrefix is the 2-byte big-endian length prefix on each packet
	opusPacketPrefix = 2

	// opusMaxPacket bounds a sane packet length on the wire
	opusMaxPacket = 1500

	// opusMaxFrameBytes is the largest decode output: 60 ms at 48 kHz,
	// stereo, 16-bit
	opusMaxFrameBytes = 2880 * 2 * 2

	opusSampleRate = 48000
	opusChannels   = 2
)

// opusDecoder decodes one length-prefixed Opus packet per Process call
type opusDecoder struct {
	dec        *gopus.Decoder
	pcm        []int16
	sampleRate int
	channels   int
}

func newOpus() (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(gopus.DecoderConfig{
		SampleRate: opusSampleRate,
		Channels:   opusChannels,
	})
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &opusDecoder{
		dec: dec,
		pcm: make([]int16, opusMaxFrameBytes/2),
	}, nil
}

func (d *opusDecoder) Process(in, out []byte) (Result, error) {
	if len(in) < opusPacketPrefix {
		return Result{}, nil
	}

	plen := int(binary.BigEndian.Uint16(in))
	if plen == 0 || plen > opusMaxPacket {
		return Result{}, fmt.Errorf("%w: packet length %d", ErrInvalidData, plen)
	}
	if len(in) < opusPacketPrefix+plen {
		return Result{}, nil
	}

	if opusMaxFrameBytes > len(out) {
		return Result{Needed: opusMaxFrameBytes}, ErrShortOutput
	}

	packet := in[opusPacketPrefix : opusPacketPrefix+plen]
	n, err := d.dec.DecodeInt16(packet, d.pcm)
	if err != nil {
		if errors.Is(err, gopus.ErrBufferTooSmall) {
			return Result{Needed: opusMaxFrameBytes}, ErrShortOutput
		}
		// Undecodable packet: consume it so the stream keeps moving
		return Result{Consumed: opusPacketPrefix + plen}, fmt.Errorf("opus decode: %w", err)
	}

	total := n * opusChannels
	for i := 0; i < total; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(d.pcm[i]))
	}

	d.sampleRate = opusSampleRate
	d.channels = opusChannels

	return Result{
		Consumed: opusPacketPrefix + plen,
		Produced: total * 2,
	}, nil
}

func (d *opusDecoder) StreamInfo() (int, int) {
	return d.sampleRate, d.channels
}

func (d *opusDecoder) Reset() {
	d.dec.Reset()
}

func (d *opusDecoder) Close() error {
	return nil
}
