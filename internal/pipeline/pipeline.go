// ABOUTME: Streaming decode pipeline for compressed playback
// ABOUTME: Ingest buffering, metadata skip, sync search, and error resync
package pipeline

import (
	"encoding/binary"
	"errors"
	"log"

	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio"
	"github.com/AudioLink-Protocol/audiolink-go/pkg/audio/decode"
)

const (
	// ingestSize bounds the not-yet-decoded compressed bytes
	ingestSize = 4096

	// minDecodeBytes is the least input worth handing to the decoder
	minDecodeBytes = 128

	// errorThreshold is the consecutive decode failures tolerated before
	// resynchronization kicks in
	errorThreshold = 5

	// resyncMinRemain is the least buffered input worth resyncing over
	resyncMinRemain = 16

	// maxErrorSkip caps the blind skip taken when no sync marker is found
	maxErrorSkip = 512

	// defaultStaging fits one MP3 frame of stereo 16-bit PCM
	defaultStaging = 4608

	// id3HeaderSize is the fixed ID3v2 tag header length
	id3HeaderSize = 10
)

// Pipeline converts arbitrarily chunked compressed bytes into PCM.
// It is single-writer: Feed, Drain, and Reset must all be called from the
// same goroutine.
type Pipeline struct {
	dec      decode.StreamDecoder
	syncScan func([]byte) int

	buf []byte // ingest region, fixed capacity
	wr  int    // write length
	rd  int    // consumed offset

	skipRemain int  // leading metadata bytes still to discard
	tagChecked bool // leading-tag inspection performed
	synced     bool // sync search performed

	errCount int
	staging  []byte

	sampleRate int
	channels   int
}

// New opens a pipeline for the given compressed format tag
func New(tag byte) (*Pipeline, error) {
	dec, err := decode.Open(tag)
	if err != nil {
		return nil, err
	}
	return newPipeline(dec, decode.SyncScan(tag)), nil
}

func newPipeline(dec decode.StreamDecoder, syncScan func([]byte) int) *Pipeline {
	return &Pipeline{
		dec:      dec,
		syncScan: syncScan,
		buf:      make([]byte, ingestSize),
		staging:  make([]byte, defaultStaging),
		// Formats with no recoverable sync pattern skip the search
		synced:     syncScan == nil,
		sampleRate: audio.DefaultSampleRate,
		channels:   audio.DefaultChannels,
	}
}

// available reports unconsumed ingest bytes
func (p *Pipeline) available() int {
	return p.wr - p.rd
}

// Feed appends compressed bytes to the ingest buffer and returns how many
// were accepted. Bytes beyond the remaining capacity are silently dropped;
// callers size their feeds to the expected drain rate.
func (p *Pipeline) Feed(data []byte) int {
	// Discard already-consumed bytes before appending
	if p.rd > 0 {
		copy(p.buf, p.buf[p.rd:p.wr])
		p.wr -= p.rd
		p.rd = 0
	}

	// A leading container tag is only ever looked for at the start of the
	// stream, before anything has been buffered
	if !p.tagChecked && p.wr == 0 {
		p.tagChecked = true
		if size, ok := id3TagSize(data); ok {
			p.skipRemain = size
			log.Printf("pipeline: skipping %d bytes of leading metadata", size)
		}
	}

	// The skip counter may span several feeds
	if p.skipRemain > 0 {
		skip := p.skipRemain
		if skip > len(data) {
			skip = len(data)
		}
		data = data[skip:]
		p.skipRemain -= skip
	}

	space := ingestSize - p.wr
	n := len(data)
	if n > space {
		n = space
	}
	copy(p.buf[p.wr:], data[:n])
	p.wr += n

	if !p.synced && p.skipRemain == 0 && p.available() >= 4 {
		p.synced = true
		if off := p.syncScan(p.buf[p.rd:p.wr]); off > 0 {
			log.Printf("pipeline: discarding %d bytes before first sync marker", off)
			p.rd += off
		}
	}

	return n
}

// Drain decodes buffered input into dst and returns the number of
// interleaved samples written plus the cached sample rate and channel
// count. Zero samples means "not enough data yet", never an error; decoded
// samples beyond len(dst) in a single call are discarded.
func (p *Pipeline) Drain(dst []int16) (int, int, int) {
	if p.available() < minDecodeBytes {
		return 0, p.sampleRate, p.channels
	}

	in := p.buf[p.rd:p.wr]
	res, err := p.dec.Process(in, p.staging)
	if errors.Is(err, decode.ErrShortOutput) && res.Needed > len(p.staging) {
		// Grow once and retry the same call; the staging region never
		// shrinks for the rest of the session
		p.staging = make([]byte, res.Needed)
		res, err = p.dec.Process(in, p.staging)
	}

	// Input the decoder reports consumed must never be re-presented,
	// success or not
	if res.Consumed > 0 {
		p.rd += res.Consumed
		if p.rd > p.wr {
			p.rd = p.wr
		}
	}

	if err != nil {
		p.errCount++
		if p.errCount > errorThreshold && p.available() > resyncMinRemain {
			p.resync()
		}
		return 0, p.sampleRate, p.channels
	}

	p.errCount = 0
	if res.Produced == 0 {
		return 0, p.sampleRate, p.channels
	}

	if rate, channels := p.dec.StreamInfo(); rate > 0 {
		p.sampleRate = rate
		if channels > 0 {
			p.channels = channels
		}
	}

	samples := res.Produced / audio.BytesPerSample
	if samples > len(dst) {
		samples = len(dst)
	}
	for i := 0; i < samples; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(p.staging[i*audio.BytesPerSample:]))
	}
	return samples, p.sampleRate, p.channels
}

// resync hunts for the next sync marker past the current offset, falling
// back to a bounded blind skip so the stream always moves forward
func (p *Pipeline) resync() {
	if p.syncScan != nil {
		if off := p.syncScan(p.buf[p.rd+1 : p.wr]); off >= 0 {
			log.Printf("pipeline: resynchronized %d bytes ahead after %d decode errors",
				off+1, p.errCount)
			p.rd += off + 1
			p.errCount = 0
			p.dec.Reset()
			return
		}
	}

	skip := p.available() / 2
	if skip > maxErrorSkip {
		skip = maxErrorSkip
	}
	if skip < 1 {
		skip = 1
	}
	log.Printf("pipeline: no sync marker found, skipping %d bytes", skip)
	p.rd += skip
}

// Reset clears buffer positions and the sync-search state without
// reallocating, and discards the decoder's internal state. Leading-tag
// detection is not re-armed.
func (p *Pipeline) Reset() {
	p.wr = 0
	p.rd = 0
	p.synced = p.syncScan == nil
	p.errCount = 0
	p.dec.Reset()
}

// Close releases the decoder
func (p *Pipeline) Close() error {
	return p.dec.Close()
}

// id3TagSize reports the total byte size of a leading ID3v2 tag, header
// included, when data starts with one
func id3TagSize(data []byte) (int, bool) {
	if len(data) < id3HeaderSize {
		return 0, false
	}
	if data[0] != 'I' || data[1] != 'D' || data[2] != '3' {
		return 0, false
	}
	// Syncsafe 28-bit size, header not included
	size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 |
		int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
	return id3HeaderSize + size, true
}
