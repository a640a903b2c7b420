// ABOUTME: Streaming decoder package for compressed playback formats
// ABOUTME: Provides the StreamDecoder contract plus MP3 and Opus implementations
// Package decode provides chunk-oriented audio decoders.
//
// Unlike whole-file decoders, a StreamDecoder accepts arbitrary byte
// windows: each Process call decodes at most one block from the front of
// the input and reports exactly how many input bytes it consumed, so the
// caller can maintain its own ingest buffer.
//
// Supported format tags: MP3 (go-mp3) and Opus (gopus, length-prefixed
// packets). Raw PCM needs no decoder and has no entry here.
//
// Example:
//
//	dec, err := decode.Open(decode.TagMP3)
//	res, err := dec.Process(buffered, pcmOut)
package decode
