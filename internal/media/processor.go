// Package media converts uploaded audio into PCM WAV for analysis.
package media

import (
	"bytes"
	"context"
)

// Transcoder defines the interface for converting arbitrary audio files
// into PCM WAV that the analysis pipeline can decode.
type Transcoder interface {
	// ToWAV decodes src and writes 16-bit PCM WAV to dst, keeping the
	// source channel layout. A sampleRate of zero keeps the source rate.
	ToWAV(ctx context.Context, src, dst string, sampleRate int) error
}

// IsWAV reports whether header starts with a RIFF/WAVE signature.
func IsWAV(header []byte) bool {
	return len(header) >= 12 &&
		bytes.Equal(header[0:4], []byte("RIFF")) &&
		bytes.Equal(header[8:12], []byte("WAVE"))
}
