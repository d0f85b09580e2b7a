// Package pcm reads PCM audio into fixed-size blocks for the silence tracker.
package pcm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/maauso/silencetrack/internal/silence"
)

// Static errors for WAV decoding.
var (
	// ErrInvalidWAV is returned when the input is not a readable WAV file.
	ErrInvalidWAV = errors.New("pcm: invalid WAV file")
	// ErrUnsupportedFormat is returned for non-PCM encodings or unusual bit depths.
	ErrUnsupportedFormat = errors.New("pcm: unsupported WAV format")
	// ErrInvalidStepSize is returned when the step size is not positive.
	ErrInvalidStepSize = errors.New("pcm: step size must be positive")
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Source yields consecutive blocks of stepSize frames from a WAV stream.
// The final block is zero-padded to full length.
type Source struct {
	dec        *wav.Decoder
	channels   int
	sampleRate int
	bitDepth   int
	stepSize   int

	ibuf   *audio.IntBuffer
	block  [][]float32
	frames int64
	done   bool
}

// NewWAVSource validates the WAV header of r and prepares to read blocks of
// stepSize frames.
func NewWAVSource(r io.ReadSeeker, stepSize int) (*Source, error) {
	if stepSize <= 0 {
		return nil, ErrInvalidStepSize
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bitDepth)
	}

	channels := int(dec.NumChans)
	if channels <= 0 || dec.SampleRate == 0 {
		return nil, ErrInvalidWAV
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	block := make([][]float32, channels)
	for c := range block {
		block[c] = make([]float32, stepSize)
	}

	return &Source{
		dec:        dec,
		channels:   channels,
		sampleRate: int(dec.SampleRate),
		bitDepth:   bitDepth,
		stepSize:   stepSize,
		ibuf: &audio.IntBuffer{
			Format:         dec.Format(),
			Data:           make([]int, stepSize*channels),
			SourceBitDepth: bitDepth,
		},
		block: block,
	}, nil
}

// Channels returns the number of channels in the stream.
func (s *Source) Channels() int { return s.channels }

// SampleRate returns the stream sample rate in Hz.
func (s *Source) SampleRate() int { return s.sampleRate }

// StepSize returns the number of frames per block.
func (s *Source) StepSize() int { return s.stepSize }

// BitDepth returns the number of bits per sample of the encoded stream.
func (s *Source) BitDepth() int { return s.bitDepth }

// Frames returns the number of real (unpadded) frames read so far.
func (s *Source) Frames() int64 { return s.frames }

// Elapsed returns the stream time covered by the frames read so far.
func (s *Source) Elapsed() time.Duration {
	return silence.FramesToDuration(s.frames, float64(s.sampleRate))
}

// Next returns the next block. The returned samples are reused by the
// following call. io.EOF is returned once the stream is exhausted.
func (s *Source) Next() (silence.Block, error) {
	if s.done {
		return silence.Block{}, io.EOF
	}

	n, err := s.read()
	if err != nil {
		return silence.Block{}, err
	}
	frames := n / s.channels
	if frames == 0 {
		s.done = true
		return silence.Block{}, io.EOF
	}
	if frames < s.stepSize {
		s.done = true
	}

	scale := math.Ldexp(1, s.bitDepth-1)
	for f := 0; f < s.stepSize; f++ {
		for c := 0; c < s.channels; c++ {
			if f >= frames {
				s.block[c][f] = 0
				continue
			}
			v := s.ibuf.Data[f*s.channels+c]
			if s.bitDepth == 8 {
				v -= 128
			}
			s.block[c][f] = float32(float64(v) / scale)
		}
	}

	b := silence.Block{
		Timestamp: silence.FramesToDuration(s.frames, float64(s.sampleRate)),
		Samples:   s.block,
	}
	s.frames += int64(frames)
	return b, nil
}

// ReadAll decodes the remaining blocks into planar samples without the
// final padding.
func (s *Source) ReadAll() ([][]float32, error) {
	start := s.frames
	out := make([][]float32, s.channels)
	for {
		b, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for c := range out {
			out[c] = append(out[c], b.Samples[c]...)
		}
	}

	n := int(s.frames - start)
	for c := range out {
		out[c] = out[c][:n:n]
	}
	return out, nil
}

// read fills ibuf as far as the stream allows and returns the sample count.
func (s *Source) read() (int, error) {
	total := 0
	for total < len(s.ibuf.Data) {
		chunk := &audio.IntBuffer{
			Format:         s.ibuf.Format,
			Data:           s.ibuf.Data[total:],
			SourceBitDepth: s.bitDepth,
		}
		n, err := s.dec.PCMBuffer(chunk)
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return total, fmt.Errorf("decode PCM: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// WriteWAV encodes planar float samples in [-1, 1] as integer PCM WAV.
func WriteWAV(w io.WriteSeeker, samples [][]float32, sampleRate, bitDepth int) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidWAV)
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bitDepth)
	}

	channels := len(samples)
	frames := len(samples[0])
	scale := math.Ldexp(1, bitDepth-1) - 1

	data := make([]int, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			v := math.Max(-1, math.Min(1, float64(samples[c][f])))
			data[f*channels+c] = int(math.Round(v * scale))
		}
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, wavFormatPCM)
	if err := enc.Write(&audio.IntBuffer{
		Data: data,
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: bitDepth,
	}); err != nil {
		return fmt.Errorf("write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalise WAV: %w", err)
	}
	return nil
}
