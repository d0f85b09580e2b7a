// Package silence tracks transitions between silent and non-silent audio
// in a stream of fixed-size multichannel blocks.
//
// A Tracker classifies each block as a whole and, when the classification
// changes, searches inside the block (or backwards into the previous one)
// with short probe windows to place the transition more precisely than the
// block boundary at which it was observed.
package silence

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies one of the three logical output streams of a Tracker.
type Kind int

const (
	// KindSilenceStart marks the instant a silent region begins.
	KindSilenceStart Kind = iota
	// KindSilenceEnd marks the instant a silent region ends.
	KindSilenceEnd
	// KindLevel is a sample of the 0/1 level signal, 1 meaning non-silent.
	KindLevel
)

// String returns the output identifier of the kind.
func (k Kind) String() string {
	switch k {
	case KindSilenceStart:
		return "silencestart"
	case KindSilenceEnd:
		return "silenceend"
	case KindLevel:
		return "silencelevel"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its output identifier.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes an output identifier.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, c := range []Kind{KindSilenceStart, KindSilenceEnd, KindLevel} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, text)
}

// Event is a single output of the tracker. Value is only meaningful for
// KindLevel events.
type Event struct {
	Kind      Kind
	Timestamp time.Duration
	Value     int
}

// Block is one step of input: a slice of equal-length sample sequences,
// one per channel, and the stream time of the first sample.
type Block struct {
	Timestamp time.Duration
	Samples   [][]float32
}

// Static errors for tracker configuration and processing.
var (
	// ErrInvalidConfig is returned for non-positive channel counts, step sizes or sample rates.
	ErrInvalidConfig = errors.New("silence: invalid configuration")
	// ErrNotInitialised is returned when a block is processed before Initialise.
	ErrNotInitialised = errors.New("silence: tracker not initialised")
	// ErrBlockShape is returned when a block does not match the initialised channel count or step size.
	ErrBlockShape = errors.New("silence: block shape mismatch")
	// ErrThresholdRange is returned when a threshold lies outside [MinThresholdDB, MaxThresholdDB].
	ErrThresholdRange = errors.New("silence: threshold out of range")
	// ErrUnknownKind is returned when decoding an unrecognised output identifier.
	ErrUnknownKind = errors.New("silence: unknown output kind")
)

const (
	// DefaultThresholdDB is the threshold used unless configured otherwise.
	DefaultThresholdDB = -70.0
	// MinThresholdDB is the lowest accepted threshold.
	MinThresholdDB = -120.0
	// MaxThresholdDB is the highest accepted threshold.
	MaxThresholdDB = 0.0

	// PreferredStepSize is the step size hosts should use when they have no preference.
	PreferredStepSize = 1024
	// PreferredBlockSize is the block size hosts should use when they have no preference.
	PreferredBlockSize = 1024
)

// Info identifies the detector to hosts that list or select it.
type Info struct {
	Identifier  string `json:"identifier" yaml:"identifier"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Maker       string `json:"maker" yaml:"maker"`
	Version     int    `json:"version" yaml:"version"`
	Copyright   string `json:"copyright" yaml:"copyright"`
}

// Describe returns the detector's identity. The identifier is stable across
// versions.
func Describe() Info {
	return Info{
		Identifier:  "aubiosilence",
		Name:        "Aubio Silence Detector",
		Description: "Detect levels below a certain threshold",
		Maker:       "Paul Brossier (plugin by Chris Cannam)",
		Version:     1,
		Copyright:   "GPL",
	}
}

// OutputDescriptor describes one output stream.
type OutputDescriptor struct {
	Kind        Kind    `json:"kind" yaml:"kind"`
	Identifier  string  `json:"identifier" yaml:"identifier"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	BinCount    int     `json:"bin_count" yaml:"bin_count"`
	Quantized   bool    `json:"quantized" yaml:"quantized"`
	MinValue    float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue    float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`
}

// ParameterDescriptor describes a runtime-adjustable parameter.
type ParameterDescriptor struct {
	Identifier   string  `json:"identifier" yaml:"identifier"`
	Name         string  `json:"name" yaml:"name"`
	Unit         string  `json:"unit" yaml:"unit"`
	MinValue     float64 `json:"min_value" yaml:"min_value"`
	MaxValue     float64 `json:"max_value" yaml:"max_value"`
	DefaultValue float64 `json:"default_value" yaml:"default_value"`
}

// Outputs returns the descriptors of the three output streams in kind order.
func Outputs() []OutputDescriptor {
	return []OutputDescriptor{
		{
			Kind:        KindSilenceStart,
			Identifier:  KindSilenceStart.String(),
			Name:        "Starts of Silent Regions",
			Description: "A single instant at the point where each silent region begins",
		},
		{
			Kind:        KindSilenceEnd,
			Identifier:  KindSilenceEnd.String(),
			Name:        "Ends of Silent Regions",
			Description: "A single instant at the point where each silent region ends",
		},
		{
			Kind:        KindLevel,
			Identifier:  KindLevel.String(),
			Name:        "Silence Test",
			Description: "A function that switches from 1 to 0 when silence falls, and back again when it ends",
			BinCount:    1,
			Quantized:   true,
			MinValue:    0,
			MaxValue:    1,
		},
	}
}

// Parameters returns the descriptors of the tracker's parameters.
func Parameters() []ParameterDescriptor {
	return []ParameterDescriptor{
		{
			Identifier:   "silencethreshold",
			Name:         "Silence Threshold",
			Unit:         "dB",
			MinValue:     MinThresholdDB,
			MaxValue:     MaxThresholdDB,
			DefaultValue: DefaultThresholdDB,
		},
	}
}

// FramesToDuration converts a signed frame count to a duration at the given
// sample rate. The sample rate is rounded to the nearest integer first.
func FramesToDuration(frames int64, sampleRate float64) time.Duration {
	rate := int64(sampleRate + 0.5)
	if rate <= 0 {
		return 0
	}
	if frames < 0 {
		return -FramesToDuration(-frames, sampleRate)
	}
	sec := frames / rate
	rem := frames % rate
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/time.Duration(rate)
}
