package silence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/silencetrack/internal/level"
)

// Tracker turns a stream of blocks into silence transition events.
//
// A Tracker is not safe for concurrent use. Blocks must be processed in
// timestamp order without gaps or overlaps; each independent stream needs
// its own Tracker.
type Tracker struct {
	sampleRate float64
	threshold  float64
	classifier Classifier
	logger     *slog.Logger

	channels  int
	stepSize  int
	blockSize int

	// bufs holds the current and previous block; cur indexes the one
	// being processed and flips after every step.
	bufs    [2][][]float32
	cur     int
	scratch [][]float32

	lastSilent bool
	first      bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreshold sets the initial silence threshold in dB.
func WithThreshold(db float64) Option {
	return func(t *Tracker) {
		t.threshold = db
	}
}

// WithClassifier replaces the default level-based classifier.
func WithClassifier(c Classifier) Option {
	return func(t *Tracker) {
		if c != nil {
			t.classifier = c
		}
	}
}

// WithLogger sets the logger used for probe diagnostics at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Tracker for a stream at sampleRate Hz. The tracker must be
// initialised before processing blocks.
func New(sampleRate float64, opts ...Option) (*Tracker, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %v", ErrInvalidConfig, sampleRate)
	}

	t := &Tracker{
		sampleRate: sampleRate,
		threshold:  DefaultThresholdDB,
		classifier: level.Classifier{},
		logger:     slog.Default(),
		first:      true,
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := ValidateThreshold(t.threshold); err != nil {
		return nil, err
	}
	return t, nil
}

// Initialise allocates the block buffers for the given shape and resets the
// tracker to its first-block state. It may be called again to change shape.
func (t *Tracker) Initialise(channels, stepSize, blockSize int) error {
	if channels <= 0 || stepSize <= 0 || blockSize <= 0 {
		return fmt.Errorf("%w: channels=%d step=%d block=%d", ErrInvalidConfig, channels, stepSize, blockSize)
	}

	t.channels = channels
	t.stepSize = stepSize
	t.blockSize = blockSize
	t.bufs[0] = newBuffer(channels, stepSize)
	t.bufs[1] = newBuffer(channels, stepSize)
	t.scratch = make([][]float32, channels)
	t.cur = 0
	t.Reset()

	return nil
}

// newBuffer returns channels slices of n samples sharing one backing array.
func newBuffer(channels, n int) [][]float32 {
	data := make([]float32, channels*n)
	buf := make([][]float32, channels)
	for c := range buf {
		buf[c] = data[c*n : (c+1)*n : (c+1)*n]
	}
	return buf
}

// Reset returns the tracker to its first-block state without reallocating.
// The retained previous block is ignored until a new block is processed.
func (t *Tracker) Reset() {
	t.first = true
	t.lastSilent = false
}

// SetThreshold changes the silence threshold. It takes effect with the next
// classification, including probes of the current step if called between
// steps.
func (t *Tracker) SetThreshold(db float64) error {
	if err := ValidateThreshold(db); err != nil {
		return err
	}
	t.threshold = db
	return nil
}

// Threshold returns the current silence threshold in dB.
func (t *Tracker) Threshold() float64 { return t.threshold }

// SampleRate returns the stream sample rate in Hz.
func (t *Tracker) SampleRate() float64 { return t.sampleRate }

// Channels returns the initialised channel count.
func (t *Tracker) Channels() int { return t.channels }

// StepSize returns the initialised number of frames per block.
func (t *Tracker) StepSize() int { return t.stepSize }

// BlockSize returns the initialised host block size.
func (t *Tracker) BlockSize() int { return t.blockSize }

// Process consumes one block and returns the events it produced, if any.
//
// The block's samples are copied into tracker-owned storage before
// classification, so the caller may reuse or modify its buffers as soon as
// Process returns.
func (t *Tracker) Process(b Block) ([]Event, error) {
	if t.bufs[0] == nil {
		return nil, ErrNotInitialised
	}
	if err := t.checkShape(b.Samples); err != nil {
		return nil, err
	}

	cur := t.bufs[t.cur]
	for c := range cur {
		copy(cur[c], b.Samples[c])
	}

	silent := t.classifier.Silent(cur, t.threshold)

	var events []Event
	if t.first || silent != t.lastSilent {
		stamp := b.Timestamp

		// A silent first block has no leading edge and no history to search.
		if !t.first || !silent {
			off := t.refine(silent, b.Timestamp)
			stamp += FramesToDuration(int64(off), t.sampleRate)
		}

		value := 1
		if silent {
			value = 0
		}
		events = append(events, Event{Kind: KindLevel, Timestamp: stamp, Value: value})

		if !t.first {
			kind := KindSilenceEnd
			if silent {
				kind = KindSilenceStart
			}
			events = append(events, Event{Kind: kind, Timestamp: stamp})
		}

		t.lastSilent = silent
		t.first = false
	}

	t.cur ^= 1
	return events, nil
}

// Flush returns the events still pending at end of stream. Events are never
// delayed, so there are none.
func (t *Tracker) Flush() []Event {
	return nil
}

func (t *Tracker) checkShape(samples [][]float32) error {
	if len(samples) != t.channels {
		return fmt.Errorf("%w: got %d channels, want %d", ErrBlockShape, len(samples), t.channels)
	}
	for c, ch := range samples {
		if len(ch) != t.stepSize {
			return fmt.Errorf("%w: channel %d has %d samples, want %d", ErrBlockShape, c, len(ch), t.stepSize)
		}
	}
	return nil
}

func (t *Tracker) debugEnabled() bool {
	return t.logger.Enabled(context.Background(), slog.LevelDebug)
}
