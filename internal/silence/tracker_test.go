package silence

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRate = 48000.0
	testStep = 1024
	testIncr = 16
)

func zeros(channels, n int) [][]float32 {
	buf := make([][]float32, channels)
	for c := range buf {
		buf[c] = make([]float32, n)
	}
	return buf
}

// fill sets frames [from, to) of every channel to v.
func fill(buf [][]float32, from, to int, v float32) [][]float32 {
	for c := range buf {
		for i := from; i < to; i++ {
			buf[c][i] = v
		}
	}
	return buf
}

// toneFrom writes a full-scale 1 kHz sine starting at frame from.
func toneFrom(buf [][]float32, from int) [][]float32 {
	for c := range buf {
		for i := from; i < len(buf[c]); i++ {
			buf[c][i] = float32(math.Sin(2 * math.Pi * 1000 * float64(i-from) / testRate))
		}
	}
	return buf
}

func loud(channels, n int) [][]float32 {
	return fill(zeros(channels, n), 0, n, 0.5)
}

func at(frames int) time.Duration {
	return FramesToDuration(int64(frames), testRate)
}

func newTestTracker(t *testing.T, channels, step int, opts ...Option) *Tracker {
	t.Helper()
	tr, err := New(testRate, opts...)
	require.NoError(t, err)
	require.NoError(t, tr.Initialise(channels, step, step))
	return tr
}

func process(t *testing.T, tr *Tracker, index int, samples [][]float32) []Event {
	t.Helper()
	events, err := tr.Process(Block{Timestamp: at(index * tr.StepSize()), Samples: samples})
	require.NoError(t, err)
	return events
}

func TestTracker_FirstBlockBaseline(t *testing.T) {
	tests := []struct {
		name    string
		samples [][]float32
		value   int
	}{
		{"silent first block", zeros(1, testStep), 0},
		{"non-silent first block", loud(1, testStep), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t, 1, testStep)
			events := process(t, tr, 0, tt.samples)

			require.Len(t, events, 1)
			assert.Equal(t, Event{Kind: KindLevel, Timestamp: 0, Value: tt.value}, events[0])
		})
	}
}

func TestTracker_NoChangeEmitsNothing(t *testing.T) {
	t.Run("non-silent twice", func(t *testing.T) {
		tr := newTestTracker(t, 1, testStep)
		process(t, tr, 0, loud(1, testStep))
		assert.Empty(t, process(t, tr, 1, loud(1, testStep)))
	})

	t.Run("silent twice", func(t *testing.T) {
		tr := newTestTracker(t, 1, testStep)
		process(t, tr, 0, zeros(1, testStep))
		assert.Empty(t, process(t, tr, 1, zeros(1, testStep)))
	})
}

func TestTracker_ToneAfterSilence_OnsetWithinOneWindow(t *testing.T) {
	tr := newTestTracker(t, 1, 1024, WithThreshold(-70))

	events := process(t, tr, 0, zeros(1, 1024))
	assert.Equal(t, []Event{{Kind: KindLevel, Timestamp: 0, Value: 0}}, events)

	events = process(t, tr, 1, toneFrom(zeros(1, 1024), 512))
	require.Len(t, events, 2)

	// The earliest probe window touching the onset starts three increments
	// before it.
	want := at(1024) + at(512-3*testIncr)
	assert.Equal(t, Event{Kind: KindLevel, Timestamp: want, Value: 1}, events[0])
	assert.Equal(t, Event{Kind: KindSilenceEnd, Timestamp: want}, events[1])

	// A window of probeSpan increments reads loud as soon as it overlaps the
	// tone, so the reported onset may precede the true one by up to one
	// window width and never follows it.
	off := events[1].Timestamp - at(1024)
	assert.LessOrEqual(t, off, at(512))
	assert.GreaterOrEqual(t, off, at(512-probeSpan*testIncr))
}

func TestTracker_ForwardRefinement_SilenceEnd(t *testing.T) {
	for _, k := range []int{64, 128, 256, 640, 944} {
		tr := newTestTracker(t, 1, testStep)
		process(t, tr, 0, zeros(1, testStep))

		events := process(t, tr, 1, fill(zeros(1, testStep), k, testStep, 0.5))
		require.Len(t, events, 2, "k=%d", k)
		assert.Equal(t, KindSilenceEnd, events[1].Kind)

		off := events[1].Timestamp - at(testStep)
		assert.Equal(t, at(k-3*testIncr), off, "k=%d", k)
		assert.GreaterOrEqual(t, off, at(k-probeSpan*testIncr))
		assert.LessOrEqual(t, off, at(k))
	}
}

func TestTracker_ForwardRefinement_SilenceStart(t *testing.T) {
	// A faint leading burst keeps the block as a whole below -70 dB while
	// any probe window overlapping it reads above.
	for _, k := range []int{16, 32, 64, 96} {
		tr := newTestTracker(t, 1, testStep)
		process(t, tr, 0, loud(1, testStep))

		events := process(t, tr, 1, fill(zeros(1, testStep), 0, k, 0.001))
		require.Len(t, events, 2, "k=%d", k)
		// Block time plus the refined offset, each converted on its own.
		want := at(testStep) + at(k)
		assert.Equal(t, Event{Kind: KindLevel, Timestamp: want, Value: 0}, events[0], "k=%d", k)
		assert.Equal(t, Event{Kind: KindSilenceStart, Timestamp: want}, events[1], "k=%d", k)
	}
}

func TestTracker_BackwardRefinement(t *testing.T) {
	tests := []struct {
		name     string
		trailing int
		offset   int
	}{
		{"previous block loud to its end", 0, 0},
		{"one increment of trailing silence", 16, -16},
		{"unaligned trailing silence", 100, -96},
		{"long trailing silence", 400, -400},
		{"trailing silence near block start", 992, -992},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t, 1, testStep)
			process(t, tr, 0, fill(zeros(1, testStep), 0, testStep-tt.trailing, 0.5))

			events := process(t, tr, 1, zeros(1, testStep))
			require.Len(t, events, 2)
			assert.Equal(t, KindSilenceStart, events[1].Kind)
			assert.Equal(t, at(testStep)-at(-tt.offset), events[1].Timestamp)
			assert.InDelta(t, float64(at(testStep-tt.trailing)), float64(events[1].Timestamp), float64(at(testIncr)))
		})
	}
}

func TestTracker_BackwardRefinement_NothingFound(t *testing.T) {
	tr := newTestTracker(t, 1, testStep)
	process(t, tr, 0, fill(zeros(1, testStep), 0, 8, 0.5))

	events := process(t, tr, 1, zeros(1, testStep))
	require.Len(t, events, 2)
	assert.Equal(t, Event{Kind: KindSilenceStart, Timestamp: at(testStep)}, events[1])
}

func TestTracker_CallerBufferReuse(t *testing.T) {
	tr := newTestTracker(t, 1, testStep)

	buf := fill(zeros(1, testStep), 0, testStep-160, 0.5)
	process(t, tr, 0, buf)

	// Overwrite the same storage with the next block.
	fill(buf, 0, testStep, 0)
	events := process(t, tr, 1, buf)

	require.Len(t, events, 2)
	assert.Equal(t, at(testStep)-at(160), events[1].Timestamp)
}

func TestTracker_OffsetBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := newTestTracker(t, 2, testStep)

	transitions := 0
	for n := 0; n < 200; n++ {
		buf := zeros(2, testStep)
		if rng.Intn(2) == 0 {
			from := rng.Intn(testStep)
			to := from + rng.Intn(testStep-from+1)
			fill(buf, from, to, 0.5)
		}

		blockStart := at(n * testStep)
		for _, e := range process(t, tr, n, buf) {
			if e.Kind == KindLevel {
				continue
			}
			transitions++
			assert.LessOrEqual(t, e.Timestamp, blockStart+at(testStep))
			assert.GreaterOrEqual(t, e.Timestamp, blockStart-at(testStep))
		}
	}
	assert.Positive(t, transitions)
}

func TestTracker_MultiChannel(t *testing.T) {
	tr := newTestTracker(t, 2, testStep)
	process(t, tr, 0, zeros(2, testStep))

	buf := zeros(2, testStep)
	fill(buf[1:], 256, testStep, 0.5)
	events := process(t, tr, 1, buf)

	require.Len(t, events, 2)
	assert.Equal(t, Event{Kind: KindSilenceEnd, Timestamp: at(testStep + 256 - 3*testIncr)}, events[1])
}

func TestTracker_ThresholdChangeMidStream(t *testing.T) {
	tr := newTestTracker(t, 1, testStep)
	quiet := fill(zeros(1, testStep), 0, testStep, 0.0001) // -80 dB

	assert.Equal(t, []Event{{Kind: KindLevel, Timestamp: 0, Value: 0}}, process(t, tr, 0, quiet))

	require.NoError(t, tr.SetThreshold(-90))
	assert.Equal(t, -90.0, tr.Threshold())

	events := process(t, tr, 1, quiet)
	assert.Equal(t, []Event{
		{Kind: KindLevel, Timestamp: at(testStep), Value: 1},
		{Kind: KindSilenceEnd, Timestamp: at(testStep)},
	}, events)
}

func TestTracker_Reset(t *testing.T) {
	tr := newTestTracker(t, 1, testStep)
	process(t, tr, 0, zeros(1, testStep))
	process(t, tr, 1, loud(1, testStep))

	tr.Reset()

	events := process(t, tr, 2, zeros(1, testStep))
	assert.Equal(t, []Event{{Kind: KindLevel, Timestamp: at(2 * testStep), Value: 0}}, events)
}

func TestTracker_Reinitialise(t *testing.T) {
	tr := newTestTracker(t, 1, testStep)
	process(t, tr, 0, zeros(1, testStep))

	require.NoError(t, tr.Initialise(2, 512, 512))
	assert.Equal(t, 2, tr.Channels())
	assert.Equal(t, 512, tr.StepSize())
	assert.Equal(t, 512, tr.BlockSize())

	_, err := tr.Process(Block{Samples: zeros(1, testStep)})
	assert.ErrorIs(t, err, ErrBlockShape)

	events := process(t, tr, 0, loud(2, 512))
	assert.Equal(t, []Event{{Kind: KindLevel, Timestamp: 0, Value: 1}}, events)
}

func TestTracker_Errors(t *testing.T) {
	t.Run("invalid sample rate", func(t *testing.T) {
		_, err := New(0)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("threshold option out of range", func(t *testing.T) {
		_, err := New(testRate, WithThreshold(3))
		assert.ErrorIs(t, err, ErrThresholdRange)
	})

	t.Run("invalid shape", func(t *testing.T) {
		tr, err := New(testRate)
		require.NoError(t, err)
		assert.ErrorIs(t, tr.Initialise(0, 1024, 1024), ErrInvalidConfig)
		assert.ErrorIs(t, tr.Initialise(1, 0, 1024), ErrInvalidConfig)
		assert.ErrorIs(t, tr.Initialise(1, 1024, 0), ErrInvalidConfig)
	})

	t.Run("process before initialise", func(t *testing.T) {
		tr, err := New(testRate)
		require.NoError(t, err)
		_, err = tr.Process(Block{Samples: zeros(1, testStep)})
		assert.ErrorIs(t, err, ErrNotInitialised)
	})

	t.Run("shape mismatch leaves state untouched", func(t *testing.T) {
		tr := newTestTracker(t, 2, testStep)

		_, err := tr.Process(Block{Samples: zeros(1, testStep)})
		assert.ErrorIs(t, err, ErrBlockShape)

		_, err = tr.Process(Block{Samples: zeros(2, testStep-1)})
		assert.ErrorIs(t, err, ErrBlockShape)

		events := process(t, tr, 0, zeros(2, testStep))
		assert.Equal(t, []Event{{Kind: KindLevel, Timestamp: 0, Value: 0}}, events)
	})
}

func TestTracker_SetThreshold(t *testing.T) {
	tests := []struct {
		db    float64
		valid bool
	}{
		{-120, true},
		{-70, true},
		{0, true},
		{-120.5, false},
		{0.1, false},
		{math.NaN(), false},
	}

	for _, tt := range tests {
		tr := newTestTracker(t, 1, testStep)
		err := tr.SetThreshold(tt.db)
		if tt.valid {
			assert.NoError(t, err)
			assert.Equal(t, tt.db, tr.Threshold())
		} else {
			assert.ErrorIs(t, err, ErrThresholdRange)
			assert.Equal(t, DefaultThresholdDB, tr.Threshold())
		}
	}
}

func TestTracker_DegenerateStepSize(t *testing.T) {
	for _, step := range []int{1, 4, 7} {
		tr := newTestTracker(t, 1, step)
		process(t, tr, 0, zeros(1, step))

		events := process(t, tr, 1, loud(1, step))
		assert.Equal(t, []Event{
			{Kind: KindLevel, Timestamp: at(step), Value: 1},
			{Kind: KindSilenceEnd, Timestamp: at(step)},
		}, events, "step=%d", step)

		events = process(t, tr, 2, zeros(1, step))
		assert.Equal(t, Event{Kind: KindSilenceStart, Timestamp: at(2 * step)}, events[1], "step=%d", step)
	}
}

func TestTracker_ProbeWindows(t *testing.T) {
	var widths []int
	counting := ClassifierFunc(func(buf [][]float32, db float64) bool {
		widths = append(widths, len(buf[0]))
		var sum float64
		for _, s := range buf[0] {
			sum += float64(s * s)
		}
		return sum == 0
	})

	tr := newTestTracker(t, 1, testStep, WithClassifier(counting))
	process(t, tr, 0, loud(1, testStep))
	widths = widths[:0]

	events := process(t, tr, 1, zeros(1, testStep))
	require.Len(t, events, 2)

	// One block classification, one forward probe, then backward probes
	// until the loud previous block is found at the first position.
	assert.Equal(t, []int{testStep, probeSpan * testIncr, testIncr}, widths)
	assert.LessOrEqual(t, len(widths), 1+2*testStep/testIncr)
}

func TestTracker_Flush(t *testing.T) {
	tr := newTestTracker(t, 1, testStep)
	process(t, tr, 0, loud(1, testStep))
	assert.Empty(t, tr.Flush())
}

func TestProbeIncrement(t *testing.T) {
	tests := []struct {
		step, incr int
	}{
		{1, 0},
		{7, 0},
		{8, 1},
		{64, 8},
		{128, 16},
		{1024, 16},
		{4096, 16},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.incr, probeIncrement(tt.step), "step=%d", tt.step)
	}
}
