package silence

import (
	"log/slog"
	"time"
)

const (
	// maxProbeIncrement caps the distance between probe positions.
	maxProbeIncrement = 16
	// probeSpan is the probe window width in increments. A window narrower
	// than this holds too few samples for a stable level reading.
	probeSpan = 4
)

// probeIncrement returns the search granularity for a block of stepSize
// frames. It is zero for blocks shorter than eight frames.
func probeIncrement(stepSize int) int {
	incr := maxProbeIncrement
	if incr > stepSize/8 {
		incr = stepSize / 8
	}
	return incr
}

// refine returns the offset in frames, relative to the start of the current
// block, at which the change to the new state most likely happened.
//
// The current block is scanned forward for the first probe window that
// agrees with the new state. When silence begins and the current block
// reads silent from its first window, the previous block is scanned
// backwards from its end for the last non-silent window instead, giving a
// negative offset.
func (t *Tracker) refine(silent bool, at time.Duration) int {
	incr := probeIncrement(t.stepSize)
	width := incr * probeSpan
	if incr <= 0 || width > t.stepSize {
		return 0
	}

	debug := t.debugEnabled()
	cur := t.bufs[t.cur]
	prev := t.bufs[t.cur^1]

	off := 0
	for i := 0; i < t.stepSize-width; i += incr {
		if t.probe(cur, i, i+width) == silent {
			if debug {
				t.logger.Debug("probe matches new state",
					slog.Duration("block", at),
					slog.Int("offset", i),
					slog.Bool("silent", silent),
				)
			}
			off = i
			break
		}
	}

	if !silent || off != 0 {
		return off
	}

	for i := 0; i < t.stepSize-incr; i += incr {
		start := t.stepSize - i - incr
		end := min(start+width, t.stepSize)
		if !t.probe(prev, start, end) {
			if debug {
				t.logger.Debug("non-silence before block",
					slog.Duration("block", at),
					slog.Int("frames_before", i),
				)
			}
			return -i
		}
	}
	return 0
}

// probe classifies frames [start, end) of buf through the scratch views.
func (t *Tracker) probe(buf [][]float32, start, end int) bool {
	for c := range buf {
		t.scratch[c] = buf[c][start:end:end]
	}
	return t.classifier.Silent(t.scratch, t.threshold)
}
