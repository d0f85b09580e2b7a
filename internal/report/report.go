// Package report collects tracker events into a summary of silent regions
// and encodes it for delivery.
package report

import (
	"time"

	"github.com/maauso/silencetrack/internal/silence"
)

// Entry is a serialisable tracker event. Times are in seconds.
type Entry struct {
	Kind  string  `json:"kind" yaml:"kind" msgpack:"kind"`
	Time  float64 `json:"time" yaml:"time" msgpack:"time"`
	Value *int    `json:"value,omitempty" yaml:"value,omitempty" msgpack:"value,omitempty"`
}

// Region is a silent interval. Times are in seconds.
type Region struct {
	Start  float64 `json:"start" yaml:"start" msgpack:"start"`
	End    float64 `json:"end" yaml:"end" msgpack:"end"`
	Length float64 `json:"length" yaml:"length" msgpack:"length"`
}

// Report summarises the analysis of one stream.
type Report struct {
	SampleRate  int      `json:"sample_rate" yaml:"sample_rate" msgpack:"sample_rate"`
	Channels    int      `json:"channels" yaml:"channels" msgpack:"channels"`
	StepSize    int      `json:"step_size" yaml:"step_size" msgpack:"step_size"`
	BlockSize   int      `json:"block_size" yaml:"block_size" msgpack:"block_size"`
	ThresholdDB float64  `json:"threshold_db" yaml:"threshold_db" msgpack:"threshold_db"`
	Duration    float64  `json:"duration" yaml:"duration" msgpack:"duration"`
	Events      []Entry  `json:"events" yaml:"events" msgpack:"events"`
	Regions     []Region `json:"regions" yaml:"regions" msgpack:"regions"`
}

// SilentTime returns the summed length of all regions in seconds.
func (r *Report) SilentTime() float64 {
	var total float64
	for _, reg := range r.Regions {
		total += reg.Length
	}
	return total
}

// Metadata describes the stream a Builder is collecting events for.
type Metadata struct {
	SampleRate  int
	Channels    int
	StepSize    int
	BlockSize   int
	ThresholdDB float64
}

// span is a silent interval as recorded, before clamping to the stream end.
type span struct {
	start, end time.Duration
}

// Builder accumulates events in stream order and pairs the level signal
// into silent regions.
type Builder struct {
	meta       Metadata
	minSilence time.Duration

	events []Entry
	spans  []span

	inSilence bool
	openAt    time.Duration
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMinSilence drops regions shorter than d from the report. Events are
// always kept.
func WithMinSilence(d time.Duration) BuilderOption {
	return func(b *Builder) {
		b.minSilence = d
	}
}

// NewBuilder creates a Builder for a stream described by meta.
func NewBuilder(meta Metadata, opts ...BuilderOption) *Builder {
	b := &Builder{
		meta:   meta,
		events: make([]Entry, 0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add records events produced by one tracker step.
func (b *Builder) Add(events ...silence.Event) {
	for _, e := range events {
		entry := Entry{Kind: e.Kind.String(), Time: e.Timestamp.Seconds()}
		if e.Kind != silence.KindLevel {
			b.events = append(b.events, entry)
			continue
		}

		v := e.Value
		entry.Value = &v
		b.events = append(b.events, entry)

		switch {
		case v == 0 && !b.inSilence:
			b.inSilence = true
			b.openAt = e.Timestamp
		case v == 1 && b.inSilence:
			b.inSilence = false
			b.closeRegion(e.Timestamp)
		}
	}
}

// Finish closes any region still open at end and returns the report.
//
// The tracker sees zero-padded final blocks, so a refined time can fall
// after the last real frame. Event times are clamped to end, and regions
// that start at or after end or that end up empty are dropped.
func (b *Builder) Finish(end time.Duration) *Report {
	if b.inSilence {
		b.inSilence = false
		b.closeRegion(end)
	}

	endSec := end.Seconds()
	for i := range b.events {
		if b.events[i].Time > endSec {
			b.events[i].Time = endSec
		}
	}

	regions := make([]Region, 0, len(b.spans))
	for _, sp := range b.spans {
		if sp.start >= end {
			continue
		}
		sp.end = min(sp.end, end)
		length := sp.end - sp.start
		if length <= 0 || length < b.minSilence {
			continue
		}
		regions = append(regions, Region{
			Start:  sp.start.Seconds(),
			End:    sp.end.Seconds(),
			Length: length.Seconds(),
		})
	}

	return &Report{
		SampleRate:  b.meta.SampleRate,
		Channels:    b.meta.Channels,
		StepSize:    b.meta.StepSize,
		BlockSize:   b.meta.BlockSize,
		ThresholdDB: b.meta.ThresholdDB,
		Duration:    endSec,
		Events:      b.events,
		Regions:     regions,
	}
}

// closeRegion records the region opened at openAt. A refined end can precede
// the refined start when the probes of consecutive transitions overlap;
// Finish drops such empty regions.
func (b *Builder) closeRegion(end time.Duration) {
	b.spans = append(b.spans, span{start: b.openAt, end: end})
}
