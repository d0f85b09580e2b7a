package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/maauso/silencetrack/internal/report"
	"github.com/maauso/silencetrack/internal/silence"
)

// BlockSource yields consecutive fixed-size blocks of a stream.
// Next returns io.EOF once the stream is exhausted.
type BlockSource interface {
	Channels() int
	SampleRate() int
	StepSize() int
	Next() (silence.Block, error)
	// Elapsed returns the stream time covered by the blocks read so far,
	// excluding padding.
	Elapsed() time.Duration
}

// RunOptions configures a single tracker run.
type RunOptions struct {
	ThresholdDB float64
	MinSilence  time.Duration
	// BlockSize is the host block size handed to the tracker. Zero means
	// the source step size.
	BlockSize int
	Logger    *slog.Logger
}

// Run drives a new tracker over every block of src and returns the report.
// The context is checked between blocks.
func Run(ctx context.Context, src BlockSource, opts RunOptions) (*report.Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracker, err := silence.New(float64(src.SampleRate()),
		silence.WithThreshold(opts.ThresholdDB),
		silence.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = src.StepSize()
	}
	if err := tracker.Initialise(src.Channels(), src.StepSize(), blockSize); err != nil {
		return nil, fmt.Errorf("initialise tracker: %w", err)
	}

	builder := report.NewBuilder(report.Metadata{
		SampleRate:  src.SampleRate(),
		Channels:    src.Channels(),
		StepSize:    src.StepSize(),
		BlockSize:   tracker.BlockSize(),
		ThresholdDB: tracker.Threshold(),
	}, report.WithMinSilence(opts.MinSilence))

	blocks := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		block, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read block %d: %w", blocks, err)
		}

		events, err := tracker.Process(block)
		if err != nil {
			return nil, fmt.Errorf("process block %d: %w", blocks, err)
		}
		builder.Add(events...)
		blocks++
	}
	builder.Add(tracker.Flush()...)

	r := builder.Finish(src.Elapsed())
	logger.Debug("tracker run finished",
		slog.Int("blocks", blocks),
		slog.Int("events", len(r.Events)),
		slog.Int("regions", len(r.Regions)),
	)
	return r, nil
}
