package analysis

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/silencetrack/internal/pcm"
	"github.com/maauso/silencetrack/internal/silence"
)

func TestRun_GapFixture(t *testing.T) {
	src, err := pcm.NewWAVSource(bytes.NewReader(gapFixture(t)), 1024)
	require.NoError(t, err)

	r, err := Run(context.Background(), src, RunOptions{ThresholdDB: -70})
	require.NoError(t, err)

	assert.Equal(t, fixtureRate, r.SampleRate)
	assert.Equal(t, 1, r.Channels)
	assert.Equal(t, 1024, r.StepSize)
	assert.Equal(t, 1024, r.BlockSize)
	assert.Equal(t, -70.0, r.ThresholdDB)
	assert.InDelta(t, 1.536, r.Duration, 1e-9)

	kinds := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{
		"silencelevel",
		"silencelevel", "silenceend",
		"silencelevel", "silencestart",
	}, kinds)
	assert.InDelta(t, 0.512, r.Events[2].Time, 1e-9)
	assert.InDelta(t, 1.024, r.Events[4].Time, 1e-9)

	require.Len(t, r.Regions, 2)
	assert.InDelta(t, 0.0, r.Regions[0].Start, 1e-9)
	assert.InDelta(t, 0.512, r.Regions[0].End, 1e-9)
	assert.InDelta(t, 1.024, r.Regions[1].Start, 1e-9)
	assert.InDelta(t, 1.536, r.Regions[1].End, 1e-9)
}

func TestRun_BlockSize(t *testing.T) {
	src, err := pcm.NewWAVSource(bytes.NewReader(gapFixture(t)), 1024)
	require.NoError(t, err)

	r, err := Run(context.Background(), src, RunOptions{ThresholdDB: -70, BlockSize: 4096})
	require.NoError(t, err)

	assert.Equal(t, 1024, r.StepSize)
	assert.Equal(t, 4096, r.BlockSize)
	assert.Len(t, r.Regions, 2)
}

func TestRun_MinSilence(t *testing.T) {
	src, err := pcm.NewWAVSource(bytes.NewReader(gapFixture(t)), 1024)
	require.NoError(t, err)

	r, err := Run(context.Background(), src, RunOptions{ThresholdDB: -70, MinSilence: time.Second})
	require.NoError(t, err)
	assert.Empty(t, r.Regions)
	assert.Len(t, r.Events, 5)
}

func TestRun_InvalidThreshold(t *testing.T) {
	src, err := pcm.NewWAVSource(bytes.NewReader(gapFixture(t)), 1024)
	require.NoError(t, err)

	_, err = Run(context.Background(), src, RunOptions{ThresholdDB: 10})
	assert.ErrorIs(t, err, silence.ErrThresholdRange)
}

func TestRun_Cancelled(t *testing.T) {
	src, err := pcm.NewWAVSource(bytes.NewReader(gapFixture(t)), 1024)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Run(ctx, src, RunOptions{ThresholdDB: -70})
	assert.ErrorIs(t, err, context.Canceled)
}

// failingSource yields silent blocks and then a read error.
type failingSource struct {
	blocks int
	err    error
	buf    [][]float32
}

func (s *failingSource) Channels() int { return 1 }
func (s *failingSource) SampleRate() int { return fixtureRate }
func (s *failingSource) StepSize() int { return 256 }
func (s *failingSource) Elapsed() time.Duration { return 0 }
func (s *failingSource) Next() (silence.Block, error) {
	if s.blocks == 0 {
		return silence.Block{}, s.err
	}
	s.blocks--
	if s.buf == nil {
		s.buf = [][]float32{make([]float32, 256)}
	}
	return silence.Block{Samples: s.buf}, nil
}

func TestRun_SourceError(t *testing.T) {
	readErr := errors.New("disk gone")
	_, err := Run(context.Background(), &failingSource{blocks: 2, err: readErr}, RunOptions{ThresholdDB: -70})
	require.ErrorIs(t, err, readErr)
	assert.Contains(t, err.Error(), "read block 2")
}

func TestRun_EmptySource(t *testing.T) {
	r, err := Run(context.Background(), &failingSource{err: io.EOF}, RunOptions{ThresholdDB: -70})
	require.NoError(t, err)
	assert.Empty(t, r.Events)
	assert.Empty(t, r.Regions)
	assert.Zero(t, r.Duration)
}

func TestRun_PaddedTailStaysWithinDuration(t *testing.T) {
	// Two loud blocks, then 20 quiet frames that the source pads to a full
	// block. The refined silence start lands inside the padding.
	samples := make([]float32, 2048+20)
	for i := 0; i < 2048; i++ {
		samples[i] = 0.5
	}
	for i := 2048; i < len(samples); i++ {
		samples[i] = 0.002
	}

	src, err := pcm.NewWAVSource(bytes.NewReader(encodeWAV(t, [][]float32{samples})), 1024)
	require.NoError(t, err)

	r, err := Run(context.Background(), src, RunOptions{ThresholdDB: -70})
	require.NoError(t, err)

	assert.InDelta(t, 2068.0/fixtureRate, r.Duration, 1e-9)
	require.NotEmpty(t, r.Events)
	for _, e := range r.Events {
		assert.LessOrEqual(t, e.Time, r.Duration, "event %s", e.Kind)
	}
	assert.Equal(t, "silencestart", r.Events[len(r.Events)-1].Kind)
	assert.Equal(t, r.Duration, r.Events[len(r.Events)-1].Time)
	for _, reg := range r.Regions {
		assert.Greater(t, reg.Length, 0.0)
		assert.LessOrEqual(t, reg.End, r.Duration)
	}
	assert.Empty(t, r.Regions)
}
