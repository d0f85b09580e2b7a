package commands

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/silencetrack/internal/analysis"
	"github.com/maauso/silencetrack/internal/audio"
	"github.com/maauso/silencetrack/internal/pcm"
	"github.com/maauso/silencetrack/internal/silence"
)

type splitOptions struct {
	threshold  float64
	stepSize   int
	target     time.Duration
	minSilence time.Duration
	minChunk   time.Duration
	outDir     string
	ffmpegPath string
	sampleRate int
}

func newSplitCmd(verbose *bool) *cobra.Command {
	defaults := audio.DefaultSplitOpts()
	opts := splitOptions{}

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Cut an audio file into chunks at silent regions",
		Long: `Track the silent regions of an audio file, then cut it into WAV chunks
of roughly --target length. Each cut lands in the middle of the silent
region nearest the target boundary; where there is none within a third of
the target, the audio is cut at the boundary itself.

Chunks are written as chunk_000.wav, chunk_001.wav, ... and their paths
are printed one per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, args[0], opts, *verbose)
		},
	}

	f := cmd.Flags()
	f.Float64VarP(&opts.threshold, "threshold", "t", silence.DefaultThresholdDB, "silence threshold in dB, from -120 to 0")
	f.IntVarP(&opts.stepSize, "step-size", "s", silence.PreferredStepSize, "block length in frames")
	f.DurationVar(&opts.target, "target", defaults.ChunkTarget, "target chunk length")
	f.DurationVar(&opts.minSilence, "min-silence", defaults.MinSilence, "shortest silent region to cut in")
	f.DurationVar(&opts.minChunk, "min-chunk", defaults.MinChunk, "shortest chunk a cut may leave")
	f.StringVarP(&opts.outDir, "out-dir", "o", "chunks", "directory for the chunk files")
	f.StringVar(&opts.ffmpegPath, "ffmpeg", "ffmpeg", "ffmpeg binary used for non-WAV input")
	f.IntVar(&opts.sampleRate, "sample-rate", 0, "resample non-WAV input to this rate (0 keeps the source rate)")
	return cmd
}

func runSplit(cmd *cobra.Command, path string, opts splitOptions, verbose bool) error {
	if err := silence.ValidateThreshold(opts.threshold); err != nil {
		return err
	}
	if opts.stepSize <= 0 {
		return fmt.Errorf("--step-size must be positive, got %d", opts.stepSize)
	}
	if opts.target <= 0 {
		return fmt.Errorf("--target must be positive, got %s", opts.target)
	}

	ctx := cmd.Context()
	logger := newLogger(cmd.ErrOrStderr(), verbose)

	data, err := loadWAV(cmd, path, opts.ffmpegPath, opts.sampleRate)
	if err != nil {
		return err
	}

	src, err := pcm.NewWAVSource(bytes.NewReader(data), opts.stepSize)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	rep, err := analysis.Run(ctx, src, analysis.RunOptions{
		ThresholdDB: opts.threshold,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}

	// Second pass over the same bytes for the samples themselves.
	src, err = pcm.NewWAVSource(bytes.NewReader(data), opts.stepSize)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	samples, err := src.ReadAll()
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	points := audio.SplitPoints(rep.Regions, rep.Duration, audio.SplitOpts{
		ChunkTarget: opts.target,
		MinSilence:  opts.minSilence,
		MinChunk:    opts.minChunk,
	})
	logger.Info("split points chosen",
		slog.Int("regions", len(rep.Regions)),
		slog.Any("points", points),
	)

	chunks, err := audio.WriteChunks(ctx, opts.outDir, samples, src.SampleRate(), chunkBitDepth(src.BitDepth()), points)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, c := range chunks {
		if _, err := fmt.Fprintln(out, c); err != nil {
			return err
		}
	}
	return nil
}

// chunkBitDepth keeps the source depth where the encoder supports it.
func chunkBitDepth(depth int) int {
	if depth == 8 {
		return 16
	}
	return depth
}
