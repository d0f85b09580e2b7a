package commands

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/silencetrack/internal/analysis"
	"github.com/maauso/silencetrack/internal/media"
	"github.com/maauso/silencetrack/internal/pcm"
	"github.com/maauso/silencetrack/internal/report"
	"github.com/maauso/silencetrack/internal/silence"
)

type analyzeOptions struct {
	threshold  float64
	stepSize   int
	blockSize  int
	minSilence time.Duration
	format     string
	output     string
	ffmpegPath string
	sampleRate int
}

func newAnalyzeCmd(verbose *bool) *cobra.Command {
	opts := analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Track silent regions in an audio file",
		Long: `Read an audio file block by block and report where silence starts
and ends.

WAV files (8, 16, 24 or 32 bit integer PCM) are decoded directly. Other
formats are converted with ffmpeg first. Use "-" to read from stdin.

The report lists every tracker event (silencestart, silenceend and the
0/1 silencelevel signal) and the silent regions they delimit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], opts, *verbose)
		},
	}

	f := cmd.Flags()
	f.Float64VarP(&opts.threshold, "threshold", "t", silence.DefaultThresholdDB, "silence threshold in dB, from -120 to 0")
	f.IntVarP(&opts.stepSize, "step-size", "s", silence.PreferredStepSize, "block length in frames")
	f.IntVar(&opts.blockSize, "block-size", 0, "host block size recorded in the report (0 uses the step size)")
	f.DurationVar(&opts.minSilence, "min-silence", 0, "omit silent regions shorter than this from the report")
	f.StringVarP(&opts.format, "format", "f", "json", "report format (json, yaml, msgpack)")
	f.StringVarP(&opts.output, "output", "o", "", "write the report to this file instead of stdout")
	f.StringVar(&opts.ffmpegPath, "ffmpeg", "ffmpeg", "ffmpeg binary used for non-WAV input")
	f.IntVar(&opts.sampleRate, "sample-rate", 0, "resample non-WAV input to this rate (0 keeps the source rate)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, path string, opts analyzeOptions, verbose bool) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if err := silence.ValidateThreshold(opts.threshold); err != nil {
		return err
	}
	if opts.stepSize <= 0 {
		return fmt.Errorf("--step-size must be positive, got %d", opts.stepSize)
	}
	if opts.blockSize < 0 {
		return fmt.Errorf("--block-size must not be negative, got %d", opts.blockSize)
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
		MinSilence:  opts.minSilence,
		BlockSize:   opts.blockSize,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}

	return writeReport(cmd.OutOrStdout(), opts.output, rep, format)
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is the user's own argument
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// loadWAV reads the input and converts it to WAV when it is not one already.
func loadWAV(cmd *cobra.Command, path, ffmpegPath string, sampleRate int) ([]byte, error) {
	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if media.IsWAV(data) {
		return data, nil
	}
	return transcode(cmd.Context(), data, ffmpegPath, sampleRate)
}

// transcode converts non-WAV input through ffmpeg in a scratch directory.
func transcode(ctx context.Context, data []byte, ffmpegPath string, sampleRate int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "silencetrack-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	src := filepath.Join(dir, "input")
	if err := os.WriteFile(src, data, 0600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	dst := filepath.Join(dir, "input.wav")
	t := media.NewFFmpegTranscoder(ffmpegPath)
	if err := t.ToWAV(ctx, src, dst, sampleRate); err != nil {
		return nil, err
	}
	return os.ReadFile(dst) // #nosec G304 - dst is constructed internally
}

func writeReport(stdout io.Writer, output string, rep *report.Report, format report.Format) error {
	if output == "" {
		return report.Encode(stdout, rep, format)
	}

	f, err := os.Create(output) // #nosec G304 - output is the user's own argument
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	w := bufio.NewWriter(f)
	if err := report.Encode(w, rep, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	return f.Close()
}
