// Package commands implements the silencetrack CLI commands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "silencetrack",
		Short: "Find silent regions in audio",
		Long: `silencetrack - block-based silence tracking for audio files.

Audio is read in fixed-size blocks. Each block is classified as silent or
not by comparing its level against a threshold in dB. When the state
changes, short probe windows locate the transition inside the block.

Examples:
  # Analyse a WAV file and print a JSON report
  silencetrack analyze speech.wav

  # Use a stricter threshold and write YAML to a file
  silencetrack analyze --threshold -50 --format yaml -o speech.yaml speech.wav

  # Non-WAV input is converted with ffmpeg
  silencetrack analyze podcast.mp3

  # Cut a long recording into ~45s chunks at pauses
  silencetrack split --out-dir chunks lecture.wav`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log probe diagnostics to stderr")

	root.AddCommand(newAnalyzeCmd(&verbose), newSplitCmd(&verbose), newParamsCmd())
	return root
}

// Execute runs the root command. An interrupt cancels a running analysis.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// newLogger returns a stderr text logger, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
