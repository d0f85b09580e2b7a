package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maauso/silencetrack/internal/pcm"
)

// WriteChunks cuts planar samples at the given split points (in seconds)
// and writes each piece to outputDir as chunk_NNN.wav. It returns the chunk
// paths in order. Chunks already written are removed on failure.
func WriteChunks(ctx context.Context, outputDir string, samples [][]float32, sampleRate, bitDepth int, splitPoints []float64) ([]string, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("write chunks: %w", pcm.ErrUnsupportedFormat)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	total := len(samples[0])
	bounds := frameBounds(splitPoints, sampleRate, total)

	var chunks []string
	cleanup := func() {
		for _, c := range chunks {
			_ = os.Remove(c)
		}
	}

	for i := 0; i+1 < len(bounds); i++ {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}

		outputPath := filepath.Join(outputDir, fmt.Sprintf("chunk_%03d.wav", i))
		piece := make([][]float32, len(samples))
		for c := range samples {
			piece[c] = samples[c][bounds[i]:bounds[i+1]]
		}

		if err := writeChunk(outputPath, piece, sampleRate, bitDepth); err != nil {
			cleanup()
			return nil, fmt.Errorf("write chunk %d: %w", i, err)
		}
		chunks = append(chunks, outputPath)
	}

	return chunks, nil
}

// frameBounds converts split times into increasing frame offsets that
// start at 0 and end at total.
func frameBounds(splitPoints []float64, sampleRate, total int) []int {
	bounds := []int{0}
	for _, p := range splitPoints {
		f := int(math.Round(p * float64(sampleRate)))
		if f <= bounds[len(bounds)-1] || f >= total {
			continue
		}
		bounds = append(bounds, f)
	}
	return append(bounds, total)
}

func writeChunk(path string, samples [][]float32, sampleRate, bitDepth int) error {
	f, err := os.Create(path) // #nosec G304 - path is built from the caller's output directory
	if err != nil {
		return err
	}
	if err := pcm.WriteWAV(f, samples, sampleRate, bitDepth); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// ListChunks lists all chunk files in a directory sorted by name.
func ListChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var chunks []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "chunk_") && strings.HasSuffix(entry.Name(), ".wav") {
			chunks = append(chunks, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(chunks)
	return chunks, nil
}
