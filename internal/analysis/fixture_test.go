package analysis

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maauso/silencetrack/internal/pcm"
)

const fixtureRate = 8000

// gapFixture returns 16-bit mono WAV bytes laid out as 4096 frames of
// digital silence, 4096 frames of a 440 Hz tone and 4096 frames of silence.
func gapFixture(t *testing.T) []byte {
	t.Helper()

	samples := make([]float32, 3*4096)
	for i := 4096; i < 8192; i++ {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/fixtureRate))
	}
	return encodeWAV(t, [][]float32{samples})
}

func encodeWAV(t *testing.T, samples [][]float32) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, pcm.WriteWAV(f, samples, fixtureRate, 16))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
