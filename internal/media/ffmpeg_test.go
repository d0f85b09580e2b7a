package media

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

func TestNewFFmpegTranscoder(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		p := NewFFmpegTranscoder("")
		assert.Equal(t, "ffmpeg", p.ffmpegPath)
	})

	t.Run("custom path", func(t *testing.T) {
		p := NewFFmpegTranscoder("/usr/local/bin/ffmpeg")
		assert.Equal(t, "/usr/local/bin/ffmpeg", p.ffmpegPath)
	})
}

func TestIsWAV(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		expected bool
	}{
		{"wav header", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), true},
		{"riff but not wave", []byte("RIFF\x24\x00\x00\x00AVI LIST"), false},
		{"mp3 id3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00"), false},
		{"too short", []byte("RIFF"), false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsWAV(tt.header))
		})
	}
}

func TestToWAV_InvalidSampleRate(t *testing.T) {
	p := NewFFmpegTranscoder("")
	err := p.ToWAV(context.Background(), "in.mp3", "out.wav", -1)
	assert.ErrorIs(t, err, ErrInvalidSampleRate)
}

func TestToWAV_MissingBinary(t *testing.T) {
	p := NewFFmpegTranscoder(filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	err := p.ToWAV(context.Background(), "in.mp3", "out.wav", 0)

	var ffErr *FFmpegError
	require.True(t, errors.As(err, &ffErr))
	assert.Contains(t, ffErr.Args, "pcm_s16le")
}

func TestToWAV(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "tone.ogg")

	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi",
		"-i", "sine=frequency=440:sample_rate=22050:duration=0.5",
		"-c:a", "libvorbis",
		src,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot create ogg fixture: %v\n%s", err, output)
	}

	dst := filepath.Join(tmpDir, "tone.wav")
	require.NoError(t, NewFFmpegTranscoder("").ToWAV(context.Background(), src, dst, 16000))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, IsWAV(data))
}

func TestToWAV_Cancelled(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFFmpegTranscoder("").ToWAV(ctx, "in.mp3", filepath.Join(t.TempDir(), "out.wav"), 0)
	require.Error(t, err)
}
