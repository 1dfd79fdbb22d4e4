package audio_utils

import (
	"context"
	"fmt"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSampleRate    = 44100
	DefaultChannels      = 2
	DefaultFFmpegTimeout = 30 * time.Second
)

// Converter re-encodes an audio file on disk into a WAV the speech API accepts.
type Converter interface {
	Convert(ctx context.Context, inputPath string, outputPath string) error
}

type FFmpegConverter struct {
	Path       string
	SampleRate int
	Channels   int

	// Timeout is a wall-clock limit, ffmpeg is killed once it passes.
	Timeout time.Duration
}

func NewFFmpegConverter(path string, sampleRate int, channels int, timeout time.Duration) *FFmpegConverter {
	if path == "" {
		path = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	if timeout <= 0 {
		timeout = DefaultFFmpegTimeout
	}
	return &FFmpegConverter{Path: path, SampleRate: sampleRate, Channels: channels, Timeout: timeout}
}

func (f *FFmpegConverter) args(inputPath string, outputPath string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-i", inputPath,
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		outputPath,
	}
}

// Convert runs ffmpeg, every failure is a ConversionError.
func (f *FFmpegConverter) Convert(ctx context.Context, inputPath string, outputPath string) error {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.Path, f.args(inputPath, outputPath)...)
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return models.NewError(models.ConversionError, errors.Errorf("ffmpeg timed out after %s", f.Timeout))
	}
	if err != nil {
		return models.NewError(models.ConversionError, errors.Wrapf(err, "ffmpeg failed: %s", strings.TrimSpace(string(output))))
	}

	if stat, statErr := os.Stat(outputPath); statErr != nil || stat.Size() == 0 {
		return models.NewError(models.ConversionError, fmt.Errorf("ffmpeg produced no output at %s", outputPath))
	}

	log.Debug().Str("input", inputPath).Str("output", outputPath).Dur("duration", time.Since(startTime)).Msg("ffmpeg conversion done")
	return nil
}

// Available is used by the readiness check.
func (f *FFmpegConverter) Available(_ context.Context) error {
	if _, err := exec.LookPath(f.Path); err != nil {
		return errors.Wrapf(err, "%s not found", f.Path)
	}
	return nil
}
