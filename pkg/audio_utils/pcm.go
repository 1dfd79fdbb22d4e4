package audio_utils

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"path/filepath"
	"strings"
	"time"
)

// PCMConverter wraps raw 16-bit PCM (audio/L16, stored as .pcm) into a WAV without ffmpeg.
// Every other container goes to Next.
type PCMConverter struct {
	fs         afero.Fs
	sampleRate int
	channels   int

	Next Converter
}

// NewPCMConverter assumes raw input is recorded at sampleRate with channels interleaved.
func NewPCMConverter(fs afero.Fs, sampleRate int, channels int, next Converter) *PCMConverter {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &PCMConverter{fs: fs, sampleRate: sampleRate, channels: channels, Next: next}
}

func IsRawPCM(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcm", ".raw":
		return true
	}
	return false
}

func (c *PCMConverter) Convert(ctx context.Context, inputPath string, outputPath string) error {
	if !IsRawPCM(inputPath) {
		if c.Next == nil {
			return models.Errorf(models.ConversionError, "no converter for %s", filepath.Ext(inputPath))
		}
		return c.Next.Convert(ctx, inputPath, outputPath)
	}
	if err := ctx.Err(); err != nil {
		return models.NewError(models.ConversionError, err)
	}
	startTime := time.Now()

	pcm, err := afero.ReadFile(c.fs, inputPath)
	if err != nil {
		return models.NewError(models.ConversionError, errors.Wrapf(err, "cannot read %s", inputPath))
	}
	wavBytes, err := EncodePCM16(pcm, c.sampleRate, c.channels)
	if err != nil {
		return models.NewError(models.ConversionError, err)
	}
	if err := afero.WriteFile(c.fs, outputPath, wavBytes, 0o644); err != nil {
		return models.NewError(models.ConversionError, errors.Wrapf(err, "cannot write %s", outputPath))
	}

	log.Debug().Str("input", inputPath).Str("output", outputPath).Dur("duration", time.Since(startTime)).Msg("pcm wrapped without ffmpeg")
	return nil
}
