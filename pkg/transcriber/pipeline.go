package transcriber

import (
	"bytes"
	"context"
	"github.com/petrzlen/butler-golang/pkg/audio_utils"
	"github.com/petrzlen/butler-golang/pkg/audioio"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"path/filepath"
	"strings"
	"time"
)

const tempDirPrefix = "butler-audio-"

// Pipeline turns a voice message into text:
// download, re-encode with ffmpeg, check the WAV header, transcribe.
// Every request works in its own temp directory which is removed on every exit path.
type Pipeline struct {
	fs          afero.Fs
	tempRoot    string
	downloader  audioio.MediaDownloader
	converter   audio_utils.Converter
	transcriber Transcriber
}

// NewPipeline with an empty tempRoot uses the OS temp dir. The converter must see the same filesystem as fs.
func NewPipeline(fs afero.Fs, tempRoot string, downloader audioio.MediaDownloader, converter audio_utils.Converter, transcriber Transcriber) *Pipeline {
	return &Pipeline{
		fs:          fs,
		tempRoot:    tempRoot,
		downloader:  downloader,
		converter:   converter,
		transcriber: transcriber,
	}
}

func (p *Pipeline) Transcribe(ctx context.Context, msg models.InboundMessage) (text string, err error) {
	if !msg.HasMedia() {
		err = models.Errorf(models.InternalError, "message %s has no media", msg.MessageSid)
		return
	}
	startTime := time.Now()

	dir, err := afero.TempDir(p.fs, p.tempRoot, tempDirPrefix)
	if err != nil {
		err = models.NewError(models.InternalError, errors.Wrap(err, "cannot create temp dir"))
		return
	}
	defer func() {
		if removeErr := p.fs.RemoveAll(dir); removeErr != nil {
			log.Warn().Err(removeErr).Str("dir", dir).Msg("cannot remove temp audio dir")
		}
	}()

	inputPath := filepath.Join(dir, "input."+audioio.FileExtension(msg.MediaContentType))
	if err = p.download(ctx, msg.MediaURL, inputPath); err != nil {
		return
	}

	outputPath := filepath.Join(dir, "output.wav")
	if err = p.converter.Convert(ctx, inputPath, outputPath); err != nil {
		if models.KindOf(err) == models.InternalError {
			err = models.NewError(models.ConversionError, err)
		}
		return
	}

	wavBytes, err := afero.ReadFile(p.fs, outputPath)
	if err != nil {
		err = models.NewError(models.ConversionError, errors.Wrap(err, "cannot read converted wav"))
		return
	}
	info, err := audio_utils.InspectWav(wavBytes)
	if err != nil {
		err = models.NewError(models.ConversionError, err)
		return
	}

	text, err = p.transcriber.SendAudio(ctx, bytes.NewReader(wavBytes), "wav", "")
	if err != nil {
		if models.KindOf(err) == models.InternalError {
			err = models.NewError(models.TranscriptionError, err)
		}
		return
	}
	text = strings.TrimSpace(text)

	log.Info().Str("message_sid", msg.MessageSid).Dur("audio_duration", info.Duration).Dur("duration", time.Since(startTime)).Int("text_length", len(text)).Msg("voice message transcribed")
	return
}

func (p *Pipeline) download(ctx context.Context, mediaURL string, path string) error {
	f, err := p.fs.Create(path)
	if err != nil {
		return models.NewError(models.InternalError, errors.Wrap(err, "cannot create input file"))
	}
	_, err = p.downloader.Download(ctx, mediaURL, f)
	if err != nil && models.KindOf(err) == models.InternalError {
		err = models.NewError(models.DownloadError, err)
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = models.NewError(models.DownloadError, errors.Wrap(closeErr, "cannot write input file"))
	}
	return err
}
