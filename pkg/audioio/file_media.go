package audioio

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"io"
	"path/filepath"
	"strings"
)

type fileMediaDownloader struct {
	fs afero.Fs
}

// NewFileMediaDownloader serves media from fs, mediaURL is a path or a file:// URL.
// Used by the transcribe CLI to run the voice pipeline on recordings.
func NewFileMediaDownloader(fs afero.Fs) MediaDownloader {
	return &fileMediaDownloader{fs: fs}
}

func (d *fileMediaDownloader) Download(ctx context.Context, mediaURL string, w io.Writer) (written int64, err error) {
	if err = ctx.Err(); err != nil {
		err = models.NewError(models.DownloadError, err)
		return
	}
	path := strings.TrimPrefix(mediaURL, "file://")
	f, err := d.fs.Open(path)
	if err != nil {
		err = models.NewError(models.DownloadError, errors.Wrapf(err, "cannot open %s", path))
		return
	}
	defer func() {
		dbg(f.Close())
	}()

	written, err = io.Copy(w, io.LimitReader(f, MaxMediaBytes+1))
	switch {
	case err != nil:
		err = models.NewError(models.DownloadError, errors.Wrapf(err, "cannot read %s", path))
	case written > MaxMediaBytes:
		err = models.Errorf(models.DownloadError, "media larger than %d bytes", MaxMediaBytes)
	case written == 0:
		err = models.Errorf(models.DownloadError, "media is empty")
	}
	return
}

// ContentTypeForPath guesses the audio content type of a recording from its suffix, the inverse of FileExtension.
func ContentTypeForPath(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "mp3":
		return "audio/mpeg"
	case "m4a", "mp4", "aac":
		return "audio/mp4"
	case "amr":
		return "audio/amr"
	case "wav":
		return "audio/wav"
	case "webm":
		return "audio/webm"
	case "pcm", "raw":
		return "audio/L16"
	default:
		return "audio/ogg"
	}
}

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}
