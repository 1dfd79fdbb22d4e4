package audioio

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxMediaBytes matches the upload limit of the Whisper API.
const MaxMediaBytes = 25 * 1024 * 1024

type twilioMediaDownloader struct {
	httpClient *http.Client
	accountSid string
	authToken  string
}

// NewTwilioMediaDownloader authenticates with the account credentials, media URLs are private by default.
func NewTwilioMediaDownloader(httpClient *http.Client, accountSid string, authToken string) MediaDownloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &twilioMediaDownloader{
		httpClient: httpClient,
		accountSid: accountSid,
		authToken:  authToken,
	}
}

func (d *twilioMediaDownloader) Download(ctx context.Context, mediaURL string, w io.Writer) (written int64, err error) {
	startTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		err = models.NewError(models.DownloadError, errors.Wrapf(err, "invalid media url %s", mediaURL))
		return
	}
	if d.accountSid != "" {
		req.SetBasicAuth(d.accountSid, d.authToken)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		err = models.NewError(models.DownloadError, errors.Wrap(err, "media request failed"))
		return
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("cannot close media body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = &models.Error{
			Kind:   models.DownloadError,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
		return
	}

	written, err = io.Copy(w, io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		err = models.NewError(models.DownloadError, errors.Wrap(err, "cannot read media body"))
		return
	}
	if written > MaxMediaBytes {
		err = models.Errorf(models.DownloadError, "media larger than %d bytes", MaxMediaBytes)
		return
	}
	if written == 0 {
		err = models.Errorf(models.DownloadError, "media is empty")
		return
	}

	log.Debug().Int64("bytes", written).Str("content_type", resp.Header.Get("Content-Type")).Dur("duration", time.Since(startTime)).Msg("media downloaded")
	return
}

// FileExtension picks the suffix ffmpeg uses to sniff the input container.
func FileExtension(contentType string) string {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch mediaType {
	case "audio/ogg", "audio/opus":
		return "ogg"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/mp4", "audio/x-m4a", "audio/aac":
		return "m4a"
	case "audio/amr":
		return "amr"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/webm":
		return "webm"
	case "audio/l16":
		return "pcm"
	default:
		// WhatsApp voice notes are ogg/opus.
		return "ogg"
	}
}
