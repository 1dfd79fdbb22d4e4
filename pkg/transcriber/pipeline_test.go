package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"github.com/petrzlen/butler-golang/pkg/audio_utils"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/spf13/afero"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const testTempRoot = "/butler-tmp"

type fakeDownloader struct {
	err error
}

func (f *fakeDownloader) Download(_ context.Context, mediaURL string, w io.Writer) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := io.WriteString(w, "payload:"+strings.TrimPrefix(mediaURL, "https://media.test/"))
	return int64(n), err
}

// fakeConverter encodes the request id from the input file as the WAV sample rate.
type fakeConverter struct {
	fs      afero.Fs
	err     error
	garbage bool
}

func (f *fakeConverter) Convert(_ context.Context, inputPath string, outputPath string) error {
	if f.err != nil {
		return f.err
	}
	input, err := afero.ReadFile(f.fs, inputPath)
	if err != nil {
		return err
	}
	if f.garbage {
		return afero.WriteFile(f.fs, outputPath, []byte("definitely not a wav file"), 0o644)
	}
	id, err := strconv.Atoi(strings.TrimPrefix(string(input), "payload:"))
	if err != nil {
		return fmt.Errorf("unexpected input %q", input)
	}
	// Give concurrent requests a chance to interleave.
	time.Sleep(time.Millisecond)
	again, err := afero.ReadFile(f.fs, inputPath)
	if err != nil || !bytes.Equal(input, again) {
		return fmt.Errorf("input changed underneath us")
	}
	wavBytes, err := audio_utils.EncodePCM16(make([]byte, 1600), 8000+id, 1)
	if err != nil {
		return err
	}
	return afero.WriteFile(f.fs, outputPath, wavBytes, 0o644)
}

type fakeTranscriber struct {
	err error
}

func (f *fakeTranscriber) SendAudio(_ context.Context, input io.Reader, fileExtension string, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if fileExtension != "wav" {
		return "", fmt.Errorf("unexpected extension %s", fileExtension)
	}
	data, err := io.ReadAll(input)
	if err != nil {
		return "", err
	}
	info, err := audio_utils.InspectWav(data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(" text-%d ", info.SampleRate-8000), nil
}

func newTestPipeline(t *testing.T, downloader *fakeDownloader, converter *fakeConverter, transcriber *fakeTranscriber) (*Pipeline, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(testTempRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	converter.fs = fs
	return NewPipeline(fs, testTempRoot, downloader, converter, transcriber), fs
}

func voiceMessage(id int) models.InboundMessage {
	return models.InboundMessage{
		MessageSid:       fmt.Sprintf("SM%d", id),
		NumMedia:         1,
		MediaURL:         fmt.Sprintf("https://media.test/%d", id),
		MediaContentType: "audio/ogg",
	}
}

func assertNoTempDirs(t *testing.T, fs afero.Fs) {
	t.Helper()
	entries, err := afero.ReadDir(fs, testTempRoot)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("temp dir left behind: %s", e.Name())
	}
}

func TestPipeline_Transcribe(t *testing.T) {
	p, fs := newTestPipeline(t, &fakeDownloader{}, &fakeConverter{}, &fakeTranscriber{})

	text, err := p.Transcribe(context.Background(), voiceMessage(7))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "text-7" {
		t.Errorf("unexpected text %q", text)
	}
	assertNoTempDirs(t, fs)
}

func TestPipeline_FailuresCleanUp(t *testing.T) {
	tests := []struct {
		name        string
		downloader  *fakeDownloader
		converter   *fakeConverter
		transcriber *fakeTranscriber
		want        models.ErrorKind
	}{
		{
			name:        "download 404",
			downloader:  &fakeDownloader{err: &models.Error{Kind: models.DownloadError, Status: 404}},
			converter:   &fakeConverter{},
			transcriber: &fakeTranscriber{},
			want:        models.DownloadError,
		},
		{
			name:        "download untyped",
			downloader:  &fakeDownloader{err: fmt.Errorf("connection reset")},
			converter:   &fakeConverter{},
			transcriber: &fakeTranscriber{},
			want:        models.DownloadError,
		},
		{
			name:        "ffmpeg fails",
			downloader:  &fakeDownloader{},
			converter:   &fakeConverter{err: fmt.Errorf("exit status 1")},
			transcriber: &fakeTranscriber{},
			want:        models.ConversionError,
		},
		{
			name:        "invalid wav",
			downloader:  &fakeDownloader{},
			converter:   &fakeConverter{garbage: true},
			transcriber: &fakeTranscriber{},
			want:        models.ConversionError,
		},
		{
			name:        "transcription fails",
			downloader:  &fakeDownloader{},
			converter:   &fakeConverter{},
			transcriber: &fakeTranscriber{err: fmt.Errorf("503")},
			want:        models.TranscriptionError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fs := newTestPipeline(t, tt.downloader, tt.converter, tt.transcriber)
			_, err := p.Transcribe(context.Background(), voiceMessage(1))
			if got := models.KindOf(err); err == nil || got != tt.want {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
			assertNoTempDirs(t, fs)
		})
	}
}

func TestPipeline_NoMedia(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeDownloader{}, &fakeConverter{}, &fakeTranscriber{})
	if _, err := p.Transcribe(context.Background(), models.InboundMessage{Body: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPipeline_ConcurrentRequestsDoNotCollide(t *testing.T) {
	p, fs := newTestPipeline(t, &fakeDownloader{}, &fakeConverter{}, &fakeTranscriber{})

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			text, err := p.Transcribe(context.Background(), voiceMessage(id))
			if err != nil {
				errs <- err
				return
			}
			if want := fmt.Sprintf("text-%d", id); text != want {
				errs <- fmt.Errorf("request %d got %q", id, text)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assertNoTempDirs(t, fs)
}
