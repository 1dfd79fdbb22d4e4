package transcriber

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/sashabaranov/go-openai"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newWhisperServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model %q", got)
		}
		if got := r.FormValue("language"); got != "de" {
			t.Errorf("unexpected language %q", got)
		}
		if _, header, err := r.FormFile("file"); err != nil || !strings.HasSuffix(header.Filename, ".wav") {
			t.Errorf("unexpected file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *openai.Client {
	config := openai.DefaultConfig("sk-test")
	config.BaseURL = baseURL + "/v1"
	return openai.NewClientWithConfig(config)
}

func TestOpenAIWhisper_SendAudio(t *testing.T) {
	srv := newWhisperServer(t, http.StatusOK, `{"text": " Zeig mir meine Termine "}`)
	w := NewOpenAIWhisper(newTestClient(srv.URL), "", "de")

	text, err := w.SendAudio(context.Background(), strings.NewReader("RIFF...."), "wav", "")
	if err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if text != "Zeig mir meine Termine" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestOpenAIWhisper_Error(t *testing.T) {
	srv := newWhisperServer(t, http.StatusInternalServerError, `{"error": {"message": "boom", "type": "server_error"}}`)
	w := NewOpenAIWhisper(newTestClient(srv.URL), "whisper-1", "de")

	_, err := w.SendAudio(context.Background(), strings.NewReader("RIFF...."), "wav", "")
	if !models.IsKind(err, models.TranscriptionError) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
}

func TestRemoveSilenceHallucinations(t *testing.T) {
	tests := map[string]string{
		"Zeig mir meine Termine":                                   "Zeig mir meine Termine",
		"Untertitel der Amara.org-Community":                       "",
		" Notiere: Milch kaufen Untertitel der Amara.org-Community": "Notiere: Milch kaufen",
		"":                                                         "",
	}
	for in, want := range tests {
		if got := removeSilenceHallucinations(in); got != want {
			t.Errorf("removeSilenceHallucinations(%q) = %q, want %q", in, got, want)
		}
	}
}
