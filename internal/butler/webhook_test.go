package butler

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/twilio/twilio-go/client"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
)

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

func decodeTwiML(t *testing.T, body string) []string {
	t.Helper()
	var resp twimlResponse
	if err := xml.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("invalid TwiML %q: %v", body, err)
	}
	return resp.Messages
}

type recordingDispatcher struct {
	reply string
	got   []models.InboundMessage
}

func (d *recordingDispatcher) Reply(_ context.Context, msg models.InboundMessage) string {
	d.got = append(d.got, msg)
	return d.reply
}

func TestMessageTwiML_Escapes(t *testing.T) {
	body := `Termine <heute> & "morgen"`
	messages := decodeTwiML(t, MessageTwiML(body))
	if len(messages) != 1 || messages[0] != body {
		t.Errorf("got %q", messages)
	}
}

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name         string
		form         url.Values
		wantNumMedia int
		wantAudio    bool
	}{
		{
			name:         "text",
			form:         url.Values{"Body": {"hallo"}, "NumMedia": {"0"}},
			wantNumMedia: 0,
		},
		{
			name:         "voice note",
			form:         url.Values{"NumMedia": {"1"}, "MediaUrl0": {"https://api.twilio.com/m/1"}, "MediaContentType0": {"audio/ogg"}},
			wantNumMedia: 1,
			wantAudio:    true,
		},
		{
			name:         "media url without count",
			form:         url.Values{"MediaUrl0": {"https://api.twilio.com/m/1"}, "MediaContentType0": {"audio/ogg"}},
			wantNumMedia: 0,
		},
		{
			name:         "negative count",
			form:         url.Values{"NumMedia": {"-1"}, "MediaUrl0": {"https://api.twilio.com/m/1"}},
			wantNumMedia: 0,
		},
		{
			name:         "garbage count",
			form:         url.Values{"NumMedia": {"many"}},
			wantNumMedia: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.form.Set("From", "whatsapp:+491700000000")
			tt.form.Set("To", "whatsapp:+14155238886")
			msg := ParseInbound(tt.form)
			if msg.NumMedia != tt.wantNumMedia || msg.IsAudio() != tt.wantAudio {
				t.Errorf("got num_media=%d audio=%v", msg.NumMedia, msg.IsAudio())
			}
			if msg.From != "whatsapp:+491700000000" || msg.To != "whatsapp:+14155238886" {
				t.Errorf("addresses not parsed: %+v", msg)
			}
			if msg.Trace.CreatedAt.IsZero() {
				t.Error("trace not started")
			}
		})
	}
}

func postForm(h http.Handler, target string, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_RepliesWithTwiML(t *testing.T) {
	d := &recordingDispatcher{reply: "Keine Mails gefunden."}
	rec := postForm(NewWebhook(d), "/webhook", url.Values{"Body": {"mails"}, "From": {"whatsapp:+49"}, "MessageSid": {"SM1"}}, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentTypeXML {
		t.Errorf("content type %q", ct)
	}
	if messages := decodeTwiML(t, rec.Body.String()); len(messages) != 1 || messages[0] != "Keine Mails gefunden." {
		t.Errorf("got %q", messages)
	}
	if len(d.got) != 1 || d.got[0].Body != "mails" || d.got[0].MessageSid != "SM1" {
		t.Errorf("dispatcher got %+v", d.got)
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	d := &recordingDispatcher{}
	rec := httptest.NewRecorder()
	NewWebhook(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status %d", rec.Code)
	}
	if len(d.got) != 0 {
		t.Error("dispatcher must not be called")
	}
}

func TestWebhook_Signature(t *testing.T) {
	const token = "auth-token"
	const publicBase = "https://butler.example.com"
	form := url.Values{"Body": {"hallo"}, "From": {"whatsapp:+49"}, "To": {"whatsapp:+1"}}

	params := map[string]string{}
	for k := range form {
		params[k] = form.Get(k)
	}
	signature := sign(token, publicBase+"/webhook", params)
	validator := client.NewRequestValidator(token)
	if !validator.Validate(publicBase+"/webhook", params, signature) {
		t.Fatal("test signature does not match the twilio-go validator")
	}

	tests := []struct {
		name      string
		signature string
		wantCode  int
	}{
		{"missing", "", http.StatusForbidden},
		{"wrong", "bm9wZQ==", http.StatusForbidden},
		{"valid", signature, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{reply: "ok"}
			h := NewWebhook(d).WithSignatureValidation(token, publicBase+"/")
			rec := postForm(h, "/webhook", form, tt.signature)
			if rec.Code != tt.wantCode {
				t.Errorf("status %d, want %d", rec.Code, tt.wantCode)
			}
			if (tt.wantCode == http.StatusOK) != (len(d.got) == 1) {
				t.Errorf("dispatcher calls: %d", len(d.got))
			}
		})
	}
}

// sign computes X-Twilio-Signature: HMAC-SHA1 over the url followed by the sorted key/value pairs.
func sign(token string, fullURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
