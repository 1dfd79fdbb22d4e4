package butler

import (
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go/client"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxFormBytes = 64 * 1024

// ParseInbound reads the Twilio messaging webhook form, only the first media item is used.
// NumMedia is taken as sent, a MediaUrl0 without a positive count is not treated as media.
func ParseInbound(form url.Values) models.InboundMessage {
	msg := models.InboundMessage{
		MessageSid:       form.Get("MessageSid"),
		From:             form.Get("From"),
		To:               form.Get("To"),
		Body:             form.Get("Body"),
		MediaURL:         form.Get("MediaUrl0"),
		MediaContentType: form.Get("MediaContentType0"),
		Trace:            models.NewTrace("twilio.webhook"),
	}
	numMedia, err := strconv.Atoi(strings.TrimSpace(form.Get("NumMedia")))
	if err != nil || numMedia < 0 {
		numMedia = 0
	}
	msg.NumMedia = numMedia
	return msg
}

type Webhook struct {
	dispatcher Dispatcher

	// validator is nil when signature validation is off.
	validator     *client.RequestValidator
	publicBaseURL string
}

func NewWebhook(dispatcher Dispatcher) *Webhook {
	return &Webhook{dispatcher: dispatcher}
}

// WithSignatureValidation rejects requests whose X-Twilio-Signature does not match publicBaseURL + request URI.
func (h *Webhook) WithSignatureValidation(authToken string, publicBaseURL string) *Webhook {
	validator := client.NewRequestValidator(authToken)
	h.validator = &validator
	h.publicBaseURL = strings.TrimRight(publicBaseURL, "/")
	return h
}

func (h *Webhook) validSignature(r *http.Request) bool {
	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}
	return h.validator.Validate(h.publicBaseURL+r.URL.RequestURI(), params, r.Header.Get("X-Twilio-Signature"))
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		log.Warn().Err(err).Msg("cannot parse webhook form")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if h.validator != nil && !h.validSignature(r) {
		log.Warn().Str("path", r.URL.Path).Msg("invalid Twilio signature")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	msg := ParseInbound(r.PostForm)
	log.Info().Str("from", msg.From).Str("message_sid", msg.MessageSid).Int("num_media", msg.NumMedia).Int("body_length", len(msg.Body)).Msg("inbound message")

	writeTwiML(w, http.StatusOK, h.dispatcher.Reply(r.Context(), msg))
}
