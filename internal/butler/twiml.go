package butler

import (
	"bytes"
	"encoding/xml"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go/twiml"
	"net/http"
)

const ContentTypeXML = "application/xml"

// MessageTwiML wraps body into a messaging response with a single message.
func MessageTwiML(body string) string {
	envelope, err := twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: body}})
	if err != nil {
		log.Error().Err(err).Msg("cannot render TwiML, falling back to a hand-built envelope")
		var escaped bytes.Buffer
		_ = xml.EscapeText(&escaped, []byte(body))
		return xml.Header + "<Response><Message>" + escaped.String() + "</Message></Response>"
	}
	return envelope
}

func writeTwiML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", ContentTypeXML)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(MessageTwiML(body))); err != nil {
		log.Debug().Err(err).Msg("cannot write TwiML response")
	}
}
