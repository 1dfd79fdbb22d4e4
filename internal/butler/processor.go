package butler

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/rs/zerolog/log"
	"runtime/debug"
	"strings"
	"time"
)

const EmptyMessage = "Ich konnte nichts verstehen 🎧 – bitte sprich oder schreib nochmal."

var userMessages = map[models.ErrorKind]string{
	models.DownloadError:      "Fehler beim Abrufen der Sprachnachricht 😕",
	models.ConversionError:    "Die Sprachnachricht konnte nicht verarbeitet werden 🎧.",
	models.TranscriptionError: "Die Sprachnachricht konnte nicht erkannt werden 🛠️.",
	models.AuthError:          "🔐 Anmeldung beim Dienst fehlgeschlagen. Bitte später erneut versuchen.",
	models.VendorError:        "⚠️ Der Dienst hat einen Fehler gemeldet. Bitte später erneut versuchen.",
	models.CompletionError:    "😕 Es ist ein unerwarteter Fehler aufgetreten.",
	models.InternalError:      "🚨 Unerwarteter Serverfehler. Bitte versuch es später erneut.",
}

// UserMessage is what the user reads when processing failed with err.
func UserMessage(err error) string {
	if msg, ok := userMessages[models.KindOf(err)]; ok {
		return msg
	}
	return userMessages[models.InternalError]
}

// VoiceTranscriber is implemented by *transcriber.Pipeline.
type VoiceTranscriber interface {
	Transcribe(ctx context.Context, msg models.InboundMessage) (string, error)
}

// MessageRouter is implemented by *router.Router.
type MessageRouter interface {
	Dispatch(ctx context.Context, text string) (reply string, routeName string, err error)
}

// Processor turns an inbound message into reply text, it never fails.
type Processor interface {
	Process(ctx context.Context, msg models.InboundMessage) string
}

type processor struct {
	transcriber VoiceTranscriber
	router      MessageRouter
}

func NewProcessor(transcriber VoiceTranscriber, router MessageRouter) Processor {
	return &processor{transcriber: transcriber, router: router}
}

func (p *processor) Process(ctx context.Context, msg models.InboundMessage) (reply string) {
	startTime := time.Now()
	msg.Trace.ReceivedAt = startTime
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("message_sid", msg.MessageSid).Str("stack", string(debug.Stack())).Msg("message processing panicked")
			reply = userMessages[models.InternalError]
		}
	}()

	text := strings.TrimSpace(msg.Body)
	if msg.IsAudio() {
		transcript, err := p.transcriber.Transcribe(ctx, msg)
		if err != nil {
			log.Error().Err(err).Str("kind", models.KindOf(err).String()).Str("message_sid", msg.MessageSid).Msg("voice message failed")
			return UserMessage(err)
		}
		text = transcript
	}
	if text == "" {
		log.Info().Str("message_sid", msg.MessageSid).Bool("media", msg.HasMedia()).Msg("nothing to answer")
		return EmptyMessage
	}

	reply, routeName, err := p.router.Dispatch(ctx, text)
	if err != nil {
		log.Error().Err(err).Str("kind", models.KindOf(err).String()).Str("route", routeName).Str("message_sid", msg.MessageSid).Msg("message processing failed")
		return UserMessage(err)
	}
	if strings.TrimSpace(reply) == "" {
		log.Warn().Str("route", routeName).Msg("empty reply")
		return userMessages[models.CompletionError]
	}

	msg.Trace.Done("butler.processor")
	log.Debug().Str("route", routeName).Dur("duration", time.Since(startTime)).Msg("message processed")
	return reply
}
