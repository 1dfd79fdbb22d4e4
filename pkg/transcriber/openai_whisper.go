package transcriber

import (
	"context"
	"fmt"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"io"
	"strings"
	"time"
)

const DefaultModel = "whisper-1"

type openAIWhisper struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAIWhisper with an empty language lets Whisper detect it.
func NewOpenAIWhisper(client *openai.Client, model string, language string) Transcriber {
	if model == "" {
		model = DefaultModel
	}
	return &openAIWhisper{
		client:   client,
		model:    model,
		language: language,
	}
}

func (o *openAIWhisper) SendAudio(ctx context.Context, input io.Reader, fileExtension string, prompt string) (result string, err error) {
	startTime := time.Now()
	req := openai.AudioRequest{
		Model:  o.model,
		Reader: input,
		// Only the extension matters, the API sniffs the format from it.
		FilePath: fmt.Sprintf("voice-message.%s", fileExtension),
		Language: o.language,
		Prompt:   prompt,
	}

	log.Debug().Str("model", req.Model).Str("language", req.Language).Msg("create transcription request")
	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		err = models.NewError(models.TranscriptionError, errors.Wrap(err, "cannot create transcription"))
		return
	}

	result = removeSilenceHallucinations(resp.Text)
	if result != resp.Text {
		log.Info().Str("original_text", resp.Text).Str("processed_text", result).Msg("transcription post-processing removed some text")
	}

	log.Debug().Str("transcription", result).Dur("time_elapsed", time.Since(startTime)).Msg("received transcription")
	return
}

// Whisper tends to "hear" these credits on silent or very short recordings.
var silenceHallucinations = []string{
	"Untertitel der Amara.org-Community",
	"Untertitel im Auftrag des ZDF für funk, 2017",
	"Untertitel im Auftrag des ZDF, 2020",
	"Vielen Dank fürs Zuschauen!",
	"MBC 뉴스 이덕영입니다.",
}

func removeSilenceHallucinations(text string) string {
	for _, phrase := range silenceHallucinations {
		text = strings.ReplaceAll(text, phrase, "")
	}
	return strings.TrimSpace(text)
}
