package agent

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"strings"
	"time"
)

const (
	DefaultFastModel  = "gpt-4o-mini"
	DefaultSmartModel = "gpt-4o"
)

type openaiChatAgent struct {
	client     *openai.Client
	fastModel  string
	smartModel string
}

// NewOpenAIChatAgent uses fastModel for FastAndCheap, empty means DefaultFastModel.
func NewOpenAIChatAgent(client *openai.Client, fastModel string) ChatAgent {
	if fastModel == "" {
		fastModel = DefaultFastModel
	}
	return &openaiChatAgent{client: client, fastModel: fastModel, smartModel: DefaultSmartModel}
}

func conversationToOpenAiMessages(conversation *models.Conversation) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(conversation.Messages))
	for i, message := range conversation.Messages {
		result[i].Role = message.Role
		result[i].Content = message.Content
	}
	return result
}

func (o *openaiChatAgent) RunPrompt(ctx context.Context, modelQuality ModelQuality, conversation *models.Conversation) (result string, err error) {
	model := o.fastModel
	if modelQuality == SlowerAndSmarter {
		model = o.smartModel
	}
	if conversation == nil || len(conversation.Messages) == 0 {
		err = models.Errorf(models.CompletionError, "empty conversation")
		return
	}

	startTime := time.Now()
	chatRequest := openai.ChatCompletionRequest{
		Model:    model,
		Messages: conversationToOpenAiMessages(conversation),
	}
	log.Info().Int("prompt_length", len(conversation.GetLastPrompt())).Str("model", chatRequest.Model).Msg("executeChatRequest")

	resp, err := o.client.CreateChatCompletion(ctx, chatRequest)
	if err != nil {
		err = models.NewError(models.CompletionError, errors.Wrap(err, "cannot create chat completion"))
		return
	}
	if len(resp.Choices) == 0 {
		err = models.Errorf(models.CompletionError, "chat completion returned no choices")
		return
	}

	result = strings.TrimSpace(resp.Choices[0].Message.Content)
	conversation.Add(openai.ChatMessageRoleAssistant, result)
	log.Info().Dur("duration", time.Since(startTime)).Int("total_tokens", resp.Usage.TotalTokens).Msg("chat completion received")
	log.Debug().Str("completion", result).Msg("full completion")
	return
}
