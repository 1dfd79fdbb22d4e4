package models

import (
	"github.com/rs/zerolog/log"
	"strings"
	"time"
)

type Trace struct {
	CreatedAt time.Time
	Creator   string

	ReceivedAt time.Time

	ProcessedAt time.Time
	Processor   string
}

func (t Trace) Log() {
	log.Trace().Time("created_at", t.CreatedAt).Str("creator", t.Creator).Time("processed_at", t.ProcessedAt).Str("processor", t.Processor).Dur("dur_to_process", t.ProcessedAt.Sub(t.CreatedAt)).Msgf("tracing")
}

func NewTrace(creator string) Trace {
	return Trace{
		CreatedAt: time.Now(),
		Creator:   creator,
	}
}

// Done stamps the trace as processed by processor and logs it.
func (t *Trace) Done(processor string) {
	t.ProcessedAt = time.Now()
	t.Processor = processor
	t.Log()
}

// InboundMessage is a single webhook call from the messaging platform.
// It lives only for the duration of that request (or its background job).
type InboundMessage struct {
	MessageSid string
	From       string
	To         string
	Body       string
	NumMedia   int

	// Only the first media item is considered, same as Twilio's MediaUrl0.
	MediaURL         string
	MediaContentType string

	Trace Trace
}

func (m InboundMessage) HasMedia() bool {
	return m.NumMedia > 0 && m.MediaURL != ""
}

// IsAudio is true for voice notes, also when Twilio did not tell us the content type.
func (m InboundMessage) IsAudio() bool {
	if !m.HasMedia() {
		return false
	}
	return m.MediaContentType == "" || strings.HasPrefix(m.MediaContentType, "audio/")
}

// ReplyDestination swaps the inbound pair, we answer from the number we were written to.
func (m InboundMessage) ReplyDestination() (to string, from string) {
	return m.From, m.To
}

// OutboundReply is the authoritative answer to an InboundMessage.
type OutboundReply struct {
	To   string
	From string
	Body string
}

func NewOutboundReply(msg InboundMessage, body string) OutboundReply {
	to, from := msg.ReplyDestination()
	return OutboundReply{To: to, From: from, Body: body}
}

type Message struct {
	Role       string
	Content    string
	FinishedAt time.Time
}

// Conversation for the Chat API.
// The butler is stateless, so every conversation carries a single user turn.
type Conversation struct {
	StartedAt time.Time
	Messages  []Message
}

func NewConversationSimple(text string) Conversation {
	return Conversation{
		StartedAt: time.Now(),
		Messages: []Message{
			{Role: "user", Content: text, FinishedAt: time.Now()},
		},
	}
}

func (c *Conversation) Add(role string, content string) {
	c.Messages = append(c.Messages, Message{
		Role:       role,
		Content:    content,
		FinishedAt: time.Now(),
	})
}

func (c *Conversation) GetLastPrompt() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[len(c.Messages)-1].Content
}

func (c *Conversation) DebugLog() {
	log.Debug().Msg("DUMPING FULL CONVERSATION")
	for i, message := range c.Messages {
		at := message.FinishedAt.Sub(c.StartedAt)
		log.Debug().Int("i", i).Str("role", message.Role).Dur("since_started", at).Msg(message.Content)
	}
}
