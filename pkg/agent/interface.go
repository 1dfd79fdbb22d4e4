package agent

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
)

type ModelQuality int

// Declare constants with the custom type. These are your enum values.
const (
	FastAndCheap ModelQuality = iota
	SlowerAndSmarter
)

func (m ModelQuality) String() string {
	qualities := [...]string{
		"FastAndCheap",
		"SlowerAndSmarter",
	}

	if m < FastAndCheap || m > SlowerAndSmarter {
		return "Unknown"
	}

	return qualities[m]
}

// ChatAgent answers a conversation with a single completion.
// The butler keeps no history, callers usually pass models.NewConversationSimple.
type ChatAgent interface {
	RunPrompt(ctx context.Context, modelQuality ModelQuality, conversation *models.Conversation) (string, error)
}
