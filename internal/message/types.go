package message

import (
	"time"

	"github.com/google/uuid"

	"hr-agent/internal/agent"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ActionTag marks an assistant turn with a follow-up the UI should offer.
type ActionTag string

const (
	ActionNone       ActionTag = ""
	ActionReviewForm ActionTag = "REVIEW_FORM"
)

// Turn is one entry of the transcript. Turns are never edited after they are
// appended.
type Turn struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Result    *agent.Result `json:"result,omitempty"`
	Action    ActionTag     `json:"action,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func NewTurn(role Role, content string, now time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: now.UTC(),
	}
}
