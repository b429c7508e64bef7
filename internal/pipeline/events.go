package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// EventType labels a generation lifecycle event.
type EventType string

const (
	EventGenerationStarted EventType = "generation.started"
	EventReferenceSelected EventType = "reference.selected"
	EventDraftGenerated    EventType = "draft.generated"
	EventRewriteApplied    EventType = "rewrite.applied"
	EventGenerationFailed  EventType = "generation.failed"
	EventPolicyViolation   EventType = "policy.violation"
)

// GenerationEvent is one entry in the generation audit stream. Events
// carry identifiers and metadata, never article text; subscribers that
// need the draft fetch it through the caller.
type GenerationEvent struct {
	ID           string                 `json:"id"`
	Type         EventType              `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	GenerationID string                 `json:"generation_id"`
	Brand        string                 `json:"brand,omitempty"`
	Reference    string                 `json:"reference,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// NewGenerationEvent creates an event stamped with a fresh ID.
func NewGenerationEvent(eventType EventType, generationID string) *GenerationEvent {
	return &GenerationEvent{
		ID:           "evt_" + uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now(),
		GenerationID: generationID,
		Metadata:     make(map[string]interface{}),
	}
}
