// Package events publishes bot activity as domain events, optionally to Kafka.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event type constants.
const (
	TypeVerificationIssued = "verification_issued"
	TypeGoalCreated        = "goal_created"
	TypeDialogueFailed     = "dialogue_failed"
)

// Event is the wire format of every published message.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New returns an Event with a fresh id and the current time.
func New(eventType string, chatID, userID int64, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ChatID:    chatID,
		UserID:    userID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// GoalCreatedPayload accompanies TypeGoalCreated.
type GoalCreatedPayload struct {
	GoalID     int64  `json:"goal_id"`
	CategoryID int64  `json:"category_id"`
	Title      string `json:"title"`
}

// DialogueFailedPayload accompanies TypeDialogueFailed.
type DialogueFailedPayload struct {
	Stage string `json:"stage"`
	Op    string `json:"op"`
	Error string `json:"error"`
}

// Publisher sends events somewhere. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
