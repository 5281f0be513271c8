package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	QuestionCreated            EventType = "question.created"
	QuestionLifecycleChanged   EventType = "question.lifecycle_changed"
	QuestionPointsRecalculated EventType = "question.points_recalculated"
	AnswerRecorded             EventType = "answer.recorded"
)

const (
	eventSource  = "challenge-service"
	eventVersion = "1.0"
)

// Event is the envelope of every domain event this service emits
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes events after the write they describe has committed
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
