// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	EventResultCreated   EventType = "result.created"
	EventResultUpdated   EventType = "result.updated"
	EventResultPublished EventType = "result.published"
	EventResultDeleted   EventType = "result.deleted"
	EventCohortReranked  EventType = "cohort.reranked"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Result Events
// ═══════════════════════════════════════════════════════════════════════════

// ResultWrittenEvent is emitted after a result was created, updated,
// published or deleted. Cohort fields let subscribers find the cohort
// without loading the record again.
type ResultWrittenEvent struct {
	BaseEvent
	StudentID    string  `json:"student_id"`
	Class        string  `json:"class"`
	Term         string  `json:"term"`
	Session      string  `json:"session"`
	AverageScore float64 `json:"average_score"`
	Position     int     `json:"position"`
	Published    bool    `json:"published"`
}

// Payload implements Event interface.
func (e ResultWrittenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"class":         e.Class,
		"term":          e.Term,
		"session":       e.Session,
		"average_score": e.AverageScore,
		"position":      e.Position,
		"published":     e.Published,
	}
}

// NewResultWrittenEvent creates a new ResultWrittenEvent of the given type.
func NewResultWrittenEvent(eventType EventType, resultID, studentID, class, term, session string, average float64, position int, published bool) ResultWrittenEvent {
	return ResultWrittenEvent{
		BaseEvent:    NewBaseEvent(eventType, resultID),
		StudentID:    studentID,
		Class:        class,
		Term:         term,
		Session:      session,
		AverageScore: average,
		Position:     position,
		Published:    published,
	}
}

// CohortRerankedEvent is emitted after a re-rank sweep rewrote positions.
type CohortRerankedEvent struct {
	BaseEvent
	Class   string `json:"class"`
	Term    string `json:"term"`
	Session string `json:"session"`
	Changed int    `json:"changed"`
}

// Payload implements Event interface.
func (e CohortRerankedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class":   e.Class,
		"term":    e.Term,
		"session": e.Session,
		"changed": e.Changed,
	}
}

// NewCohortRerankedEvent creates a new CohortRerankedEvent.
// The cohort key doubles as the aggregate ID.
func NewCohortRerankedEvent(cohortKey, class, term, session string, changed int) CohortRerankedEvent {
	return CohortRerankedEvent{
		BaseEvent: NewBaseEvent(EventCohortReranked, cohortKey),
		Class:     class,
		Term:      term,
		Session:   session,
		Changed:   changed,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
