package events

import "time"

// EventType identifies the kind of event emitted during a verification run.
type EventType string

const (
	EventDesignLoaded      EventType = "design.loaded"
	EventDesignValidated   EventType = "design.validated"
	EventCalcResult        EventType = "calc.result"
	EventVerifyStart       EventType = "verify.start"
	EventRequirementStart  EventType = "requirement.start"
	EventRequirementResult EventType = "requirement.result"
	EventVerifyEnd         EventType = "verify.end"
	EventRunRecorded       EventType = "run.recorded"
)

// Event represents a single runtime event.
type Event struct {
	Type        EventType     `json:"type"`
	Timestamp   time.Time     `json:"timestamp"`
	Requirement string        `json:"requirement,omitempty"`
	Data        any           `json:"data"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// RequirementEvent creates an event about one requirement.
func RequirementEvent(typ EventType, id string, data any) Event {
	e := NewEvent(typ, data)
	e.Requirement = id
	return e
}
