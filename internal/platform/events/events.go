// Package events publishes intake lifecycle events to a RabbitMQ topic
// exchange so downstream systems (scheduling, billing) can react to
// completed steps.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Routing keys.
const (
	StepSaved = "intake.step.saved"
	Completed = "intake.completed"
	Deleted   = "intake.session.deleted"
)

// Event is the message body. It carries identifiers only, never PHI.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	OrganizationID uuid.UUID `json:"organizationId"`
	SessionID      uuid.UUID `json:"sessionId"`
	Step           string    `json:"step,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewEvent stamps an event with a fresh id and the current UTC time.
func NewEvent(typ string, organizationID, sessionID uuid.UUID, step, userID string) Event {
	return Event{
		ID:             uuid.New(),
		Type:           typ,
		OrganizationID: organizationID,
		SessionID:      sessionID,
		Step:           step,
		UserID:         userID,
		OccurredAt:     time.Now().UTC(),
	}
}

// Publisher is implemented by the AMQP publisher, the no-op publisher and
// the in-memory recorder.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops events after logging them at debug level. It is used
// when RABBITMQ_URL is not configured.
type NopPublisher struct {
	Logger zerolog.Logger
}

func (p NopPublisher) Publish(_ context.Context, e Event) error {
	p.Logger.Debug().Str("type", e.Type).Str("session_id", e.SessionID.String()).Msg("event publishing disabled, dropping event")
	return nil
}

func (NopPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	if r.Err != nil {
		return r.Err
	}
	if _, err := json.Marshal(e); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType returns the published events with the given routing key.
func (r *Recorder) ByType(typ string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
