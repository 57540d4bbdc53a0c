package intake

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/auth"
	"github.com/ehr/intake/internal/platform/events"
)

// Tracker advances the session step pointer after a successful save and
// publishes the lifecycle events.
type Tracker struct {
	sessions  SessionRepository
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewTracker(sessions SessionRepository, publisher events.Publisher, logger zerolog.Logger) *Tracker {
	return &Tracker{sessions: sessions, publisher: publisher, logger: logger}
}

// StepSaved records that step was saved. Saving the last step completes
// the session. Publish failures are logged; the save itself has already
// committed.
func (t *Tracker) StepSaved(ctx context.Context, sessionID, organizationID uuid.UUID, step string) error {
	if t == nil {
		return nil
	}
	next, last := NextStep(step)
	if err := t.sessions.Advance(ctx, sessionID, organizationID, next, last); err != nil {
		return err
	}

	userID := auth.UserIDFromContext(ctx)
	t.publish(ctx, events.NewEvent(events.StepSaved, organizationID, sessionID, step, userID))
	if last {
		t.publish(ctx, events.NewEvent(events.Completed, organizationID, sessionID, "", userID))
	}
	return nil
}

func (t *Tracker) publish(ctx context.Context, e events.Event) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, e); err != nil {
		t.logger.Warn().Err(err).
			Str("type", e.Type).
			Str("session_id", e.SessionID.String()).
			Msg("failed to publish intake event")
	}
}
