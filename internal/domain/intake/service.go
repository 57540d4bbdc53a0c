package intake

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/internal/platform/draftstore"
	"github.com/ehr/intake/internal/platform/events"
)

type Service struct {
	sessions  SessionRepository
	drafts    draftstore.Store
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewService(sessions SessionRepository, drafts draftstore.Store, publisher events.Publisher, logger zerolog.Logger) *Service {
	return &Service{sessions: sessions, drafts: drafts, publisher: publisher, logger: logger}
}

func (s *Service) CreateSession(ctx context.Context, organizationID uuid.UUID, createdBy string) (*Session, error) {
	if organizationID == uuid.Nil {
		return nil, apperr.New("intake.create_session", apperr.CodeUnauthorized)
	}
	return s.sessions.Create(ctx, organizationID, createdBy)
}

func (s *Service) GetSession(ctx context.Context, sessionID, organizationID uuid.UUID) (*Session, error) {
	return s.sessions.Get(ctx, sessionID, organizationID)
}

func (s *Service) ListSessions(ctx context.Context, organizationID uuid.UUID, status Status, limit, offset int) ([]*Session, int, error) {
	if status != "" && status != StatusInProgress && status != StatusCompleted {
		return nil, 0, apperr.New("intake.list_sessions", apperr.CodeCheckViolation)
	}
	return s.sessions.List(ctx, organizationID, status, limit, offset)
}

// Exists never reports NOT_FOUND: a missing session is simply false.
func (s *Service) Exists(ctx context.Context, sessionID, organizationID uuid.UUID) (bool, error) {
	ok, err := s.sessions.Exists(ctx, sessionID, organizationID)
	if apperr.Is(err, apperr.CodeNotFound) {
		return false, nil
	}
	return ok, err
}

// Delete discards the session, its patient data and any unsaved drafts.
// A session that never existed reports false without error.
func (s *Service) Delete(ctx context.Context, sessionID, organizationID uuid.UUID) (bool, error) {
	deleted, err := s.sessions.Delete(ctx, sessionID, organizationID)
	if apperr.Is(err, apperr.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if s.drafts != nil {
		if err := s.drafts.DeleteSession(ctx, organizationID, sessionID); err != nil && !errors.Is(err, draftstore.ErrNoDraft) {
			s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to clear session drafts")
		}
	}
	if deleted && s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewEvent(events.Deleted, organizationID, sessionID, "", "")); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to publish intake event")
		}
	}
	return deleted, nil
}
