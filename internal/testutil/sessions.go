// Package testutil holds in-memory fakes shared by package tests. Nothing
// here touches Postgres.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/apperr"
	"github.com/ehr/intake/pkg/tristate"
)

type sessionKey struct {
	session uuid.UUID
	org     uuid.UUID
}

// Sessions is an in-memory intake.SessionRepository. Setting Err makes
// every call fail with it.
type Sessions struct {
	mu       sync.Mutex
	sessions map[sessionKey]*intake.Session
	Err      error
	// Deleted counts successful Delete calls.
	Deleted int
}

var _ intake.SessionRepository = (*Sessions)(nil)

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[sessionKey]*intake.Session)}
}

// Seed adds a session, optionally already linked to a patient.
func (m *Sessions) Seed(sessionID, organizationID uuid.UUID, patientID *uuid.UUID) *intake.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	s := &intake.Session{
		SessionID:      sessionID,
		OrganizationID: organizationID,
		PatientID:      patientID,
		CurrentStep:    intake.StepDemographics,
		Status:         intake.StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.sessions[sessionKey{sessionID, organizationID}] = s
	return s
}

func (m *Sessions) Create(_ context.Context, organizationID uuid.UUID, createdBy string) (*intake.Session, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	s := m.Seed(uuid.New(), organizationID, nil)
	s.CreatedBy = createdBy
	cp := *s
	return &cp, nil
}

func (m *Sessions) Get(_ context.Context, sessionID, organizationID uuid.UUID) (*intake.Session, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{sessionID, organizationID}]
	if !ok {
		return nil, apperr.NotFound("intake.get_session")
	}
	cp := *s
	return &cp, nil
}

func (m *Sessions) List(_ context.Context, organizationID uuid.UUID, status intake.Status, limit, offset int) ([]*intake.Session, int, error) {
	if m.Err != nil {
		return nil, 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*intake.Session
	for k, s := range m.sessions {
		if k.org != organizationID || (status != "" && s.Status != status) {
			continue
		}
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	total := len(all)
	if offset >= total {
		return []*intake.Session{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *Sessions) Exists(_ context.Context, sessionID, organizationID uuid.UUID) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionKey{sessionID, organizationID}]
	return ok, nil
}

func (m *Sessions) Delete(_ context.Context, sessionID, organizationID uuid.UUID) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := sessionKey{sessionID, organizationID}
	if _, ok := m.sessions[k]; !ok {
		return false, nil
	}
	delete(m.sessions, k)
	m.Deleted++
	return true, nil
}

func (m *Sessions) Advance(_ context.Context, sessionID, organizationID uuid.UUID, step string, complete bool) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{sessionID, organizationID}]
	if !ok {
		return apperr.NotFound("intake.advance_session")
	}
	if intake.StepIndex(step) > intake.StepIndex(s.CurrentStep) {
		s.CurrentStep = step
	}
	if complete {
		s.Status = intake.StatusCompleted
		if s.CompletedAt == nil {
			now := time.Now().UTC()
			s.CompletedAt = &now
		}
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Sessions) PatientID(_ context.Context, sessionID, organizationID uuid.UUID) (uuid.UUID, error) {
	if m.Err != nil {
		return uuid.Nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{sessionID, organizationID}]
	if !ok || s.PatientID == nil {
		return uuid.Nil, apperr.NotFound("intake.session_patient")
	}
	return *s.PatientID, nil
}

func (m *Sessions) LinkPatient(_ context.Context, sessionID, organizationID, patientID uuid.UUID) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := sessionKey{sessionID, organizationID}
	s, ok := m.sessions[k]
	if !ok {
		now := time.Now().UTC()
		s = &intake.Session{
			SessionID:      sessionID,
			OrganizationID: organizationID,
			CurrentStep:    intake.StepDemographics,
			Status:         intake.StatusInProgress,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		m.sessions[k] = s
	}
	pid := patientID
	s.PatientID = &pid
	return nil
}

// Answers is an in-memory intake.AnswerRepository.
type Answers struct {
	mu      sync.Mutex
	answers map[uuid.UUID]map[string]tristate.Value
	Err     error
}

var _ intake.AnswerRepository = (*Answers)(nil)

func NewAnswers() *Answers {
	return &Answers{answers: make(map[uuid.UUID]map[string]tristate.Value)}
}

func (a *Answers) Load(_ context.Context, patientID, _ uuid.UUID, questions ...string) (map[string]tristate.Value, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]tristate.Value)
	for _, q := range questions {
		if v, ok := a.answers[patientID][q]; ok {
			out[q] = v
		}
	}
	return out, nil
}

func (a *Answers) Save(_ context.Context, patientID, _ uuid.UUID, answers map[string]tristate.Value) error {
	if a.Err != nil {
		return a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	stored, ok := a.answers[patientID]
	if !ok {
		stored = make(map[string]tristate.Value)
		a.answers[patientID] = stored
	}
	for q, v := range answers {
		if v.Answered() {
			stored[q] = v
		} else {
			delete(stored, q)
		}
	}
	return nil
}
