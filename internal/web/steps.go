package web

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/domain/clinical"
	"github.com/ehr/intake/internal/domain/insurance"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/validation"
)

// insuranceForm is the insurance page: eligibility plus the coverage list.
// Removed holds stored coverages dropped from the list.
type insuranceForm struct {
	Eligibility insurance.Eligibility `json:"eligibility"`
	Coverages   []insurance.Coverage  `json:"coverages"`
	Removed     []uuid.UUID           `json:"removed"`
}

type insuranceStep struct {
	svc *insurance.Service
}

func (s insuranceStep) Load(ctx context.Context, sessionID, organizationID uuid.UUID) (*insuranceForm, error) {
	snap, err := s.svc.Snapshot(ctx, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	return &insuranceForm{Eligibility: snap.Eligibility, Coverages: snap.Coverages}, nil
}

// Save deletes removed coverages, saves every listed coverage and then the
// eligibility, which advances the session.
func (s insuranceStep) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *insuranceForm) (*intake.SaveResult, error) {
	errs := validation.Errors{}
	for i := range in.Coverages {
		if err := s.svc.ValidateCoverage(&in.Coverages[i]); err != nil {
			if !merge(errs, fmt.Sprintf("coverages[%d].", i), err) {
				return nil, err
			}
		}
	}
	if err := s.svc.ValidateEligibility(&in.Eligibility); err != nil {
		if !merge(errs, "eligibility.", err) {
			return nil, err
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	for _, id := range in.Removed {
		if _, err := s.svc.DeleteCoverage(ctx, sessionID, organizationID, id); err != nil {
			return nil, err
		}
	}
	for i := range in.Coverages {
		res, err := s.svc.SaveCoverage(ctx, sessionID, organizationID, &in.Coverages[i])
		if err != nil {
			return nil, err
		}
		id := res.CoverageID
		in.Coverages[i].ID = &id
	}
	return s.svc.UpsertEligibility(ctx, sessionID, organizationID, &in.Eligibility)
}

// merge copies field errors from err into dst under prefix. It reports
// false when err is not a validation failure.
func merge(dst validation.Errors, prefix string, err error) bool {
	verrs, ok := err.(validation.Errors)
	if !ok {
		return false
	}
	for k, v := range verrs {
		dst[prefix+k] = v
	}
	return true
}

// clinicalForm carries the assessment blobs as the text the user typed.
type clinicalForm struct {
	Diagnoses             string `json:"diagnoses"`
	PsychiatricEvaluation string `json:"psychiatricEvaluation"`
	FunctionalAssessment  string `json:"functionalAssessment"`
}

type clinicalStep struct {
	svc *clinical.Service
}

func (s clinicalStep) Load(ctx context.Context, sessionID, organizationID uuid.UUID) (*clinicalForm, error) {
	a, err := s.svc.Load(ctx, sessionID, organizationID)
	if err != nil {
		return nil, err
	}
	return &clinicalForm{
		Diagnoses:             indent(a.Diagnoses),
		PsychiatricEvaluation: indent(a.PsychiatricEvaluation),
		FunctionalAssessment:  indent(a.FunctionalAssessment),
	}, nil
}

func (s clinicalStep) Save(ctx context.Context, sessionID, organizationID uuid.UUID, in *clinicalForm) (*intake.SaveResult, error) {
	return s.svc.Save(ctx, sessionID, organizationID, &clinical.Assessment{
		Diagnoses:             raw(in.Diagnoses),
		PsychiatricEvaluation: raw(in.PsychiatricEvaluation),
		FunctionalAssessment:  raw(in.FunctionalAssessment),
	})
}

func raw(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

func indent(m json.RawMessage) string {
	if len(m) == 0 {
		return ""
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return string(m)
	}
	return string(out)
}
