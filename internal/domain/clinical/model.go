package clinical

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Assessment holds the clinician-authored blobs captured at the end of the
// intake. The contents are opaque; only well-formedness is checked.
type Assessment struct {
	Diagnoses             json.RawMessage `json:"diagnoses,omitempty" validate:"omitempty,json"`
	PsychiatricEvaluation json.RawMessage `json:"psychiatricEvaluation,omitempty" validate:"omitempty,json"`
	FunctionalAssessment  json.RawMessage `json:"functionalAssessment,omitempty" validate:"omitempty,json"`
	UpdatedAt             *time.Time      `json:"updatedAt,omitempty"`
}

type assessmentRow struct {
	SessionID             uuid.UUID `db:"session_id"`
	Diagnoses             []byte    `db:"diagnoses"`
	PsychiatricEvaluation []byte    `db:"psychiatric_evaluation"`
	FunctionalAssessment  []byte    `db:"functional_assessment"`
	UpdatedAt             time.Time `db:"updated_at"`
}

const (
	emptyList   = "[]"
	emptyObject = "{}"
)

func (r *assessmentRow) toAssessment() *Assessment {
	updated := r.UpdatedAt
	return &Assessment{
		Diagnoses:             json.RawMessage(r.Diagnoses),
		PsychiatricEvaluation: json.RawMessage(r.PsychiatricEvaluation),
		FunctionalAssessment:  json.RawMessage(r.FunctionalAssessment),
		UpdatedAt:             &updated,
	}
}

// orDefault returns raw as a string, or def when raw is empty or JSON null.
func orDefault(raw json.RawMessage, def string) string {
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	return string(raw)
}
