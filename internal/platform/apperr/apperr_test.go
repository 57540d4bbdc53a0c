package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestFromDB_Nil(t *testing.T) {
	if err := FromDB("op", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestFromDB_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"no rows", pgx.ErrNoRows, CodeNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), CodeNotFound},
		{"unique primary", &pgconn.PgError{Code: "23505", ConstraintName: "uq_patient_insurance_one_primary"}, CodeUniqueViolationPrimary},
		{"unique other", &pgconn.PgError{Code: "23505", ConstraintName: "patients_session_org_key"}, CodeConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, CodeConflict},
		{"check", &pgconn.PgError{Code: "23514"}, CodeCheckViolation},
		{"rls", &pgconn.PgError{Code: "42501"}, CodeUnauthorized},
		{"raise no data", &pgconn.PgError{Code: "P0002"}, CodeNotFound},
		{"feature not supported", &pgconn.PgError{Code: "0A000"}, CodeNotImplemented},
		{"missing function", &pgconn.PgError{Code: "42883"}, CodeNotImplemented},
		{"syntax", &pgconn.PgError{Code: "42601"}, CodeUnknown},
		{"plain", errors.New("connection reset"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDB("demographics.save", tt.err)
			if CodeOf(got) != tt.want {
				t.Errorf("CodeOf(FromDB()) = %s, want %s", CodeOf(got), tt.want)
			}
		})
	}
}

func TestFromDB_KeepsExistingCode(t *testing.T) {
	orig := New("inner", CodeConflict)
	got := FromDB("outer", orig)
	if got != orig {
		t.Errorf("expected original error to be returned")
	}
}

func TestError_MessageHidesCause(t *testing.T) {
	cause := &pgconn.PgError{Code: "23514", Message: "new row violates check constraint on ssn 123-45-6789"}
	err := FromDB("demographics.save", cause)

	if strings.Contains(err.Error(), "123-45-6789") {
		t.Errorf("message leaked driver detail: %s", err.Error())
	}
	if err.Error() != "demographics.save: CHECK_VIOLATION" {
		t.Errorf("unexpected message %q", err.Error())
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != "" {
		t.Error("expected empty code for nil")
	}
	if CodeOf(errors.New("x")) != CodeUnknown {
		t.Error("expected UNKNOWN for foreign errors")
	}
	wrapped := fmt.Errorf("load: %w", NotFound("demographics.find"))
	if !Is(wrapped, CodeNotFound) {
		t.Error("expected Is to see through wrapping")
	}
	if Is(nil, CodeNotFound) {
		t.Error("nil should not match any code")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNotFound:               http.StatusNotFound,
		CodeConflict:               http.StatusConflict,
		CodeUniqueViolationPrimary: http.StatusConflict,
		CodeCheckViolation:         http.StatusUnprocessableEntity,
		CodeUnauthorized:           http.StatusForbidden,
		CodeNotImplemented:         http.StatusNotImplemented,
		CodeUnknown:                http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestError_NoOp(t *testing.T) {
	err := &Error{Code: CodeUnknown}
	if err.Error() != "UNKNOWN" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
