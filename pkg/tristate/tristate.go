// Package tristate models the Yes/No/Unknown selector that gates
// conditional form fields.
package tristate

import (
	"fmt"
	"strings"
)

// Value is a Yes/No/Unknown answer. The zero value means unanswered.
type Value string

const (
	Unanswered Value = ""
	Yes        Value = "Yes"
	No         Value = "No"
	Unknown    Value = "Unknown"
)

// Options lists the answerable values in display order.
var Options = []Value{Yes, No, Unknown}

// Parse accepts the canonical spellings case-insensitively. An empty
// string parses to Unanswered.
func Parse(s string) (Value, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Unanswered, nil
	case "yes":
		return Yes, nil
	case "no":
		return No, nil
	case "unknown":
		return Unknown, nil
	}
	return Unanswered, fmt.Errorf("invalid tri-state value %q", s)
}

// Valid reports whether v is Unanswered or one of Options.
func (v Value) Valid() bool {
	switch v {
	case Unanswered, Yes, No, Unknown:
		return true
	}
	return false
}

// IsYes reports whether the conditional fields behind v should be shown
// and kept.
func (v Value) IsYes() bool { return v == Yes }

func (v Value) Answered() bool { return v != Unanswered }

func (v Value) String() string { return string(v) }

// UnmarshalText normalises case so form posts and JSON bodies agree.
func (v *Value) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalText() ([]byte, error) {
	return []byte(v), nil
}

// Ptr returns nil for Unanswered, otherwise a pointer to the string form.
// Used for nullable answer columns.
func (v Value) Ptr() *string {
	if v == Unanswered {
		return nil
	}
	s := string(v)
	return &s
}

// FromPtr is the inverse of Ptr. Unrecognised values read as Unanswered.
func FromPtr(s *string) Value {
	if s == nil {
		return Unanswered
	}
	v, err := Parse(*s)
	if err != nil {
		return Unanswered
	}
	return v
}
