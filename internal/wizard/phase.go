// Package wizard drives one intake step at a time: it loads existing data
// into a form, submits the form through the step's service and tracks the
// UI phase around both.
package wizard

import "fmt"

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseSaving  Phase = "saving"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// phaseTransitions lists the phases reachable from each phase. Saving goes
// back to ready when the form fails validation, failure goes to saving on
// retry and success goes to loading for the next step.
var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:    {PhaseLoading, PhaseReady},
	PhaseLoading: {PhaseReady, PhaseFailure},
	PhaseReady:   {PhaseSaving},
	PhaseSaving:  {PhaseSuccess, PhaseFailure, PhaseReady},
	PhaseSuccess: {PhaseLoading},
	PhaseFailure: {PhaseSaving, PhaseLoading},
}

// ValidateTransition reports whether from can move to to.
func ValidateTransition(from, to Phase) error {
	allowed, ok := phaseTransitions[from]
	if !ok {
		return fmt.Errorf("unknown phase: %s", from)
	}
	for _, p := range allowed {
		if p == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", from, to)
}

// Machine holds the phase of one step form. The zero value is idle.
type Machine struct {
	phase Phase
}

func (m *Machine) Phase() Phase {
	if m.phase == "" {
		return PhaseIdle
	}
	return m.phase
}

// To moves the machine to next, rejecting transitions not in the table.
func (m *Machine) To(next Phase) error {
	if err := ValidateTransition(m.Phase(), next); err != nil {
		return err
	}
	m.phase = next
	return nil
}

// Busy reports whether the form should be disabled.
func (m *Machine) Busy() bool {
	p := m.Phase()
	return p == PhaseLoading || p == PhaseSaving
}
