package intake

// Wizard steps in order.
const (
	StepDemographics = "demographics"
	StepInsurance    = "insurance"
	StepProviders    = "providers"
	StepMedications  = "medications"
	StepReferrals    = "referrals"
	StepClinical     = "clinical"
)

// Steps lists every step in the order the wizard presents them.
var Steps = []string{
	StepDemographics,
	StepInsurance,
	StepProviders,
	StepMedications,
	StepReferrals,
	StepClinical,
}

// StepIndex returns the position of step in Steps, or -1.
func StepIndex(step string) int {
	for i, s := range Steps {
		if s == step {
			return i
		}
	}
	return -1
}

func IsStep(step string) bool { return StepIndex(step) >= 0 }

// NextStep returns the step after step. last is true for the final step,
// in which case next is step itself.
func NextStep(step string) (next string, last bool) {
	i := StepIndex(step)
	if i < 0 || i == len(Steps)-1 {
		return step, i == len(Steps)-1
	}
	return Steps[i+1], false
}

// PreviousStep returns the step before step, or "" for the first step.
func PreviousStep(step string) string {
	i := StepIndex(step)
	if i <= 0 {
		return ""
	}
	return Steps[i-1]
}
