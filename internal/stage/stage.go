// Package stage tracks a brief's position in the fixed six-stage intake
// pipeline, with full transition history persisted per brief id.
package stage

import (
	"math"
	"strings"
)

// Stage is one pipeline position. The zero value is not a valid stage.
type Stage string

// The pipeline, in order.
const (
	RequestSubmitted      Stage = "request_submitted"
	AwaitingCall          Stage = "awaiting_call"
	ProposalInProgress    Stage = "proposal_in_progress"
	AwaitingValidation    Stage = "awaiting_validation"
	FormulationInProgress Stage = "formulation_in_progress"
	Finalized             Stage = "finalized"
)

// All lists the stages in pipeline order.
var All = []Stage{
	RequestSubmitted,
	AwaitingCall,
	ProposalInProgress,
	AwaitingValidation,
	FormulationInProgress,
	Finalized,
}

// Index returns the stage's position in the pipeline, or -1 when s is not a
// recognized stage.
func Index(s Stage) int {
	for i, st := range All {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a recognized stage.
func Valid(s Stage) bool { return Index(s) >= 0 }

// Next returns the immediate successor, or "" at the terminal stage or for
// an unrecognized input.
func Next(s Stage) Stage {
	i := Index(s)
	if i < 0 || i+1 >= len(All) {
		return ""
	}
	return All[i+1]
}

// Prev returns the immediate predecessor, or "" at the first stage or for an
// unrecognized input.
func Prev(s Stage) Stage {
	i := Index(s)
	if i <= 0 {
		return ""
	}
	return All[i-1]
}

// ProgressPercent maps the stage onto 0..100, first stage 0, terminal 100.
// Unrecognized stages report 0.
func ProgressPercent(s Stage) int {
	i := Index(s)
	if i < 0 {
		return 0
	}
	return int(math.Round(100 * float64(i) / float64(len(All)-1)))
}

// Label is the human-readable form of a stage value.
func Label(s Stage) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
