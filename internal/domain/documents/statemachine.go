package documents

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidTransition is wrapped by ValidateTransition for any disallowed
// status change. Handlers map it to a 400 response.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the lifecycle table: from -> set of allowed targets.
// Upload means upload only: nothing in this table (or anywhere else) moves a
// document into PROCESSING without an explicit trigger or retry.
var transitions = map[Status]map[Status]bool{
	StatusUploaded:   {StatusProcessing: true, StatusFailed: true},
	StatusStored:     {StatusProcessing: true, StatusFailed: true},
	StatusQueued:     {StatusProcessing: true, StatusFailed: true},
	StatusProcessing: {StatusProcessed: true, StatusFailed: true},
	StatusProcessed:  {StatusProcessing: true},
	StatusFailed:     {StatusProcessing: true, StatusStored: true},
	StatusArchived:   {},
}

// IsValidTransition reports whether a document may move from one status to
// another. A same-status request is always a valid no-op; this is checked
// before the ARCHIVED terminal rule, so ARCHIVED->ARCHIVED passes while every
// other transition out of ARCHIVED is rejected.
func IsValidTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return transitions[from][to]
}

// ValidateTransition returns a descriptive error when the transition is not
// allowed, naming the offending pair and the valid targets.
func ValidateTransition(from, to Status) error {
	if IsValidTransition(from, to) {
		return nil
	}
	targets := make([]string, 0, len(transitions[from]))
	for t := range transitions[from] {
		targets = append(targets, string(t))
	}
	sort.Strings(targets)
	if len(targets) == 0 {
		return fmt.Errorf("%w: %s is terminal, cannot move to %s", ErrInvalidTransition, from, to)
	}
	return fmt.Errorf("%w: %s -> %s (valid targets: %s)",
		ErrInvalidTransition, from, to, strings.Join(targets, ", "))
}

// CanProcess reports whether a document in the given status is eligible for
// an explicit OCR trigger.
func CanProcess(s Status) bool {
	switch s {
	case StatusUploaded, StatusStored, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// CanRetry reports whether a failed run may be retried.
func CanRetry(s Status) bool { return s == StatusFailed }
