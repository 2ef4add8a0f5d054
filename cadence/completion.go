package cadence

import (
	"time"

	"salescadence/models"
)

// State is a lead's cadence position as loaded from storage.
type State struct {
	Assignment *models.CadenceAssignment
	Steps      []models.CadenceStep
	Progress   []models.StepProgress
}

// NextStep resolves the earliest incomplete step of the state's assignment.
func (s State) NextStep() *models.CadenceStep {
	if s.Assignment == nil || !s.Assignment.Active() {
		return nil
	}
	return NextStep(s.Steps, s.Progress)
}

// SkipReason explains why an activity completed no step.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipRequested    SkipReason = "skip_requested"
	SkipNoAssignment SkipReason = "no_active_assignment"
	SkipPaused       SkipReason = "assignment_paused"
	SkipNoMatch      SkipReason = "no_matching_step"
)

// Decision is the outcome of matching one activity against a lead's state.
type Decision struct {
	Step                *models.CadenceStep
	Progress            *models.StepProgress
	CompletesAssignment bool
	Skipped             SkipReason
}

func (d Decision) Completes() bool { return d.Progress != nil }

// ApplyStepCompletion decides which step, if any, an activity completes.
// Only steps on the current day, the day of the earliest incomplete step,
// can match; among those the earliest whose action type equals the
// activity's wins. Steps of later days are never completed ahead of time.
// The returned progress row is not persisted.
func ApplyStepCompletion(state State, activity models.ActivityLogEntry, skip bool, now time.Time) Decision {
	if skip {
		return Decision{Skipped: SkipRequested}
	}
	if state.Assignment == nil || !state.Assignment.Active() {
		return Decision{Skipped: SkipNoAssignment}
	}
	if state.Assignment.Paused() {
		return Decision{Skipped: SkipPaused}
	}

	done := CompletedSet(state.Progress)
	remaining := 0
	currentDay := -1
	var match *models.CadenceStep
	for _, step := range Sorted(state.Steps) {
		if _, ok := done[step.ID]; ok {
			continue
		}
		remaining++
		if currentDay < 0 {
			currentDay = step.DayNumber
		}
		if match == nil && step.DayNumber == currentDay && step.ActionType == activity.ActionType {
			s := step
			match = &s
		}
	}
	if match == nil {
		return Decision{Skipped: SkipNoMatch}
	}

	progress := &models.StepProgress{
		LeadID:        activity.LeadID,
		CadenceStepID: match.ID,
		AssignmentID:  state.Assignment.ID,
		CompletedAt:   now,
	}
	if activity.ID != 0 {
		id := activity.ID
		progress.CompletedByActivityID = &id
	}
	return Decision{
		Step:                match,
		Progress:            progress,
		CompletesAssignment: remaining == 1,
	}
}
