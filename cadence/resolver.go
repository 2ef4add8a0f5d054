// Package cadence holds the storage-free rules of the sales-cadence engine:
// step ordering, next-step resolution, step completion matching and step
// configuration checks. Callers load rows, these functions decide.
package cadence

import (
	"sort"
	"time"

	"salescadence/models"
)

// SortSteps orders steps by day, time-of-day slot and display order. Rows
// that tie on all three (only possible for legacy data) fall back to id.
func SortSteps(steps []models.CadenceStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		ki, kj := steps[i].OrderKey(), steps[j].OrderKey()
		if ki != kj {
			return ki.Less(kj)
		}
		return steps[i].ID < steps[j].ID
	})
}

// Sorted returns a sorted copy of steps.
func Sorted(steps []models.CadenceStep) []models.CadenceStep {
	out := make([]models.CadenceStep, len(steps))
	copy(out, steps)
	SortSteps(out)
	return out
}

// CompletedSet indexes progress rows by step id.
func CompletedSet(progress []models.StepProgress) map[uint]models.StepProgress {
	done := make(map[uint]models.StepProgress, len(progress))
	for _, p := range progress {
		done[p.CadenceStepID] = p
	}
	return done
}

// NextStep returns the earliest step that has no progress row, or nil when
// every step is complete.
func NextStep(steps []models.CadenceStep, progress []models.StepProgress) *models.CadenceStep {
	done := CompletedSet(progress)
	for _, step := range Sorted(steps) {
		if _, ok := done[step.ID]; !ok {
			s := step
			return &s
		}
	}
	return nil
}

// DueAt is when a step should be performed: the start date shifted by the
// step's day offset, at noon for morning slots and 17:00 for afternoon slots.
func DueAt(startedAt time.Time, step models.CadenceStep, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	start := startedAt.In(loc)
	hour := 12
	if step.TimeOfDay == models.TimeOfDayAfternoon {
		hour = 17
	}
	return time.Date(start.Year(), start.Month(), start.Day()+step.DayNumber, hour, 0, 0, 0, loc)
}
