package cadence

import (
	"fmt"

	"salescadence/models"
)

// StepProblems lists configuration problems of a single step.
func StepProblems(step models.CadenceStep) []string {
	var problems []string
	if step.DayNumber < 0 {
		problems = append(problems, "day_number must be zero or greater")
	}
	if !step.TimeOfDay.Valid() {
		problems = append(problems, "time_of_day must be morning or afternoon")
	}
	if !step.ActionType.Valid() {
		problems = append(problems, fmt.Sprintf("action_type %q is not supported", step.ActionType))
	}
	if step.Priority != "" && !step.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("priority %q is not supported", step.Priority))
	}
	if step.DisplayOrder < 0 {
		problems = append(problems, "display_order must be zero or greater")
	}
	return problems
}

// Collides reports whether candidate shares its ordering key with any other
// step in steps. The candidate's own row (same non-zero id) is ignored.
func Collides(steps []models.CadenceStep, candidate models.CadenceStep) bool {
	key := candidate.OrderKey()
	for _, s := range steps {
		if candidate.ID != 0 && s.ID == candidate.ID {
			continue
		}
		if s.OrderKey() == key {
			return true
		}
	}
	return false
}

// OrderChange moves one step to a new display order. Items are judged one by
// one in PlanReorder, so a bad item never rejects the batch.
type OrderChange struct {
	ID           uint `json:"id"`
	DisplayOrder int  `json:"display_order"`
}

// PlannedChange is one reorder item and, when it cannot be applied, why.
type PlannedChange struct {
	OrderChange
	Reason string
}

func (p PlannedChange) OK() bool { return p.Reason == "" }

// PlanReorder judges a reorder batch against the cadence's current steps,
// item by item. Collisions are judged on the configuration the accepted
// items produce together, so swapping two orders is allowed.
func PlanReorder(steps []models.CadenceStep, changes []OrderChange) []PlannedChange {
	byID := make(map[uint]models.CadenceStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	plan := make([]PlannedChange, len(changes))
	seen := map[uint]bool{}
	for i, c := range changes {
		plan[i].OrderChange = c
		_, ok := byID[c.ID]
		switch {
		case c.ID == 0 || !ok:
			plan[i].Reason = "step not found"
		case seen[c.ID]:
			plan[i].Reason = "step listed more than once"
		case c.DisplayOrder < 0:
			plan[i].Reason = "display_order must be zero or greater"
		}
		seen[c.ID] = true
	}

	// Rejecting one item changes the final layout the others are judged
	// against, so repeat until no new collision appears.
	for {
		final := make([]models.CadenceStep, 0, len(steps))
		moved := map[uint]int{}
		for _, p := range plan {
			if p.OK() {
				moved[p.ID] = p.DisplayOrder
			}
		}
		for _, s := range steps {
			if order, ok := moved[s.ID]; ok {
				s.DisplayOrder = order
			}
			final = append(final, s)
		}

		changed := false
		for i, p := range plan {
			if !p.OK() {
				continue
			}
			s := byID[p.ID]
			s.DisplayOrder = p.DisplayOrder
			if Collides(final, s) {
				plan[i].Reason = "another step already uses this day, time and display order"
				changed = true
			}
		}
		if !changed {
			return plan
		}
	}
}
