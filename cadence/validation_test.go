package cadence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescadence/models"
)

func TestStepProblems(t *testing.T) {
	ok := step(0, 0, models.TimeOfDayMorning, models.ActionEmail, 0)
	assert.Empty(t, StepProblems(ok))

	ok.Priority = ""
	assert.Empty(t, StepProblems(ok), "priority defaults later")

	bad := models.CadenceStep{
		DayNumber:    -1,
		TimeOfDay:    "evening",
		ActionType:   "fax",
		Priority:     "critical",
		DisplayOrder: -2,
	}
	problems := StepProblems(bad)
	assert.Len(t, problems, 5)
	assert.Contains(t, problems, `action_type "fax" is not supported`)
}

func TestCollides(t *testing.T) {
	steps := standardOutreach()

	dup := step(0, 0, models.TimeOfDayMorning, models.ActionEmail, 0)
	assert.True(t, Collides(steps, dup))

	dup.DisplayOrder = 1
	assert.False(t, Collides(steps, dup))

	// A step does not collide with its own row.
	assert.False(t, Collides(steps, steps[0]))
}

func reasons(plan []PlannedChange) []string {
	out := make([]string, len(plan))
	for i, p := range plan {
		out[i] = p.Reason
	}
	return out
}

func TestPlanReorderPartialFailure(t *testing.T) {
	steps := []models.CadenceStep{
		step(1, 0, models.TimeOfDayMorning, models.ActionOutboundCall, 0),
		step(2, 0, models.TimeOfDayMorning, models.ActionTextMessage, 1),
		step(3, 0, models.TimeOfDayMorning, models.ActionEmail, 2),
	}
	plan := PlanReorder(steps, []OrderChange{
		{ID: 1, DisplayOrder: 5},
		{ID: 999, DisplayOrder: 1},
		{ID: 3, DisplayOrder: 7},
	})

	require.Len(t, plan, 3)
	assert.True(t, plan[0].OK())
	assert.Equal(t, "step not found", plan[1].Reason)
	assert.True(t, plan[2].OK())
}

func TestPlanReorderAllowsSwap(t *testing.T) {
	steps := []models.CadenceStep{
		step(1, 0, models.TimeOfDayMorning, models.ActionOutboundCall, 0),
		step(2, 0, models.TimeOfDayMorning, models.ActionTextMessage, 1),
	}
	plan := PlanReorder(steps, []OrderChange{{ID: 1, DisplayOrder: 1}, {ID: 2, DisplayOrder: 0}})
	assert.Equal(t, []string{"", ""}, reasons(plan))
}

func TestPlanReorderRejectsCollisionWithUnmovedStep(t *testing.T) {
	steps := []models.CadenceStep{
		step(1, 0, models.TimeOfDayMorning, models.ActionOutboundCall, 0),
		step(2, 0, models.TimeOfDayMorning, models.ActionTextMessage, 1),
		step(3, 1, models.TimeOfDayMorning, models.ActionEmail, 0),
	}
	plan := PlanReorder(steps, []OrderChange{{ID: 1, DisplayOrder: 1}, {ID: 3, DisplayOrder: 4}})

	assert.Equal(t, "another step already uses this day, time and display order", plan[0].Reason)
	assert.True(t, plan[1].OK())
}

func TestPlanReorderCascadingRejection(t *testing.T) {
	// Step 1 is rejected and keeps order 0, so step 3 cannot take it.
	steps := []models.CadenceStep{
		step(1, 0, models.TimeOfDayMorning, models.ActionOutboundCall, 0),
		step(2, 0, models.TimeOfDayMorning, models.ActionTextMessage, 1),
		step(3, 0, models.TimeOfDayMorning, models.ActionEmail, 2),
	}
	plan := PlanReorder(steps, []OrderChange{
		{ID: 1, DisplayOrder: -1},
		{ID: 3, DisplayOrder: 0},
	})
	assert.Equal(t, "display_order must be zero or greater", plan[0].Reason)
	assert.Equal(t, "another step already uses this day, time and display order", plan[1].Reason)
}

func TestPlanReorderDuplicateIDs(t *testing.T) {
	steps := standardOutreach()
	plan := PlanReorder(steps, []OrderChange{{ID: 1, DisplayOrder: 3}, {ID: 1, DisplayOrder: 4}})
	assert.True(t, plan[0].OK())
	assert.Equal(t, "step listed more than once", plan[1].Reason)
}
