package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescadence/models"
	"salescadence/realtime"
)

func TestStartUsesDefaultCadence(t *testing.T) {
	f := newFixture(t)
	in := standardOutreach()
	in.IsDefault = true
	c := f.cadence(t, in)
	lead := f.lead(t, companyID, true)

	a, err := f.assignments.Start(ctx, companyID, lead.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, c.ID, a.CadenceID)
	assert.Equal(t, f.clock.Now(), a.StartedAt)
	assert.Contains(t, f.events.Types(), realtime.EventCadenceStarted)

	_, err = f.assignments.Start(ctx, companyID, lead.ID, nil, nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStartRequirements(t *testing.T) {
	f := newFixture(t)
	c := f.cadence(t, standardOutreach())

	unowned := f.lead(t, companyID, false)
	_, err := f.assignments.Start(ctx, companyID, unowned.ID, &c.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	owned := f.lead(t, companyID, true)
	_, err = f.assignments.Start(ctx, companyID, owned.ID, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound, "no default cadence")

	inactive := false
	off := f.cadence(t, CadenceInput{Name: "Off", IsActive: &inactive})
	_, err = f.assignments.Start(ctx, companyID, owned.ID, &off.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.assignments.Start(ctx, companyID, 31337, &c.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignReplacesCadenceAndClearsProgress(t *testing.T) {
	f := newFixture(t)
	first := f.cadence(t, standardOutreach())
	second := f.cadence(t, CadenceInput{
		Name:  "Second",
		Steps: []StepInput{{DayNumber: 0, TimeOfDay: models.TimeOfDayMorning, ActionType: models.ActionEmail}},
	})
	lead := f.lead(t, companyID, false)

	a, err := f.assignments.Assign(ctx, companyID, lead.ID, first.ID, userID)
	require.NoError(t, err)

	var stored models.Lead
	require.NoError(t, f.db.First(&stored, lead.ID).Error)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, userID, *stored.AssignedTo)
	assert.Equal(t, models.LeadStatusInProcess, stored.LeadStatus)

	_, err = logAs(f, lead.ID, models.ActionOutboundCall)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.progressRows(t, lead.ID))

	f.clock.Advance(time.Hour)
	b, err := f.assignments.Assign(ctx, companyID, lead.ID, second.ID, userID+1)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Zero(t, f.progressRows(t, lead.ID))

	var old models.CadenceAssignment
	require.NoError(t, f.db.First(&old, a.ID).Error)
	require.NotNil(t, old.CompletedAt)
	assert.Equal(t, models.EndReasonReplaced, old.EndReason)

	// The lead keeps its first owner.
	require.NoError(t, f.db.First(&stored, lead.ID).Error)
	assert.Equal(t, userID, *stored.AssignedTo)

	var active int64
	require.NoError(t, f.db.Model(&models.CadenceAssignment{}).
		Where("lead_id = ? AND completed_at IS NULL", lead.ID).Count(&active).Error)
	assert.EqualValues(t, 1, active)

	_, err = f.assignments.Assign(ctx, companyID, lead.ID, 0, userID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPauseAndUnpause(t *testing.T) {
	f := newFixture(t)
	c := f.cadence(t, standardOutreach())
	lead := f.lead(t, companyID, true)

	_, err := f.assignments.Pause(ctx, companyID, lead.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.assignments.Start(ctx, companyID, lead.ID, &c.ID, nil)
	require.NoError(t, err)

	a, err := f.assignments.Pause(ctx, companyID, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, a.PausedAt)

	next, err := f.assignments.NextStep(ctx, companyID, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.Paused)

	a, err = f.assignments.Unpause(ctx, companyID, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, a.PausedAt)

	res, err := logAs(f, lead.ID, models.ActionOutboundCall)
	require.NoError(t, err)
	assert.NotNil(t, res.CompletedStep)

	types := f.events.Types()
	assert.Contains(t, types, realtime.EventCadencePaused)
	assert.Contains(t, types, realtime.EventCadenceResumed)
}

func TestEndClearsProgress(t *testing.T) {
	f := newFixture(t)
	c := f.cadence(t, standardOutreach())
	lead := f.lead(t, companyID, true)
	_, err := f.assignments.Start(ctx, companyID, lead.ID, &c.ID, nil)
	require.NoError(t, err)
	_, err = logAs(f, lead.ID, models.ActionOutboundCall)
	require.NoError(t, err)

	require.NoError(t, f.assignments.End(ctx, companyID, lead.ID))
	assert.Zero(t, f.progressRows(t, lead.ID))
	assert.ErrorIs(t, f.assignments.End(ctx, companyID, lead.ID), ErrNotFound)

	progress, err := f.assignments.Progress(ctx, companyID, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, progress)

	// A fresh start begins at the first step again.
	_, err = f.assignments.Start(ctx, companyID, lead.ID, &c.ID, nil)
	require.NoError(t, err)
	next, err := f.assignments.NextStep(ctx, companyID, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Steps[0].ID, next.Step.ID)
}

func TestProgressView(t *testing.T) {
	f := newFixture(t)
	c := f.cadence(t, standardOutreach())
	lead := f.lead(t, companyID, true)
	_, err := f.assignments.Start(ctx, companyID, lead.ID, &c.ID, nil)
	require.NoError(t, err)
	_, err = logAs(f, lead.ID, models.ActionOutboundCall)
	require.NoError(t, err)

	p, err := f.assignments.Progress(ctx, companyID, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Standard Outreach", p.Cadence.Name)
	assert.Equal(t, 1, p.Completed)
	assert.Equal(t, 3, p.Total)
	require.Len(t, p.Steps, 3)
	assert.True(t, p.Steps[0].IsCompleted)
	assert.NotNil(t, p.Steps[0].CompletedAt)
	assert.False(t, p.Steps[1].IsCompleted)
	require.NotNil(t, p.NextStep)
	assert.Equal(t, c.Steps[1].ID, p.NextStep.ID)

	start := f.clock.Now()
	assert.Equal(t, time.Date(start.Year(), start.Month(), start.Day(), 17, 0, 0, 0, time.UTC), p.Steps[1].DueAt)
	assert.Equal(t, time.Date(start.Year(), start.Month(), start.Day()+1, 12, 0, 0, 0, time.UTC), p.Steps[2].DueAt)
}

func TestScanDue(t *testing.T) {
	f := newFixture(t)
	c := f.cadence(t, standardOutreach())
	running := f.lead(t, companyID, true)
	paused := f.lead(t, companyID, true)
	_, err := f.assignments.Start(ctx, companyID, running.ID, &c.ID, nil)
	require.NoError(t, err)
	_, err = f.assignments.Start(ctx, companyID, paused.ID, &c.ID, nil)
	require.NoError(t, err)
	_, err = f.assignments.Pause(ctx, companyID, paused.ID)
	require.NoError(t, err)

	// Started at 08:00; the morning step is due at noon.
	due, err := f.assignments.ScanDue(ctx, f.clock.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	later := f.clock.Now().Add(5 * time.Hour)
	due, err = f.assignments.ScanDue(ctx, later, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, running.ID, due[0].LeadID)
	assert.Equal(t, companyID, due[0].CompanyID)
	assert.Equal(t, c.Steps[0].ID, due[0].Step.ID)

	_, err = logAs(f, running.ID, models.ActionOutboundCall)
	require.NoError(t, err)
	due, err = f.assignments.ScanDue(ctx, later, 0)
	require.NoError(t, err)
	assert.Empty(t, due, "afternoon step not yet due")
}

func TestScanDueExaminesEveryPage(t *testing.T) {
	f := newFixture(t)
	c := f.cadence(t, standardOutreach())

	restore := scanPageSize
	scanPageSize = 2
	t.Cleanup(func() { scanPageSize = restore })

	// The oldest assignment has nothing due; the rest span three pages.
	first := f.lead(t, companyID, true)
	_, err := f.assignments.Start(ctx, companyID, first.ID, &c.ID, nil)
	require.NoError(t, err)
	_, err = logAs(f, first.ID, models.ActionOutboundCall)
	require.NoError(t, err)

	var dueLeads []uint
	for i := 0; i < 4; i++ {
		lead := f.lead(t, companyID, true)
		_, err := f.assignments.Start(ctx, companyID, lead.ID, &c.ID, nil)
		require.NoError(t, err)
		dueLeads = append(dueLeads, lead.ID)
	}

	at := f.clock.Now().Add(5 * time.Hour)
	due, err := f.assignments.ScanDue(ctx, at, 0)
	require.NoError(t, err)
	var got []uint
	for _, d := range due {
		got = append(got, d.LeadID)
	}
	assert.Equal(t, dueLeads, got)

	capped, err := f.assignments.ScanDue(ctx, at, 3)
	require.NoError(t, err)
	require.Len(t, capped, 3)
	assert.Equal(t, dueLeads[2], capped[2].LeadID)
}
