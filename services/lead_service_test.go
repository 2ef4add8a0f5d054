package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salescadence/models"
)

func TestInProcessStartsDefaultCadence(t *testing.T) {
	f := newFixture(t)
	in := standardOutreach()
	in.IsDefault = true
	c := f.cadence(t, in)
	lead := f.lead(t, companyID, true)

	change, err := f.leads.UpdateStatus(ctx, companyID, lead.ID, models.LeadStatusInProcess)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusInProcess, change.Lead.LeadStatus)
	require.NotNil(t, change.Started)
	assert.Equal(t, c.ID, change.Started.CadenceID)

	// Already running: nothing new starts.
	change, err = f.leads.UpdateStatus(ctx, companyID, lead.ID, models.LeadStatusInProcess)
	require.NoError(t, err)
	assert.Nil(t, change.Started)
}

func TestInProcessWithoutDefaultOrOwner(t *testing.T) {
	f := newFixture(t)
	f.cadence(t, standardOutreach())

	owned := f.lead(t, companyID, true)
	change, err := f.leads.UpdateStatus(ctx, companyID, owned.ID, models.LeadStatusInProcess)
	require.NoError(t, err)
	assert.Nil(t, change.Started)

	f.cadence(t, CadenceInput{Name: "Default", IsDefault: true})
	unowned := f.lead(t, companyID, false)
	change, err = f.leads.UpdateStatus(ctx, companyID, unowned.ID, models.LeadStatusInProcess)
	require.NoError(t, err)
	assert.Nil(t, change.Started)
}

func TestClosingLeadEndsCadence(t *testing.T) {
	for _, status := range []string{models.LeadStatusWon, models.LeadStatusLost} {
		t.Run(status, func(t *testing.T) {
			f := newFixture(t)
			c := f.cadence(t, standardOutreach())
			lead := f.lead(t, companyID, true)
			_, err := f.assignments.Start(ctx, companyID, lead.ID, &c.ID, nil)
			require.NoError(t, err)
			_, err = logAs(f, lead.ID, models.ActionOutboundCall)
			require.NoError(t, err)

			change, err := f.leads.UpdateStatus(ctx, companyID, lead.ID, status)
			require.NoError(t, err)
			require.NotNil(t, change.EndedAssignment)
			assert.Equal(t, models.EndReasonLeadClosed, change.EndedAssignment.EndReason)
			assert.Zero(t, f.progressRows(t, lead.ID))

			next, err := f.assignments.NextStep(ctx, companyID, lead.ID)
			require.NoError(t, err)
			assert.Nil(t, next)
		})
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture(t)
	lead := f.lead(t, companyID, true)

	_, err := f.leads.UpdateStatus(ctx, companyID, lead.ID, "dormant")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.leads.UpdateStatus(ctx, companyID, 404, models.LeadStatusQuoted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveAndRecover(t *testing.T) {
	f := newFixture(t)
	c := f.cadence(t, standardOutreach())
	lead := f.lead(t, companyID, true)
	_, err := f.assignments.Start(ctx, companyID, lead.ID, &c.ID, nil)
	require.NoError(t, err)

	archived, err := f.leads.Archive(ctx, companyID, lead.ID)
	require.NoError(t, err)
	assert.NotNil(t, archived.ArchivedAt)

	var a models.CadenceAssignment
	require.NoError(t, f.db.Where("lead_id = ?", lead.ID).First(&a).Error)
	assert.Equal(t, models.EndReasonArchived, a.EndReason)

	_, err = f.leads.UpdateStatus(ctx, companyID, lead.ID, models.LeadStatusQuoted)
	assert.ErrorIs(t, err, ErrConflict)

	recovered, err := f.leads.Recover(ctx, companyID, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, recovered.ArchivedAt)

	progress, err := f.assignments.Progress(ctx, companyID, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, progress, "recovery does not restart the cadence")
}
