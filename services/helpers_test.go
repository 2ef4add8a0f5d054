package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"salescadence/config"
	"salescadence/models"
	"salescadence/realtime"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(e realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db          *gorm.DB
	clock       *clock
	events      *recorder
	cadences    *CadenceService
	assignments *AssignmentService
	activities  *ActivityService
	leads       *LeadService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: newTestDB(t), clock: newClock(), events: &recorder{}}
	opts := []Option{WithClock(f.clock.Now), WithEvents(f.events)}
	f.cadences = NewCadenceService(f.db, nil, opts...)
	f.assignments = NewAssignmentService(f.db, nil, opts...)
	f.activities = NewActivityService(f.db, nil, opts...)
	f.leads = NewLeadService(f.db, nil, opts...)
	return f
}

var ctx = context.Background()

const (
	companyID uint = 7
	userID    uint = 11
)

func (f *fixture) lead(t *testing.T, company uint, assigned bool) models.Lead {
	t.Helper()
	lead := models.Lead{CompanyID: company, LeadStatus: models.LeadStatusNew}
	if assigned {
		u := userID
		lead.AssignedTo = &u
	}
	require.NoError(t, f.db.Create(&lead).Error)
	return lead
}

func standardOutreach() CadenceInput {
	return CadenceInput{
		Name: "Standard Outreach",
		Steps: []StepInput{
			{DayNumber: 0, TimeOfDay: models.TimeOfDayMorning, ActionType: models.ActionOutboundCall},
			{DayNumber: 0, TimeOfDay: models.TimeOfDayAfternoon, ActionType: models.ActionTextMessage},
			{DayNumber: 1, TimeOfDay: models.TimeOfDayMorning, ActionType: models.ActionEmail},
		},
	}
}

func (f *fixture) cadence(t *testing.T, in CadenceInput) *models.Cadence {
	t.Helper()
	c, err := f.cadences.Create(ctx, companyID, in)
	require.NoError(t, err)
	return c
}

func (f *fixture) progressRows(t *testing.T, leadID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.StepProgress{}).Where("lead_id = ?", leadID).Count(&n).Error)
	return n
}
