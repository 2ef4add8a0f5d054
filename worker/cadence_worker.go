package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"salescadence/realtime"
	"salescadence/services"
)

// DueScanner finds next steps that are past due.
type DueScanner interface {
	ScanDue(ctx context.Context, now time.Time, limit int) ([]services.DueStep, error)
}

type overdueKey struct {
	assignmentID uint
	stepID       uint
}

// CadenceWorker announces overdue cadence steps. Each step is announced
// once per process while it stays overdue.
type CadenceWorker struct {
	Scanner      DueScanner
	Events       realtime.Publisher
	Logger       *logrus.Entry
	Interval     time.Duration
	InitialDelay time.Duration
	Now          func() time.Time

	announced map[overdueKey]struct{}
}

func NewCadenceWorker(scanner DueScanner, events realtime.Publisher, interval time.Duration, logger *logrus.Entry) *CadenceWorker {
	if events == nil {
		events = realtime.Nop{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CadenceWorker{
		Scanner:      scanner,
		Events:       events,
		Logger:       logger,
		Interval:     interval,
		InitialDelay: 10 * time.Second,
		Now:          time.Now,
		announced:    make(map[overdueKey]struct{}),
	}
}

// Start blocks until ctx is cancelled.
func (cw *CadenceWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(cw.InitialDelay):
	}

	cw.Logger.WithField("interval", cw.Interval.String()).Info("Cadence worker started")

	ticker := time.NewTicker(cw.Interval)
	defer ticker.Stop()

	cw.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			cw.Logger.Info("Cadence worker shutting down")
			return
		case <-ticker.C:
			cw.RunOnce(ctx)
		}
	}
}

// RunOnce scans once and returns how many steps were newly announced.
func (cw *CadenceWorker) RunOnce(ctx context.Context) int {
	due, err := cw.Scanner.ScanDue(ctx, cw.Now(), 0)
	if err != nil {
		if ctx.Err() == nil {
			cw.Logger.WithError(err).Error("Error scanning due cadence steps")
		}
		return 0
	}

	current := make(map[overdueKey]struct{}, len(due))
	announced := 0
	for _, d := range due {
		key := overdueKey{assignmentID: d.AssignmentID, stepID: d.Step.ID}
		current[key] = struct{}{}
		if _, ok := cw.announced[key]; ok {
			continue
		}
		cw.Logger.WithFields(logrus.Fields{
			"company_id":      d.CompanyID,
			"lead_id":         d.LeadID,
			"cadence_step_id": d.Step.ID,
			"action_type":     d.Step.ActionType,
			"due_at":          d.DueAt,
		}).Info("Cadence step overdue")
		cw.Events.Publish(realtime.Event{
			Type:      realtime.EventStepOverdue,
			CompanyID: d.CompanyID,
			LeadID:    d.LeadID,
			Data: map[string]interface{}{
				"assignment_id": d.AssignmentID,
				"step":          d.Step,
				"due_at":        d.DueAt,
			},
		})
		announced++
	}
	// Forget steps that were completed or whose assignment ended.
	cw.announced = current
	return announced
}
