package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"salescadence/models"
	"salescadence/realtime"
	"salescadence/services"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeScanner struct {
	mu    sync.Mutex
	due   []services.DueStep
	err   error
	calls int
}

func (f *fakeScanner) ScanDue(ctx context.Context, now time.Time, limit int) ([]services.DueStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.due, f.err
}

func (f *fakeScanner) set(due ...services.DueStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.due = due
}

func (f *fakeScanner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
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

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func dueStep(assignmentID, stepID uint) services.DueStep {
	step := models.CadenceStep{ActionType: models.ActionOutboundCall}
	step.ID = stepID
	return services.DueStep{CompanyID: 1, LeadID: assignmentID, AssignmentID: assignmentID, Step: step}
}

func TestRunOnceAnnouncesEachOverdueStepOnce(t *testing.T) {
	scanner := &fakeScanner{}
	events := &recorder{}
	w := NewCadenceWorker(scanner, events, time.Minute, nil)
	ctx := context.Background()

	scanner.set(dueStep(1, 10), dueStep(2, 20))
	assert.Equal(t, 2, w.RunOnce(ctx))
	assert.Equal(t, 0, w.RunOnce(ctx))

	// Step 10 completed; lead 1 moved on to step 11.
	scanner.set(dueStep(1, 11), dueStep(2, 20))
	assert.Equal(t, 1, w.RunOnce(ctx))
	require.Equal(t, 3, events.Len())
	assert.Equal(t, realtime.EventStepOverdue, events.events[0].Type)
	assert.EqualValues(t, 1, events.events[0].CompanyID)

	// A step that stops being due and comes back is announced again.
	scanner.set(dueStep(1, 11))
	assert.Equal(t, 0, w.RunOnce(ctx))
	scanner.set(dueStep(1, 11), dueStep(2, 20))
	assert.Equal(t, 1, w.RunOnce(ctx))
}

func TestRunOnceScanError(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("db down")}
	events := &recorder{}
	w := NewCadenceWorker(scanner, events, time.Minute, nil)

	assert.Zero(t, w.RunOnce(context.Background()))
	assert.Zero(t, events.Len())
}

func TestStartStopsOnCancel(t *testing.T) {
	scanner := &fakeScanner{}
	w := NewCadenceWorker(scanner, nil, 10*time.Millisecond, nil)
	w.InitialDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	require.Eventually(t, func() bool { return scanner.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStartCancelledDuringInitialDelay(t *testing.T) {
	scanner := &fakeScanner{}
	w := NewCadenceWorker(scanner, nil, time.Minute, nil)
	w.InitialDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)
	assert.Zero(t, scanner.Calls())
}
