package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestPublishIsScopedToCompany(t *testing.T) {
	hub := NewHub(4, nil)
	defer hub.Close()

	a := hub.Subscribe(1)
	b := hub.Subscribe(2)
	assert.Equal(t, 1, hub.Subscribers(1))

	hub.Publish(Event{Type: EventActivityLogged, CompanyID: 1, LeadID: 9})

	e := receive(t, a)
	assert.Equal(t, EventActivityLogged, e.Type)
	assert.EqualValues(t, 9, e.LeadID)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.At.IsZero())

	select {
	case e := <-b.C:
		t.Fatalf("company 2 received %v", e)
	default:
	}
}

func TestPublishDropsForFullSubscriber(t *testing.T) {
	hub := NewHub(1, nil)
	defer hub.Close()
	sub := hub.Subscribe(1)

	hub.Publish(Event{Type: "first", CompanyID: 1})
	hub.Publish(Event{Type: "second", CompanyID: 1})

	assert.Equal(t, "first", receive(t, sub).Type)
	select {
	case e := <-sub.C:
		t.Fatalf("expected drop, got %v", e)
	default:
	}
}

func TestSubscriptionClose(t *testing.T) {
	hub := NewHub(1, nil)
	defer hub.Close()
	sub := hub.Subscribe(3)
	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, hub.Subscribers(3))
	hub.Publish(Event{Type: "ignored", CompanyID: 3})
}

func TestHubClose(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe(1)
	hub.Close()
	hub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	late := hub.Subscribe(1)
	_, ok = <-late.C
	assert.False(t, ok)
	hub.Publish(Event{Type: "after close", CompanyID: 1})
}
