package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types broadcast to company subscribers.
const (
	EventActivityLogged  = "activity.logged"
	EventStepCompleted   = "cadence.step_completed"
	EventCadenceComplete = "cadence.completed"
	EventCadenceStarted  = "cadence.started"
	EventCadencePaused   = "cadence.paused"
	EventCadenceResumed  = "cadence.resumed"
	EventCadenceEnded    = "cadence.ended"
	EventStepOverdue     = "cadence.step_overdue"
	EventDefaultChanged  = "cadence.default_changed"
)

// Event is a change notification scoped to one company.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	CompanyID uint        `json:"company_id"`
	LeadID    uint        `json:"lead_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}

// Publisher accepts events. Publish must not block on slow consumers.
type Publisher interface {
	Publish(Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// Subscription receives one company's events until closed.
type Subscription struct {
	ID        string
	CompanyID uint
	C         <-chan Event

	hub *Hub
	ch  chan Event
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans events out to per-company subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[string]*Subscription
	buffer int
	closed bool
	logger *logrus.Entry
}

func NewHub(buffer int, logger *logrus.Entry) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		subs:   make(map[uint]map[string]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber for companyID. On a closed hub the
// returned channel is already closed.
func (h *Hub) Subscribe(companyID uint) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		C:         ch,
		hub:       h,
		ch:        ch,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	if h.subs[companyID] == nil {
		h.subs[companyID] = make(map[string]*Subscription)
	}
	h.subs[companyID][sub.ID] = sub
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	company := h.subs[sub.CompanyID]
	if _, ok := company[sub.ID]; !ok {
		return
	}
	delete(company, sub.ID)
	if len(company) == 0 {
		delete(h.subs, sub.CompanyID)
	}
	close(sub.ch)
}

// Publish delivers e to every subscriber of its company. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs[e.CompanyID] {
		select {
		case sub.ch <- e:
		default:
			h.logger.WithFields(logrus.Fields{
				"subscriber": sub.ID,
				"event_type": e.Type,
			}).Warn("Dropping realtime event for slow subscriber")
		}
	}
}

// Subscribers counts live subscriptions for companyID.
func (h *Hub) Subscribers(companyID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[companyID])
}

// Close ends every subscription. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for companyID, company := range h.subs {
		for _, sub := range company {
			close(sub.ch)
		}
		delete(h.subs, companyID)
	}
}
