// Package events publishes expense lifecycle notifications.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/mmynk/dailyexpenses/internal/models"
)

// Type names an expense lifecycle event. It doubles as the AMQP routing key.
type Type string

const (
	ExpenseCreated Type = "expense.created"
	ExpenseUpdated Type = "expense.updated"
	ExpenseDeleted Type = "expense.deleted"
)

// Event is the message body published for every expense change.
type Event struct {
	Type       Type      `json:"type"`
	ExpenseID  string    `json:"expense_id"`
	OwnerID    string    `json:"owner_id"`
	Amount     string    `json:"amount"`
	Category   string    `json:"category"`
	Date       string    `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent builds an event describing e.
func NewEvent(t Type, e *models.Expense, at time.Time) Event {
	return Event{
		Type:       t,
		ExpenseID:  e.ID,
		OwnerID:    e.OwnerID,
		Amount:     e.Amount.String(),
		Category:   e.Category,
		Date:       e.Date.String(),
		OccurredAt: at.UTC(),
	}
}

// ToJSON encodes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from every Publish.
	Err error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
