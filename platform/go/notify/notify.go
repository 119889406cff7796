// Package notify fans "something changed" events out to connected clients.
// Delivery is best-effort: publishers never block the caller and never report errors.
package notify

import (
	"context"
)

// Event names emitted after successful mutations.
const (
	StallCreated    = "stall_created"
	StallUpdated    = "stall_updated"
	StallDeleted    = "stall_deleted"
	ShiftsChanged   = "shifts_changed"
	WorkerCreated   = "worker_created"
	WorkerUpdated   = "worker_updated"
	WorkerDeleted   = "worker_deleted"
	CustomerCreated = "customer_created"
	CustomerUpdated = "customer_updated"
	CustomerDeleted = "customer_deleted"
	UserCreated     = "user_created"
	UserUpdated     = "user_updated"
	UserDeleted     = "user_deleted"
	CompanyUpdated  = "company_updated"
)

// Event is the payload delivered to clients of one company.
type Event struct {
	Event    string `json:"event"`
	Data     any    `json:"data"`
	UserName string `json:"userName"`
	Company  string `json:"company"`
}

// Publisher delivers events without blocking.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Fanout publishes every event to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
