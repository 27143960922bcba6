package events

import (
	"context"
	"time"
)

// Instance lifecycle event types. Each is published on SubjectPrefix + type.
const (
	InstanceCreated    = "created"
	InstanceUpdated    = "updated"
	InstanceDeleted    = "deleted"
	InstanceReconciled = "reconciled"

	SubjectPrefix = "cloud.instances."
)

type Event struct {
	Type       string    `json:"type"`
	InstanceID uint      `json:"instanceId"`
	CloudID    int       `json:"cloudId"`
	PlanID     uint      `json:"planId,omitempty"`
	UserID     *uint     `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e Event) Subject() string {
	return SubjectPrefix + e.Type
}

// Publisher delivers lifecycle events. Publishing is best effort: callers
// log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

var _ Publisher = Nop{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() {}
