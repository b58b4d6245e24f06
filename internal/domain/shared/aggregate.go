package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and timestamps shared by every persisted
// domain object
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch bumps UpdatedAt to now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// AggregateRoot is implemented by restaurants, products and orders. Their
// mutations record events that the application layer drains after saving.
type AggregateRoot interface {
	DomainEvents() []DomainEvent
	PullDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot embeds BaseEntity and adds the optimistic lock version
// and the pending event list
type BaseAggregateRoot struct {
	BaseEntity
	// Version starts at 1 and is bumped by every successful conditional update
	Version int
	events  []DomainEvent
}

// NewBaseAggregateRoot returns a root with a fresh id and version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := time.Now()
	return BaseAggregateRoot{
		BaseEntity: BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Version:    1,
	}
}

// IncrementVersion records a successful versioned save
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// AddDomainEvent queues e for publication
func (a *BaseAggregateRoot) AddDomainEvent(e DomainEvent) {
	a.events = append(a.events, e)
}

// DomainEvents returns the pending events without clearing them
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent { return a.events }

// PullDomainEvents returns the pending events and clears the list
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

// ClearDomainEvents drops the pending events
func (a *BaseAggregateRoot) ClearDomainEvents() { a.events = nil }
