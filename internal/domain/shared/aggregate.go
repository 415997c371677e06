package shared

// AggregateRoot is what a repository needs from a versioned aggregate
type AggregateRoot interface {
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot adds an optimistic-lock version and pending domain events to an entity.
// Version advances at most once between two saves, so a repository can check the
// stored row against Version-1 however many mutations a unit of work applied.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	bumped       bool
	domainEvents []DomainEvent
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion bumps the version once per unit of work and touches UpdatedAt
func (a *BaseAggregateRoot) IncrementVersion() {
	if !a.bumped {
		a.Version++
		a.bumped = true
	}
	a.Touch()
}

// MarkPersisted is called by repositories after a successful write
func (a *BaseAggregateRoot) MarkPersisted() {
	a.bumped = false
}

// AddDomainEvent queues a domain event for publication after commit
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents drops the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new aggregate root at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

var _ AggregateRoot = (*BaseAggregateRoot)(nil)
