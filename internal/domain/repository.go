package domain

import (
	"context"
	"time"
)

// ItemRepository defines the interface for item aggregate persistence
type ItemRepository interface {
	// FindByItemID returns the item, or (nil, nil) when it does not exist
	FindByItemID(ctx context.Context, itemID string) (*Item, error)

	// Create persists a new item together with its create ledger entry in
	// one atomic unit. A duplicate item ID yields ErrItemAlreadyExists.
	Create(ctx context.Context, item *Item, entry LedgerEntry) error

	// Update persists the mutated aggregate and appends the given ledger
	// entries in one atomic unit. The write only applies when the stored
	// revision still equals expectedRevision; a mismatch yields
	// ErrConcurrentModification and nothing is written.
	Update(ctx context.Context, item *Item, expectedRevision int64, entries []LedgerEntry) error

	// FindAll returns items with pagination
	FindAll(ctx context.Context, limit, offset int) ([]*Item, error)

	// FindBelowThreshold returns items having at least one allocation at or
	// below its notification threshold
	FindBelowThreshold(ctx context.Context) ([]*Item, error)
}

// LedgerRepository defines read access to the append-only ledger
type LedgerRepository interface {
	// FindByItemID returns entries for an item, newest first
	FindByItemID(ctx context.Context, itemID string, limit int) ([]LedgerEntry, error)

	// FindByItemIDAscending returns all entries for an item in commit order,
	// suitable for rebuilding the aggregate
	FindByItemIDAscending(ctx context.Context, itemID string) ([]LedgerEntry, error)

	// OutstandingIssuedBalance returns the counterparty's net outstanding
	// issued quantity for (item, project):
	// sum(issue) - sum(return) - sum(consume), floored at zero.
	OutstandingIssuedBalance(ctx context.Context, itemID, projectID, counterparty string) (int, error)

	// FindByTimeRange returns entries for an item within [start, end]
	FindByTimeRange(ctx context.Context, itemID string, start, end time.Time) ([]LedgerEntry, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	PublishAll(ctx context.Context, events []DomainEvent) error
}
