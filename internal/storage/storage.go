// Package storage defines the document store contracts shared by the postgres and memory backends.
package storage

import (
	"context"

	"github.com/google/uuid"

	"fillScope/internal/model"
)

// SchedulerFlag names an Event flag owned by a batch scheduler.
type SchedulerFlag string

const (
	FlagTransactionFetch SchedulerFlag = "transaction_fetch_scheduled"
	FlagFillCreation     SchedulerFlag = "fill_creation_scheduled"
)

// Valid reports whether f is a known flag.
func (f SchedulerFlag) Valid() bool {
	return f == FlagTransactionFetch || f == FlagFillCreation
}

// EventSink receives freshly ingested events.
type EventSink interface {
	PutEventBatch(ctx context.Context, events []model.Event) (int, error)
}

// EventStore reads and flags Events.
type EventStore interface {
	EventSink
	GetEvent(ctx context.Context, id uuid.UUID) (model.Event, error)
	EventsByTransaction(ctx context.Context, txHash string, types ...model.EventType) ([]model.Event, error)
	UnscheduledEvents(ctx context.Context, flag SchedulerFlag, types []model.EventType, limit int) ([]model.Event, error)
	MarkScheduled(ctx context.Context, flag SchedulerFlag, ids []uuid.UUID) error
}

// TransactionStore reads and writes Transactions.
type TransactionStore interface {
	GetTransaction(ctx context.Context, hash string) (model.Transaction, error)
	SaveTransaction(ctx context.Context, tx model.Transaction) error
}

// FillStore reads and writes Fills. CreateFills is all-or-nothing and returns
// ErrDuplicateKey when any fill already exists.
type FillStore interface {
	FillExists(ctx context.Context, eventID uuid.UUID) (bool, error)
	ExistingFills(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	CreateFills(ctx context.Context, fills []model.Fill) error
	GetFill(ctx context.Context, id uuid.UUID) (model.Fill, error)
}

// TokenStore reads and writes Tokens.
type TokenStore interface {
	KnownTokens(ctx context.Context, addresses []string) (model.KnownTokens, error)
	// InsertMissingTokens stores unknown refs as unresolved tokens and returns every ref that
	// is still unresolved afterwards.
	InsertMissingTokens(ctx context.Context, refs []model.TokenRef) ([]model.TokenRef, error)
	UpdateTokenMeta(ctx context.Context, address string, meta model.TokenMeta) error
}

// AddressStore reads and writes resolved address types.
type AddressStore interface {
	KnownAddresses(ctx context.Context, addresses []string) (map[string]bool, error)
	SaveAddressMeta(ctx context.Context, meta model.AddressMeta) error
}

// Store is the full document store.
type Store interface {
	EventStore
	TransactionStore
	FillStore
	TokenStore
	AddressStore
}
