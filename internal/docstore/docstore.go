// Package docstore is the persistence boundary of the exchange engine: a
// generic key-document contract that any document database can satisfy.
// The production implementation keeps documents as jsonb rows in Postgres;
// an in-memory implementation backs tests and local development.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get and transactional reads when the
	// document does not exist. Mutations observing it must leave the
	// store untouched.
	ErrNotFound = errors.New("document not found")

	// ErrRetryExhausted is returned by RunTransaction when the store
	// could not commit within its retry budget. The transaction left no
	// partial writes behind.
	ErrRetryExhausted = errors.New("transaction retries exhausted")
)

// Document is one stored record: an opaque id plus a JSON payload.
type Document struct {
	ID        string
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tx is the view a transaction function gets. Reads inside a transaction
// observe committed state as of the transaction and lock the document
// against concurrent writers until commit, so read-modify-write sequences
// on the same document are linearized.
type Tx interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Put(ctx context.Context, collection, id string, data []byte) error
	Delete(ctx context.Context, collection, id string) error
}

type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string) ([]*Document, error)

	// Upsert writes fields under (collection, id). With merge true the
	// fields are shallow-merged into the existing payload; otherwise the
	// payload is replaced.
	Upsert(ctx context.Context, collection, id string, fields map[string]any, merge bool) error

	Delete(ctx context.Context, collection, id string) error

	// RunTransaction executes fn with fresh reads and applies its writes
	// atomically, retrying internally on conflict. Errors returned by fn
	// abort the transaction and are propagated unwrapped.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
