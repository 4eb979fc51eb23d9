// Package store defines the persistence interface for metadata records.
// Keeping the interface separate from the Postgres implementation lets the
// service and handlers run against per-test fakes.
package store

import (
	"context"
	"errors"

	"github.com/urlmeta/inventory/internal/metadata"
)

// ErrNotFound is returned when no record exists for the requested URL.
var ErrNotFound = errors.New("metadata record not found")

// ErrDuplicateKey is returned when a concurrent insert races on the unique
// url key.
var ErrDuplicateKey = errors.New("metadata record already exists")

// ErrUnavailable is returned when the store cannot be reached.
var ErrUnavailable = errors.New("metadata store unavailable")

// Repository persists metadata records keyed by canonical URL. The key
// carries a uniqueness constraint and Upsert is atomic, so concurrent
// writers race harmlessly to last-write-wins.
type Repository interface {
	// GetByURL returns the record stored under the given URL string, or
	// ErrNotFound. The key is used verbatim; callers decide whether to
	// normalize first.
	GetByURL(ctx context.Context, url string) (metadata.Record, error)

	// Upsert inserts or fully overwrites the record keyed by record.URL.
	Upsert(ctx context.Context, record metadata.Record) error

	// Ping verifies connectivity for liveness probes.
	Ping(ctx context.Context) error

	// Close releases the underlying connection resources.
	Close()
}
