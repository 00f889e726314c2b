// Package domain defines the activity record and the contracts of the two
// stores it lives in: the authoritative relational store and the derived
// search/facet index.
package domain

import (
	"context"
	"time"
)

// Activity is the canonical record stored in PostgreSQL. The search index
// holds a derived projection of it keyed by the same ID; the index is never
// authoritative for any field.
type Activity struct {
	ID          int64
	StartDate   *time.Time
	EndDate     *time.Time
	Country     string
	Region      string
	Activity    string
	Objective   string
	Thematic    string
	Directorate string
	URL         string
}

// ActivityStore captures persistence operations against the primary store.
// IDs are assigned by the store; callers never set them on create.
type ActivityStore interface {
	// BulkCreate inserts all records in a single transaction and returns the
	// records actually created, with store-assigned IDs. Rows colliding with
	// an existing unique constraint are silently dropped, which makes
	// re-imports of overlapping files idempotent.
	BulkCreate(ctx context.Context, records []Activity) ([]Activity, error)
	// GetByIDs returns the records for the given IDs, keyed by ID. Missing
	// IDs are simply absent from the map.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]Activity, error)
	Get(ctx context.Context, id int64) (*Activity, error)
	Update(ctx context.Context, record Activity) (*Activity, error)
	Delete(ctx context.Context, id int64) error
}

// Filter restricts an index query to records whose field matches one of the
// given values exactly. Filters combine conjunctively across fields.
type Filter struct {
	Field  string
	Values []string
}

// IndexRow is a field-projected document returned by the index. Only the
// fields named in the projection are populated; dates are the raw strings
// the index stores.
type IndexRow struct {
	DBID        int64
	StartDate   string
	EndDate     string
	Country     string
	Region      string
	Activity    string
	Objective   string
	Thematic    string
	Directorate string
	URL         string
}

// FacetEntry is one value bucket of a facet count query.
type FacetEntry struct {
	Value string
	Count int
}

// FacetCounts is the raw facet response. A nil Fields map means the index
// returned no facet section at all, which callers treat as "no facet data".
type FacetCounts struct {
	Fields map[string][]FacetEntry
}

// SearchIndex is the derived, eventually consistent projection of the
// primary store. Upsert and Remove are the write-time synchronization pair:
// every component that mutates the primary store invokes them after the
// primary write commits.
type SearchIndex interface {
	Select(ctx context.Context, filters []Filter, fields []string, sort string) ([]IndexRow, error)
	FacetCounts(ctx context.Context, filters []Filter, facetField string) (*FacetCounts, error)
	Upsert(ctx context.Context, records []Activity) error
	Remove(ctx context.Context, id int64) error
}
