package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/activitydash/internal/domain"
	"example.com/activitydash/internal/observability"
)

// Summary is the structured result of one ingestion run. It is the sole
// success return value of the bulk import operation.
type Summary struct {
	Message      string   `json:"message"`
	Imported     int      `json:"imported"`
	Skipped      int      `json:"skipped"`
	InvalidRows  []string `json:"invalid_rows"`
	EncodingUsed string   `json:"encoding_used"`
	TotalRows    int      `json:"total_rows"`
}

// Importer runs the ingestion pipeline: normalize, validate, commit, then
// push the created records into the search index.
type Importer struct {
	store domain.ActivityStore
	index domain.SearchIndex
}

// NewImporter builds an Importer.
func NewImporter(store domain.ActivityStore, index domain.SearchIndex) *Importer {
	return &Importer{store: store, index: index}
}

// Import ingests one tabular payload. Row-level problems are collected into
// the summary; file-level and transaction-level problems abort the whole run.
// The index upsert happens after the primary commit and its failure is logged
// but never unwinds the commit: the index is eventually consistent by
// contract.
func (im *Importer) Import(ctx context.Context, payload []byte, filename string) (*Summary, error) {
	batchID := uuid.NewString()
	started := time.Now()

	table, encodingUsed, err := Normalize(payload, filename)
	if err != nil {
		return nil, err
	}

	records, invalidRows, skipped := MapRows(table)

	created, err := im.store.BulkCreate(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCommitFailure, err)
	}

	if len(created) > 0 {
		if err := im.index.Upsert(ctx, created); err != nil {
			observability.RecordIndexSyncError()
			log.Printf("import %s: index upsert of %d records failed: %v", batchID, len(created), err)
		}
	}

	summary := &Summary{
		Message:      "Upload complete.",
		Imported:     len(created),
		Skipped:      skipped,
		InvalidRows:  invalidRows,
		EncodingUsed: encodingUsed,
		TotalRows:    len(table.Rows),
	}

	observability.RecordImport(summary.Imported, summary.Skipped, len(summary.InvalidRows), time.Since(started))
	log.Printf("import %s: %d imported, %d skipped, %d invalid of %d rows (%s)",
		batchID, summary.Imported, summary.Skipped, len(summary.InvalidRows), summary.TotalRows, encodingUsed)

	return summary, nil
}
