package ingest

import (
	"fmt"
	"time"

	"example.com/activitydash/internal/domain"
)

// dateFormats are tried in order; the first that parses wins. ISO, then
// day-first, then month-first.
var dateFormats = []string{"2006-01-02", "02/01/2006", "01/02/2006"}

// MapRows folds the normalized table into candidate records. Rows with an
// empty activity or country are dropped and counted as skipped; unparseable
// non-empty dates produce a diagnostic and a nil date. No row failure aborts
// the batch.
func MapRows(table *Table) (records []domain.Activity, invalidRows []string, skipped int) {
	records = make([]domain.Activity, 0, len(table.Rows))
	invalidRows = []string{}

	for i, row := range table.Rows {
		rowNum := i + 2 // the header is row 1

		startDate, diag := parseDate(row["start_date"], rowNum, "start_date")
		if diag != "" {
			invalidRows = append(invalidRows, diag)
		}
		endDate, diag := parseDate(row["end_date"], rowNum, "end_date")
		if diag != "" {
			invalidRows = append(invalidRows, diag)
		}

		if row["activity"] == "" || row["country"] == "" {
			skipped++
			continue
		}

		records = append(records, domain.Activity{
			StartDate:   startDate,
			EndDate:     endDate,
			Country:     row["country"],
			Region:      row["region"],
			Activity:    row["activity"],
			Objective:   row["objective"],
			Thematic:    row["thematic"],
			Directorate: row["directorate"],
			URL:         row["url"],
		})
	}

	return records, invalidRows, skipped
}

// parseDate tries each accepted format in order. An unparseable non-empty
// value yields a diagnostic string and a nil date; it never fails the row.
func parseDate(value string, rowNum int, field string) (*time.Time, string) {
	if value == "" {
		return nil, ""
	}
	for _, format := range dateFormats {
		if parsed, err := time.Parse(format, value); err == nil {
			return &parsed, ""
		}
	}
	return nil, fmt.Sprintf("Row %d: invalid %s '%s'", rowNum, field, value)
}
