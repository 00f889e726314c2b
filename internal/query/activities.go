package query

import (
	"context"
	"fmt"
	"strconv"

	"example.com/activitydash/internal/domain"
	"example.com/activitydash/internal/search"
)

const defaultPageSize = 10

// ActivityRow is one row of the paginated projection. Field values come from
// the index except url, which is reconciled against the primary store.
type ActivityRow struct {
	DBID        int64  `json:"db_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Country     string `json:"country"`
	Region      string `json:"region"`
	Activity    string `json:"activity"`
	Objective   string `json:"objective"`
	Thematic    string `json:"thematic"`
	Directorate string `json:"directorate"`
	URL         string `json:"url"`
}

// Page is the paginated projection envelope.
type Page struct {
	Count        int           `json:"count"`
	TotalPages   int           `json:"total_pages"`
	CurrentPage  int           `json:"current_page"`
	NextPage     *int          `json:"next_page"`
	PreviousPage *int          `json:"previous_page"`
	Results      []ActivityRow `json:"results"`
}

// Activities returns one page of the filtered, start_date-descending
// projection. pageParam defaults to 1, perPageParam to 10; a non-integer or
// out-of-range page fails with ErrInvalidPage. Because the index stores some
// text fields tokenized, each row's url is overwritten with the authoritative
// value from the primary store.
func (s *Service) Activities(ctx context.Context, filters []domain.Filter, pageParam, perPageParam string) (*Page, error) {
	page, err := parsePage(pageParam)
	if err != nil {
		return nil, err
	}
	perPage := parsePerPage(perPageParam)

	rows, err := s.index.Select(ctx, filters, search.ProjectionFields, "start_date desc")
	if err != nil {
		return nil, err
	}

	count := len(rows)
	totalPages := (count + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		return nil, fmt.Errorf("%w: page %d of %d", domain.ErrInvalidPage, page, totalPages)
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > count {
		end = count
	}

	results := make([]ActivityRow, 0, end-start)
	ids := make([]int64, 0, end-start)
	for _, row := range rows[start:end] {
		results = append(results, ActivityRow{
			DBID:        row.DBID,
			StartDate:   row.StartDate,
			EndDate:     row.EndDate,
			Country:     row.Country,
			Region:      row.Region,
			Activity:    row.Activity,
			Objective:   row.Objective,
			Thematic:    row.Thematic,
			Directorate: row.Directorate,
			URL:         row.URL,
		})
		if row.DBID != 0 {
			ids = append(ids, row.DBID)
		}
	}

	if err := s.reconcileURLs(ctx, results, ids); err != nil {
		return nil, err
	}

	envelope := &Page{
		Count:       count,
		TotalPages:  totalPages,
		CurrentPage: page,
		Results:     results,
	}
	if page < totalPages {
		next := page + 1
		envelope.NextPage = &next
	}
	if page > 1 {
		previous := page - 1
		envelope.PreviousPage = &previous
	}
	return envelope, nil
}

// reconcileURLs overwrites each row's url with the primary store's value.
// The index keeps url in analyzed form, so its stored value may be a single
// token; the primary store is authoritative.
func (s *Service) reconcileURLs(ctx context.Context, results []ActivityRow, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	authoritative, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: primary store lookup: %v", domain.ErrBackendUnavailable, err)
	}

	for i := range results {
		if rec, ok := authoritative[results[i].DBID]; ok && rec.URL != "" {
			results[i].URL = rec.URL
		}
	}
	return nil
}

func parsePage(param string) (int, error) {
	if param == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(param)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidPage, param)
	}
	if page < 1 {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidPage, page)
	}
	return page, nil
}

// parsePerPage falls back to the default for missing or unusable values;
// only the page number has a specified error path.
func parsePerPage(param string) int {
	if param == "" {
		return defaultPageSize
	}
	perPage, err := strconv.Atoi(param)
	if err != nil || perPage < 1 {
		return defaultPageSize
	}
	return perPage
}
