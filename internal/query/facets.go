package query

import (
	"context"
	"fmt"
	"sort"

	"example.com/activitydash/internal/domain"
)

// Facet dimensions exposed by the dashboard.
const (
	FacetThematic    = "thematic_exact"
	FacetCountry     = "country_exact"
	FacetRegion      = "region_exact"
	FacetDirectorate = "directorate_exact"
	facetStartDate   = "start_date"
)

// Service answers dashboard queries against the index, reconciling against
// the primary store where the index is not authoritative.
type Service struct {
	index domain.SearchIndex
	store domain.ActivityStore
}

// NewService builds a query Service.
func NewService(index domain.SearchIndex, store domain.ActivityStore) *Service {
	return &Service{index: index, store: store}
}

// FacetCount is one label bucket of a facet dimension.
type FacetCount struct {
	Label string
	Count int
}

// YearCount is one calendar-year bucket of the date facet.
type YearCount struct {
	Year  string `json:"year"`
	Count int    `json:"count"`
}

// Facet returns the facet counts for one dimension over the filtered record
// set, in the order the index returned them. A response without a facet
// section maps to ErrNoFacetData.
func (s *Service) Facet(ctx context.Context, filters []domain.Filter, dimension string) ([]FacetCount, error) {
	counts, err := s.index.FacetCounts(ctx, filters, dimension)
	if err != nil {
		return nil, err
	}
	if counts == nil || counts.Fields == nil {
		return nil, domain.ErrNoFacetData
	}

	entries := counts.Fields[dimension]
	result := make([]FacetCount, 0, len(entries))
	for _, entry := range entries {
		result = append(result, FacetCount{Label: entry.Value, Count: entry.Count})
	}
	return result, nil
}

// YearlyFacet buckets the start_date facet by calendar year. The index
// facets per exact date-time value, so many buckets collapse into one year;
// counts are summed per year and years sorted ascending.
func (s *Service) YearlyFacet(ctx context.Context, filters []domain.Filter) ([]YearCount, error) {
	counts, err := s.index.FacetCounts(ctx, filters, facetStartDate)
	if err != nil {
		return nil, err
	}
	if counts == nil || counts.Fields == nil {
		return nil, domain.ErrNoFacetData
	}

	yearly := map[string]int{}
	for _, entry := range counts.Fields[facetStartDate] {
		// Bucket keys are ISO instants; the year is the 4-char prefix.
		if len(entry.Value) < 4 {
			return nil, fmt.Errorf("malformed date facet bucket %q", entry.Value)
		}
		yearly[entry.Value[:4]] += entry.Count
	}

	years := make([]string, 0, len(yearly))
	for year := range yearly {
		years = append(years, year)
	}
	sort.Strings(years)

	result := make([]YearCount, 0, len(years))
	for _, year := range years {
		result = append(result, YearCount{Year: year, Count: yearly[year]})
	}
	return result, nil
}
