// Package query composes index queries for the dashboard: filter parsing,
// facet aggregation, the paginated projection, and the stacked dataset.
package query

import (
	"net/url"
	"strings"

	"example.com/activitydash/internal/domain"
)

// filterParams maps each f.* query parameter to the exact-match index field
// it restricts. Dimensions with no supplied values impose no restriction.
var filterParams = []struct {
	param string
	field string
}{
	{"f.countries", "country_exact"},
	{"f.regions", "region_exact"},
	{"f.thematics", "thematic_exact"},
}

// ParseFilters normalizes the f.* query parameters into exact-match filters.
// Each parameter accepts a single value, a comma-separated list, or repeated
// parameters; values are percent-decoded and trimmed, empties dropped.
// Filters combine conjunctively across dimensions.
func ParseFilters(values url.Values) []domain.Filter {
	filters := make([]domain.Filter, 0, len(filterParams))
	for _, dim := range filterParams {
		if parsed := listParam(values, dim.param); len(parsed) > 0 {
			filters = append(filters, domain.Filter{Field: dim.field, Values: parsed})
		}
	}
	return filters
}

func listParam(values url.Values, name string) []string {
	raw := values[name]
	if len(raw) == 1 && strings.Contains(raw[0], ",") {
		raw = strings.Split(raw[0], ",")
	}

	out := make([]string, 0, len(raw))
	for _, value := range raw {
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
