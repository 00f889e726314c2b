package query

import (
	"context"
	"sort"

	"example.com/activitydash/internal/domain"
)

var stackedFields = []string{"db_id", "country_exact", "thematic_exact"}

// StackedSeries is one thematic-area series of the stacked chart, aligned
// positionally with the label list.
type StackedSeries struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

// StackedDataset is the chart-ready country × thematic co-occurrence matrix.
type StackedDataset struct {
	Labels   []string        `json:"labels"`
	Datasets []StackedSeries `json:"datasets"`
}

// StackedDataset cross-tabulates every filtered (country, thematic) pair
// into a dense matrix: sorted distinct countries as labels, one series per
// sorted distinct thematic area, explicit zeros for unobserved pairs. Rows
// missing either field are skipped.
func (s *Service) StackedDataset(ctx context.Context, filters []domain.Filter) (*StackedDataset, error) {
	rows, err := s.index.Select(ctx, filters, stackedFields, "")
	if err != nil {
		return nil, err
	}

	counts := map[string]map[string]int{}
	thematics := map[string]struct{}{}
	for _, row := range rows {
		if row.Country == "" || row.Thematic == "" {
			continue
		}
		if counts[row.Country] == nil {
			counts[row.Country] = map[string]int{}
		}
		counts[row.Country][row.Thematic]++
		thematics[row.Thematic] = struct{}{}
	}

	labels := make([]string, 0, len(counts))
	for country := range counts {
		labels = append(labels, country)
	}
	sort.Strings(labels)

	series := make([]string, 0, len(thematics))
	for thematic := range thematics {
		series = append(series, thematic)
	}
	sort.Strings(series)

	dataset := &StackedDataset{Labels: labels, Datasets: make([]StackedSeries, 0, len(series))}
	for _, thematic := range series {
		data := make([]int, len(labels))
		for i, country := range labels {
			data[i] = counts[country][thematic]
		}
		dataset.Datasets = append(dataset.Datasets, StackedSeries{Label: thematic, Data: data})
	}
	return dataset, nil
}
