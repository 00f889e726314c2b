package query

import (
	"context"
	"errors"
	"testing"

	"example.com/activitydash/internal/domain"
)

func TestFacetPreservesIndexOrdering(t *testing.T) {
	index := &fakeIndex{facets: &domain.FacetCounts{
		Fields: map[string][]domain.FacetEntry{
			FacetThematic: {{Value: "Health", Count: 7}, {Value: "Education", Count: 3}},
		},
	}}
	service := newTestService(index, nil)

	counts, err := service.Facet(context.Background(), nil, FacetThematic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counts) != 2 || counts[0].Label != "Health" || counts[0].Count != 7 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if index.lastFacet != FacetThematic {
		t.Fatalf("expected facet on %s got %s", FacetThematic, index.lastFacet)
	}
}

func TestFacetMissingFieldsSectionIsNoFacetData(t *testing.T) {
	service := newTestService(&fakeIndex{facets: &domain.FacetCounts{}}, nil)

	_, err := service.Facet(context.Background(), nil, FacetCountry)
	if !errors.Is(err, domain.ErrNoFacetData) {
		t.Fatalf("expected ErrNoFacetData got %v", err)
	}
}

func TestFacetUnknownDimensionIsEmptyNotError(t *testing.T) {
	index := &fakeIndex{facets: &domain.FacetCounts{
		Fields: map[string][]domain.FacetEntry{FacetCountry: {}},
	}}
	service := newTestService(index, nil)

	counts, err := service.Facet(context.Background(), nil, FacetRegion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected empty counts got %+v", counts)
	}
}

func TestFacetPropagatesBackendError(t *testing.T) {
	service := newTestService(&fakeIndex{facetErr: domain.ErrBackendUnavailable}, nil)

	_, err := service.Facet(context.Background(), nil, FacetDirectorate)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable got %v", err)
	}
}

func TestYearlyFacetSumsBucketsPerYear(t *testing.T) {
	index := &fakeIndex{facets: &domain.FacetCounts{
		Fields: map[string][]domain.FacetEntry{
			"start_date": {
				{Value: "2023-01-01T00:00:00Z", Count: 1},
				{Value: "2022-01-01T00:00:00Z", Count: 4},
				{Value: "2022-06-01T00:00:00Z", Count: 2},
			},
		},
	}}
	service := newTestService(index, nil)

	counts, err := service.YearlyFacet(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 years got %+v", counts)
	}
	if counts[0].Year != "2022" || counts[0].Count != 6 {
		t.Fatalf("expected 2022=6 got %+v", counts[0])
	}
	if counts[1].Year != "2023" || counts[1].Count != 1 {
		t.Fatalf("expected 2023=1 got %+v", counts[1])
	}
}

func TestYearlyFacetRejectsMalformedBuckets(t *testing.T) {
	index := &fakeIndex{facets: &domain.FacetCounts{
		Fields: map[string][]domain.FacetEntry{
			"start_date": {{Value: "22", Count: 1}},
		},
	}}
	service := newTestService(index, nil)

	if _, err := service.YearlyFacet(context.Background(), nil); err == nil {
		t.Fatal("expected an error for a malformed bucket key")
	}
}
