package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"example.com/activitydash/internal/domain"
	"example.com/activitydash/internal/ingest"
	"example.com/activitydash/internal/query"
)

type memStore struct {
	nextID  int64
	records map[int64]domain.Activity
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, records: map[int64]domain.Activity{}}
}

func (m *memStore) BulkCreate(_ context.Context, records []domain.Activity) ([]domain.Activity, error) {
	created := make([]domain.Activity, 0, len(records))
	for _, rec := range records {
		rec.ID = m.nextID
		m.nextID++
		m.records[rec.ID] = rec
		created = append(created, rec)
	}
	return created, nil
}

func (m *memStore) GetByIDs(_ context.Context, ids []int64) (map[int64]domain.Activity, error) {
	out := map[int64]domain.Activity{}
	for _, id := range ids {
		if rec, ok := m.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*domain.Activity, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	return &rec, nil
}

func (m *memStore) Update(_ context.Context, rec domain.Activity) (*domain.Activity, error) {
	if _, ok := m.records[rec.ID]; !ok {
		return nil, domain.ErrActivityNotFound
	}
	m.records[rec.ID] = rec
	return &rec, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.records[id]; !ok {
		return domain.ErrActivityNotFound
	}
	delete(m.records, id)
	return nil
}

type memIndex struct {
	rows     []domain.IndexRow
	facets   *domain.FacetCounts
	upserts  int
	removals []int64
}

func (m *memIndex) Select(context.Context, []domain.Filter, []string, string) ([]domain.IndexRow, error) {
	return m.rows, nil
}

func (m *memIndex) FacetCounts(context.Context, []domain.Filter, string) (*domain.FacetCounts, error) {
	if m.facets == nil {
		return &domain.FacetCounts{}, nil
	}
	return m.facets, nil
}

func (m *memIndex) Upsert(_ context.Context, records []domain.Activity) error {
	m.upserts += len(records)
	return nil
}

func (m *memIndex) Remove(_ context.Context, id int64) error {
	m.removals = append(m.removals, id)
	return nil
}

func newTestHandler(store *memStore, index *memIndex) *Handler {
	importer := ingest.NewImporter(store, index)
	queries := query.NewService(index, store)
	return NewHandler(importer, queries, store, index, 10<<20)
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestBulkUploadSuccess(t *testing.T) {
	store := newMemStore()
	index := &memIndex{}
	handler := newTestHandler(store, index)

	csv := "country,activity,start_date\nKenya,Training,2021-10-01\nGhana,Outreach,bad-date\n,Orphan,\n"
	body, contentType := multipartUpload(t, "activities.csv", csv)

	req := httptest.NewRequest(http.MethodPost, "/activities/bulk-upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.bulkUpload(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var summary ingest.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if summary.Imported != 2 || summary.Skipped != 1 || summary.TotalRows != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.InvalidRows) != 1 || !strings.Contains(summary.InvalidRows[0], "Row 3") {
		t.Fatalf("unexpected diagnostics %v", summary.InvalidRows)
	}
	if index.upserts != 2 {
		t.Fatalf("expected 2 index upserts got %d", index.upserts)
	}
}

func TestBulkUploadMissingFile(t *testing.T) {
	handler := newTestHandler(newMemStore(), &memIndex{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("note", "no file here")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/activities/bulk-upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	handler.bulkUpload(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No file uploaded.") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestBulkUploadRejectsNonCSV(t *testing.T) {
	handler := newTestHandler(newMemStore(), &memIndex{})

	body, contentType := multipartUpload(t, "activities.xlsx", "country,activity\nKenya,A\n")
	req := httptest.NewRequest(http.MethodPost, "/activities/bulk-upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.bulkUpload(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Only CSV files are allowed.") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestThematicFacetsLabelsAndOrder(t *testing.T) {
	index := &memIndex{facets: &domain.FacetCounts{
		Fields: map[string][]domain.FacetEntry{
			query.FacetThematic: {{Value: "Health", Count: 7}, {Value: "Education", Count: 3}},
		},
	}}
	handler := newTestHandler(newMemStore(), index)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/thematic-facets?f.countries=Kenya", nil)
	rr := httptest.NewRecorder()
	handler.facet(query.FacetThematic, "thematic_area")(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var result []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 entries got %d", len(result))
	}
	if result[0]["thematic_area"] != "Health" || result[0]["count"] != float64(7) {
		t.Fatalf("unexpected first entry %v", result[0])
	}
}

func TestFacetsNoData(t *testing.T) {
	handler := newTestHandler(newMemStore(), &memIndex{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/country-facets", nil)
	rr := httptest.NewRecorder()
	handler.facet(query.FacetCountry, "country")(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No facet data found") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestYearlyFacetsAggregation(t *testing.T) {
	index := &memIndex{facets: &domain.FacetCounts{
		Fields: map[string][]domain.FacetEntry{
			"start_date": {
				{Value: "2022-01-01T00:00:00Z", Count: 4},
				{Value: "2022-06-01T00:00:00Z", Count: 2},
				{Value: "2023-01-01T00:00:00Z", Count: 1},
			},
		},
	}}
	handler := newTestHandler(newMemStore(), index)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/yearly-facets", nil)
	rr := httptest.NewRecorder()
	handler.yearlyFacets(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var result []query.YearCount
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result) != 2 || result[0].Year != "2022" || result[0].Count != 6 || result[1].Count != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestActivitiesInvalidPage(t *testing.T) {
	index := &memIndex{rows: []domain.IndexRow{{DBID: 1, Country: "Kenya"}}}
	handler := newTestHandler(newMemStore(), index)

	for _, page := range []string{"abc", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/dashboard/activities?page="+page, nil)
		rr := httptest.NewRecorder()
		handler.activities(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("page %q: expected 400 got %d", page, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Invalid page number") {
			t.Fatalf("page %q: unexpected body %s", page, rr.Body.String())
		}
	}
}

func TestActivitiesEnvelopeAndReconciliation(t *testing.T) {
	store := newMemStore()
	store.records[1] = domain.Activity{ID: 1, Country: "Kenya", Activity: "Training", URL: "https://example.org/full"}
	store.nextID = 2
	index := &memIndex{rows: []domain.IndexRow{
		{DBID: 1, Country: "Kenya", Activity: "Training", URL: "https"},
	}}
	handler := newTestHandler(store, index)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/activities", nil)
	rr := httptest.NewRecorder()
	handler.activities(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var page query.Page
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if page.Count != 1 || page.CurrentPage != 1 || page.TotalPages != 1 {
		t.Fatalf("unexpected envelope %+v", page)
	}
	if page.Results[0].URL != "https://example.org/full" {
		t.Fatalf("expected reconciled url got %q", page.Results[0].URL)
	}
}

func TestStackedDatasetShape(t *testing.T) {
	index := &memIndex{rows: []domain.IndexRow{
		{DBID: 1, Country: "FR", Thematic: "Health"},
		{DBID: 2, Country: "FR", Thematic: "Health"},
		{DBID: 3, Country: "DE", Thematic: "Health"},
	}}
	handler := newTestHandler(newMemStore(), index)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/stacked-dataset", nil)
	rr := httptest.NewRecorder()
	handler.stackedDataset(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var dataset query.StackedDataset
	if err := json.Unmarshal(rr.Body.Bytes(), &dataset); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(dataset.Labels) != 2 || dataset.Labels[0] != "DE" || dataset.Labels[1] != "FR" {
		t.Fatalf("unexpected labels %v", dataset.Labels)
	}
	if dataset.Datasets[0].Label != "Health" || dataset.Datasets[0].Data[0] != 1 || dataset.Datasets[0].Data[1] != 2 {
		t.Fatalf("unexpected series %+v", dataset.Datasets[0])
	}
}

func TestGetActivityNotFound(t *testing.T) {
	handler := newTestHandler(newMemStore(), &memIndex{})

	req := httptest.NewRequest(http.MethodGet, "/activities/42", nil)
	rr := httptest.NewRecorder()
	handler.activityByID(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestUpdateActivitySyncsIndex(t *testing.T) {
	store := newMemStore()
	store.records[1] = domain.Activity{ID: 1, Country: "Kenya", Activity: "Training"}
	store.nextID = 2
	index := &memIndex{}
	handler := newTestHandler(store, index)

	payload := `{"country":"Kenya","activity":"Training v2","start_date":"2022-03-01"}`
	req := httptest.NewRequest(http.MethodPut, "/activities/1", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	handler.activityByID(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if store.records[1].Activity != "Training v2" {
		t.Fatalf("expected updated record, got %+v", store.records[1])
	}
	if index.upserts != 1 {
		t.Fatalf("expected 1 index upsert got %d", index.upserts)
	}

	var view ActivityView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.StartDate == nil || *view.StartDate != "2022-03-01" {
		t.Fatalf("unexpected start_date %v", view.StartDate)
	}
}

func TestUpdateActivityRequiresFields(t *testing.T) {
	store := newMemStore()
	store.records[1] = domain.Activity{ID: 1, Country: "Kenya", Activity: "Training"}
	handler := newTestHandler(store, &memIndex{})

	req := httptest.NewRequest(http.MethodPut, "/activities/1", strings.NewReader(`{"country":"Kenya"}`))
	rr := httptest.NewRecorder()
	handler.activityByID(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestDeleteActivityRemovesFromIndex(t *testing.T) {
	store := newMemStore()
	store.records[1] = domain.Activity{ID: 1, Country: "Kenya", Activity: "Training"}
	index := &memIndex{}
	handler := newTestHandler(store, index)

	req := httptest.NewRequest(http.MethodDelete, "/activities/1", nil)
	rr := httptest.NewRecorder()
	handler.activityByID(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}
	if len(index.removals) != 1 || index.removals[0] != 1 {
		t.Fatalf("expected index removal of id 1, got %v", index.removals)
	}
	if _, ok := store.records[1]; ok {
		t.Fatal("expected record deleted from store")
	}
}
