// Package api exposes the dashboard's HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/activitydash/internal/domain"
	"example.com/activitydash/internal/ingest"
	"example.com/activitydash/internal/observability"
	"example.com/activitydash/internal/query"
)

const uploadFieldName = "file"

// Handler coordinates HTTP requests with the ingestion pipeline, the query
// service, and the primary store.
type Handler struct {
	importer  *ingest.Importer
	queries   *query.Service
	store     domain.ActivityStore
	index     domain.SearchIndex
	maxUpload int64
}

// NewHandler builds a Handler.
func NewHandler(importer *ingest.Importer, queries *query.Service, store domain.ActivityStore, index domain.SearchIndex, maxUpload int64) *Handler {
	return &Handler{importer: importer, queries: queries, store: store, index: index, maxUpload: maxUpload}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/activities/bulk-upload", h.bulkUpload)
	mux.HandleFunc("/activities/", h.activityByID)
	mux.HandleFunc("/dashboard/thematic-facets", h.facet(query.FacetThematic, "thematic_area"))
	mux.HandleFunc("/dashboard/country-facets", h.facet(query.FacetCountry, "country"))
	mux.HandleFunc("/dashboard/region-facets", h.facet(query.FacetRegion, "region"))
	mux.HandleFunc("/dashboard/directorate-facets", h.facet(query.FacetDirectorate, "directorate"))
	mux.HandleFunc("/dashboard/yearly-facets", h.yearlyFacets)
	mux.HandleFunc("/dashboard/activities", h.activities)
	mux.HandleFunc("/dashboard/stacked-dataset", h.stackedDataset)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) bulkUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
		return
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded.")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to read uploaded file.")
		return
	}

	summary, err := h.importer.Import(r.Context(), payload, header.Filename)
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "Only CSV files are allowed.")
	case errors.Is(err, domain.ErrUnreadablePayload):
		writeError(w, http.StatusBadRequest, "Unable to read CSV: "+err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Unexpected error: "+err.Error())
	default:
		writeJSON(w, http.StatusCreated, summary)
	}
}

// facet builds the handler for one facet dimension. Responses are arrays of
// {<labelKey>: value, count: n} in index order.
func (h *Handler) facet(dimension, labelKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "unsupported method")
			return
		}

		counts, err := h.queries.Facet(r.Context(), query.ParseFilters(r.URL.Query()), dimension)
		if err != nil {
			writeFacetError(w, err)
			return
		}

		result := make([]map[string]any, 0, len(counts))
		for _, entry := range counts {
			result = append(result, map[string]any{labelKey: entry.Label, "count": entry.Count})
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) yearlyFacets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
		return
	}

	counts, err := h.queries.YearlyFacet(r.Context(), query.ParseFilters(r.URL.Query()))
	if err != nil {
		writeFacetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
		return
	}

	params := r.URL.Query()
	page, err := h.queries.Activities(r.Context(),
		query.ParseFilters(params), params.Get("page"), params.Get("per_page"))
	switch {
	case errors.Is(err, domain.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, "Invalid page number: "+err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *Handler) stackedDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
		return
	}

	dataset, err := h.queries.StackedDataset(r.Context(), query.ParseFilters(r.URL.Query()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dataset)
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/activities/"), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, id)
	case http.MethodPut:
		h.updateActivity(w, r, id)
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*rec))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id int64) {
	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return
	}

	rec, err := req.toRecord(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.store.Update(r.Context(), *rec)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.index.Upsert(r.Context(), []domain.Activity{*updated}); err != nil {
		observability.RecordIndexSyncError()
		log.Printf("activity %d: index upsert failed: %v", id, err)
	}
	writeJSON(w, http.StatusOK, toActivityView(*updated))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.index.Remove(r.Context(), id); err != nil {
		observability.RecordIndexSyncError()
		log.Printf("activity %d: index remove failed: %v", id, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivityRequest is the payload for PUT /activities/{id}. Dates are ISO
// strings; null or absent means no date.
type ActivityRequest struct {
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Country     string  `json:"country"`
	Region      string  `json:"region"`
	Activity    string  `json:"activity"`
	Objective   string  `json:"objective"`
	Thematic    string  `json:"thematic"`
	Directorate string  `json:"directorate"`
	URL         string  `json:"url"`
}

func (req ActivityRequest) toRecord(id int64) (*domain.Activity, error) {
	if strings.TrimSpace(req.Activity) == "" {
		return nil, errors.New("activity is required")
	}
	if strings.TrimSpace(req.Country) == "" {
		return nil, errors.New("country is required")
	}

	startDate, err := parseISODate(req.StartDate, "start_date")
	if err != nil {
		return nil, err
	}
	endDate, err := parseISODate(req.EndDate, "end_date")
	if err != nil {
		return nil, err
	}

	return &domain.Activity{
		ID:          id,
		StartDate:   startDate,
		EndDate:     endDate,
		Country:     strings.TrimSpace(req.Country),
		Region:      strings.TrimSpace(req.Region),
		Activity:    strings.TrimSpace(req.Activity),
		Objective:   strings.TrimSpace(req.Objective),
		Thematic:    strings.TrimSpace(req.Thematic),
		Directorate: strings.TrimSpace(req.Directorate),
		URL:         strings.TrimSpace(req.URL),
	}, nil
}

func parseISODate(value *string, field string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*value))
	if err != nil {
		return nil, errors.New(field + " must be a YYYY-MM-DD date")
	}
	return &parsed, nil
}

// ActivityView is the JSON shape of a single primary-store record.
type ActivityView struct {
	ID          int64   `json:"id"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Country     string  `json:"country"`
	Region      string  `json:"region"`
	Activity    string  `json:"activity"`
	Objective   string  `json:"objective"`
	Thematic    string  `json:"thematic"`
	Directorate string  `json:"directorate"`
	URL         string  `json:"url"`
}

func toActivityView(rec domain.Activity) ActivityView {
	return ActivityView{
		ID:          rec.ID,
		StartDate:   formatDate(rec.StartDate),
		EndDate:     formatDate(rec.EndDate),
		Country:     rec.Country,
		Region:      rec.Region,
		Activity:    rec.Activity,
		Objective:   rec.Objective,
		Thematic:    rec.Thematic,
		Directorate: rec.Directorate,
		URL:         rec.URL,
	}
}

func formatDate(date *time.Time) *string {
	if date == nil {
		return nil
	}
	formatted := date.Format("2006-01-02")
	return &formatted
}

func writeFacetError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNoFacetData) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No facet data found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Search backend unavailable"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
