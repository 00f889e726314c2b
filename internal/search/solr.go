// Package search implements the SearchIndex contract against a Solr core.
//
// The index stores, per record, analyzed text fields alongside *_exact
// exact-match variants, date instants, and the primary-store id (db_id).
// It is a derived projection: never authoritative for any field.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/activitydash/internal/domain"
	"example.com/activitydash/internal/observability"
)

// maxRows caps unpaginated projections. The dashboard paginates in memory
// over the full filtered result set, matching the index-side contract.
const maxRows = 10000

// ProjectionFields is the field projection used by the paginated view.
var ProjectionFields = []string{
	"db_id", "url", "start_date", "end_date",
	"country_exact", "region_exact", "activity_exact",
	"objective_exact", "thematic_exact", "directorate_exact",
}

// SolrClient talks to one Solr core over its JSON HTTP API.
type SolrClient struct {
	baseURL    string
	core       string
	httpClient *http.Client
}

// NewSolrClient builds a client for baseURL (e.g. http://solr:8983/solr)
// and the given core.
func NewSolrClient(baseURL, core string, timeout time.Duration) *SolrClient {
	return &SolrClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		core:       core,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type solrResponse struct {
	Response struct {
		NumFound int              `json:"numFound"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	FacetCounts *struct {
		FacetFields map[string][]any `json:"facet_fields"`
	} `json:"facet_counts"`
}

// Select runs a filtered, field-projected query and returns the matching
// documents. An empty sort leaves the index's default ordering in place.
func (c *SolrClient) Select(ctx context.Context, filters []domain.Filter, fields []string, sort string) ([]domain.IndexRow, error) {
	params := baseParams(filters)
	params.Set("rows", strconv.Itoa(maxRows))
	params.Set("fl", strings.Join(fields, ","))
	if sort != "" {
		params.Set("sort", sort)
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.IndexRow, 0, len(body.Response.Docs))
	for _, doc := range body.Response.Docs {
		rows = append(rows, docToRow(doc))
	}
	return rows, nil
}

// FacetCounts runs a facet-count query on one field over the filtered set.
// Bucket ordering is whatever the index returns.
func (c *SolrClient) FacetCounts(ctx context.Context, filters []domain.Filter, facetField string) (*domain.FacetCounts, error) {
	params := baseParams(filters)
	params.Set("rows", "0")
	params.Set("facet", "true")
	params.Set("facet.mincount", "1")
	params.Set("facet.limit", "-1")
	params.Add("facet.field", facetField)

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	if body.FacetCounts == nil || body.FacetCounts.FacetFields == nil {
		return &domain.FacetCounts{}, nil
	}

	fields := make(map[string][]domain.FacetEntry, len(body.FacetCounts.FacetFields))
	for field, flat := range body.FacetCounts.FacetFields {
		// Solr's classic facet format alternates value, count, value, count.
		entries := make([]domain.FacetEntry, 0, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			value, ok := flat[i].(string)
			if !ok {
				continue
			}
			count, ok := flat[i+1].(float64)
			if !ok {
				continue
			}
			entries = append(entries, domain.FacetEntry{Value: value, Count: int(count)})
		}
		fields[field] = entries
	}
	return &domain.FacetCounts{Fields: fields}, nil
}

// Upsert writes the index projection of each record. Called by every
// component that creates or updates primary records.
func (c *SolrClient) Upsert(ctx context.Context, records []domain.Activity) error {
	docs := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		docs = append(docs, toDocument(rec))
	}
	return c.update(ctx, docs)
}

// Remove deletes one record's index projection.
func (c *SolrClient) Remove(ctx context.Context, id int64) error {
	return c.update(ctx, map[string]any{
		"delete": map[string]string{"id": documentID(id)},
	})
}

func documentID(id int64) string {
	return fmt.Sprintf("activity-%d", id)
}

func toDocument(rec domain.Activity) map[string]any {
	doc := map[string]any{
		"id":    documentID(rec.ID),
		"db_id": rec.ID,
	}
	// Analyzed and exact-match variants side by side; filtering and
	// faceting depend on both existing.
	for field, value := range map[string]string{
		"country":     rec.Country,
		"region":      rec.Region,
		"activity":    rec.Activity,
		"objective":   rec.Objective,
		"thematic":    rec.Thematic,
		"directorate": rec.Directorate,
	} {
		doc[field] = value
		doc[field+"_exact"] = value
	}
	doc["url"] = rec.URL
	if rec.StartDate != nil {
		doc["start_date"] = rec.StartDate.Format("2006-01-02T15:04:05Z")
	}
	if rec.EndDate != nil {
		doc["end_date"] = rec.EndDate.Format("2006-01-02T15:04:05Z")
	}
	return doc
}

func docToRow(doc map[string]any) domain.IndexRow {
	return domain.IndexRow{
		DBID:        docInt64(doc, "db_id"),
		StartDate:   docString(doc, "start_date"),
		EndDate:     docString(doc, "end_date"),
		Country:     docString(doc, "country_exact"),
		Region:      docString(doc, "region_exact"),
		Activity:    docString(doc, "activity_exact"),
		Objective:   docString(doc, "objective_exact"),
		Thematic:    docString(doc, "thematic_exact"),
		Directorate: docString(doc, "directorate_exact"),
		URL:         docString(doc, "url"),
	}
}

// docString reads a field that may be absent, scalar, or (for multiValued
// schemas) a single-element array.
func docString(doc map[string]any, key string) string {
	value := doc[key]
	if list, ok := value.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		value = list[0]
	}
	s, _ := value.(string)
	return s
}

func docInt64(doc map[string]any, key string) int64 {
	switch v := doc[key].(type) {
	case float64:
		return int64(v)
	case string:
		parsed, _ := strconv.ParseInt(v, 10, 64)
		return parsed
	default:
		return 0
	}
}

func baseParams(filters []domain.Filter) url.Values {
	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("wt", "json")
	for _, filter := range filters {
		quoted := make([]string, 0, len(filter.Values))
		for _, value := range filter.Values {
			quoted = append(quoted, `"`+escapeValue(value)+`"`)
		}
		params.Add("fq", fmt.Sprintf("%s:(%s)", filter.Field, strings.Join(quoted, " OR ")))
	}
	return params
}

// escapeValue makes a value safe inside a quoted Solr term.
func escapeValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}

func (c *SolrClient) get(ctx context.Context, params url.Values) (*solrResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/select?%s", c.baseURL, c.core, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordIndexQueryError()
		return nil, fmt.Errorf("%w: solr select: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordIndexQueryError()
		return nil, fmt.Errorf("%w: solr select returned HTTP %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}

	var body solrResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		observability.RecordIndexQueryError()
		return nil, fmt.Errorf("%w: decode solr response: %v", domain.ErrBackendUnavailable, err)
	}
	return &body, nil
}

func (c *SolrClient) update(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/update?commit=true&wt=json", c.baseURL, c.core)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: solr update: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: solr update returned HTTP %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}
