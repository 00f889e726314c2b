// Package ingest implements the bulk ingestion pipeline: payload decoding and
// normalization, per-row validation, the atomic commit against the primary
// store, and the import summary.
package ingest

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"example.com/activitydash/internal/domain"
)

// fallbackEncoding is the legacy Windows codepage tried once when the
// detected encoding fails to decode. Excel exports on Windows commonly
// produce it.
const fallbackEncoding = "windows-1252"

// headerAliases maps alternate column spellings to canonical field names.
var headerAliases = map[string]string{
	"start":         "start_date",
	"startdate":     "start_date",
	"end":           "end_date",
	"enddate":       "end_date",
	"country name":  "country",
	"activity name": "activity",
}

// quoteReplacer substitutes the typographic quotes Office products emit with
// their ASCII equivalents.
var quoteReplacer = strings.NewReplacer(
	"’", "'",
	"“", `"`,
	"”", `"`,
)

// Table is a normalized tabular payload: canonical lower-case headers and
// trimmed cell values keyed by header.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// Normalize decodes and parses a raw tabular payload. It sniffs the byte
// encoding, retries once with the Windows-1252 fallback on decode failure,
// trims and de-fancies every cell, and canonicalizes column headers.
// It returns the normalized table and the name of the encoding actually used.
func Normalize(payload []byte, filename string) (*Table, string, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".csv" {
		return nil, "", fmt.Errorf("%w: %q is not a .csv file", domain.ErrUnsupportedFormat, filename)
	}

	encodingName := detectEncoding(payload)

	records, err := decodeAndParse(payload, encodingName)
	if err != nil {
		records, err = decodeAndParse(payload, fallbackEncoding)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", domain.ErrUnreadablePayload, err)
		}
		encodingName = fallbackEncoding
	}

	if len(records) == 0 {
		return &Table{}, encodingName, nil
	}

	headers := canonicalHeaders(records[0])
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			cell := ""
			if i < len(record) {
				cell = normalizeCell(record[i])
			}
			row[header] = cell
		}
		rows = append(rows, row)
	}

	return &Table{Headers: headers, Rows: rows}, encodingName, nil
}

// detectEncoding sniffs the payload's character encoding, defaulting to
// UTF-8 when detection is inconclusive.
func detectEncoding(payload []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(payload)
	if err != nil || result == nil || result.Charset == "" {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func decodeAndParse(payload []byte, encodingName string) ([][]string, error) {
	text, err := decode(payload, encodingName)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv as %s: %w", encodingName, err)
	}
	return records, nil
}

func decode(payload []byte, encodingName string) (string, error) {
	var enc encoding.Encoding
	switch encodingName {
	case fallbackEncoding:
		enc = charmap.Windows1252
	default:
		var err error
		enc, err = htmlindex.Get(encodingName)
		if err != nil {
			return "", fmt.Errorf("unknown encoding %q: %w", encodingName, err)
		}
	}

	// The UTF-8 decoder substitutes invalid bytes instead of failing, so a
	// bad detection would silently mangle the payload. Validate up front to
	// give the fallback codepage a chance instead.
	if encodingName == "utf-8" && !utf8.Valid(payload) {
		return "", fmt.Errorf("payload is not valid UTF-8")
	}

	decoded, err := enc.NewDecoder().Bytes(payload)
	if err != nil {
		return "", fmt.Errorf("decode as %s: %w", encodingName, err)
	}
	return string(decoded), nil
}

func normalizeCell(value string) string {
	return quoteReplacer.Replace(strings.TrimSpace(value))
}

func canonicalHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.ToLower(strings.TrimSpace(h))
		if alias, ok := headerAliases[h]; ok {
			h = alias
		}
		headers[i] = h
	}
	return headers
}
