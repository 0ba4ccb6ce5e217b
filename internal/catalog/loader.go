package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cartline-ai/cartline/internal/observability"
)

// Expected CSV column headers. Extra columns are ignored.
const (
	colID          = "parent_asin"
	colTitle       = "title"
	colPrice       = "price"
	colRating      = "average_rating"
	colCategories  = "categories"
	colFeatures    = "features"
	colDescription = "description"
)

// LoadCSV reads a product catalog from a CSV file. Records with an empty
// identifier or title are skipped and logged, never aborting the load.
// Unparsable price or rating values are coerced to zero.
func LoadCSV(path string, logger *observability.Logger) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	c, err := ReadCSV(f, logger)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return c, nil
}

// ReadCSV parses catalog records from r.
func ReadCSV(r io.Reader, logger *observability.Logger) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{colID, colTitle} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var products []Product
	skipped := 0
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			logger.Warn().Int("line", line).Err(err).Msg("Skipping malformed catalog row")
			continue
		}

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		id := field(colID)
		title := field(colTitle)
		if id == "" || title == "" {
			skipped++
			logger.Warn().Int("line", line).Msg("Skipping catalog row without identifier or title")
			continue
		}

		products = append(products, Product{
			ID:          id,
			Title:       title,
			Price:       parseFloat(field(colPrice)),
			Rating:      parseFloat(field(colRating)),
			Categories:  parseList(field(colCategories)),
			Features:    parseList(field(colFeatures)),
			Description: field(colDescription),
		})
	}

	logger.Info().
		Int("products", len(products)).
		Int("skipped", skipped).
		Msg("Catalog loaded")

	return New(products), nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseList parses a bracketed list field. The source data stores lists as
// python-style reprs with single quotes, e.g. ['audio', 'mics'].
func parseList(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}

	var items []string
	if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &items); err == nil {
		return items
	}

	// Fall back to a naive split for values with embedded quotes.
	trimmed := strings.Trim(s, "[]")
	if trimmed == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
