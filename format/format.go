// Package format provides the batch serializers: json-lines, the csv
// family, and the raw-rows format consumed by the SQL medium. A format
// draws exactly size records from the model-shaped source it is handed and
// returns one opaque payload.
package format

import (
	"strings"

	"github.com/admirito/avalon/extension"
)

// filtersMapping claims the shared --output-format-filters destination for
// each format under the name "filters".
var filtersMapping = map[string]string{"output_format_filters": "filters"}

// parseFilters splits the comma-separated filter list. Filters restrict and
// order the serialized fields; an empty list keeps every field.
func parseFilters(v extension.Values) []string {
	raw := strings.TrimSpace(v.String("filters", ""))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	filters := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			filters = append(filters, p)
		}
	}
	return filters
}

// applyFilters reduces a record to the filtered fields. Missing fields are
// left absent; the csv writer substitutes empty cells for them.
func applyFilters(r extension.Record, filters []string) extension.Record {
	if len(filters) == 0 {
		return r
	}
	out := make(extension.Record, len(filters))
	for _, key := range filters {
		if v, ok := r[key]; ok {
			out[key] = v
		}
	}
	return out
}

// Register adds all in-tree formats to the registry.
func Register(reg *extension.Registry) error {
	descriptors := []extension.Descriptor{
		{
			Family:      extension.FamilyFormat,
			Title:       "json-lines",
			Description: "one JSON object per line",
			ArgsMapping: filtersMapping,
			New:         newJSONLines,
		},
		{
			Family:      extension.FamilyFormat,
			Title:       "csv",
			Description: "comma separated values, one record per line",
			ArgsMapping: filtersMapping,
			New:         newCSV,
		},
		{
			Family:      extension.FamilyFormat,
			Title:       "headered-csv",
			Description: "csv with a header on the first batch",
			ArgsMapping: filtersMapping,
			New:         newHeaderedCSV,
		},
		{
			Family:      extension.FamilyFormat,
			Title:       "batch-headered-csv",
			Description: "csv with a header on every batch",
			ArgsMapping: filtersMapping,
			New:         newBatchHeaderedCSV,
		},
		{
			Family:      extension.FamilyFormat,
			Title:       "sql-rows",
			Description: "raw rows for the sql medium",
			ArgsMapping: filtersMapping,
			New:         newSQLRows,
		},
	}

	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
