package format

import (
	"github.com/admirito/avalon/extension"
)

// SQLRows passes records through as raw rows for mediums that consume
// records directly instead of an opaque byte stream (the sql medium builds
// INSERT statements from them).
type SQLRows struct {
	filters []string
}

func newSQLRows(v extension.Values) (any, error) {
	return &SQLRows{filters: parseFilters(v)}, nil
}

// Batch implements extension.Format.
func (f *SQLRows) Batch(src extension.Model, size int) (extension.Payload, error) {
	if size == 0 {
		return extension.Payload{}, nil
	}

	rows := make([]extension.Record, 0, size)
	for i := 0; i < size; i++ {
		record, err := src.Next()
		if err != nil {
			return extension.Payload{}, err
		}
		rows = append(rows, applyFilters(record, f.filters))
	}

	return extension.Payload{Rows: rows, Records: size}, nil
}
