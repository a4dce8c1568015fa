package format

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/admirito/avalon/extension"
)

// CSV serializes records as comma separated values, one record per line.
// With filters set the columns are exactly the filtered fields in filter
// order; otherwise columns are discovered from the records as they appear,
// new fields appending to the right.
type CSV struct {
	filters    []string
	fieldNames []string
	fieldSet   map[string]bool
}

func newCSV(v extension.Values) (any, error) {
	f := &CSV{filters: parseFilters(v), fieldSet: make(map[string]bool)}
	for _, name := range f.filters {
		f.fieldNames = append(f.fieldNames, name)
		f.fieldSet[name] = true
	}
	return f, nil
}

// discover extends the column list with any new fields of the record, in a
// stable order.
func (f *CSV) discover(record extension.Record) {
	if len(f.filters) > 0 {
		return
	}
	var fresh []string
	for key := range record {
		if !f.fieldSet[key] {
			fresh = append(fresh, key)
			f.fieldSet[key] = true
		}
	}
	sort.Strings(fresh)
	f.fieldNames = append(f.fieldNames, fresh...)
}

// row renders one record against the current columns.
func (f *CSV) row(record extension.Record) []string {
	row := make([]string, len(f.fieldNames))
	for i, name := range f.fieldNames {
		if v, ok := record[name]; ok && v != nil {
			row[i] = fmt.Sprint(v)
		}
	}
	return row
}

// header returns the current column names.
func (f *CSV) header() []string {
	return append([]string(nil), f.fieldNames...)
}

// writeRecords draws size records and writes them as csv lines.
func (f *CSV) writeRecords(w *csv.Writer, src extension.Model, size int) error {
	for i := 0; i < size; i++ {
		record, err := src.Next()
		if err != nil {
			return err
		}
		record = applyFilters(record, f.filters)
		f.discover(record)
		if err := w.Write(f.row(record)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Batch implements extension.Format.
func (f *CSV) Batch(src extension.Model, size int) (extension.Payload, error) {
	if size == 0 {
		return extension.Payload{}, nil
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := f.writeRecords(w, src, size); err != nil {
		return extension.Payload{}, err
	}
	return extension.Payload{Text: b.String(), Records: size}, nil
}

// BatchHeaderedCSV is the csv format with a header line on every batch, so
// each batch is consumable as a standalone file.
type BatchHeaderedCSV struct {
	CSV
}

func newBatchHeaderedCSV(v extension.Values) (any, error) {
	inner, err := newCSV(v)
	if err != nil {
		return nil, err
	}
	return &BatchHeaderedCSV{CSV: *inner.(*CSV)}, nil
}

// Batch implements extension.Format.
func (f *BatchHeaderedCSV) Batch(src extension.Model, size int) (extension.Payload, error) {
	if size == 0 {
		return extension.Payload{}, nil
	}

	var body strings.Builder
	w := csv.NewWriter(&body)
	if err := f.writeRecords(w, src, size); err != nil {
		return extension.Payload{}, err
	}

	// The header is rendered after the records so that discovered columns
	// are complete for this batch.
	var b strings.Builder
	hw := csv.NewWriter(&b)
	if err := hw.Write(f.header()); err != nil {
		return extension.Payload{}, err
	}
	hw.Flush()
	if err := hw.Error(); err != nil {
		return extension.Payload{}, err
	}
	b.WriteString(body.String())

	return extension.Payload{Text: b.String(), Records: size}, nil
}

// HeaderedCSV is the csv format with a header line on the instance's first
// batch only, so the concatenated stream reads as one csv file.
type HeaderedCSV struct {
	BatchHeaderedCSV
	first sync.Once
}

func newHeaderedCSV(v extension.Values) (any, error) {
	inner, err := newBatchHeaderedCSV(v)
	if err != nil {
		return nil, err
	}
	return &HeaderedCSV{BatchHeaderedCSV: *inner.(*BatchHeaderedCSV)}, nil
}

// Batch implements extension.Format.
func (f *HeaderedCSV) Batch(src extension.Model, size int) (extension.Payload, error) {
	headered := false
	f.first.Do(func() { headered = true })

	if headered {
		return f.BatchHeaderedCSV.Batch(src, size)
	}
	return f.CSV.Batch(src, size)
}
