package format

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
)

// JSONLines serializes each record as one JSON object per line. The
// payload ends with a trailing newline so consecutive batches concatenate
// into a valid stream.
type JSONLines struct {
	filters []string
}

func newJSONLines(v extension.Values) (any, error) {
	return &JSONLines{filters: parseFilters(v)}, nil
}

// Batch implements extension.Format.
func (f *JSONLines) Batch(src extension.Model, size int) (extension.Payload, error) {
	if size == 0 {
		return extension.Payload{}, nil
	}

	var b strings.Builder
	for i := 0; i < size; i++ {
		record, err := src.Next()
		if err != nil {
			return extension.Payload{}, err
		}

		line, err := json.Marshal(applyFilters(record, f.filters))
		if err != nil {
			return extension.Payload{}, errors.Wrap(
				fmt.Errorf("%w: %v", errors.ErrFormatFailed, err),
				"JSONLines", "Batch", "marshal record")
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	return extension.Payload{Text: b.String(), Records: size}, nil
}
