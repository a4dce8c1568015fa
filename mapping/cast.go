package mapping

import (
	"time"

	"github.com/admirito/avalon/extension"
)

// DtToISO converts every time.Time value in the record to its ISO-8601
// string form with time zone.
type DtToISO struct{}

// Map implements extension.Mapping.
func (DtToISO) Map(r extension.Record) (extension.Record, error) {
	for key, value := range r {
		if t, ok := value.(time.Time); ok {
			r[key] = t.Format(time.RFC3339Nano)
		}
	}
	return r, nil
}

// DtToTimestamp converts every time.Time value in the record to a unix
// timestamp in fractional seconds.
type DtToTimestamp struct{}

// Map implements extension.Mapping.
func (DtToTimestamp) Map(r extension.Record) (extension.Record, error) {
	for key, value := range r {
		if t, ok := value.(time.Time); ok {
			r[key] = float64(t.UnixNano()) / float64(time.Second)
		}
	}
	return r, nil
}

// RegisterCast adds the cast mappings to the registry.
func RegisterCast(reg *extension.Registry) error {
	if err := reg.Register(extension.Descriptor{
		Family:      extension.FamilyMapping,
		Title:       "dt-to-iso",
		Description: "convert time values to ISO-8601 strings with time zone",
		AddArguments: func(g *extension.Group) {
			g.Bool("dt-to-iso-enable", false,
				"Convert time values to ISO-8601 strings on every record")
		},
		New: func(extension.Values) (any, error) {
			return DtToISO{}, nil
		},
	}); err != nil {
		return err
	}

	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyMapping,
		Title:       "dt-to-timestamp",
		Description: "convert time values to unix timestamps",
		AddArguments: func(g *extension.Group) {
			g.Bool("dt-to-timestamp-enable", false,
				"Convert time values to unix timestamps on every record")
		},
		New: func(extension.Values) (any, error) {
			return DtToTimestamp{}, nil
		},
	})
}
