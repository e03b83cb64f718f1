package ec

import (
	"strconv"
	"strings"
	"time"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/state"
)

// listSeparator joins list fields in the event console's plain output.
const listSeparator = "\x01"

// SplitList decodes a list field from the plain output format.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}

// Row is one record of an event console reply: header fields mapped to
// their values, plus the resolved owning host (if any) for authorization
// and the host_ column join. Rows exist for one reply cycle only.
type Row struct {
	fields map[string]string
	host   *state.Host
}

// NewRow builds a row from a reply header and one record. Records shorter
// than the header are right-padded with empty fields.
func NewRow(core *state.Core, headers, columns []string) *Row {
	fields := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(columns) {
			fields[h] = columns[i]
		} else {
			fields[h] = ""
		}
	}
	r := &Row{fields: fields}
	if designation, ok := fields["event_host"]; ok && core != nil {
		r.host = core.HostByDesignation(designation)
	}
	return r
}

// Host returns the resolved owning host, or nil.
func (r *Row) Host() *state.Host { return r.host }

// GetString returns a field value, empty when absent.
func (r *Row) GetString(name string) string { return r.get(name, "") }

// GetInt returns a field parsed as integer, zero when absent or malformed.
func (r *Row) GetInt(name string) int64 {
	v, _ := strconv.ParseInt(r.get(name, "0"), 10, 64)
	return v
}

// GetDouble returns a field parsed as float, zero when absent or malformed.
func (r *Row) GetDouble(name string) float64 {
	v, _ := strconv.ParseFloat(r.get(name, "0"), 64)
	return v
}

// GetTime returns a field interpreted as a Unix timestamp.
func (r *Row) GetTime(name string) time.Time {
	secs := r.GetDouble(name)
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0)
}

func (r *Row) get(name, deflt string) string {
	if v, ok := r.fields[name]; ok {
		return v
	}
	return deflt
}

// Column constructors binding extraction to reply fields by name.

func MakeStringColumn(name, description string, offsets query.ColumnOffsets) query.Column {
	return query.NewStringColumn[Row](name, description, offsets,
		func(r *Row) string { return r.GetString(name) })
}

func MakeIntColumn(name, description string, offsets query.ColumnOffsets) query.Column {
	return query.NewIntColumn[Row](name, description, offsets,
		func(r *Row) int64 { return r.GetInt(name) })
}

func MakeDoubleColumn(name, description string, offsets query.ColumnOffsets) query.Column {
	return query.NewDoubleColumn[Row](name, description, offsets,
		func(r *Row) float64 { return r.GetDouble(name) })
}

func MakeTimeColumn(name, description string, offsets query.ColumnOffsets) query.Column {
	return query.NewTimeColumn[Row](name, description, offsets,
		func(r *Row) time.Time { return r.GetTime(name) })
}

func MakeListColumn(name, description string, offsets query.ColumnOffsets) query.Column {
	return query.NewStringListColumn[Row](name, description, offsets,
		func(r *Row) []string { return SplitList(r.GetString(name)) })
}
