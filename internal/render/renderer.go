// Package render serializes query results into the supported wire formats.
// Output shaping is an explicit Options value handed to the renderer, never
// process-wide state.
package render

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/openmon/livequery/internal/query"
)

// Format selects the output serialization.
type Format int

const (
	// FormatBrokenCSV is the historical default: separator-joined fields
	// without any quoting.
	FormatBrokenCSV Format = iota
	// FormatCSV quotes fields that contain separators or quotes.
	FormatCSV
	// FormatJSON emits one JSON array of row arrays.
	FormatJSON
)

// FormatForName parses an OutputFormat argument.
func FormatForName(name string) (Format, bool) {
	switch name {
	case "csv":
		return FormatBrokenCSV, true
	case "CSV":
		return FormatCSV, true
	case "json":
		return FormatJSON, true
	}
	return 0, false
}

// Separators configures the CSV-style formats.
type Separators struct {
	Dataset string
	Field   string
	List    string
	Sublist string
}

// DefaultSeparators returns the historical defaults.
func DefaultSeparators() Separators {
	return Separators{Dataset: "\n", Field: ";", List: ",", Sublist: "|"}
}

// Options configures one rendering run.
type Options struct {
	Format     Format
	Separators Separators
}

// Renderer writes rows in one of the wire formats. Usage: BeginQuery, any
// number of Row/Headers calls, EndQuery.
type Renderer struct {
	w       io.Writer
	opts    Options
	numRows int
	err     error
}

// New builds a renderer. Zero-valued separators fall back to the defaults.
func New(w io.Writer, opts Options) *Renderer {
	if opts.Separators == (Separators{}) {
		opts.Separators = DefaultSeparators()
	}
	return &Renderer{w: w, opts: opts}
}

// Err returns the first write error, if any.
func (r *Renderer) Err() error { return r.err }

func (r *Renderer) write(s string) {
	if r.err == nil {
		_, r.err = io.WriteString(r.w, s)
	}
}

// BeginQuery starts the response body.
func (r *Renderer) BeginQuery() {
	if r.opts.Format == FormatJSON {
		r.write("[")
	}
}

// EndQuery finishes the response body.
func (r *Renderer) EndQuery() {
	switch r.opts.Format {
	case FormatJSON:
		r.write("]\n")
	default:
		if r.numRows > 0 {
			r.write(r.opts.Separators.Dataset)
		}
	}
}

// Headers emits the column-name header row.
func (r *Renderer) Headers(names []string) {
	values := make([]query.Value, 0, len(names))
	for _, n := range names {
		values = append(values, query.StringValue(n))
	}
	r.Row(values)
}

// Row emits one data row.
func (r *Renderer) Row(values []query.Value) {
	switch r.opts.Format {
	case FormatJSON:
		if r.numRows > 0 {
			r.write(",")
		}
		r.write("\n[")
		for i, v := range values {
			if i > 0 {
				r.write(",")
			}
			r.write(r.jsonValue(v))
		}
		r.write("]")
	default:
		if r.numRows > 0 {
			r.write(r.opts.Separators.Dataset)
		}
		fields := make([]string, 0, len(values))
		for _, v := range values {
			fields = append(fields, r.csvValue(v))
		}
		r.write(strings.Join(fields, r.opts.Separators.Field))
	}
	r.numRows++
}

func (r *Renderer) csvValue(v query.Value) string {
	var s string
	if v.Kind == query.KindList {
		elems := make([]string, 0, len(v.List))
		for _, e := range v.List {
			elems = append(elems, e.AsString())
		}
		s = strings.Join(elems, r.opts.Separators.List)
	} else {
		s = v.AsString()
	}
	if r.opts.Format == FormatCSV && strings.ContainsAny(s,
		r.opts.Separators.Field+r.opts.Separators.Dataset+`"`) {
		s = `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func (r *Renderer) jsonValue(v query.Value) string {
	switch v.Kind {
	case query.KindString:
		b, _ := json.Marshal(v.Str)
		return string(b)
	case query.KindInt:
		return strconv.FormatInt(v.Int, 10)
	case query.KindDouble:
		if math.IsNaN(v.Dbl) || math.IsInf(v.Dbl, 0) {
			return "null"
		}
		return strconv.FormatFloat(v.Dbl, 'g', -1, 64)
	case query.KindTime:
		return v.AsString()
	case query.KindList:
		var sb strings.Builder
		sb.WriteString("[")
		for i, e := range v.List {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(r.jsonValue(e))
		}
		sb.WriteString("]")
		return sb.String()
	}
	return "null"
}
