package rrd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmon/livequery/internal/metrics"
	"github.com/openmon/livequery/internal/query"
)

// Location is the concrete storage of one metric: the archive file and the
// data source name within it.
type Location struct {
	Path   string
	DSName string
}

// Empty reports whether the metric could not be resolved.
func (l Location) Empty() bool { return l.Path == "" || l.DSName == "" }

// Locator resolves a metric variable of a monitored object to its storage
// location.
type Locator interface {
	Location(host, service, metric string) Location
}

// XportResult is the raw outcome of one export call: the snapped time
// window, the actual step, and the sample buffer (row-major, one value per
// column per grid point).
type XportResult struct {
	Start   int64
	End     int64
	Step    int64
	Legends []string
	Values  []float64
}

// Archive executes a synchronous export with argv-style arguments.
type Archive interface {
	Xport(args []string) (*XportResult, error)
}

// Flusher tells a write-behind cache daemon to flush specific archive files
// before they are read.
type Flusher interface {
	FlushCached(daemonSocket string, paths []string) error
}

// DataMaker builds one time-series row: it validates nothing itself (Args
// are validated at parse time), rewrites the RPN expression to concrete
// storage bindings, bounds cache staleness with a flush, runs the export
// and normalizes the result. Export is best-effort telemetry: failures
// degrade to an empty well-formed row.
type DataMaker struct {
	Locator      Locator
	Archive      Archive
	Flusher      Flusher
	DaemonSocket string
	Log          zerolog.Logger
	Args         *Args
}

type data struct {
	start  int64
	end    int64
	step   int64
	values []float64
}

// asRow flattens the result: [start, end, step, v1, v2, ...]. Flat output
// keeps CSV-style formats usable, which cannot nest lists.
func (d data) asRow(tz time.Duration) []query.Value {
	row := make([]query.Value, 0, len(d.values)+3)
	row = append(row,
		query.TimeValue(time.Unix(d.start, 0).Add(tz)),
		query.TimeValue(time.Unix(d.end, 0).Add(tz)),
		query.IntValue(d.step))
	for _, v := range d.values {
		row = append(row, query.DoubleValue(v))
	}
	return row
}

// Build produces the sample row for one monitored object identified by
// host name and service description.
func (m *DataMaker) Build(host, service string, tz time.Duration) []query.Value {
	args := []string{
		"xport",
		"-s", fmt.Sprintf("%d", m.Args.StartTime),
		"-e", fmt.Sprintf("%d", m.Args.EndTime),
		"--step", fmt.Sprintf("%d", m.Args.Resolution),
	}
	if m.Args.MaxEntries > 0 {
		args = append(args, "-m", fmt.Sprintf("%d", m.Args.MaxEntries))
	}

	rewritten, definitions, touched := m.rewriteExpression(host, service)
	args = append(args, definitions...)
	args = append(args, "CDEF:xxx="+rewritten, "XPORT:xxx:")

	// Flush the write-behind cache for the touched archives before the
	// export. Flushing separately and letting the export read the files
	// directly avoids the cache daemon's slow combined flush-and-read
	// path on large time ranges.
	// The flush is attempted exactly once; a failure only costs staleness
	// and the client may re-issue the query.
	if m.Flusher != nil && m.DaemonSocket != "" && len(touched) > 0 {
		if err := m.Flusher.FlushCached(m.DaemonSocket, touched); err != nil {
			m.Log.Warn().Err(err).Msg("error flushing archive cache")
		}
	}

	m.Log.Debug().Strs("args", args).Msg("retrieving archived samples")
	result, err := m.Archive.Xport(args)
	if err != nil {
		m.Log.Warn().Err(err).Msg("error accessing archive")
		metrics.Get().ArchiveFailures.Inc()
		return data{}.asRow(tz)
	}

	if len(result.Legends) != 1 {
		m.Log.Error().Int("columns", len(result.Legends)).
			Msg("export returned an unexpected column count, exactly one was expected")
		metrics.Get().ArchiveFailures.Inc()
		return data{}.asRow(tz)
	}
	d := data{start: result.Start, end: result.End, step: result.Step}
	// The archive snaps to its native grid: the returned start is <= the
	// requested start and carries no value; the window is right-closed, so
	// samples run from start+step through end inclusive.
	i := 0
	for ti := result.Start + result.Step; ti <= result.End && i < len(result.Values); ti += result.Step {
		d.values = append(d.values, result.Values[i])
		i++
	}
	return d.asRow(tz)
}

// rewriteExpression walks the RPN tokens: literals and operators pass
// through, metric variables are bound to fresh internal names backed by
// storage definitions. Unresolvable metrics degrade to an underscore-
// sanitized literal so the expression still parses remotely.
func (m *DataMaker) rewriteExpression(host, service string) (rewritten string, definitions []string, touched []string) {
	var converted []string
	touchedSet := make(map[string]struct{})
	nextVariable := 0

	for _, token := range strings.Split(m.Args.RPN, ",") {
		if !isVariableName(token) {
			converted = append(converted, token)
			continue
		}
		metric, cf := splitConsolidation(token)
		location := m.Locator.Location(host, service, metric)
		if location.Empty() {
			converted = append(converted, sanitizeName(metric))
			continue
		}
		nextVariable++
		name := fmt.Sprintf("var_%d", nextVariable)
		definitions = append(definitions,
			fmt.Sprintf("DEF:%s=%s:%s:%s", name, location.Path, location.DSName, cf))
		touchedSet[location.Path] = struct{}{}
		converted = append(converted, name)
	}

	touched = make([]string, 0, len(touchedSet))
	for p := range touchedSet {
		touched = append(touched, p)
	}
	sort.Strings(touched)
	return strings.Join(converted, ","), definitions, touched
}

// isVariableName reports whether an RPN token references a metric variable
// rather than an operator or a numeric literal.
func isVariableName(token string) bool {
	if token == "" {
		return false
	}
	if strings.ContainsRune("+-/*", rune(token[0])) {
		return false
	}
	for _, c := range token {
		if !strings.ContainsRune("0123456789.", c) {
			return true
		}
	}
	return false
}

// splitConsolidation splits an optional ".max"/".min"/".average" suffix
// selecting the consolidation function. The default is MAX.
func splitConsolidation(token string) (metric, cf string) {
	if dot := strings.LastIndex(token, "."); dot >= 0 {
		switch token[dot:] {
		case ".max":
			return token[:dot], "MAX"
		case ".min":
			return token[:dot], "MIN"
		case ".average":
			return token[:dot], "AVERAGE"
		}
	}
	return token, "MAX"
}

// sanitizeName replaces characters the archive's variable syntax rejects.
func sanitizeName(metric string) string {
	return strings.ReplaceAll(metric, ".", "_")
}
