package rrd

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLocator map[string]Location

func (m mapLocator) Location(host, service, metric string) Location {
	return m[host+"/"+service+"/"+metric]
}

type fakeArchive struct {
	args   []string
	result *XportResult
	err    error
}

func (a *fakeArchive) Xport(args []string) (*XportResult, error) {
	a.args = args
	return a.result, a.err
}

type fakeFlusher struct {
	socket string
	paths  []string
	calls  int
	err    error
}

func (f *fakeFlusher) FlushCached(daemonSocket string, paths []string) error {
	f.calls++
	f.socket = daemonSocket
	f.paths = paths
	return f.err
}

func mustArgs(t *testing.T, encoded string) *Args {
	t.Helper()
	a, err := ParseArgs(encoded, "rrddata")
	require.NoError(t, err)
	return a
}

func TestRewriteExpression(t *testing.T) {
	m := &DataMaker{
		Locator: mapLocator{
			"web01/CPU/user": {Path: "/rrd/web01/CPU_user.rrd", DSName: "1"},
			"web01/CPU/sys":  {Path: "/rrd/web01/CPU_sys.rrd", DSName: "1"},
		},
		Log:  zerolog.Nop(),
		Args: mustArgs(t, "user,sys,+,1024,/:100:200:1"),
	}

	rewritten, definitions, touched := m.rewriteExpression("web01", "CPU")
	assert.Equal(t, "var_1,var_2,+,1024,/", rewritten,
		"each metric variable gets a fresh internal name, literals and operators pass through")
	assert.Equal(t, []string{
		"DEF:var_1=/rrd/web01/CPU_user.rrd:1:MAX",
		"DEF:var_2=/rrd/web01/CPU_sys.rrd:1:MAX",
	}, definitions)
	assert.Equal(t, []string{
		"/rrd/web01/CPU_sys.rrd",
		"/rrd/web01/CPU_user.rrd",
	}, touched, "touched archives are deduplicated and sorted")
}

func TestRewriteExpressionConsolidationSuffix(t *testing.T) {
	m := &DataMaker{
		Locator: mapLocator{
			"h/s/load": {Path: "/rrd/h/s_load.rrd", DSName: "1"},
		},
		Log:  zerolog.Nop(),
		Args: mustArgs(t, "load.average:100:200:1"),
	}
	_, definitions, _ := m.rewriteExpression("h", "s")
	require.Len(t, definitions, 1)
	assert.Equal(t, "DEF:var_1=/rrd/h/s_load.rrd:1:AVERAGE", definitions[0])
}

func TestRewriteExpressionUnresolvableMetric(t *testing.T) {
	m := &DataMaker{
		Locator: mapLocator{},
		Log:     zerolog.Nop(),
		Args:    mustArgs(t, "some.metric:100:200:1"),
	}
	rewritten, definitions, touched := m.rewriteExpression("h", "s")
	assert.Equal(t, "some_metric", rewritten, "unresolvable metrics degrade to a sanitized literal")
	assert.Empty(t, definitions)
	assert.Empty(t, touched)
}

func TestIsVariableName(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"fs_used", true},
		{"load.average", true},
		{"1024", false},
		{"3.5", false},
		{"+", false},
		{"-", false},
		{"/", false},
		{"*", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isVariableName(tt.token), "token %q", tt.token)
	}
}

func TestBuildWindowIsRightClosed(t *testing.T) {
	archive := &fakeArchive{result: &XportResult{
		Start:   100,
		End:     130,
		Step:    10,
		Legends: []string{"xxx"},
		Values:  []float64{1.5, 2.5, 3.5, 99},
	}}
	m := &DataMaker{
		Locator: mapLocator{"h/s/m": {Path: "/rrd/h/s_m.rrd", DSName: "1"}},
		Archive: archive,
		Log:     zerolog.Nop(),
		Args:    mustArgs(t, "m:100:130:10"),
	}

	row := m.Build("h", "s", 0)
	// [start, end, step, samples...] with samples from start+step through
	// end inclusive: 110, 120, 130.
	require.Len(t, row, 6)
	assert.Equal(t, int64(100), row[0].Time.Unix())
	assert.Equal(t, int64(130), row[1].Time.Unix())
	assert.Equal(t, int64(10), row[2].Int)
	assert.Equal(t, 1.5, row[3].Dbl)
	assert.Equal(t, 3.5, row[5].Dbl)

	assert.Equal(t, []string{
		"xport", "-s", "100", "-e", "130", "--step", "10", "-m", "400",
		"DEF:var_1=/rrd/h/s_m.rrd:1:MAX",
		"CDEF:xxx=var_1",
		"XPORT:xxx:",
	}, archive.args)
}

func TestBuildFlushesBeforeExport(t *testing.T) {
	flusher := &fakeFlusher{}
	m := &DataMaker{
		Locator: mapLocator{"h/s/m": {Path: "/rrd/h/s_m.rrd", DSName: "1"}},
		Archive: &fakeArchive{result: &XportResult{
			Start: 100, End: 110, Step: 10, Legends: []string{"xxx"},
		}},
		Flusher:      flusher,
		DaemonSocket: "/run/rrdcached.sock",
		Log:          zerolog.Nop(),
		Args:         mustArgs(t, "m:100:110:10"),
	}
	m.Build("h", "s", 0)
	assert.Equal(t, 1, flusher.calls)
	assert.Equal(t, "/run/rrdcached.sock", flusher.socket)
	assert.Equal(t, []string{"/rrd/h/s_m.rrd"}, flusher.paths)
}

func TestBuildFlushFailureDoesNotRetry(t *testing.T) {
	flusher := &fakeFlusher{err: errors.New("daemon busy")}
	m := &DataMaker{
		Locator: mapLocator{"h/s/m": {Path: "/rrd/h/s_m.rrd", DSName: "1"}},
		Archive: &fakeArchive{result: &XportResult{
			Start: 100, End: 130, Step: 10, Legends: []string{"xxx"},
			Values: []float64{1, 2, 3},
		}},
		Flusher:      flusher,
		DaemonSocket: "/run/rrdcached.sock",
		Log:          zerolog.Nop(),
		Args:         mustArgs(t, "m:100:130:10"),
	}
	row := m.Build("h", "s", 0)
	assert.Equal(t, 1, flusher.calls, "a failed flush is not retried")
	require.Len(t, row, 6, "the export still runs against possibly stale data")
	assert.Equal(t, int64(100), row[0].Time.Unix())
}

func TestBuildArchiveFailureYieldsEmptyRow(t *testing.T) {
	m := &DataMaker{
		Locator: mapLocator{},
		Archive: &fakeArchive{err: errors.New("archive unreachable")},
		Log:     zerolog.Nop(),
		Args:    mustArgs(t, "m:100:200:10"),
	}
	row := m.Build("h", "s", 0)
	require.Len(t, row, 3, "failures degrade to a well-formed empty row")
	assert.True(t, row[0].Time.IsZero())
	assert.True(t, row[1].Time.IsZero())
	assert.Equal(t, int64(0), row[2].Int)
}

func TestBuildUnexpectedColumnCount(t *testing.T) {
	m := &DataMaker{
		Locator: mapLocator{},
		Archive: &fakeArchive{result: &XportResult{
			Start: 100, End: 200, Step: 10,
			Legends: []string{"a", "b"},
			Values:  []float64{1, 2},
		}},
		Log:  zerolog.Nop(),
		Args: mustArgs(t, "m:100:200:10"),
	}
	row := m.Build("h", "s", 0)
	require.Len(t, row, 3)
}

func TestBuildAppliesTimezoneOffset(t *testing.T) {
	m := &DataMaker{
		Locator: mapLocator{},
		Archive: &fakeArchive{result: &XportResult{
			Start: 100, End: 110, Step: 10, Legends: []string{"xxx"},
		}},
		Log:  zerolog.Nop(),
		Args: mustArgs(t, "m:100:110:10"),
	}
	row := m.Build("h", "s", 2*time.Hour)
	assert.Equal(t, int64(100+7200), row[0].Time.Unix())
	assert.Equal(t, int64(110+7200), row[1].Time.Unix())
}

func TestFileLocator(t *testing.T) {
	loc := FileLocator{Dir: t.TempDir()}
	if got := loc.Location("web01", "CPU load", "load1"); !got.Empty() {
		t.Errorf("missing archive file should resolve to the empty location, got %+v", got)
	}
}

func TestSplitConsolidation(t *testing.T) {
	tests := []struct {
		token  string
		metric string
		cf     string
	}{
		{"load", "load", "MAX"},
		{"load.max", "load", "MAX"},
		{"load.min", "load", "MIN"},
		{"load.average", "load", "AVERAGE"},
		{"fs.used", "fs.used", "MAX"},
	}
	for _, tt := range tests {
		metric, cf := splitConsolidation(tt.token)
		assert.Equal(t, tt.metric, metric, "token %q", tt.token)
		assert.Equal(t, tt.cf, cf, "token %q", tt.token)
	}
}
