package rrd

import (
	"os"
	"path/filepath"
	"strings"
)

// FileLocator resolves metrics in the conventional per-metric archive
// layout: <dir>/<host>/<service>_<metric>.rrd with a single data source
// named "1". Illegal filename characters are replaced by underscores, a
// one-way escaping, which is why resolution starts from the metric name
// instead of listing files.
type FileLocator struct {
	Dir string
}

func cleanupFilename(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '_', c == '-', c == '.':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Location resolves a metric to its archive file, returning the empty
// location when the file does not exist.
func (l FileLocator) Location(host, service, metric string) Location {
	path := filepath.Join(l.Dir, cleanupFilename(host),
		cleanupFilename(service)+"_"+cleanupFilename(metric)+".rrd")
	if _, err := os.Stat(path); err != nil {
		return Location{}
	}
	return Location{Path: path, DSName: "1"}
}
