// Package rrd builds time-series export requests against a round-robin
// archive, rewrites RPN metric expressions to concrete storage locations,
// and normalizes the binary export result into a flat row.
package rrd

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultMaxEntries is the archive tool's own default row limit.
const defaultMaxEntries = 400

// Args is a validated time-series export request, decoded from the compact
// form "rpn:start:end:resolution[:max_entries]",
// e.g. "fs_used,1024,/:1426411073:1426416473:5".
type Args struct {
	RPN        string
	StartTime  int64
	EndTime    int64
	Resolution int
	MaxEntries int
}

// ParseArgs validates the compact argument encoding. Errors name the column
// the arguments were supplied for and the failing field; parsing fails
// before any external call is made.
func ParseArgs(arguments, columnName string) (*Args, error) {
	invalid := func(message string) error {
		return fmt.Errorf("invalid arguments for column %q: %s", columnName, message)
	}
	fields := strings.Split(arguments, ":")
	if len(fields) < 4 {
		return nil, invalid("expected RPN:START_TIME:END_TIME:RESOLUTION[:MAX_ENTRIES]")
	}
	if len(fields) > 5 {
		return nil, invalid("too many arguments")
	}
	a := &Args{MaxEntries: defaultMaxEntries}

	if fields[0] == "" {
		return nil, invalid("missing RPN expression")
	}
	a.RPN = fields[0]

	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || start <= 0 {
		return nil, invalid("missing, negative or overflowed start time")
	}
	a.StartTime = start

	end, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || end <= 0 {
		return nil, invalid("missing, negative or overflowed end time")
	}
	a.EndTime = end

	resolution, err := strconv.Atoi(fields[3])
	if err != nil || resolution <= 0 {
		return nil, invalid("missing or negative resolution")
	}
	a.Resolution = resolution

	if len(fields) == 5 {
		maxEntries, err := strconv.Atoi(fields[4])
		if err != nil || maxEntries < 10 {
			return nil, invalid("wrong input for max rows")
		}
		a.MaxEntries = maxEntries
	}
	return a, nil
}

// String re-encodes the arguments in their compact form.
func (a *Args) String() string {
	s := fmt.Sprintf("%s:%d:%d:%d", a.RPN, a.StartTime, a.EndTime, a.Resolution)
	if a.MaxEntries != defaultMaxEntries {
		s += ":" + strconv.Itoa(a.MaxEntries)
	}
	return s
}
