package server

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/render"
	"github.com/openmon/livequery/internal/state"
)

// responseCode classifies a per-request outcome on the wire.
type responseCode int

const (
	codeOK                responseCode = 200
	codeBadRequest        responseCode = 400
	codeNotFound          responseCode = 404
	codePayloadTooLarge   responseCode = 413
	codeIncompleteRequest responseCode = 451
	codeInvalidRequest    responseCode = 452
	codeBadGateway        responseCode = 502
)

type responseHeaderMode int

const (
	responseHeaderOff responseHeaderMode = iota
	responseHeaderFixed16
)

// request is one parsed GET request. Parsing is forgiving: after the first
// error it keeps consuming lines so output-shaping headers (ResponseHeader,
// KeepAlive) still take effect on the error reply.
type request struct {
	table          query.Table
	columns        []query.Column
	filter         *query.Filter
	limit          int
	outputFormat   render.Format
	separators     render.Separators
	showHeaders    bool
	keepAlive      bool
	responseHeader responseHeaderMode
	user           state.User
	tz             time.Duration

	errCode    responseCode
	errMessage string
}

func (r *request) fail(code responseCode, header, message string) {
	if r.errCode != 0 {
		return
	}
	r.errCode = code
	if header != "" {
		message = header + ": " + message
	}
	r.errMessage = message
}

type parser struct {
	store *Store
	now   func() time.Time
}

// parseRequest interprets the header lines following "GET <table>".
func (p parser) parseRequest(tableName string, lines []string) *request {
	r := &request{
		limit:       -1,
		separators:  render.DefaultSeparators(),
		showHeaders: true,
		user:        state.AllowAllUser{},
	}

	if tableName == "" {
		r.fail(codeInvalidRequest, "", "missing table name in GET request")
	} else if t, ok := p.store.Table(tableName); ok {
		r.table = t
	} else {
		r.fail(codeNotFound, "", fmt.Sprintf("no such table %q", tableName))
	}

	var filters []*query.Filter
	explicitColumns := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r\n")
		if line == "" {
			break
		}
		header, args, _ := strings.Cut(line, ":")
		args = strings.TrimSpace(args)
		var err error
		switch header {
		case "Filter":
			filters, err = p.parseFilterLine(r.table, args, filters)
		case "And":
			filters, err = p.parseAndOrLine(args, query.And, filters)
		case "Or":
			filters, err = p.parseAndOrLine(args, query.Or, filters)
		case "Negate":
			filters, err = p.parseNegateLine(args, filters)
		case "Columns":
			explicitColumns = true
			r.showHeaders = false
			err = p.parseColumnsLine(r, args)
		case "ColumnHeaders":
			err = parseOnOff(args, &r.showHeaders)
		case "Limit":
			r.limit, err = parseNonNegativeInt(args)
		case "OutputFormat":
			if f, ok := render.FormatForName(args); ok {
				r.outputFormat = f
			} else {
				err = fmt.Errorf("missing/invalid output format %q, use one of 'CSV', 'csv', 'json'", args)
			}
		case "ResponseHeader":
			switch args {
			case "off":
				r.responseHeader = responseHeaderOff
			case "fixed16":
				r.responseHeader = responseHeaderFixed16
			default:
				err = fmt.Errorf("expected 'off' or 'fixed16'")
			}
		case "KeepAlive":
			err = parseOnOff(args, &r.keepAlive)
		case "Separators":
			err = p.parseSeparatorsLine(r, args)
		case "AuthUser":
			r.user = p.store.FindUser(args)
		case "Localtime":
			r.tz, err = p.parseLocaltimeLine(args)
		default:
			err = fmt.Errorf("undefined request header")
		}
		if err != nil {
			r.fail(codeBadRequest, header, err.Error())
		}
	}

	if r.table != nil && !explicitColumns {
		r.columns = r.table.Columns()
		r.showHeaders = true
	}
	r.filter = query.And(filters...)
	return r
}

func (p parser) parseFilterLine(table query.Table, args string, filters []*query.Filter) ([]*query.Filter, error) {
	if table == nil {
		return filters, nil
	}
	fields := strings.SplitN(args, " ", 3)
	if len(fields) < 2 {
		return filters, fmt.Errorf("expected '<column> <operator> [value]'")
	}
	column, err := table.Column(fields[0])
	if err != nil {
		return filters, err
	}
	op, err := query.RelOpForName(fields[1])
	if err != nil {
		return filters, err
	}
	operand := ""
	if len(fields) == 3 {
		operand = fields[2]
	}
	f, err := query.NewComparison(column, op, operand)
	if err != nil {
		return filters, err
	}
	return append(filters, f), nil
}

func (p parser) parseAndOrLine(args string, combine func(...*query.Filter) *query.Filter, filters []*query.Filter) ([]*query.Filter, error) {
	n, err := parseNonNegativeInt(args)
	if err != nil {
		return filters, err
	}
	if n > len(filters) {
		return filters, fmt.Errorf("expected %d filters, but only %d are on stack", n, len(filters))
	}
	combined := combine(filters[len(filters)-n:]...)
	return append(filters[:len(filters)-n], combined), nil
}

func (p parser) parseNegateLine(args string, filters []*query.Filter) ([]*query.Filter, error) {
	if args != "" {
		return filters, fmt.Errorf("superfluous argument(s)")
	}
	if len(filters) == 0 {
		return filters, fmt.Errorf("expected 1 filter, but none is on stack")
	}
	filters[len(filters)-1] = filters[len(filters)-1].Negate()
	return filters, nil
}

func (p parser) parseColumnsLine(r *request, args string) error {
	if r.table == nil {
		return nil
	}
	for _, name := range strings.Fields(args) {
		column, err := r.table.Column(name)
		if err != nil {
			return err
		}
		r.columns = append(r.columns, column)
	}
	return nil
}

func (p parser) parseSeparatorsLine(r *request, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 4 {
		return fmt.Errorf("expected 4 separator codes")
	}
	codes := make([]string, 4)
	for i, f := range fields {
		c, err := parseNonNegativeInt(f)
		if err != nil || c > 255 {
			return fmt.Errorf("invalid separator code %q", f)
		}
		// Separators are single raw bytes on the wire, not code points.
		codes[i] = string([]byte{byte(c)})
	}
	r.separators = render.Separators{
		Dataset: codes[0], Field: codes[1], List: codes[2], Sublist: codes[3],
	}
	return nil
}

// parseLocaltimeLine derives the client timezone offset from the client's
// wall clock, rounded to half hours. Both clocks are assumed synchronized;
// the difference is taken to be pure timezone.
func (p parser) parseLocaltimeLine(args string) (time.Duration, error) {
	clientNow, err := parseNonNegativeInt(args)
	if err != nil {
		return 0, err
	}
	diff := float64(int64(clientNow) - p.now().Unix())
	offset := time.Duration(math.Round(diff/1800)) * 1800 * time.Second
	if offset <= -24*time.Hour || offset >= 24*time.Hour {
		return 0, fmt.Errorf("timezone difference greater than or equal to 24 hours")
	}
	return offset, nil
}

func parseNonNegativeInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected non-negative integer")
	}
	return n, nil
}

func parseOnOff(s string, into *bool) error {
	switch s {
	case "on":
		*into = true
	case "off":
		*into = false
	default:
		return fmt.Errorf("expected 'on' or 'off'")
	}
	return nil
}
