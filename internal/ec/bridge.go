package ec

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/state"
)

// localTablePrefix is stripped from local table names to obtain the remote
// table name ("eventconsoleevents" -> "events").
const localTablePrefix = "eventconsole"

// timeColumn is the designated column whose filter bounds are forwarded as
// a time-range restriction.
const timeColumn = "history_time"

// filterableColumns is the fixed allow-list of columns the event console
// can grep on. Kept in sync with the daemon.
var filterableColumns = []string{
	"event_id", "event_text", "event_comment", "event_host",
	"event_contact", "event_application", "event_rule_id", "event_owner",
	"event_ipaddress", "event_core_host",
}

// specialColumns are always requested regardless of the query: the host
// designation for the local join, and the two authorization-context fields.
var specialColumns = []string{
	"event_host",
	"event_contact_groups_precedence",
	"event_contact_groups",
}

// Authorizer decides per reply row whether the acting user may see it.
type Authorizer func(row *Row) bool

// AuthorizerFor builds the per-row predicate: tables carrying the
// authorization-context column check contact-group precedence rules against
// the derived host; all other tables accept every row.
func AuthorizerFor(table query.Table, user state.User) Authorizer {
	hasContext := false
	for _, c := range table.Columns() {
		if c.Name() == "event_contact_groups_precedence" {
			hasContext = true
			break
		}
	}
	if !hasContext {
		return func(*Row) bool { return true }
	}
	return func(r *Row) bool {
		return user.IsAuthorizedForEvent(
			r.GetString("event_contact_groups_precedence"),
			SplitList(r.GetString("event_contact_groups")),
			r.Host())
	}
}

// Bridge answers queries for tables whose rows live in the event console.
// It holds one exclusive connection per query invocation and never retries.
type Bridge struct {
	Dialer Dialer
	Core   *state.Core
	Log    zerolog.Logger
}

// AnswerQuery translates the query into the remote GET protocol, streams
// the reply, and hands authorized rows to the query in reply order.
// Transport failures come back as *GatewayError.
func (b *Bridge) AnswerQuery(table query.Table, q *query.Query, user state.User) error {
	conn, err := b.Dialer.Dial()
	if err != nil {
		return &GatewayError{Err: err}
	}
	defer conn.Close()

	request := b.BuildRequest(table, q)
	b.Log.Debug().Str("table", table.Name()).Str("request", request).
		Msg("forwarding query to event console")
	if _, err := conn.Write([]byte(request)); err != nil {
		return &GatewayError{Err: fmt.Errorf("sending request: %w", err)}
	}

	if err := b.receiveReply(bufio.NewScanner(conn), q, AuthorizerFor(table, user)); err != nil {
		return &GatewayError{Err: err}
	}
	return nil
}

// BuildRequest renders the remote request: the GET line, the output format,
// the column list (host_ columns excluded, they are joined locally), and
// the forwardable filter subset.
func (b *Bridge) BuildRequest(table query.Table, q *query.Query) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "GET %s\n", strings.TrimPrefix(table.Name(), localTablePrefix))
	sb.WriteString("OutputFormat: plain\n")
	sb.WriteString("Columns:")
	for _, name := range b.remoteColumns(table, q) {
		sb.WriteString(" ")
		sb.WriteString(name)
	}
	sb.WriteString("\n")
	b.emitTimeRangeFilter(&sb, q)
	b.emitGreppingFilters(&sb, q)
	sb.WriteString("\n")
	return sb.String()
}

func (b *Bridge) remoteColumns(table query.Table, q *query.Query) []string {
	all := q.AllColumnNames()
	seen := make(map[string]struct{}, len(all))
	for _, n := range all {
		seen[n] = struct{}{}
	}
	// The special columns are added only if the table actually declares
	// them, in table order after the query's own columns.
	for _, name := range specialColumns {
		if _, dup := seen[name]; dup {
			continue
		}
		for _, c := range table.Columns() {
			if c.Name() == name {
				all = append(all, name)
				seen[name] = struct{}{}
				break
			}
		}
	}
	names := make([]string, 0, len(all))
	for _, n := range all {
		if !strings.HasPrefix(n, "host_") {
			names = append(names, n)
		}
	}
	return names
}

func (b *Bridge) emitTimeRangeFilter(sb *strings.Builder, q *query.Query) {
	if glb, ok := q.GreatestLowerBoundFor(timeColumn); ok {
		fmt.Fprintf(sb, "Filter: %s >= %d\n", timeColumn, glb)
	}
	if lub, ok := q.LeastUpperBoundFor(timeColumn); ok {
		fmt.Fprintf(sb, "Filter: %s <= %d\n", timeColumn, lub)
	}
}

// emitGreppingFilters forwards constraints on the allow-listed columns. A
// single comparison with a remote-supported operator is forwarded verbatim;
// otherwise an exact-value pin becomes an equality filter. Anything more
// complex stays local: the remote result is a superset and the full filter
// is re-applied per row anyway.
func (b *Bridge) emitGreppingFilters(sb *strings.Builder, q *query.Query) {
	for _, name := range filterableColumns {
		column := name
		conjuncts := q.PartialFilter(func(c string) bool { return c == column }).Conjuncts()
		if len(conjuncts) == 1 {
			if col, op, value, ok := conjuncts[0].Comparison(); ok {
				switch op {
				case query.OpEqual, query.OpMatches, query.OpEqualIcase, query.OpMatchesIcase:
					fmt.Fprintf(sb, "Filter: %s %s %s\n", col, op, value)
					continue
				}
			}
		}
		if value, ok := q.StringValueRestrictionFor(column); ok {
			fmt.Fprintf(sb, "Filter: %s = %s\n", column, value)
			continue
		}
		glb, okGlb := q.GreatestLowerBoundFor(column)
		lub, okLub := q.LeastUpperBoundFor(column)
		if okGlb && okLub && glb == lub {
			fmt.Fprintf(sb, "Filter: %s = %d\n", column, glb)
		}
	}
}

func (b *Bridge) receiveReply(scanner *bufio.Scanner, q *query.Query, authorized Authorizer) error {
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var headers []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		columns := strings.Split(line, "\t")
		if headers == nil {
			headers = columns
			continue
		}
		row := NewRow(b.Core, headers, columns)
		if !authorized(row) {
			continue
		}
		if !q.ProcessDataset(query.NewRow(row)) {
			// Early termination: drop the rest of the reply, the deferred
			// close tears the connection down.
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	return nil
}
