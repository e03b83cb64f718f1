package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmon/livequery/internal/ec"
	"github.com/openmon/livequery/internal/metrics"
	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/render"
	"github.com/openmon/livequery/internal/state"
)

// Store is the table registry and the request execution engine. One Store
// serves all connections; the tables behind it are read-only snapshots, so
// no locking happens per request.
type Store struct {
	tables      map[string]query.Table
	core        *state.Core
	serviceAuth state.ServiceAuthorization
	maxRespSize int64
	now         func() time.Time
	log         zerolog.Logger
}

// NewStore creates an empty store. maxRespSize caps the body of a single
// reply; zero means unlimited.
func NewStore(core *state.Core, serviceAuth state.ServiceAuthorization, maxRespSize int64, log zerolog.Logger) *Store {
	return &Store{
		tables:      make(map[string]query.Table),
		core:        core,
		serviceAuth: serviceAuth,
		maxRespSize: maxRespSize,
		now:         time.Now,
		log:         log,
	}
}

// AddTable registers a table under its name.
func (s *Store) AddTable(t query.Table) {
	s.tables[t.Name()] = t
}

// Table looks up a registered table.
func (s *Store) Table(name string) (query.Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// FindUser resolves an AuthUser header value. Contacts not attached to any
// object simply see nothing, so no separate contact registry is needed.
func (s *Store) FindUser(name string) state.User {
	return &state.ContactUser{Name: name, Core: s.core, ServiceAuth: s.serviceAuth}
}

// AnswerRequest reads one request from the reader, executes it, and writes
// the reply. It returns true when the connection should stay open for the
// next request. io.EOF is returned unchanged when the client closed the
// connection cleanly between requests.
func (s *Store) AnswerRequest(r *bufio.Reader, w io.Writer, log zerolog.Logger) (bool, error) {
	lines, err := readRequestLines(r)
	if err != nil {
		return false, err
	}

	command, rest, _ := strings.Cut(lines[0], " ")
	switch command {
	case "GET":
		return s.answerGetRequest(strings.TrimSpace(rest), lines[1:], w, log)
	default:
		log.Warn().Str("command", command).Msg("Rejecting unsupported command")
		req := &request{}
		req.fail(codeInvalidRequest, "", fmt.Sprintf("undefined request command %q", command))
		return false, s.respondError(w, req)
	}
}

// readRequestLines collects header lines up to the terminating blank line.
func readRequestLines(r *bufio.Reader) ([]string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && len(lines) == 0 && line == "" {
				return nil, io.EOF
			}
			if err == io.EOF && (line != "" || len(lines) > 0) {
				// Request without trailing newline, still complete.
				if line = strings.TrimRight(line, "\r\n"); line != "" {
					lines = append(lines, line)
				}
				if len(lines) == 0 {
					return nil, io.EOF
				}
				return lines, nil
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(lines) == 0 {
				continue // stray blank lines between requests
			}
			return lines, nil
		}
		lines = append(lines, line)
	}
}

func (s *Store) answerGetRequest(tableName string, headerLines []string, w io.Writer, log zerolog.Logger) (bool, error) {
	start := s.now()
	m := metrics.Get()
	req := parser{store: s, now: s.now}.parseRequest(tableName, headerLines)
	if req.errCode != 0 {
		m.QueryErrors.WithLabelValues(fmt.Sprint(int(req.errCode))).Inc()
		return req.keepAlive, s.respondError(w, req)
	}
	m.QueriesTotal.WithLabelValues(req.table.Name()).Inc()

	var body bytes.Buffer
	renderer := render.New(&body, render.Options{
		Format:     req.outputFormat,
		Separators: req.separators,
	})
	renderer.BeginQuery()
	if req.showHeaders {
		renderer.Headers(columnNames(req.columns))
	}

	q := query.New(req.table, query.Options{
		Columns:        req.columns,
		Filter:         req.filter,
		Limit:          req.limit,
		TimezoneOffset: req.tz,
		User:           req.user,
		Logger:         log,
	}, func(values []query.Value) bool {
		renderer.Row(values)
		if s.maxRespSize > 0 && int64(body.Len()) > s.maxRespSize {
			req.fail(codePayloadTooLarge, "",
				fmt.Sprintf("response exceeds maximum size of %d bytes", s.maxRespSize))
			return false
		}
		return true
	})

	err := req.table.AnswerQuery(q, req.user)
	switch {
	case err == nil && req.errCode == 0:
		renderer.EndQuery()
		if werr := renderer.Err(); werr != nil {
			return false, werr
		}
		m.RowsRendered.Add(float64(q.RowsRendered()))
		m.ResponseBytes.Add(float64(body.Len()))
		m.QueryDuration.Observe(s.now().Sub(start).Seconds())
		log.Debug().
			Str("table", req.table.Name()).
			Int("rows", q.RowsRendered()).
			Int("bytes", body.Len()).
			Msg("Query answered")
		return req.keepAlive, s.respond(w, req, codeOK, body.Bytes())
	case req.errCode != 0:
		// Size cap tripped mid-render.
		m.QueryErrors.WithLabelValues(fmt.Sprint(int(req.errCode))).Inc()
		return req.keepAlive, s.respondError(w, req)
	default:
		var gw *ec.GatewayError
		if errors.As(err, &gw) {
			m.BridgeFailures.Inc()
			req.fail(codeBadGateway, "", gw.Error())
		} else {
			req.fail(codeInvalidRequest, "", err.Error())
		}
		m.QueryErrors.WithLabelValues(fmt.Sprint(int(req.errCode))).Inc()
		log.Warn().Err(err).Str("table", req.table.Name()).Msg("Query failed")
		return req.keepAlive, s.respondError(w, req)
	}
}

func (s *Store) respondError(w io.Writer, req *request) error {
	body := req.errMessage
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return s.respond(w, req, req.errCode, []byte(body))
}

// respond frames and writes one reply. With fixed16 framing the status line
// is "CCC LLLLLLLLLLL\n": a 3-digit code and an 11-digit body length.
func (s *Store) respond(w io.Writer, req *request, code responseCode, body []byte) error {
	if req.responseHeader == responseHeaderFixed16 {
		if _, err := fmt.Fprintf(w, "%03d %11d\n", int(code), len(body)); err != nil {
			return err
		}
	} else if code != codeOK {
		// Without framing there is no error channel; log only.
		s.log.Warn().Int("code", int(code)).Str("message", req.errMessage).
			Msg("Dropping error reply, client did not request fixed16 headers")
		return nil
	}
	_, err := w.Write(body)
	return err
}

func columnNames(columns []query.Column) []string {
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.Name())
	}
	return names
}
