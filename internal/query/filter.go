package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openmon/livequery/internal/state"
)

type filterKind int

const (
	filterCmp filterKind = iota
	filterAnd
	filterOr
)

// Filter is a boolean expression over rows: a tagged variant of one
// comparison or a conjunction/disjunction of sub-filters. A nil *Filter is
// the tautology; an Or node without children is the contradiction.
type Filter struct {
	kind filterKind

	// comparison fields
	column  Column
	op      RelOp
	operand string
	ref     float64 // numeric operand for int/double/time comparisons
	refInt  int64
	re      *regexp.Regexp

	children []*Filter
}

// NewComparison builds a comparison node. Pattern operands are compiled
// eagerly so malformed expressions fail at parse time, not per row.
func NewComparison(column Column, op RelOp, operand string) (*Filter, error) {
	f := &Filter{kind: filterCmp, column: column, op: op, operand: operand}
	switch op {
	case OpMatches, OpDoesntMatch, OpMatchesIcase, OpDoesntMatchIcase:
		expr := operand
		if op == OpMatchesIcase || op == OpDoesntMatchIcase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression for column %s: %w", column.Name(), err)
		}
		f.re = re
	}
	switch column.Kind() {
	case KindInt, KindTime:
		f.refInt, _ = strconv.ParseInt(strings.TrimSpace(operand), 10, 64)
		f.ref = float64(f.refInt)
	case KindDouble:
		f.ref, _ = strconv.ParseFloat(strings.TrimSpace(operand), 64)
	}
	return f, nil
}

// And combines filters conjunctively. Nil children (tautologies) are
// dropped; a single child collapses to itself; no children yields nil, the
// tautology.
func And(children ...*Filter) *Filter {
	kept := make([]*Filter, 0, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.kind == filterAnd {
			kept = append(kept, c.children...)
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Filter{kind: filterAnd, children: kept}
}

// Or combines filters disjunctively. A nil child short-circuits to the
// tautology; no children yields the contradiction.
func Or(children ...*Filter) *Filter {
	kept := make([]*Filter, 0, len(children))
	for _, c := range children {
		if c == nil {
			return nil // one tautological disjunct makes the whole Or true
		}
		if c.kind == filterOr {
			kept = append(kept, c.children...)
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &Filter{kind: filterOr, children: kept}
}

// Contradiction returns a filter no row satisfies.
func Contradiction() *Filter { return &Filter{kind: filterOr} }

// Negate returns the logical complement. Negation is pushed down to the
// comparisons, so the tree stays free of explicit Not nodes.
func (f *Filter) Negate() *Filter {
	if f == nil {
		return Contradiction()
	}
	switch f.kind {
	case filterCmp:
		neg, err := NewComparison(f.column, f.op.Negated(), f.operand)
		if err != nil {
			// The operand compiled for the original operator, so it
			// compiles for the negated one as well.
			panic(err)
		}
		return neg
	case filterAnd:
		negated := make([]*Filter, 0, len(f.children))
		for _, c := range f.children {
			negated = append(negated, c.Negate())
		}
		return Or(negated...)
	default:
		negated := make([]*Filter, 0, len(f.children))
		for _, c := range f.children {
			negated = append(negated, c.Negate())
		}
		return And(negated...)
	}
}

// Accepts evaluates the filter against one row.
func (f *Filter) Accepts(row Row, user state.User, tz time.Duration) bool {
	if f == nil {
		return true
	}
	switch f.kind {
	case filterAnd:
		for _, c := range f.children {
			if !c.Accepts(row, user, tz) {
				return false
			}
		}
		return true
	case filterOr:
		for _, c := range f.children {
			if c.Accepts(row, user, tz) {
				return true
			}
		}
		return false
	}
	return f.acceptsValue(f.column.Value(row, user, tz), tz)
}

func (f *Filter) acceptsValue(v Value, tz time.Duration) bool {
	if v.Kind == KindList {
		return f.acceptsList(v.List)
	}
	if n, ok := v.asNumber(); ok {
		return f.acceptsNumber(n, tz)
	}
	return f.acceptsString(v.Str)
}

func (f *Filter) acceptsString(s string) bool {
	switch f.op {
	case OpEqual:
		return s == f.operand
	case OpNotEqual:
		return s != f.operand
	case OpEqualIcase:
		return strings.EqualFold(s, f.operand)
	case OpNotEqualIcase:
		return !strings.EqualFold(s, f.operand)
	case OpMatches, OpMatchesIcase:
		return f.re.MatchString(s)
	case OpDoesntMatch, OpDoesntMatchIcase:
		return !f.re.MatchString(s)
	case OpLess:
		return s < f.operand
	case OpLessOrEqual:
		return s <= f.operand
	case OpGreater:
		return s > f.operand
	case OpGreaterOrEqual:
		return s >= f.operand
	}
	return false
}

func (f *Filter) acceptsNumber(n float64, tz time.Duration) bool {
	// Time column values already carry the timezone offset, and reference
	// values are given in the client's local time, so the two sides line
	// up without further adjustment here.
	_ = tz
	ref := f.ref
	switch f.op {
	case OpEqual, OpEqualIcase:
		return n == ref
	case OpNotEqual, OpNotEqualIcase:
		return n != ref
	case OpMatches, OpMatchesIcase:
		return f.re.MatchString(strconv.FormatFloat(n, 'g', -1, 64))
	case OpDoesntMatch, OpDoesntMatchIcase:
		return !f.re.MatchString(strconv.FormatFloat(n, 'g', -1, 64))
	case OpLess:
		return n < ref
	case OpLessOrEqual:
		return n <= ref
	case OpGreater:
		return n > ref
	case OpGreaterOrEqual:
		return n >= ref
	}
	return false
}

func (f *Filter) acceptsList(elems []Value) bool {
	contains := func(want string, fold bool) bool {
		for _, e := range elems {
			if e.AsString() == want || (fold && strings.EqualFold(e.AsString(), want)) {
				return true
			}
		}
		return false
	}
	matches := func() bool {
		for _, e := range elems {
			if f.re.MatchString(e.AsString()) {
				return true
			}
		}
		return false
	}
	switch f.op {
	case OpEqual:
		// "= <empty>" tests for the empty list.
		if f.operand == "" {
			return len(elems) == 0
		}
		return contains(f.operand, false)
	case OpNotEqual:
		if f.operand == "" {
			return len(elems) != 0
		}
		return !contains(f.operand, false)
	case OpEqualIcase:
		return contains(f.operand, true)
	case OpNotEqualIcase:
		return !contains(f.operand, true)
	case OpGreaterOrEqual:
		return contains(f.operand, false)
	case OpLess:
		return !contains(f.operand, false)
	case OpMatches, OpMatchesIcase:
		return matches()
	case OpDoesntMatch, OpDoesntMatchIcase:
		return !matches()
	}
	return false
}

// GreatestLowerBoundFor returns the tightest lower bound the filter implies
// for the named column, if any. Bounds are derived from int and time
// comparisons; time references are adjusted by the timezone offset the same
// way evaluation adjusts them.
func (f *Filter) GreatestLowerBoundFor(column string, tz time.Duration) (int64, bool) {
	if f == nil {
		return 0, false
	}
	switch f.kind {
	case filterAnd:
		best, found := int64(0), false
		for _, c := range f.children {
			if b, ok := c.GreatestLowerBoundFor(column, tz); ok && (!found || b > best) {
				best, found = b, true
			}
		}
		return best, found
	case filterOr:
		// A disjunction only bounds the column if every branch does; the
		// loosest branch wins.
		best, found := int64(0), false
		for _, c := range f.children {
			b, ok := c.GreatestLowerBoundFor(column, tz)
			if !ok {
				return 0, false
			}
			if !found || b < best {
				best, found = b, true
			}
		}
		return best, found
	}
	if !f.boundsColumn(column) {
		return 0, false
	}
	v := f.boundReference(tz)
	switch f.op {
	case OpEqual:
		return v, true
	case OpGreaterOrEqual:
		return v, true
	case OpGreater:
		return v + 1, true
	}
	return 0, false
}

// LeastUpperBoundFor is the dual of GreatestLowerBoundFor.
func (f *Filter) LeastUpperBoundFor(column string, tz time.Duration) (int64, bool) {
	if f == nil {
		return 0, false
	}
	switch f.kind {
	case filterAnd:
		best, found := int64(0), false
		for _, c := range f.children {
			if b, ok := c.LeastUpperBoundFor(column, tz); ok && (!found || b < best) {
				best, found = b, true
			}
		}
		return best, found
	case filterOr:
		best, found := int64(0), false
		for _, c := range f.children {
			b, ok := c.LeastUpperBoundFor(column, tz)
			if !ok {
				return 0, false
			}
			if !found || b > best {
				best, found = b, true
			}
		}
		return best, found
	}
	if !f.boundsColumn(column) {
		return 0, false
	}
	v := f.boundReference(tz)
	switch f.op {
	case OpEqual:
		return v, true
	case OpLessOrEqual:
		return v, true
	case OpLess:
		return v - 1, true
	}
	return 0, false
}

func (f *Filter) boundsColumn(column string) bool {
	if f.column.Name() != column {
		return false
	}
	k := f.column.Kind()
	return k == KindInt || k == KindTime
}

func (f *Filter) boundReference(tz time.Duration) int64 {
	// Bounds are consumed by backends that speak server time, so client
	// references on time columns lose the timezone offset.
	if f.column.Kind() == KindTime {
		return f.refInt - int64(tz.Seconds())
	}
	return f.refInt
}

// StringValueRestrictionFor returns the single string value the named
// column is pinned to by equality, if the tree pins it.
func (f *Filter) StringValueRestrictionFor(column string) (string, bool) {
	if f == nil {
		return "", false
	}
	switch f.kind {
	case filterAnd:
		for _, c := range f.children {
			if v, ok := c.StringValueRestrictionFor(column); ok {
				return v, true
			}
		}
		return "", false
	case filterOr:
		value, found := "", false
		for _, c := range f.children {
			v, ok := c.StringValueRestrictionFor(column)
			if !ok || (found && v != value) {
				return "", false
			}
			value, found = v, true
		}
		return value, found
	}
	if f.op == OpEqual && f.column.Name() == column && f.column.Kind() == KindString {
		return f.operand, true
	}
	return "", false
}

// Partial extracts the conjuncts that mention only columns accepted by the
// predicate. The result is implied by the original filter, so it can be
// forwarded to a remote source without changing result correctness as long
// as the full filter is still applied locally.
func (f *Filter) Partial(pred func(columnName string) bool) *Filter {
	if f == nil {
		return nil
	}
	switch f.kind {
	case filterAnd:
		parts := make([]*Filter, 0, len(f.children))
		for _, c := range f.children {
			parts = append(parts, c.Partial(pred))
		}
		return And(parts...)
	case filterOr:
		if f.mentionsOnly(pred) {
			return f
		}
		return nil
	}
	if pred(f.column.Name()) {
		return f
	}
	return nil
}

func (f *Filter) mentionsOnly(pred func(string) bool) bool {
	if f == nil {
		return true
	}
	if f.kind == filterCmp {
		return pred(f.column.Name())
	}
	for _, c := range f.children {
		if !c.mentionsOnly(pred) {
			return false
		}
	}
	return true
}

// Conjuncts flattens the top-level conjunction. A comparison or disjunction
// is its own single conjunct; the tautology has none.
func (f *Filter) Conjuncts() []*Filter {
	if f == nil {
		return nil
	}
	if f.kind == filterAnd {
		return f.children
	}
	return []*Filter{f}
}

// Comparison exposes a comparison node for protocol rendering.
func (f *Filter) Comparison() (column string, op RelOp, value string, ok bool) {
	if f == nil || f.kind != filterCmp {
		return "", 0, "", false
	}
	return f.column.Name(), f.op, f.operand, true
}

// ColumnNames collects the names of all columns the filter mentions.
func (f *Filter) ColumnNames(into map[string]struct{}) {
	if f == nil {
		return
	}
	if f.kind == filterCmp {
		into[f.column.Name()] = struct{}{}
		return
	}
	for _, c := range f.children {
		c.ColumnNames(into)
	}
}

// String renders the filter for debug logging.
func (f *Filter) String() string {
	if f == nil {
		return "TRUE"
	}
	switch f.kind {
	case filterCmp:
		return fmt.Sprintf("%s %s %s", f.column.Name(), f.op, f.operand)
	case filterAnd:
		return joinChildren("AND", f.children)
	default:
		if len(f.children) == 0 {
			return "FALSE"
		}
		return joinChildren("OR", f.children)
	}
}

func joinChildren(conn string, children []*Filter) string {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, " "+conn+" ") + ")"
}
