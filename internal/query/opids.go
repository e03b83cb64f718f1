package query

import "fmt"

// RelOp is a relational operator of the filter language. The textual forms
// follow the wire protocol: "~" matches, "=~" is case-insensitive equality,
// "~~" is a case-insensitive match, and a leading "!" negates.
type RelOp int

const (
	OpEqual RelOp = iota
	OpNotEqual
	OpMatches
	OpDoesntMatch
	OpEqualIcase
	OpNotEqualIcase
	OpMatchesIcase
	OpDoesntMatchIcase
	OpLess
	OpGreaterOrEqual
	OpGreater
	OpLessOrEqual
)

var relOpNames = map[RelOp]string{
	OpEqual:            "=",
	OpNotEqual:         "!=",
	OpMatches:          "~",
	OpDoesntMatch:      "!~",
	OpEqualIcase:       "=~",
	OpNotEqualIcase:    "!=~",
	OpMatchesIcase:     "~~",
	OpDoesntMatchIcase: "!~~",
	OpLess:             "<",
	OpGreaterOrEqual:   ">=",
	OpGreater:          ">",
	OpLessOrEqual:      "<=",
}

func (op RelOp) String() string { return relOpNames[op] }

// Negated returns the complementary operator.
func (op RelOp) Negated() RelOp {
	switch op {
	case OpEqual:
		return OpNotEqual
	case OpNotEqual:
		return OpEqual
	case OpMatches:
		return OpDoesntMatch
	case OpDoesntMatch:
		return OpMatches
	case OpEqualIcase:
		return OpNotEqualIcase
	case OpNotEqualIcase:
		return OpEqualIcase
	case OpMatchesIcase:
		return OpDoesntMatchIcase
	case OpDoesntMatchIcase:
		return OpMatchesIcase
	case OpLess:
		return OpGreaterOrEqual
	case OpGreaterOrEqual:
		return OpLess
	case OpGreater:
		return OpLessOrEqual
	case OpLessOrEqual:
		return OpGreater
	}
	return op
}

// RelOpForName parses the textual operator form.
func RelOpForName(name string) (RelOp, error) {
	for op, s := range relOpNames {
		if s == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("invalid relational operator %q", name)
}
