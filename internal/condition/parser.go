package condition

import (
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/models"
	"strings"
	"unicode"
)

// Operator is the canonical comparison decoded from a raw condition.
type Operator string

const (
	OpEq Operator = "="
	OpLt Operator = "<"
	OpGt Operator = ">"
	OpLe Operator = "<="
	OpGe Operator = ">="
)

// operatorTokens lists the accepted prefixes, longest first so that "<=" is never
// read as "<" followed by an operand starting with "=".
var operatorTokens = []struct {
	token    string
	operator Operator
}{
	{"==", OpEq},
	{"<=", OpLe},
	{"=<", OpLe},
	{">=", OpGe},
	{"=>", OpGe},
	{"=", OpEq},
	{"<", OpLt},
	{">", OpGt},
}

// DecodedCondition is a raw comparison condition split into operator and operand.
type DecodedCondition struct {
	Operator Operator
	Token    string // The token as written, e.g. "=<"
	Operand  string
}

// ParseComparison decodes a raw condition such as ">=42" or "== smith". The operator
// must be a prefix of the value; only the prefix is removed, so operands may contain
// comparison characters themselves.
func ParseComparison(raw string) (DecodedCondition, error) {
	value := strings.TrimLeftFunc(raw, unicode.IsSpace)
	for _, candidate := range operatorTokens {
		if strings.HasPrefix(value, candidate.token) {
			return DecodedCondition{
				Operator: candidate.operator,
				Token:    candidate.token,
				Operand:  strings.TrimLeftFunc(value[len(candidate.token):], unicode.IsSpace),
			}, nil
		}
	}
	return DecodedCondition{}, fmt.Errorf("%w: %q has no comparison operator", models.ErrMalformedCondition, raw)
}
