package condition

import (
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/models"
	"gorm.io/gorm/clause"
)

// TextLike matches a pattern against the text form of a column:
// CAST(column AS TEXT) LIKE pattern.
type TextLike struct {
	Column clause.Column
	Value  string
}

func (like TextLike) Build(builder clause.Builder) {
	builder.WriteString("CAST(")
	builder.WriteQuoted(like.Column)
	builder.WriteString(" AS TEXT) LIKE ")
	builder.AddVar(builder, like.Value)
}

func (like TextLike) NegationBuild(builder clause.Builder) {
	builder.WriteString("CAST(")
	builder.WriteQuoted(like.Column)
	builder.WriteString(" AS TEXT) NOT LIKE ")
	builder.AddVar(builder, like.Value)
}

// BuildComparison turns a decoded condition into a predicate on column, coercing the
// operand to the column's declared type.
func BuildComparison(column models.ColumnDescriptor, cond DecodedCondition) (clause.Expression, error) {
	value, err := Coerce(column, cond.Operand)
	if err != nil {
		return nil, err
	}

	col := clause.Column{Name: column.Name}
	switch cond.Operator {
	case OpEq:
		return clause.Eq{Column: col, Value: value}, nil
	case OpLt:
		return clause.Lt{Column: col, Value: value}, nil
	case OpGt:
		return clause.Gt{Column: col, Value: value}, nil
	case OpLe:
		return clause.Lte{Column: col, Value: value}, nil
	case OpGe:
		return clause.Gte{Column: col, Value: value}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", models.ErrMalformedCondition, cond.Operator)
	}
}

// BuildPattern turns a LIKE pattern into a predicate on column. Integer columns are cast
// to text first since LIKE is text-native.
func BuildPattern(column models.ColumnDescriptor, pattern string) clause.Expression {
	col := clause.Column{Name: column.Name}
	if column.DeclaredType.IsIntegerFamily() {
		return TextLike{Column: col, Value: pattern}
	}
	return clause.Like{Column: col, Value: pattern}
}
