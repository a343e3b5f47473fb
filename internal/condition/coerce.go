package condition

import (
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
	"strconv"
	"strings"
	"time"
)

var timestampParser = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats:  now.TimeFormats,
}

// Coerce converts an operand to the Go value matching the column's declared type.
// Text and unclassified columns receive the operand unchanged.
func Coerce(column models.ColumnDescriptor, operand string) (interface{}, error) {
	trimmed := strings.TrimSpace(operand)

	switch column.DeclaredType {
	case models.TypeInteger:
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, coercionError(column, operand, err)
		}
		return v, nil
	case models.TypeNumeric:
		v, err := decimal.NewFromString(trimmed)
		if err != nil {
			return nil, coercionError(column, operand, err)
		}
		return v, nil
	case models.TypeFloat:
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, coercionError(column, operand, err)
		}
		return v, nil
	case models.TypeBoolean:
		v, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, coercionError(column, operand, err)
		}
		return v, nil
	case models.TypeTimestamp:
		if trimmed == "" {
			return nil, coercionError(column, operand, fmt.Errorf("empty timestamp"))
		}
		v, err := timestampParser.Parse(trimmed)
		if err != nil {
			return nil, coercionError(column, operand, err)
		}
		return v, nil
	default:
		return operand, nil
	}
}

func coercionError(column models.ColumnDescriptor, operand string, err error) error {
	return fmt.Errorf("%w: %q is not a valid %s for column %q: %v",
		models.ErrTypeCoercion, operand, column.DeclaredType, column.Name, err)
}
