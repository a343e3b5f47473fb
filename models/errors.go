package models

import "errors"

var (
	// ErrSchemaNotFound is returned when the schema or table is absent at reflection time.
	ErrSchemaNotFound = errors.New("schema or table not found")
	// ErrUnknownColumn is returned when a condition or selection references a column
	// missing from the reflected catalog.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrMalformedCondition is returned for a comparison condition without an operator.
	ErrMalformedCondition = errors.New("malformed condition")
	// ErrTypeCoercion is returned when an operand cannot be parsed as the column type.
	ErrTypeCoercion = errors.New("operand does not match column type")
	// ErrNoConditions is returned when a filtered selection is requested without any
	// condition values.
	ErrNoConditions = errors.New("no conditions supplied")
	// ErrExecution wraps database failures that are not caller input errors.
	ErrExecution = errors.New("query execution failed")
	// ErrUnsupported is returned for operations the connected dialect cannot perform.
	ErrUnsupported = errors.New("operation not supported by dialect")
)
