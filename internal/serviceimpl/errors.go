package serviceimpl

import (
	"errors"
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes that map to caller input errors.
var pgErrorKinds = map[string]error{
	"42P01": models.ErrSchemaNotFound, // undefined_table
	"3F000": models.ErrSchemaNotFound, // invalid_schema_name
	"42703": models.ErrUnknownColumn,  // undefined_column
	"22P02": models.ErrTypeCoercion,   // invalid_text_representation
	"22007": models.ErrTypeCoercion,   // invalid_datetime_format
	"22008": models.ErrTypeCoercion,   // datetime_field_overflow
}

// classifyError attaches a models error kind to a database error, keeping the
// original error in the chain.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if kind, ok := pgErrorKinds[pgErr.Code]; ok {
			return fmt.Errorf("%s: %w: %w", op, kind, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrExecution, err)
}
