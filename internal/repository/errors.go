package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ConflictError reports a unique constraint violation on Field (API field name).
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return "duplicate value"
	}
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

var (
	pgKeyPattern     = regexp.MustCompile(`Key \(([^)]+)\)=`)
	sqliteKeyPattern = regexp.MustCompile(`UNIQUE constraint failed: ([\w.]+)`)
)

// classify turns driver specific unique violations into *ConflictError.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		field := ""
		if m := pgKeyPattern.FindStringSubmatch(pgErr.Detail); m != nil {
			field = m[1]
		}
		return &ConflictError{Field: apiField(field), Err: err}
	}

	if m := sqliteKeyPattern.FindStringSubmatch(err.Error()); m != nil {
		column := m[1]
		if i := strings.LastIndex(column, "."); i >= 0 {
			column = column[i+1:]
		}
		return &ConflictError{Field: apiField(column), Err: err}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &ConflictError{Err: err}
	}
	return err
}

// apiField maps a column name (reference_client) to its JSON name (referenceClient).
func apiField(column string) string {
	column = strings.TrimSpace(column)
	if i := strings.Index(column, ","); i >= 0 {
		column = column[:i]
	}
	parts := strings.Split(column, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
