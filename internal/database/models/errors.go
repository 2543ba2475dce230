package models

import (
	"errors"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"
)

// uniqueViolationColumn returns the column named by a unique constraint
// violation, or an empty string if err is not one.
func uniqueViolationColumn(err error) string {
	var pgerr *pgdriver.Error
	if errors.As(err, &pgerr) {
		if pgerr.Field('C') != "23505" {
			return ""
		}
		// Constraint names follow the <table>_<column>_key convention
		constraint := pgerr.Field('n')
		for _, column := range []string{"username", "email", "pkey"} {
			if strings.Contains(constraint, "_"+column) {
				return column
			}
		}
		return "unknown"
	}

	// SQLite reports "UNIQUE constraint failed: <table>.<column>"
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, "UNIQUE constraint failed: "); ok {
		column := after
		if _, col, found := strings.Cut(after, "."); found {
			column = col
		}
		if idx := strings.IndexAny(column, " ,"); idx >= 0 {
			column = column[:idx]
		}
		return column
	}

	return ""
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return err != nil && uniqueViolationColumn(err) != ""
}
