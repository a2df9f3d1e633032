package db

import "strings"

// IsUniqueViolation reports whether err is a Postgres unique violation. With
// a constraintName it additionally requires that constraint to be the one
// named in the message, so callers can tell the document-number index apart
// from other unique keys on the same table.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "SQLSTATE 23505") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
