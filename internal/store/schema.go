package store

import (
	"strconv"
	"strings"

	"github.com/kiranshivaraju/apperrors/pkg/models"
)

const recordColumns = `id, created_at, updated_at, num_times_occurred, description,
	exception_type, exception_message, exception_cause_type, exception_cause_message,
	stack_trace, resolved, host_name, ip_address, port`

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS application_errors (
		id                      INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at              TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		updated_at              TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		num_times_occurred      INTEGER   NOT NULL DEFAULT 1,
		description             TEXT      NOT NULL,
		exception_type          TEXT,
		exception_message       TEXT,
		exception_cause_type    TEXT,
		exception_cause_message TEXT,
		stack_trace             TEXT,
		resolved                BOOLEAN   NOT NULL DEFAULT FALSE,
		host_name               TEXT      NOT NULL,
		ip_address              TEXT      NOT NULL,
		port                    INTEGER   NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_application_errors_updated_at ON application_errors (updated_at);`,
	`CREATE INDEX IF NOT EXISTS idx_application_errors_created_at ON application_errors (created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_application_errors_open ON application_errors (description, host_name) WHERE NOT resolved;`,
}

// statusWhere returns the WHERE clause selecting status, or "" for all records.
func statusWhere(status models.Status) string {
	switch status {
	case models.StatusResolved:
		return " WHERE resolved = TRUE"
	case models.StatusUnresolved:
		return " WHERE resolved = FALSE"
	default:
		return ""
	}
}

// rebind rewrites ? placeholders as $1..$n.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
