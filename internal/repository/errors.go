// Package repository holds the MySQL and Redis backed stores. Errors shared
// by several repositories are declared here so higher layers can tell
// failure scenarios apart with errors.Is.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row. Owner-scoped
// lookups also return it for rows that belong to someone else.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a unique constraint.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "1062")
}
