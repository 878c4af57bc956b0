// Package repository implements the inventory store on MySQL.  Sentinel
// errors defined here let the service layer distinguish expected business
// outcomes from infrastructure failures without inspecting driver errors;
// the mapping from MySQL duplicate-key violations to ErrTableTaken and
// ErrDuplicateEvent happens in this package and nowhere else.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested row does not exist.  Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrTableTaken is returned when an insert loses the race for a table:
// the unique index over (event_id, table_id) for blocking rows rejected
// the write.  This is the storage layer's last line of defense; callers
// report "no longer available", they do not retry the insert.
var ErrTableTaken = errors.New("table already taken")

// ErrVersionConflict is returned when a compare-and-swap update matched no
// rows because the booking's version moved underneath the caller.  The
// caller must re-read and retry the edit.
var ErrVersionConflict = errors.New("booking version conflict")

// ErrDuplicateEvent is returned when a payment event with the same gateway
// event id has already been recorded.  Not a failure; the reconciler
// treats it as an idempotent redelivery.
var ErrDuplicateEvent = errors.New("payment event already recorded")

// isDuplicateKey reports whether err is a MySQL duplicate-entry violation
// (error 1062), optionally on the named index.
func isDuplicateKey(err error, index string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != 1062 {
		return false
	}
	if index == "" {
		return true
	}
	// Duplicate-entry messages end with "for key 'index_name'"; the key
	// may be qualified with the table name.
	return strings.Contains(me.Message, index)
}
