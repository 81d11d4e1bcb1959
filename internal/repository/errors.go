// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// they are not allowed to perform. Handlers translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as an open rental already existing for a movie.
// Handlers translate this into 409.
var ErrConflict = errors.New("conflict")

var (
	ErrMovieNotFound  = errors.New("movie not found")
	ErrRatingNotFound = errors.New("rating not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrRentalNotFound = errors.New("rental not found")
)

// MySQL server error numbers we react to.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

// isDuplicateKey reports whether err is a unique-key violation.
func isDuplicateKey(err error) bool { return isMySQLError(err, mysqlDuplicateEntry) }

// isMissingParent reports whether err is a foreign-key violation on insert.
func isMissingParent(err error) bool { return isMySQLError(err, mysqlNoReferencedRow) }

// IsLockConflict reports whether InnoDB aborted the transaction on a
// deadlock or lock wait timeout. The whole transaction was rolled back and
// may be retried by the client.
func IsLockConflict(err error) bool {
	return isMySQLError(err, mysqlDeadlock) || isMySQLError(err, mysqlLockWaitTimeout)
}
