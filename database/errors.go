package database

import (
	"errors"
	"net/http"
	"strconv"

	"usercenter/apperror"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// TranslateError wraps a driver error into an *apperror.PersistenceError
// carrying the driver's native code. nil stays nil and gorm.ErrRecordNotFound
// is returned unchanged so callers can turn it into a not-found fault.
func TranslateError(err error) error {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	var pe *apperror.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &apperror.PersistenceError{Code: ErrorCode(err), Err: err}
}

// ErrorCode extracts the numeric error code of a MySQL, PostgreSQL or SQLite
// error. PostgreSQL SQLSTATEs containing letters and errors from any other
// source yield 500.
func ErrorCode(err error) int {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return int(myErr.Number)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, convErr := strconv.Atoi(pgErr.Code); convErr == nil {
			return code
		}
		return http.StatusInternalServerError
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return int(liteErr.ExtendedCode)
	}

	return http.StatusInternalServerError
}

// foreign key violations when inserting a child row: MySQL ER_NO_REFERENCED_ROW(_2),
// PostgreSQL foreign_key_violation, SQLite SQLITE_CONSTRAINT_FOREIGNKEY
var foreignKeyCodes = map[int]bool{1216: true, 1452: true, 23503: true, 787: true}

// IsForeignKeyViolation reports whether err is a driver error rejecting a row
// whose foreign key references a missing parent.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return foreignKeyCodes[ErrorCode(err)]
}
