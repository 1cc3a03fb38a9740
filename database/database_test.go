package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"usercenter/apperror"
	"usercenter/config"
	"usercenter/models"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// setupTestDB initializes an in-memory SQLite database with the full schema
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         ":memory:",
		MaxOpenConns: 4,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestMigrateCreatesTables(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"user", "profile", "logs", "roles", "users_roles"} {
		assert.True(t, db.Migrator().HasTable(table), "table %s", table)
	}
	assert.NoError(t, Ping(context.Background(), db))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSeedInitialDataIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, SeedInitialData(db, zap.NewNop()))
	require.NoError(t, SeedInitialData(db, zap.NewNop()))

	var count int64
	require.NoError(t, db.Model(&models.Role{}).Count(&count).Error)
	assert.Equal(t, int64(len(DefaultRoles)), count)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, 1062, ErrorCode(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})))
	assert.Equal(t, 23505, ErrorCode(&pgconn.PgError{Code: "23505"}))
	assert.Equal(t, http.StatusInternalServerError, ErrorCode(&pgconn.PgError{Code: "42P01"}))
	assert.Equal(t, http.StatusInternalServerError, ErrorCode(errors.New("connection refused")))
}

func TestTranslateErrorSQLiteUniqueViolation(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.Create(&models.User{Username: "bob", Password: "x"}).Error)
	err := TranslateError(db.Create(&models.User{Username: "bob", Password: "y"}).Error)

	var pe *apperror.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2067, pe.Code) // SQLITE_CONSTRAINT_UNIQUE
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&apperror.PersistenceError{Code: 1452, Err: &mysql.MySQLError{Number: 1452}}))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsForeignKeyViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}))
	assert.False(t, IsForeignKeyViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, IsForeignKeyViolation(nil))
	assert.False(t, IsForeignKeyViolation(errors.New("connection refused")))
}

func TestTranslateErrorPassThrough(t *testing.T) {
	assert.NoError(t, TranslateError(nil))
	assert.ErrorIs(t, TranslateError(gorm.ErrRecordNotFound), gorm.ErrRecordNotFound)

	already := &apperror.PersistenceError{Code: 1, Err: errors.New("x")}
	assert.Same(t, already, TranslateError(already))
}
