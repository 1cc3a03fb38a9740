package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"usercenter/apperror"
	"usercenter/config"
	"usercenter/database"
	"usercenter/events"
	"usercenter/models"
	"usercenter/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// setupTestDB initializes an in-memory SQLite database and returns a *gorm.DB instance
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         ":memory:",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedInitialData(db, zap.NewNop()))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.events = append(r.events, e)
	return r.err
}

func newUserService(t *testing.T) (UserService, *gorm.DB, *recordingPublisher) {
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	svc := NewUserService(repositories.NewUserRepository(db), repositories.NewRoleRepository(db), pub, zap.NewNop())
	return svc, db, pub
}

func ptr[T any](v T) *T { return &v }

func roleID(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()
	var role models.Role
	require.NoError(t, db.Where("name = ?", name).First(&role).Error)
	return role.ID
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *apperror.AppError, got %v", err)
	assert.Equal(t, status, appErr.Code)
}

func TestCreateUserDropsUnknownRoles(t *testing.T) {
	svc, db, pub := newUserService(t)
	adminID := roleID(t, db, "admin")

	user, err := svc.CreateUser(context.Background(), &CreateUserInput{
		Username: "alice",
		Password: "secret",
		Roles:    []uint{adminID, 999},
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	stored, err := svc.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, stored.Roles, 1)
	assert.Equal(t, adminID, stored.Roles[0].ID)
	assert.Equal(t, "admin", stored.Roles[0].Name)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.UserCreated, pub.events[0].Type)
	assert.Equal(t, user.ID, pub.events[0].UserID)
}

func TestCreateUserHashesPasswordAndCascadesProfile(t *testing.T) {
	svc, _, _ := newUserService(t)

	user, err := svc.CreateUser(context.Background(), &CreateUserInput{
		Username: "bob",
		Password: "secret",
		Profile:  &ProfileInput{Gender: 1, Photo: "bob.png", Address: "Main St"},
	})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret")))

	stored, err := svc.GetUserWithProfile(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Profile)
	assert.Equal(t, 1, stored.Profile.Gender)
	assert.Equal(t, "bob.png", stored.Profile.Photo)
	assert.Equal(t, "Main St", stored.Profile.Address)
}

func TestCreateUserDuplicateUsernameIsPersistenceFault(t *testing.T) {
	svc, _, pub := newUserService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, &CreateUserInput{Username: "dup", Password: "a"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, &CreateUserInput{Username: "dup", Password: "b"})

	var pe *apperror.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2067, pe.Code) // SQLITE_CONSTRAINT_UNIQUE
	assert.Len(t, pub.events, 1)
}

func TestCreateUserIgnoresPublisherFailure(t *testing.T) {
	svc, _, pub := newUserService(t)
	pub.err = errors.New("broker down")

	user, err := svc.CreateUser(context.Background(), &CreateUserInput{Username: "eve", Password: "pw"})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
}

func TestUpdateUserPasswordOnlyPreservesOtherFields(t *testing.T) {
	svc, db, _ := newUserService(t)
	ctx := context.Background()
	adminID, editorID := roleID(t, db, "admin"), roleID(t, db, "editor")

	created, err := svc.CreateUser(ctx, &CreateUserInput{
		Username: "carol",
		Password: "old",
		Profile:  &ProfileInput{Gender: 2, Address: "Elm St"},
		Roles:    []uint{adminID, editorID},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, created.ID, &UpdateUserInput{Password: ptr("x")})
	require.NoError(t, err)
	assert.Equal(t, "carol", updated.Username)
	require.NotNil(t, updated.Profile)
	assert.Equal(t, "Elm St", updated.Profile.Address)
	require.Len(t, updated.Roles, 2)
	assert.Equal(t, "admin", updated.Roles[0].Name)
	assert.Equal(t, "editor", updated.Roles[1].Name)

	stored, err := svc.GetUserWithProfile(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", stored.Username)
	require.NotNil(t, stored.Profile)
	assert.Equal(t, created.Profile.ID, stored.Profile.ID)
	assert.Equal(t, 2, stored.Profile.Gender)
	assert.Equal(t, "Elm St", stored.Profile.Address)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("x")))
}

func TestUpdateUserMergesProfileAndRoles(t *testing.T) {
	svc, db, _ := newUserService(t)
	ctx := context.Background()
	adminID, editorID := roleID(t, db, "admin"), roleID(t, db, "editor")

	created, err := svc.CreateUser(ctx, &CreateUserInput{
		Username: "dave",
		Password: "pw",
		Profile:  &ProfileInput{Gender: 1, Photo: "a.png", Address: "Oak St"},
		Roles:    []uint{adminID},
	})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, created.ID, &UpdateUserInput{
		Username: ptr("david"),
		Profile:  &ProfileUpdate{Photo: ptr("b.png")},
		Roles:    &[]uint{editorID, 404},
	})
	require.NoError(t, err)

	stored, err := svc.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "david", stored.Username)
	assert.Equal(t, 1, stored.Profile.Gender)
	assert.Equal(t, "b.png", stored.Profile.Photo)
	assert.Equal(t, "Oak St", stored.Profile.Address)
	require.Len(t, stored.Roles, 1)
	assert.Equal(t, editorID, stored.Roles[0].ID)

	_, err = svc.UpdateUser(ctx, created.ID, &UpdateUserInput{Roles: &[]uint{}})
	require.NoError(t, err)
	stored, err = svc.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Roles)
}

func TestUpdateUserCreatesMissingProfile(t *testing.T) {
	svc, db, _ := newUserService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, &CreateUserInput{Username: "frank", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, created.ID, &UpdateUserInput{Profile: &ProfileUpdate{Gender: ptr(2)}})
	require.NoError(t, err)

	var profiles []models.Profile
	require.NoError(t, db.Where("user_id = ?", created.ID).Find(&profiles).Error)
	require.Len(t, profiles, 1)
	assert.Equal(t, 2, profiles[0].Gender)
}

func TestUpdateUserNotFoundWritesNothing(t *testing.T) {
	svc, db, _ := newUserService(t)

	_, err := svc.UpdateUser(context.Background(), 42, &UpdateUserInput{
		Username: ptr("ghost"),
		Profile:  &ProfileUpdate{Gender: ptr(1)},
	})
	assertStatus(t, err, http.StatusNotFound)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	var users, profiles int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Profile{}).Count(&profiles).Error)
	assert.Zero(t, users)
	assert.Zero(t, profiles)
}

func TestRemoveUser(t *testing.T) {
	svc, _, pub := newUserService(t)
	ctx := context.Background()

	_, err := svc.RemoveUser(ctx, 42)
	assertStatus(t, err, http.StatusNotFound)

	created, err := svc.CreateUser(ctx, &CreateUserInput{
		Username: "gina",
		Password: "pw",
		Profile:  &ProfileInput{Gender: 1},
	})
	require.NoError(t, err)

	removed, err := svc.RemoveUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "gina", removed.Username)
	require.NotNil(t, removed.Profile)

	_, err = svc.GetUser(ctx, created.ID)
	assertStatus(t, err, http.StatusNotFound)

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.UserRemoved, pub.events[1].Type)
}

func TestListUsersSecondPage(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		_, err := svc.CreateUser(ctx, &CreateUserInput{Username: fmt.Sprintf("u%02d", i), Password: "pw"})
		require.NoError(t, err)
	}

	users, err := svc.ListUsers(ctx, repositories.UserQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u11", users[0].Username)
	assert.Equal(t, "u12", users[1].Username)
}

func TestGetUserWithLogs(t *testing.T) {
	svc, db, _ := newUserService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, &CreateUserInput{Username: "hank", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Logs{Path: "/api/v1/user", Method: "GET", Result: "200", UserID: &user.ID}).Error)

	withLogs, err := svc.GetUserWithLogs(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, withLogs.Logs, 1)
	assert.Nil(t, withLogs.Profile)

	_, err = svc.GetUserWithLogs(ctx, 999)
	assertStatus(t, err, http.StatusNotFound)
}

func TestRecordStoresVanishedCallerAsAnonymous(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "fk.db") + "?_foreign_keys=on",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	svc := NewLogsService(repositories.NewLogsRepository(db))
	ctx := context.Background()
	user := &models.User{Username: "kim", Password: "pw"}
	require.NoError(t, repositories.NewUserRepository(db).Create(ctx, user))

	ghost := user.ID + 100
	orphan := &models.Logs{Path: "/api/v1/user/101", Method: "DELETE", Result: "200", UserID: &ghost}
	require.NoError(t, svc.Record(ctx, orphan))
	owned := &models.Logs{Path: "/api/v1/user/profile", Method: "GET", Result: "200", UserID: &user.ID}
	require.NoError(t, svc.Record(ctx, owned))

	var stored []models.Logs
	require.NoError(t, db.Order("id").Find(&stored).Error)
	require.Len(t, stored, 2)
	assert.Nil(t, stored[0].UserID)
	require.NotNil(t, stored[1].UserID)
	assert.Equal(t, user.ID, *stored[1].UserID)
}

func TestLogsGroupedByResult(t *testing.T) {
	db := setupTestDB(t)
	users := repositories.NewUserRepository(db)
	svc := NewLogsService(repositories.NewLogsRepository(db))
	ctx := context.Background()

	owner := &models.User{Username: "ivy", Password: "pw"}
	other := &models.User{Username: "jack", Password: "pw"}
	require.NoError(t, users.Create(ctx, owner))
	require.NoError(t, users.Create(ctx, other))

	results := []string{"200", "200", "404", "500", "200", "404"}
	for _, r := range results {
		require.NoError(t, svc.Record(ctx, &models.Logs{Path: "/p", Method: "GET", Result: r, UserID: &owner.ID}))
	}
	require.NoError(t, svc.Record(ctx, &models.Logs{Path: "/p", Method: "GET", Result: "201", UserID: &other.ID}))
	require.NoError(t, svc.Record(ctx, &models.Logs{Path: "/p", Method: "GET", Result: "200"}))

	rows, err := svc.LogsGroupedByResult(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.ResultCount{
		{Result: "500", Count: 1},
		{Result: "404", Count: 2},
		{Result: "200", Count: 3},
	}, rows)

	var total int64
	for _, row := range rows {
		total += row.Count
	}
	assert.Equal(t, int64(len(results)), total)

	empty, err := svc.LogsGroupedByResult(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRange(t *testing.T) {
	svc := NewRangeService(100)

	res, err := svc.Range("5")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, res.Data)

	res, err = svc.Range("100")
	require.NoError(t, err)
	assert.Len(t, res.Data, 100)
	assert.Equal(t, "100", res.Data[99])

	for _, bad := range []string{"", "0", "-3", "abc", "1.5", "NaN", "101"} {
		res, err := svc.Range(bad)
		assert.Nil(t, res, bad)
		assertStatus(t, err, http.StatusBadRequest)
	}
}

type stubIssuer struct{}

func (stubIssuer) GenerateToken(user *models.User) (string, error) {
	return fmt.Sprintf("token-%d", user.ID), nil
}

func TestLogin(t *testing.T) {
	userSvc, db, _ := newUserService(t)
	ctx := context.Background()
	user, err := userSvc.CreateUser(ctx, &CreateUserInput{Username: "kate", Password: "s3cret"})
	require.NoError(t, err)

	svc := NewAuthService(repositories.NewUserRepository(db), stubIssuer{})

	res, err := svc.Login(ctx, &LoginInput{Username: "kate", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("token-%d", user.ID), res.Token)

	_, err = svc.Login(ctx, &LoginInput{Username: "kate", Password: "wrong"})
	assertStatus(t, err, http.StatusUnauthorized)

	_, err = svc.Login(ctx, &LoginInput{Username: "nobody", Password: "s3cret"})
	assertStatus(t, err, http.StatusUnauthorized)
}
