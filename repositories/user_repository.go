package repositories

import (
	"context"

	"usercenter/database"
	"usercenter/models"

	"gorm.io/gorm"
)

// UserQuery holds the listing criteria. Nil filters match every row.
type UserQuery struct {
	Page     int
	Limit    int
	Username *string
	RoleID   *uint
	Gender   *int
}

// Offset is the number of matching rows skipped before the requested page.
func (q UserQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// UserRepository interface defines User-related database operations
type UserRepository interface {
	FindAll(ctx context.Context, query UserQuery) ([]models.User, error)
	FindByID(ctx context.Context, id uint, relations ...string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, user *models.User) error
}

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

var _ UserRepository = (*userRepository)(nil)

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindAll returns one page of users ordered by id, with profile and roles
// preloaded. Only id and username are read from the user table.
func (r *userRepository) FindAll(ctx context.Context, query UserQuery) ([]models.User, error) {
	db := r.db.WithContext(ctx)

	q := db.Model(&models.User{}).Select("id", "username")
	if query.Username != nil {
		q = q.Where("username = ?", *query.Username)
	}
	if query.Gender != nil {
		q = q.Where("id IN (?)", db.Model(&models.Profile{}).Select("user_id").Where("gender = ?", *query.Gender))
	}
	if query.RoleID != nil {
		q = q.Where("id IN (?)", db.Table("users_roles").Select("user_id").Where("role_id = ?", *query.RoleID))
	}

	var users []models.User
	err := q.Preload(models.RelationProfile).
		Preload(models.RelationRoles).
		Order("id ASC").
		Offset(query.Offset()).
		Limit(query.Limit).
		Find(&users).Error
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return users, nil
}

// FindByID finds User by ID and preloads the named relations.
// A missing user yields gorm.ErrRecordNotFound.
func (r *userRepository) FindByID(ctx context.Context, id uint, relations ...string) (*models.User, error) {
	q := r.db.WithContext(ctx)
	for _, rel := range relations {
		q = q.Preload(rel)
	}

	var user models.User
	if err := q.First(&user, id).Error; err != nil {
		return nil, database.TranslateError(err)
	}
	return &user, nil
}

// FindByUsername finds User by Username
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, database.TranslateError(err)
	}
	return &user, nil
}

// Create inserts the user together with its profile and join rows for its roles.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return database.TranslateError(r.db.WithContext(ctx).Omit(models.RelationLogs).Create(user).Error)
}

// Save upserts the whole user and its profile. When user.Roles is non-nil the
// role associations are replaced with it; nil leaves them untouched.
func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).
			Omit(models.RelationRoles, models.RelationLogs).
			Save(user).Error; err != nil {
			return err
		}
		switch {
		case user.Roles == nil:
			return nil
		case len(user.Roles) == 0:
			return tx.Model(user).Association(models.RelationRoles).Clear()
		default:
			return tx.Model(user).Association(models.RelationRoles).Replace(user.Roles)
		}
	})
	return database.TranslateError(err)
}

// Delete removes the user with its profile and role associations. Logs rows
// written by the user are kept and detached.
func (r *userRepository) Delete(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Logs{}).Where("user_id = ?", user.ID).Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Profile{}).Error; err != nil {
			return err
		}
		if err := tx.Model(user).Association(models.RelationRoles).Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.User{}, user.ID).Error
	})
	return database.TranslateError(err)
}
