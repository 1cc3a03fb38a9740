package repositories

import (
	"context"

	"usercenter/database"
	"usercenter/models"

	"gorm.io/gorm"
)

type RoleRepository interface {
	FindByIDs(ctx context.Context, ids []uint) ([]models.Role, error)
}

type roleRepository struct {
	db *gorm.DB
}

var _ RoleRepository = (*roleRepository)(nil)

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// FindByIDs returns the persisted roles among ids. Unknown ids are skipped.
func (r *roleRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Role, error) {
	roles := make([]models.Role, 0, len(ids))
	if len(ids) == 0 {
		return roles, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&roles).Error; err != nil {
		return nil, database.TranslateError(err)
	}
	return roles, nil
}
