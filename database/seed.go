package database

import (
	"errors"
	"fmt"

	"usercenter/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultRoles are created by SeedInitialData when missing.
var DefaultRoles = []string{"admin", "editor", "user"}

// SeedInitialData seeds the database with the default roles. Existing roles are left untouched.
func SeedInitialData(db *gorm.DB, log *zap.Logger) error {
	for _, name := range DefaultRoles {
		var existing models.Role
		err := db.Where("name = ?", name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("checking role %s: %w", name, err)
		}

		role := models.Role{Name: name}
		if err := db.Create(&role).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}
		log.Info("Seeded role", zap.String("role", name), zap.Uint("id", role.ID))
	}
	return nil
}
