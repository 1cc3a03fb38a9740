package repositories

import (
	"context"

	"usercenter/database"
	"usercenter/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LogsRepository interface {
	Create(ctx context.Context, entry *models.Logs) error
	CountByResult(ctx context.Context, userID uint) ([]models.ResultCount, error)
}

type logsRepository struct {
	db *gorm.DB
}

var _ LogsRepository = (*logsRepository)(nil)

func NewLogsRepository(db *gorm.DB) LogsRepository {
	return &logsRepository{db: db}
}

func (r *logsRepository) Create(ctx context.Context, entry *models.Logs) error {
	return database.TranslateError(r.db.WithContext(ctx).Create(entry).Error)
}

// CountByResult counts the user's logs per distinct result, ordered by result descending.
//
//	SELECT logs.result AS result, COUNT(logs.result) AS count FROM logs
//	LEFT JOIN user u ON u.id = logs.user_id WHERE u.id = ? GROUP BY logs.result ORDER BY result DESC
func (r *logsRepository) CountByResult(ctx context.Context, userID uint) ([]models.ResultCount, error) {
	rows := make([]models.ResultCount, 0)
	err := r.db.WithContext(ctx).
		Model(&models.Logs{}).
		Select("logs.result AS result, COUNT(logs.result) AS count").
		Joins("LEFT JOIN ? u ON u.id = logs.user_id", clause.Table{Name: models.User{}.TableName()}).
		Where("u.id = ?", userID).
		Group("logs.result").
		Order("result DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return rows, nil
}
