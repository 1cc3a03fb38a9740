package services

import (
	"context"

	"usercenter/database"
	"usercenter/models"
	"usercenter/repositories"
)

type LogsService interface {
	LogsGroupedByResult(ctx context.Context, userID uint) ([]models.ResultCount, error)
	Record(ctx context.Context, entry *models.Logs) error
}

type logsService struct {
	logs repositories.LogsRepository
}

var _ LogsService = (*logsService)(nil)

func NewLogsService(logs repositories.LogsRepository) LogsService {
	return &logsService{logs: logs}
}

// LogsGroupedByResult returns one {result, count} row per distinct result of
// the user's logs, ordered by result descending.
func (s *logsService) LogsGroupedByResult(ctx context.Context, userID uint) ([]models.ResultCount, error) {
	return s.logs.CountByResult(ctx, userID)
}

// Record stores one audited request. When the caller no longer exists, e.g.
// after deleting its own account or with a stale token, the row is stored
// without a user.
func (s *logsService) Record(ctx context.Context, entry *models.Logs) error {
	err := s.logs.Create(ctx, entry)
	if entry.UserID == nil || !database.IsForeignKeyViolation(err) {
		return err
	}
	entry.ID = 0
	entry.UserID = nil
	return s.logs.Create(ctx, entry)
}
