package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/ctfradar/radar/internal/storage/models"
)

// gormFillStorage is the gorm-backed write path. It exists for
// deployments that already hold a gorm connection for the API side.
type gormFillStorage struct {
	db *gorm.DB
}

func NewGormFillStorage(db *gorm.DB) FillStorage {
	return &gormFillStorage{db: db}
}

func (s *gormFillStorage) CreateFills(ctx context.Context, fills []*models.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(fills).Error
}

func (s *gormFillStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
