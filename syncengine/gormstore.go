package syncengine

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
)

// GormSharedStore talks to the shared MySQL store. Every write is an
// upsert so retries and queue redrains are idempotent.
type GormSharedStore struct {
	DB *gorm.DB
}

func NewGormSharedStore(db *gorm.DB) *GormSharedStore {
	return &GormSharedStore{DB: db}
}

// db resolves the handle lazily. The server starts listening before the
// remote store is connected, so a nil DB falls back to the global that
// ConnectDatabaseWithRetry fills in.
func (s *GormSharedStore) db() *gorm.DB {
	if s.DB != nil {
		return s.DB
	}
	return config.GetDB()
}

func (s *GormSharedStore) UpsertSale(ctx context.Context, row models.SharedSaleRow) error {
	db := s.db()
	if db == nil {
		return errors.New("shared store not connected")
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&row).Error
}

func (s *GormSharedStore) UpsertVendorStat(ctx context.Context, row models.SharedVendorStatRow) error {
	db := s.db()
	if db == nil {
		return errors.New("shared store not connected")
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vendor_id"}, {Name: "terminal_id"}},
			UpdateAll: true,
		}).Create(&row).Error
}

func (s *GormSharedStore) UpsertSession(ctx context.Context, session models.Session) error {
	db := s.db()
	if db == nil {
		return errors.New("shared store not connected")
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&session).Error
}

// RecentSales returns the newest rows first, bounded. The sweep never
// scans full history.
func (s *GormSharedStore) RecentSales(ctx context.Context, limit int) ([]models.SharedSaleRow, error) {
	db := s.db()
	if db == nil {
		return nil, errors.New("shared store not connected")
	}
	var rows []models.SharedSaleRow
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Ping issues the keepalive probe's cheap read. Idempotent, side-effect
// free, no retries.
func (s *GormSharedStore) Ping(ctx context.Context) error {
	db := s.db()
	if db == nil {
		return errors.New("shared store not connected")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
