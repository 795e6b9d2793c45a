package repository

import (
	"context"
	"fmt"

	"MarketBrain/internal/domain/models"
	domrepo "MarketBrain/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerStore persists predictions and pattern events in two tables.
type GormLedgerStore struct {
	db *gorm.DB
}

// NewGormLedgerStore migrates the ledger tables.
func NewGormLedgerStore(db *gorm.DB) (*GormLedgerStore, error) {
	if err := db.AutoMigrate(&models.Prediction{}, &models.PatternEvent{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &GormLedgerStore{db: db}, nil
}

func (s *GormLedgerStore) Load(ctx context.Context) ([]models.Prediction, []models.PatternEvent, error) {
	var preds []models.Prediction
	if err := s.db.WithContext(ctx).Order("issued_at ASC").Find(&preds).Error; err != nil {
		return nil, nil, fmt.Errorf("load predictions: %w", err)
	}
	var pats []models.PatternEvent
	if err := s.db.WithContext(ctx).Order("detected_at ASC").Find(&pats).Error; err != nil {
		return nil, nil, fmt.Errorf("load patterns: %w", err)
	}
	return preds, pats, nil
}

func (s *GormLedgerStore) SavePredictions(ctx context.Context, rows []models.Prediction) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

func (s *GormLedgerStore) SavePatterns(ctx context.Context, rows []models.PatternEvent) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

func (s *GormLedgerStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close is a no-op; the *gorm.DB is shared and closed by its owner.
func (s *GormLedgerStore) Close() error { return nil }

var _ domrepo.LedgerStore = (*GormLedgerStore)(nil)
