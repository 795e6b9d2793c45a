package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sqlEntry is one row of the cache_entries table.
type sqlEntry struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:255"`
	Value     string    `gorm:"column:value;type:text"`
	ExpiresAt time.Time `gorm:"column:expires_at;index"`
}

func (sqlEntry) TableName() string { return "cache_entries" }

// SQLCache implements Service on a relational table through gorm.
// It lets the durable layer share the ledger database when no Redis is deployed.
type SQLCache struct {
	db     *gorm.DB
	prefix string
}

// NewSQLCache migrates the cache table and returns the cache.
func NewSQLCache(db *gorm.DB, prefix string) (*SQLCache, error) {
	if err := db.AutoMigrate(&sqlEntry{}); err != nil {
		return nil, fmt.Errorf("migrate cache_entries: %w", err)
	}
	return &SQLCache{db: db, prefix: prefix}, nil
}

func (c *SQLCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = 7 * 24 * time.Hour
	}
	row := sqlEntry{Key: c.wrapKey(key), Value: string(data), ExpiresAt: time.Now().Add(expiration).UTC()}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&row).Error
}

func (c *SQLCache) Get(ctx context.Context, key string, dest interface{}) error {
	var row sqlEntry
	err := c.db.WithContext(ctx).Where("cache_key = ?", c.wrapKey(key)).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCacheMiss
		}
		return err
	}
	if time.Now().After(row.ExpiresAt) {
		_ = c.db.WithContext(ctx).Delete(&sqlEntry{}, "cache_key = ?", row.Key).Error
		return ErrCacheMiss
	}
	if strPtr, ok := dest.(*string); ok {
		*strPtr = row.Value
		return nil
	}
	return json.Unmarshal([]byte(row.Value), dest)
}

func (c *SQLCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	wrapped := make([]string, len(keys))
	for i, k := range keys {
		wrapped[i] = c.wrapKey(k)
	}
	return c.db.WithContext(ctx).Delete(&sqlEntry{}, "cache_key IN ?", wrapped).Error
}

func (c *SQLCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	wrapped := make([]string, len(keys))
	for i, k := range keys {
		wrapped[i] = c.wrapKey(k)
	}
	var n int64
	err := c.db.WithContext(ctx).Model(&sqlEntry{}).
		Where("cache_key IN ? AND expires_at > ?", wrapped, time.Now().UTC()).
		Count(&n).Error
	return n > 0, err
}

func (c *SQLCache) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *SQLCache) wrapKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}
