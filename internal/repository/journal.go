package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"MarketBrain/internal/domain/models"
	domrepo "MarketBrain/internal/domain/repository"
	"MarketBrain/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormJournal is the durable activity log. Appends are queued and written by
// a single background goroutine so logging never blocks a cycle.
type GormJournal struct {
	db      *gorm.DB
	queue   chan models.LogEntry
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

func NewGormJournal(db *gorm.DB, buffer int) (*GormJournal, error) {
	if err := db.AutoMigrate(&models.LogEntry{}); err != nil {
		return nil, fmt.Errorf("migrate activity_logs: %w", err)
	}
	if buffer <= 0 {
		buffer = 256
	}
	j := &GormJournal{db: db, queue: make(chan models.LogEntry, buffer), done: make(chan struct{})}
	go j.writer()
	return j, nil
}

func (j *GormJournal) writer() {
	defer close(j.done)
	for e := range j.queue {
		// a failed insert cannot be logged through the journal itself
		_ = j.db.Create(&e).Error
	}
}

// Append queues an entry. Entries are dropped when the queue is full.
func (j *GormJournal) Append(e models.LogEntry) {
	defer func() {
		// Append after Close
		if recover() != nil {
			j.dropped.Add(1)
		}
	}()
	select {
	case j.queue <- e:
	default:
		j.dropped.Add(1)
	}
}

func (j *GormJournal) Dropped() int64 { return j.dropped.Load() }

// GetLogs returns the newest entries first, optionally filtered by level.
func (j *GormJournal) GetLogs(ctx context.Context, limit int, level string) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := j.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if level != "" {
		q = q.Where("level = ?", level)
	}
	var out []models.LogEntry
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("get logs: %w", err)
	}
	return out, nil
}

func (j *GormJournal) GetStats(ctx context.Context) (models.LogStats, error) {
	var rows []struct {
		Level string
		Count int64
	}
	err := j.db.WithContext(ctx).Model(&models.LogEntry{}).
		Select("level, COUNT(*) AS count").
		Group("level").
		Scan(&rows).Error
	if err != nil {
		return models.LogStats{}, fmt.Errorf("get log stats: %w", err)
	}
	var st models.LogStats
	for _, r := range rows {
		st.TotalLogs += r.Count
		switch r.Level {
		case models.LevelError:
			st.ErrorCount = r.Count
		case models.LevelWarning:
			st.WarningCount = r.Count
		}
	}
	return st, nil
}

// Close drains the queue and stops the writer.
func (j *GormJournal) Close() error {
	j.once.Do(func() {
		close(j.queue)
		<-j.done
	})
	return nil
}

var _ domrepo.Journal = (*GormJournal)(nil)

// JournalSink forwards component-tagged log lines into a journal.
func JournalSink(j domrepo.Journal) logger.Sink {
	return logger.SinkFunc(func(e logger.Entry) {
		component := e.Component()
		if component == "" {
			return
		}
		meta := make(map[string]interface{}, len(e.Fields))
		for k, v := range e.Fields {
			if k != logger.ComponentKey {
				meta[k] = v
			}
		}
		entry := models.LogEntry{
			Timestamp: e.Time.UTC(),
			Level:     journalLevel(e.Level),
			Category:  component,
			Message:   e.Message,
		}
		if len(meta) > 0 {
			if b, err := json.Marshal(meta); err == nil {
				entry.Metadata = datatypes.JSON(b)
			}
		}
		j.Append(entry)
	})
}

func journalLevel(level string) string {
	switch level {
	case "error":
		return models.LevelError
	case "warn":
		return models.LevelWarning
	default:
		return models.LevelInfo
	}
}
