package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const migrateLockID int64 = 84218421

// Content kinds stored in the archive.
const (
	ContentKindBark       = "bark"
	ContentKindGraffiti   = "graffiti"
	ContentKindDeathQuip  = "death_quip"
	ContentKindCommentary = "commentary"
)

// Content sources stored in the archive.
const (
	ContentSourceGenerated = "generated"
	ContentSourceFallback  = "fallback"
)

// ContentRecord is one line of flavor text served to a player, kept for
// moderation review and the nightly export.
type ContentRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Kind      string `gorm:"size:32;index:idx_content_kind_created"`
	Category  string `gorm:"size:32"`
	Text      string `gorm:"type:text"`
	Source    string `gorm:"size:16"`
	PlayerID  string `gorm:"size:64;index"`
	Metadata  datatypes.JSON
	CreatedAt time.Time `gorm:"index:idx_content_kind_created"`
}

// ArchiveStore persists served content in Postgres via GORM.
type ArchiveStore struct {
	db *gorm.DB
}

// NewArchiveStore opens the DB and runs auto-migrations.
func NewArchiveStore(dsn string) (*ArchiveStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&ContentRecord{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &ArchiveStore{db: db}, nil
}

// withMigrationLock serializes migrations across instances with a
// Postgres advisory lock.
func withMigrationLock(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		return fn(tx)
	})
}

// Record stores a single served line.
func (s *ArchiveStore) Record(ctx context.Context, rec *ContentRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record content: %w", err)
	}
	return nil
}

// RecordBatch stores a batch of served lines in one insert.
func (s *ArchiveStore) RecordBatch(ctx context.Context, recs []ContentRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(recs, 100).Error; err != nil {
		return fmt.Errorf("record content batch: %w", err)
	}
	return nil
}

// ListSince returns records created at or after the given time, oldest
// first, capped at limit.
func (s *ArchiveStore) ListSince(ctx context.Context, since time.Time, limit int) ([]ContentRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	var recs []ContentRecord
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at asc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	return recs, nil
}

// CountBySource returns the number of stored records per source, used
// by the status endpoint to expose the fallback ratio.
func (s *ArchiveStore) CountBySource(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Source string
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&ContentRecord{}).
		Select("source, count(*) as n").
		Group("source").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Source] = r.N
	}
	return counts, nil
}
