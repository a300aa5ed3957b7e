// Package journal keeps a local operational record of publish submissions.
// It lets an operator recover the entity id of a partially-published title
// and re-enter edit mode; the workflow never consults it for correctness.
package journal

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/safliix/console-backend/pkg/types"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Submission is one confirmed submission, successful or not.
type Submission struct {
	ID          string `gorm:"primaryKey"`
	EntityKind  string `gorm:"index:idx_entity"`
	EntityID    string `gorm:"index:idx_entity"`
	Status      string
	Stage       string
	FailingSlot string
	Message     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store wraps the sqlite-backed journal.
type Store struct {
	conn *gorm.DB
}

// Open boots the journal database and migrates its single table.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	if err := conn.AutoMigrate(&Submission{}); err != nil {
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Record appends a submission row. Missing ids are assigned.
func (s *Store) Record(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return fmt.Errorf("submission required")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := s.conn.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("recording submission: %w", err)
	}
	return nil
}

// LatestForEntity returns the most recent submission for an entity, or nil.
func (s *Store) LatestForEntity(ctx context.Context, kind types.EntityKind, entityID string) (*Submission, error) {
	var sub Submission
	err := s.conn.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", string(kind), entityID).
		Order("created_at DESC").
		First(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading submission: %w", err)
	}
	return &sub, nil
}

// RecentFailures lists the newest failed submissions, newest first.
func (s *Store) RecentFailures(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	var subs []Submission
	err := s.conn.WithContext(ctx).
		Where("status = ?", StatusFailed).
		Order("created_at DESC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("listing failures: %w", err)
	}
	return subs, nil
}

// Ping verifies the journal database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
