package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements Store on a GORM-managed SQLite database.
type GormStore struct {
	db *gorm.DB
}

type runEntity struct {
	RunID      string `gorm:"primaryKey"`
	Host       string `gorm:"index"`
	Mailbox    string
	After      time.Time
	Before     time.Time
	MaxDelete  int
	Read       int
	Deleted    int
	Errors     int
	Restarts   int
	Pages      int
	Expunged   int
	Committed  bool
	Outcome    string
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
}

func (runEntity) TableName() string {
	return "runs"
}

// OpenSQLite opens the run-history database at path, creating the file and
// its parent directory if needed.
func OpenSQLite(path string) (*GormStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory %s: %w", dir, err)
		}
	}
	// GORM's default logger prints to stdout, which belongs to the audit
	// stream; keep the database quiet.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening history database %s: %w", path, err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an existing database handle and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if err := db.AutoMigrate(&runEntity{}); err != nil {
		return nil, fmt.Errorf("migrating history schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Save writes one finished run.
func (s *GormStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("record cannot be nil")
	}
	if rec.RunID == "" {
		return errors.New("record must have a run ID")
	}
	if result := s.db.WithContext(ctx).Create(recordToEntity(rec)); result.Error != nil {
		return fmt.Errorf("saving run %s: %w", rec.RunID, result.Error)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *GormStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var entities []runEntity
	result := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&entities)
	if result.Error != nil {
		return nil, fmt.Errorf("listing runs: %w", result.Error)
	}
	records := make([]*Record, 0, len(entities))
	for i := range entities {
		records = append(records, entityToRecord(&entities[i]))
	}
	return records, nil
}

// Get returns the record for one run ID.
func (s *GormStore) Get(ctx context.Context, runID string) (*Record, error) {
	if runID == "" {
		return nil, errors.New("run ID cannot be empty")
	}
	var entity runEntity
	result := s.db.WithContext(ctx).First(&entity, "run_id = ?", runID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("getting run %s: %w", runID, result.Error)
	}
	return entityToRecord(&entity), nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrapping history database: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing history database: %w", err)
	}
	return nil
}

func recordToEntity(rec *Record) *runEntity {
	return &runEntity{
		RunID:      rec.RunID,
		Host:       rec.Host,
		Mailbox:    rec.Mailbox,
		After:      rec.After,
		Before:     rec.Before,
		MaxDelete:  rec.MaxDelete,
		Read:       rec.Read,
		Deleted:    rec.Deleted,
		Errors:     rec.Errors,
		Restarts:   rec.Restarts,
		Pages:      rec.Pages,
		Expunged:   rec.Expunged,
		Committed:  rec.Committed,
		Outcome:    rec.Outcome,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
}

func entityToRecord(entity *runEntity) *Record {
	return &Record{
		RunID:      entity.RunID,
		Host:       entity.Host,
		Mailbox:    entity.Mailbox,
		After:      entity.After,
		Before:     entity.Before,
		MaxDelete:  entity.MaxDelete,
		Read:       entity.Read,
		Deleted:    entity.Deleted,
		Errors:     entity.Errors,
		Restarts:   entity.Restarts,
		Pages:      entity.Pages,
		Expunged:   entity.Expunged,
		Committed:  entity.Committed,
		Outcome:    entity.Outcome,
		StartedAt:  entity.StartedAt,
		FinishedAt: entity.FinishedAt,
	}
}

var _ Store = (*GormStore)(nil)
