package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/envutil"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// LocalDB owns the SQLite mirror of the remote schema.
type LocalDB struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLocalDB(log *logger.Logger) (*LocalDB, error) {
	serviceLog := log.With("service", "LocalDB")

	dbPath := envutil.String("LOCAL_DB_PATH", "storage/db/local.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create local db dir: %w", err)
	}

	serviceLog.Info("Opening local SQLite database", "path", dbPath)
	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := gdb.Exec(`PRAGMA foreign_keys = ON`).Error; err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &LocalDB{db: gdb, log: serviceLog}, nil
}

func (s *LocalDB) AutoMigrateAll() error {
	s.log.Info("Auto migrating local tables...")
	err := s.db.AutoMigrate(
		&domain.Universe{},
		&domain.UniversePrompts{},
		&domain.UniverseTranslation{},
		&domain.Asset{},
		&domain.AssetPrompts{},
		&domain.AssetTranslation{},
		&domain.MusicPrompt{},
		&domain.Job{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for local tables", "error", err)
		return err
	}
	return nil
}

func (s *LocalDB) DB() *gorm.DB {
	return s.db
}
