package repos

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// newTestDB opens a private in-memory database per test. The pool is
// pinned to one connection so PRAGMA foreign_keys holds for every query.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	err = gdb.AutoMigrate(
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
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func testCtx() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}
