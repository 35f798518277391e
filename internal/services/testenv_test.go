package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
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

func newTestMediaStore(t *testing.T) MediaStore {
	t.Helper()
	t.Setenv("MEDIA_ROOT", t.TempDir())
	t.Setenv("SUPABASE_BUCKET_NAME", "univers")
	media, err := NewMediaStore(testLogger(t))
	if err != nil {
		t.Fatalf("init media store: %v", err)
	}
	return media
}

func seedLocalUniverse(t *testing.T, repo repos.UniverseRepo, slug string) *domain.Universe {
	t.Helper()
	u := &domain.Universe{Name: slug, Slug: slug}
	if err := repo.Create(dbctx.Context{Ctx: context.Background()}, u); err != nil {
		t.Fatalf("seed universe %q: %v", slug, err)
	}
	return u
}

// waitForTerminal polls the job until it reaches a terminal status.
func waitForTerminal(t *testing.T, jobs JobService, jobID string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job != nil && domain.TerminalJobStatus(job.Status) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", jobID)
	return nil
}
