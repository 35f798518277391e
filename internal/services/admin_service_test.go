package services

import (
	"context"
	"errors"
	"testing"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
)

func newAdminHarness(t *testing.T, remote *fakeRemoteStore, bucket *fakeRemoteBucket) (AdminService, UniverseService, MediaStore) {
	t.Helper()
	gdb := newTestDB(t)
	log := testLogger(t)
	media := newTestMediaStore(t)
	universeRepo := repos.NewUniverseRepo(gdb, log)
	universes := NewUniverseService(gdb, log, universeRepo, repos.NewAssetRepo(gdb, log), media)
	admin := NewAdminService(log, universeRepo, universes, remote, bucket)
	return admin, universes, media
}

func TestIsTestUniverse(t *testing.T) {
	for slug, want := range map[string]bool{
		"test-ocean":  true,
		"savane-test": true,
		"mon-TEST":    true,
		"jungle":      false,
		"":            false,
	} {
		if got := IsTestUniverse(slug); got != want {
			t.Fatalf("IsTestUniverse(%q) = %v, want %v", slug, got, want)
		}
	}
}

func TestAdminService_CleanupRejectsNonTestSlug(t *testing.T) {
	admin, universes, _ := newAdminHarness(t, &fakeRemoteStore{}, &fakeRemoteBucket{})

	if _, err := universes.Create(context.Background(), CreateUniverseInput{Name: "Jungle"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := admin.CleanupTestUniverse(context.Background(), "jungle")
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	if _, err := universes.Get(context.Background(), "jungle"); err != nil {
		t.Fatalf("universe must survive a rejected cleanup: %v", err)
	}
}

func TestAdminService_ListTestUniverses(t *testing.T) {
	admin, universes, _ := newAdminHarness(t, &fakeRemoteStore{}, &fakeRemoteBucket{})

	for _, slug := range []string{"jungle", "test-ocean", "savane-test"} {
		if _, err := universes.Create(context.Background(), CreateUniverseInput{Name: slug, Slug: slug}); err != nil {
			t.Fatalf("create %q: %v", slug, err)
		}
	}

	slugs, err := admin.ListTestUniverses(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slugs) != 2 {
		t.Fatalf("want 2 test universes, got %v", slugs)
	}
	for _, slug := range slugs {
		if slug == "jungle" {
			t.Fatalf("jungle is not a test universe: %v", slugs)
		}
	}
}

func TestAdminService_CleanupRemovesLocalAndRemote(t *testing.T) {
	remote := &fakeRemoteStore{
		connected: true,
		full: map[string]*RemoteUniverse{
			"test-ocean": {Universe: domain.Universe{ID: 7, Slug: "test-ocean", Name: "Test Ocean"}},
		},
	}
	bucket := &fakeRemoteBucket{files: map[string][]byte{
		"test-ocean/00_crabe.png": []byte("img"),
		"test-ocean/fr.mp3":       []byte("mp3"),
		"jungle/00_lion.png":      []byte("img"),
	}}
	admin, universes, media := newAdminHarness(t, remote, bucket)

	if _, err := universes.Create(context.Background(), CreateUniverseInput{Name: "Test Ocean", Slug: "test-ocean"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := universes.CreateAsset(context.Background(), "test-ocean", CreateAssetInput{DisplayName: "crabe"}); err != nil {
		t.Fatalf("create asset: %v", err)
	}
	if _, err := media.Save([]byte("img"), "test-ocean/00_crabe.png"); err != nil {
		t.Fatalf("save media: %v", err)
	}

	res, err := admin.CleanupTestUniverse(context.Background(), "test-ocean")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !res.LocalDeleted || !res.RemoteDeleted || len(res.Errors) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.FilesDeleted != 2 || len(bucket.deleted) != 2 {
		t.Fatalf("want the 2 test-ocean files deleted, got %v", bucket.deleted)
	}
	for _, path := range bucket.deleted {
		if path == "jungle/00_lion.png" {
			t.Fatalf("other universes' files must not be touched: %v", bucket.deleted)
		}
	}
	if !remote.assetsCleared || len(remote.deletedUniverseIDs) != 1 || remote.deletedUniverseIDs[0] != 7 {
		t.Fatalf("remote rows not removed: cleared=%v ids=%v", remote.assetsCleared, remote.deletedUniverseIDs)
	}
	if _, err := universes.Get(context.Background(), "test-ocean"); !IsNotFound(err) {
		t.Fatalf("want not-found locally after cleanup, got %v", err)
	}
	if media.Exists("test-ocean/00_crabe.png") {
		t.Fatalf("local media should be removed")
	}
}

func TestAdminService_CleanupToleratesMissingSides(t *testing.T) {
	remote := &fakeRemoteStore{connected: true}
	admin, universes, _ := newAdminHarness(t, remote, &fakeRemoteBucket{})

	if _, err := universes.Create(context.Background(), CreateUniverseInput{Name: "Test Ocean", Slug: "test-ocean"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Local only: absent remotely is not an error.
	res, err := admin.CleanupTestUniverse(context.Background(), "test-ocean")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !res.LocalDeleted || res.RemoteDeleted || len(res.Errors) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	// Absent on both sides.
	res, err = admin.CleanupTestUniverse(context.Background(), "test-ocean")
	if err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if res.LocalDeleted || res.RemoteDeleted || len(res.Errors) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAdminService_CleanupAllDryRunLeavesEverything(t *testing.T) {
	admin, universes, _ := newAdminHarness(t, &fakeRemoteStore{}, &fakeRemoteBucket{})

	for _, slug := range []string{"test-ocean", "savane-test"} {
		if _, err := universes.Create(context.Background(), CreateUniverseInput{Name: slug, Slug: slug}); err != nil {
			t.Fatalf("create %q: %v", slug, err)
		}
	}

	report, err := admin.CleanupAllTestUniverses(context.Background(), true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !report.DryRun || len(report.Found) != 2 || len(report.Results) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, slug := range report.Found {
		if _, err := universes.Get(context.Background(), slug); err != nil {
			t.Fatalf("dry run must not delete %q: %v", slug, err)
		}
	}
}

func TestAdminService_CleanupAllSweepsOnlyTestUniverses(t *testing.T) {
	admin, universes, _ := newAdminHarness(t, &fakeRemoteStore{}, &fakeRemoteBucket{})

	for _, slug := range []string{"jungle", "test-ocean", "savane-test"} {
		if _, err := universes.Create(context.Background(), CreateUniverseInput{Name: slug, Slug: slug}); err != nil {
			t.Fatalf("create %q: %v", slug, err)
		}
	}

	report, err := admin.CleanupAllTestUniverses(context.Background(), false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 0 || len(report.Results) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, slug := range []string{"test-ocean", "savane-test"} {
		if _, err := universes.Get(context.Background(), slug); !IsNotFound(err) {
			t.Fatalf("%q should be gone, got %v", slug, err)
		}
	}
	if _, err := universes.Get(context.Background(), "jungle"); err != nil {
		t.Fatalf("jungle must survive the sweep: %v", err)
	}
}
