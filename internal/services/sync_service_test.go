package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
)

// fakeRemoteStore serves canned universes and records what gets pushed.
type fakeRemoteStore struct {
	connected bool
	full      map[string]*RemoteUniverse
	universes []domain.Universe

	upsertErr          error
	nextRemoteID       int64
	upsertedUniverses  []domain.Universe
	upsertedAssets     []domain.Asset
	replacedTrans      []domain.UniverseTranslation
	replacedMusic      []domain.MusicPrompt
	assetsCleared      bool
	deletedUniverseIDs []int64

	ops *[]string
}

func (f *fakeRemoteStore) record(op string) {
	if f.ops != nil {
		*f.ops = append(*f.ops, op)
	}
}

func (f *fakeRemoteStore) IsConnected() bool { return f.connected }

func (f *fakeRemoteStore) GetAllUniverses(ctx context.Context) ([]domain.Universe, error) {
	return f.universes, nil
}

func (f *fakeRemoteStore) GetUniverseBySlug(ctx context.Context, slug string) (*domain.Universe, error) {
	if full, ok := f.full[slug]; ok {
		u := full.Universe
		return &u, nil
	}
	return nil, nil
}

func (f *fakeRemoteStore) GetFullUniverse(ctx context.Context, slug string) (*RemoteUniverse, error) {
	return f.full[slug], nil
}

func (f *fakeRemoteStore) UpsertUniverse(ctx context.Context, u domain.Universe) (*domain.Universe, error) {
	f.record("upsert_universe")
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upsertedUniverses = append(f.upsertedUniverses, u)
	row := u
	row.ID = f.nextRemoteID
	return &row, nil
}

func (f *fakeRemoteStore) DeleteUniverse(ctx context.Context, remoteID int64) error {
	f.deletedUniverseIDs = append(f.deletedUniverseIDs, remoteID)
	return nil
}

func (f *fakeRemoteStore) UpsertPrompts(ctx context.Context, remoteID int64, imagePrompt, videoPrompt string) error {
	return nil
}

func (f *fakeRemoteStore) ReplaceTranslations(ctx context.Context, remoteID int64, translations []domain.UniverseTranslation) error {
	f.replacedTrans = translations
	return nil
}

func (f *fakeRemoteStore) ReplaceMusicPrompts(ctx context.Context, remoteID int64, prompts []domain.MusicPrompt) error {
	f.replacedMusic = prompts
	return nil
}

func (f *fakeRemoteStore) DeleteAllAssets(ctx context.Context, remoteID int64) error {
	f.assetsCleared = true
	return nil
}

func (f *fakeRemoteStore) UpsertAsset(ctx context.Context, a domain.Asset) (*domain.Asset, error) {
	f.upsertedAssets = append(f.upsertedAssets, a)
	row := a
	return &row, nil
}

func (f *fakeRemoteStore) UpsertAssetPrompts(ctx context.Context, assetID string, p domain.AssetPrompts) error {
	return nil
}

func (f *fakeRemoteStore) ReplaceAssetTranslations(ctx context.Context, assetID string, translations []domain.AssetTranslation) error {
	return nil
}

// fakeRemoteBucket holds remote objects in a map.
type fakeRemoteBucket struct {
	files   map[string][]byte
	uploads map[string][]byte
	deleted []string

	ops *[]string
}

func (f *fakeRemoteBucket) record(op string) {
	if f.ops != nil {
		*f.ops = append(*f.ops, op)
	}
}

func (f *fakeRemoteBucket) Upload(ctx context.Context, content []byte, path, contentType string) error {
	f.record("upload:" + path)
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[path] = content
	return nil
}

func (f *fakeRemoteBucket) Download(ctx context.Context, path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("no such key %s", path)
	}
	return content, nil
}

func (f *fakeRemoteBucket) Delete(ctx context.Context, paths []string) error {
	f.deleted = append(f.deleted, paths...)
	return nil
}

func (f *fakeRemoteBucket) List(ctx context.Context, prefix string) ([]BucketObject, error) {
	var out []BucketObject
	for name, content := range f.files {
		if strings.HasPrefix(name, prefix) {
			out = append(out, BucketObject{Name: name, Size: int64(len(content))})
		}
	}
	return out, nil
}

func newSyncHarness(t *testing.T, remote *fakeRemoteStore, bucket RemoteBucket) (SyncService, *gorm.DB, MediaStore) {
	t.Helper()
	gdb := newTestDB(t)
	log := testLogger(t)
	media := newTestMediaStore(t)
	svc := NewSyncService(
		gdb, log,
		repos.NewUniverseRepo(gdb, log),
		repos.NewAssetRepo(gdb, log),
		media, remote, bucket,
	)
	return svc, gdb, media
}

func remoteJungle() *RemoteUniverse {
	return &RemoteUniverse{
		Universe: domain.Universe{ID: 42, Name: "Jungle", Slug: "jungle", IsPublic: true},
		Prompts:  &domain.UniversePrompts{DefaultImagePrompt: "a {concept} in the jungle"},
		Translations: []domain.UniverseTranslation{
			{Language: "fr", Name: "Jungle"},
			{Language: "en", Name: "Jungle"},
		},
		MusicPrompts: []domain.MusicPrompt{
			{Language: "fr", Prompt: "upbeat jungle drums"},
		},
		Assets: []domain.Asset{
			{
				ID: uuid.NewString(), SortOrder: 0, ImageName: "00_lion.png", DisplayName: "lion",
				Prompts:      &domain.AssetPrompts{CustomImagePrompt: "a majestic lion", GenerationCount: 2},
				Translations: []domain.AssetTranslation{{Language: "en", DisplayName: "lion"}},
			},
			{ID: uuid.NewString(), SortOrder: 1, ImageName: "01_monkey.png", DisplayName: "singe"},
			{ID: uuid.NewString(), SortOrder: 2, ImageName: "02_zebra.png", DisplayName: "zèbre"},
		},
	}
}

func TestSyncService_PullCreatesLocalCopy(t *testing.T) {
	remote := &fakeRemoteStore{
		connected: true,
		full:      map[string]*RemoteUniverse{"jungle": remoteJungle()},
	}
	bucket := &fakeRemoteBucket{files: map[string][]byte{
		"jungle/00_lion.png":             []byte("lion"),
		"jungle/01_monkey.png":           []byte("monkey"),
		"jungle/.emptyFolderPlaceholder": []byte(""),
	}}
	svc, gdb, media := newSyncHarness(t, remote, bucket)

	result := svc.Pull(context.Background(), "jungle", false)
	if !result.Success {
		t.Fatalf("pull failed: %v", result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.FilesTransferred != 2 {
		t.Fatalf("FilesTransferred = %d, want 2 (placeholder skipped)", result.FilesTransferred)
	}
	// 1 universe + 1 prompts + 2 translations + 1 music prompt + 3 assets + 2 files.
	if result.SyncedItems != 10 {
		t.Fatalf("SyncedItems = %d, want 10", result.SyncedItems)
	}

	repo := repos.NewUniverseRepo(gdb, testLogger(t))
	local, err := repo.GetBySlug(dbctx.Context{Ctx: context.Background()}, "jungle", true)
	if err != nil || local == nil {
		t.Fatalf("local universe missing: %v", err)
	}
	if local.SupabaseID == nil || *local.SupabaseID != 42 {
		t.Fatalf("SupabaseID = %v, want 42", local.SupabaseID)
	}
	if local.LastSyncedAt == nil {
		t.Fatalf("LastSyncedAt not recorded")
	}
	if len(local.Assets) != 3 || local.Assets[0].ImageName != "00_lion.png" {
		t.Fatalf("unexpected local assets %+v", local.Assets)
	}
	if local.Assets[0].Prompts == nil || local.Assets[0].Prompts.CustomImagePrompt != "a majestic lion" {
		t.Fatalf("asset prompts not pulled")
	}
	if len(local.Translations) != 2 || len(local.MusicPrompts) != 1 {
		t.Fatalf("owned rows not pulled: %d translations, %d music prompts", len(local.Translations), len(local.MusicPrompts))
	}
	if !media.Exists("jungle/00_lion.png") || !media.Exists("jungle/01_monkey.png") {
		t.Fatalf("media files not downloaded")
	}
	if media.Exists("jungle/.emptyFolderPlaceholder") {
		t.Fatalf("placeholder should not be downloaded")
	}
}

func TestSyncService_PullReplacesLocalRows(t *testing.T) {
	remote := &fakeRemoteStore{
		connected: true,
		full:      map[string]*RemoteUniverse{"jungle": remoteJungle()},
	}
	svc, gdb, _ := newSyncHarness(t, remote, &fakeRemoteBucket{})

	log := testLogger(t)
	universeRepo := repos.NewUniverseRepo(gdb, log)
	assetRepo := repos.NewAssetRepo(gdb, log)
	dbc := dbctx.Context{Ctx: context.Background()}
	stale := seedLocalUniverse(t, universeRepo, "jungle")
	staleAsset := &domain.Asset{ID: uuid.NewString(), UniversID: stale.ID, SortOrder: 0, ImageName: "00_ghost.png", DisplayName: "ghost"}
	if err := assetRepo.Create(dbc, staleAsset); err != nil {
		t.Fatalf("seed stale asset: %v", err)
	}

	for i := 0; i < 2; i++ {
		result := svc.Pull(context.Background(), "jungle", true)
		if !result.Success {
			t.Fatalf("pull %d failed: %v", i, result.Errors)
		}
	}

	local, err := universeRepo.GetBySlug(dbc, "jungle", true)
	if err != nil || local == nil {
		t.Fatalf("local universe missing: %v", err)
	}
	if local.Name != "Jungle" {
		t.Fatalf("universe row not overwritten, name = %q", local.Name)
	}
	if len(local.Assets) != 3 {
		t.Fatalf("asset set not replaced, got %d assets", len(local.Assets))
	}
	for _, a := range local.Assets {
		if a.ImageName == "00_ghost.png" {
			t.Fatalf("stale asset survived the pull")
		}
	}
	if len(local.Translations) != 2 {
		t.Fatalf("translations duplicated across pulls: %d", len(local.Translations))
	}
}

func TestSyncService_PullCollectsPerAssetErrors(t *testing.T) {
	full := remoteJungle()
	// Duplicate id makes the second insert fail while the rest proceeds.
	full.Assets[1].ID = full.Assets[0].ID
	remote := &fakeRemoteStore{connected: true, full: map[string]*RemoteUniverse{"jungle": full}}
	svc, gdb, _ := newSyncHarness(t, remote, &fakeRemoteBucket{})

	result := svc.Pull(context.Background(), "jungle", false)
	if !result.Success {
		t.Fatalf("pull should succeed despite asset errors: %v", result.Errors)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("want 1 collected error, got %v", result.Errors)
	}

	var count int64
	if err := gdb.Model(&domain.Asset{}).Count(&count).Error; err != nil {
		t.Fatalf("count assets: %v", err)
	}
	if count != 2 {
		t.Fatalf("want 2 assets after duplicate skip, got %d", count)
	}
}

func TestSyncService_PullUnknownSlug(t *testing.T) {
	remote := &fakeRemoteStore{connected: true, full: map[string]*RemoteUniverse{}}
	svc, _, _ := newSyncHarness(t, remote, &fakeRemoteBucket{})

	result := svc.Pull(context.Background(), "nowhere", false)
	if result.Success || !result.NotFound {
		t.Fatalf("want not-found result, got %+v", result)
	}
}

func TestSyncService_PullWhenDisconnected(t *testing.T) {
	svc, _, _ := newSyncHarness(t, &fakeRemoteStore{connected: false}, nil)

	result := svc.Pull(context.Background(), "jungle", false)
	if result.Success || result.NotFound {
		t.Fatalf("want plain failure, got %+v", result)
	}
	if result.Message != "Supabase not connected" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if svc.RemoteConnected() {
		t.Fatalf("RemoteConnected should be false")
	}
}

func TestSyncService_PushUploadsMediaBeforeMetadata(t *testing.T) {
	var ops []string
	remote := &fakeRemoteStore{connected: true, nextRemoteID: 99, ops: &ops}
	bucket := &fakeRemoteBucket{ops: &ops}
	svc, gdb, media := newSyncHarness(t, remote, bucket)

	log := testLogger(t)
	universeRepo := repos.NewUniverseRepo(gdb, log)
	assetRepo := repos.NewAssetRepo(gdb, log)
	dbc := dbctx.Context{Ctx: context.Background()}
	u := seedLocalUniverse(t, universeRepo, "jungle")
	if err := universeRepo.UpsertPrompts(dbc, u.ID, "a {concept}", ""); err != nil {
		t.Fatalf("seed prompts: %v", err)
	}
	if err := universeRepo.ReplaceTranslations(dbc, u.ID, []domain.UniverseTranslation{{Language: "en", Name: "Jungle"}}); err != nil {
		t.Fatalf("seed translations: %v", err)
	}
	for i, name := range []string{"00_lion.png", "01_monkey.png"} {
		asset := &domain.Asset{ID: uuid.NewString(), UniversID: u.ID, SortOrder: i, ImageName: name, DisplayName: name}
		if err := assetRepo.Create(dbc, asset); err != nil {
			t.Fatalf("seed asset: %v", err)
		}
		if _, err := media.Save([]byte("img"), "jungle/"+name); err != nil {
			t.Fatalf("seed media: %v", err)
		}
	}

	result := svc.Push(context.Background(), "jungle", false)
	if !result.Success {
		t.Fatalf("push failed: %v", result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.FilesTransferred != 2 {
		t.Fatalf("FilesTransferred = %d, want 2", result.FilesTransferred)
	}
	// 2 files + 1 universe + 1 prompts + 1 translation + 2 assets.
	if result.SyncedItems != 7 {
		t.Fatalf("SyncedItems = %d, want 7", result.SyncedItems)
	}

	upsertAt := -1
	lastUploadAt := -1
	for i, op := range ops {
		switch {
		case op == "upsert_universe":
			upsertAt = i
		case strings.HasPrefix(op, "upload:"):
			lastUploadAt = i
		}
	}
	if upsertAt == -1 || lastUploadAt == -1 || lastUploadAt > upsertAt {
		t.Fatalf("media must upload before metadata, ops = %v", ops)
	}

	if !remote.assetsCleared {
		t.Fatalf("remote asset set should be cleared before re-push")
	}
	if len(remote.upsertedAssets) != 2 || remote.upsertedAssets[0].UniversID != 99 {
		t.Fatalf("assets not pushed under remote id: %+v", remote.upsertedAssets)
	}

	local, err := universeRepo.GetBySlug(dbc, "jungle", false)
	if err != nil || local == nil {
		t.Fatalf("reload local universe: %v", err)
	}
	if local.SupabaseID == nil || *local.SupabaseID != 99 || local.LastSyncedAt == nil {
		t.Fatalf("sync metadata not recorded: %+v", local)
	}
}

func TestSyncService_PushUnknownSlug(t *testing.T) {
	svc, _, _ := newSyncHarness(t, &fakeRemoteStore{connected: true}, &fakeRemoteBucket{})

	result := svc.Push(context.Background(), "nowhere", false)
	if result.Success || !result.NotFound {
		t.Fatalf("want not-found result, got %+v", result)
	}
}

func TestSyncService_PushRemoteFailureAborts(t *testing.T) {
	remote := &fakeRemoteStore{connected: true, upsertErr: fmt.Errorf("connection reset")}
	svc, gdb, _ := newSyncHarness(t, remote, &fakeRemoteBucket{})

	universeRepo := repos.NewUniverseRepo(gdb, testLogger(t))
	seedLocalUniverse(t, universeRepo, "jungle")

	result := svc.Push(context.Background(), "jungle", false)
	if result.Success {
		t.Fatalf("push should fail when the universe upsert fails")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[len(result.Errors)-1], "connection reset") {
		t.Fatalf("upsert error not reported: %v", result.Errors)
	}
	if len(remote.upsertedAssets) != 0 {
		t.Fatalf("no assets should be pushed after a failed upsert")
	}

	local, err := universeRepo.GetBySlug(dbctx.Context{Ctx: context.Background()}, "jungle", false)
	if err != nil || local == nil {
		t.Fatalf("reload local universe: %v", err)
	}
	if local.SupabaseID != nil {
		t.Fatalf("sync metadata must not be recorded on failure")
	}
}

func TestSyncService_PullAllAggregates(t *testing.T) {
	jungle := remoteJungle()
	ocean := &RemoteUniverse{
		Universe: domain.Universe{ID: 43, Name: "Ocean", Slug: "ocean"},
		Assets: []domain.Asset{
			{ID: uuid.NewString(), SortOrder: 0, ImageName: "00_whale.png", DisplayName: "baleine"},
		},
	}
	remote := &fakeRemoteStore{
		connected: true,
		full:      map[string]*RemoteUniverse{"jungle": jungle, "ocean": ocean},
		universes: []domain.Universe{jungle.Universe, ocean.Universe},
	}
	bucket := &fakeRemoteBucket{files: map[string][]byte{
		"jungle/00_lion.png": []byte("lion"),
		"ocean/00_whale.png": []byte("whale"),
	}}
	svc, _, media := newSyncHarness(t, remote, bucket)

	result := svc.PullAll(context.Background())
	if !result.Success {
		t.Fatalf("init sync failed: %s", result.Message)
	}
	if result.UniversesSynced != 2 {
		t.Fatalf("UniversesSynced = %d, want 2", result.UniversesSynced)
	}
	if result.FilesDownloaded != 2 {
		t.Fatalf("FilesDownloaded = %d, want 2", result.FilesDownloaded)
	}
	// jungle contributes 8 rows, ocean 2.
	if result.AssetsSynced != 10 {
		t.Fatalf("AssetsSynced = %d, want 10", result.AssetsSynced)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if !media.Exists("jungle/00_lion.png") || !media.Exists("ocean/00_whale.png") {
		t.Fatalf("media not mirrored for all universes")
	}
}
