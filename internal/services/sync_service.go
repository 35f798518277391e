package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// SyncResult reports one pull or push. Success tracks the universe row
// itself; per-asset and per-file failures land in Errors without failing
// the whole operation.
type SyncResult struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	SyncedItems      int      `json:"synced_items"`
	FilesTransferred int      `json:"files_transferred"`
	Errors           []string `json:"errors"`
	NotFound         bool     `json:"-"`
}

type SyncInitResult struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	UniversesSynced int      `json:"universes_synced"`
	AssetsSynced    int      `json:"assets_synced"`
	FilesDownloaded int      `json:"files_downloaded"`
	Errors          []string `json:"errors,omitempty"`
}

// SyncService reconciles the local store and media mirror against the
// remote database and bucket. The conflict policy is last write wins by
// direction of call: whichever side initiates fully overwrites the
// other's data for that universe. No timestamp comparison, no merge.
type SyncService interface {
	Pull(ctx context.Context, slug string, force bool) SyncResult
	Push(ctx context.Context, slug string, force bool) SyncResult
	PullAll(ctx context.Context) SyncInitResult
	RemoteConnected() bool
}

type syncService struct {
	db           *gorm.DB
	log          *logger.Logger
	universeRepo repos.UniverseRepo
	assetRepo    repos.AssetRepo
	media        MediaStore
	remote       RemoteStore
	bucket       RemoteBucket
}

func NewSyncService(
	db *gorm.DB,
	baseLog *logger.Logger,
	universeRepo repos.UniverseRepo,
	assetRepo repos.AssetRepo,
	media MediaStore,
	remote RemoteStore,
	bucket RemoteBucket,
) SyncService {
	return &syncService{
		db:           db,
		log:          baseLog.With("service", "SyncService"),
		universeRepo: universeRepo,
		assetRepo:    assetRepo,
		media:        media,
		remote:       remote,
		bucket:       bucket,
	}
}

func (s *syncService) RemoteConnected() bool {
	return s.remote != nil && s.remote.IsConnected()
}

func notConnectedResult() SyncResult {
	return SyncResult{
		Success: false,
		Message: "Supabase not connected",
		Errors:  []string{"SUPABASE_DB_DSN not configured"},
	}
}

// Pull fetches the full remote representation of one universe and
// replaces the local copy wholesale: the universe row is created or
// overwritten, and assets, translations and music prompts are
// delete-then-insert. Row writes happen in one local transaction; a
// universe-row failure rolls everything back.
func (s *syncService) Pull(ctx context.Context, slug string, force bool) SyncResult {
	if !s.RemoteConnected() {
		return notConnectedResult()
	}

	full, err := s.remote.GetFullUniverse(ctx, slug)
	if err != nil {
		return SyncResult{
			Success: false,
			Message: fmt.Sprintf("Failed to pull '%s'", slug),
			Errors:  []string{err.Error()},
		}
	}
	if full == nil {
		return SyncResult{
			Success:  false,
			Message:  fmt.Sprintf("Universe '%s' not found in Supabase", slug),
			Errors:   []string{fmt.Sprintf("no universe with slug '%s' exists in Supabase", slug)},
			NotFound: true,
		}
	}

	var (
		syncedItems int
		errs        []string
	)
	now := time.Now().UTC()
	remoteID := full.Universe.ID

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		local, err := s.universeRepo.GetBySlug(dbc, slug, false)
		if err != nil {
			return fmt.Errorf("load local universe: %w", err)
		}
		if local == nil {
			local = &domain.Universe{
				Name:            full.Universe.Name,
				Slug:            full.Universe.Slug,
				ThumbnailURL:    full.Universe.ThumbnailURL,
				IsPublic:        full.Universe.IsPublic,
				OwnerID:         full.Universe.OwnerID,
				BackgroundMusic: full.Universe.BackgroundMusic,
				BackgroundColor: full.Universe.BackgroundColor,
				SupabaseID:      &remoteID,
				LastSyncedAt:    &now,
			}
			if err := s.universeRepo.Create(dbc, local); err != nil {
				return fmt.Errorf("create local universe: %w", err)
			}
		} else {
			err := s.universeRepo.UpdateFields(dbc, local.ID, map[string]interface{}{
				"name":             full.Universe.Name,
				"thumbnail_url":    full.Universe.ThumbnailURL,
				"is_public":        full.Universe.IsPublic,
				"background_music": full.Universe.BackgroundMusic,
				"background_color": full.Universe.BackgroundColor,
				"supabase_id":      remoteID,
				"last_synced_at":   now,
			})
			if err != nil {
				return fmt.Errorf("update local universe: %w", err)
			}
		}
		syncedItems++

		if full.Prompts != nil {
			if err := s.universeRepo.UpsertPrompts(dbc, local.ID, full.Prompts.DefaultImagePrompt, full.Prompts.DefaultVideoPrompt); err != nil {
				return fmt.Errorf("sync prompts: %w", err)
			}
			syncedItems++
		}

		translations := make([]domain.UniverseTranslation, len(full.Translations))
		copy(translations, full.Translations)
		if err := s.universeRepo.ReplaceTranslations(dbc, local.ID, translations); err != nil {
			return fmt.Errorf("sync translations: %w", err)
		}
		syncedItems += len(translations)

		musicPrompts := make([]domain.MusicPrompt, len(full.MusicPrompts))
		copy(musicPrompts, full.MusicPrompts)
		if err := s.universeRepo.ReplaceMusicPrompts(dbc, local.ID, musicPrompts); err != nil {
			return fmt.Errorf("sync music prompts: %w", err)
		}
		syncedItems += len(musicPrompts)

		// Replace the whole asset set. Per-asset failures are collected,
		// not fatal.
		if err := s.assetRepo.DeleteAll(dbc, local.ID); err != nil {
			return fmt.Errorf("clear local assets: %w", err)
		}
		for i := range full.Assets {
			remoteAsset := full.Assets[i]
			asset := &domain.Asset{
				ID:          remoteAsset.ID,
				UniversID:   local.ID,
				SortOrder:   remoteAsset.SortOrder,
				ImageName:   remoteAsset.ImageName,
				DisplayName: remoteAsset.DisplayName,
			}
			if remoteAsset.Prompts != nil {
				asset.Prompts = &domain.AssetPrompts{
					CustomImagePrompt: remoteAsset.Prompts.CustomImagePrompt,
					CustomVideoPrompt: remoteAsset.Prompts.CustomVideoPrompt,
					GenerationCount:   remoteAsset.Prompts.GenerationCount,
				}
			}
			for _, tr := range remoteAsset.Translations {
				asset.Translations = append(asset.Translations, domain.AssetTranslation{
					Language:    tr.Language,
					DisplayName: tr.DisplayName,
				})
			}
			if err := s.assetRepo.Create(dbc, asset); err != nil {
				errs = append(errs, fmt.Sprintf("asset %s: %v", remoteAsset.ID, err))
				continue
			}
			syncedItems++
		}
		return nil
	})
	if txErr != nil {
		s.log.Error("Pull failed", "slug", slug, "error", txErr)
		return SyncResult{
			Success: false,
			Message: fmt.Sprintf("Failed to pull '%s'", slug),
			Errors:  append(errs, txErr.Error()),
		}
	}

	if err := s.media.CreateUniverseDir(slug); err != nil {
		errs = append(errs, fmt.Sprintf("create media dir: %v", err))
	}
	downloaded, mediaErrs := s.downloadUniverseFiles(ctx, slug)
	errs = append(errs, mediaErrs...)

	return SyncResult{
		Success:          true,
		Message:          fmt.Sprintf("Successfully pulled '%s' from Supabase", slug),
		SyncedItems:      syncedItems + downloaded,
		FilesTransferred: downloaded,
		Errors:           errs,
	}
}

// Push mirrors Pull in the other direction: media files go up first,
// then the universe row is upserted and its owned collections replaced
// remotely from the local copies.
func (s *syncService) Push(ctx context.Context, slug string, force bool) SyncResult {
	if !s.RemoteConnected() {
		return notConnectedResult()
	}

	dbc := dbctx.Context{Ctx: ctx}
	local, err := s.universeRepo.GetBySlug(dbc, slug, true)
	if err != nil {
		return SyncResult{
			Success: false,
			Message: fmt.Sprintf("Failed to push '%s'", slug),
			Errors:  []string{err.Error()},
		}
	}
	if local == nil {
		return SyncResult{
			Success:  false,
			Message:  fmt.Sprintf("Universe '%s' not found locally", slug),
			Errors:   []string{fmt.Sprintf("no universe with slug '%s' exists locally", slug)},
			NotFound: true,
		}
	}

	var errs []string
	uploaded, uploadErrs := s.uploadUniverseFiles(ctx, slug)
	errs = append(errs, uploadErrs...)
	syncedItems := uploaded

	remote, err := s.remote.UpsertUniverse(ctx, *local)
	if err != nil || remote == nil {
		if err == nil {
			err = fmt.Errorf("upsert returned no row")
		}
		s.log.Error("Push failed", "slug", slug, "error", err)
		return SyncResult{
			Success: false,
			Message: fmt.Sprintf("Failed to push '%s'", slug),
			Errors:  append(errs, err.Error()),
		}
	}
	remoteID := remote.ID
	syncedItems++

	now := time.Now().UTC()
	err = s.universeRepo.UpdateFields(dbc, local.ID, map[string]interface{}{
		"supabase_id":    remoteID,
		"last_synced_at": now,
	})
	if err != nil {
		errs = append(errs, fmt.Sprintf("record sync metadata: %v", err))
	}

	if local.Prompts != nil {
		if err := s.remote.UpsertPrompts(ctx, remoteID, local.Prompts.DefaultImagePrompt, local.Prompts.DefaultVideoPrompt); err != nil {
			errs = append(errs, fmt.Sprintf("prompts: %v", err))
		} else {
			syncedItems++
		}
	}

	translations := make([]domain.UniverseTranslation, len(local.Translations))
	copy(translations, local.Translations)
	if err := s.remote.ReplaceTranslations(ctx, remoteID, translations); err != nil {
		errs = append(errs, fmt.Sprintf("translations: %v", err))
	} else {
		syncedItems += len(translations)
	}

	musicPrompts := make([]domain.MusicPrompt, len(local.MusicPrompts))
	copy(musicPrompts, local.MusicPrompts)
	if err := s.remote.ReplaceMusicPrompts(ctx, remoteID, musicPrompts); err != nil {
		errs = append(errs, fmt.Sprintf("music prompts: %v", err))
	} else {
		syncedItems += len(musicPrompts)
	}

	if err := s.remote.DeleteAllAssets(ctx, remoteID); err != nil {
		errs = append(errs, fmt.Sprintf("clear remote assets: %v", err))
	}
	for i := range local.Assets {
		asset := local.Assets[i]
		if err := s.pushAsset(ctx, remoteID, &asset); err != nil {
			errs = append(errs, fmt.Sprintf("asset %s: %v", asset.ID, err))
			continue
		}
		syncedItems++
	}

	return SyncResult{
		Success:          true,
		Message:          fmt.Sprintf("Successfully pushed '%s' to Supabase", slug),
		SyncedItems:      syncedItems,
		FilesTransferred: uploaded,
		Errors:           errs,
	}
}

func (s *syncService) pushAsset(ctx context.Context, remoteID int64, asset *domain.Asset) error {
	row := domain.Asset{
		ID:          asset.ID,
		UniversID:   remoteID,
		SortOrder:   asset.SortOrder,
		ImageName:   asset.ImageName,
		DisplayName: asset.DisplayName,
	}
	remoteAsset, err := s.remote.UpsertAsset(ctx, row)
	if err != nil {
		return err
	}
	if asset.Prompts != nil {
		if err := s.remote.UpsertAssetPrompts(ctx, remoteAsset.ID, *asset.Prompts); err != nil {
			return fmt.Errorf("prompts: %w", err)
		}
	}
	translations := make([]domain.AssetTranslation, len(asset.Translations))
	copy(translations, asset.Translations)
	return s.remote.ReplaceAssetTranslations(ctx, remoteAsset.ID, translations)
}

// PullAll enumerates every remote universe and pulls each one. A failed
// universe is recorded and the loop continues: universes are
// independent.
func (s *syncService) PullAll(ctx context.Context) SyncInitResult {
	if !s.RemoteConnected() {
		return SyncInitResult{Success: false, Message: "Supabase not connected"}
	}

	remoteUniverses, err := s.remote.GetAllUniverses(ctx)
	if err != nil {
		return SyncInitResult{Success: false, Message: fmt.Sprintf("Init sync failed: %v", err)}
	}

	out := SyncInitResult{Success: true}
	for _, ru := range remoteUniverses {
		result := s.Pull(ctx, ru.Slug, true)
		if result.Success {
			out.UniversesSynced++
			out.AssetsSynced += result.SyncedItems - result.FilesTransferred
			out.FilesDownloaded += result.FilesTransferred
		} else {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", ru.Slug, result.Message))
		}
		out.Errors = append(out.Errors, result.Errors...)
	}
	out.Message = fmt.Sprintf("Initialized local database from Supabase (%d universes)", out.UniversesSynced)
	return out
}

// downloadUniverseFiles mirrors the universe's remote storage prefix
// into the local media store, overwriting same-named local files.
func (s *syncService) downloadUniverseFiles(ctx context.Context, slug string) (int, []string) {
	if s.bucket == nil {
		s.log.Debug("Remote bucket not configured, skipping media download", "slug", slug)
		return 0, nil
	}

	objects, err := s.bucket.List(ctx, slug+"/")
	if err != nil {
		return 0, []string{fmt.Sprintf("list remote files: %v", err)}
	}

	var (
		downloaded int
		errs       []string
	)
	for _, obj := range objects {
		if obj.Name == "" || strings.HasSuffix(obj.Name, "/") || strings.HasSuffix(obj.Name, ".emptyFolderPlaceholder") {
			continue
		}
		content, err := s.bucket.Download(ctx, obj.Name)
		if err != nil {
			errs = append(errs, fmt.Sprintf("download %s: %v", obj.Name, err))
			continue
		}
		if content == nil {
			errs = append(errs, fmt.Sprintf("download %s: no content", obj.Name))
			continue
		}
		if _, err := s.media.Save(content, obj.Name); err != nil {
			errs = append(errs, fmt.Sprintf("save %s: %v", obj.Name, err))
			continue
		}
		downloaded++
	}
	s.log.Info("Downloaded universe media", "slug", slug, "files", downloaded)
	return downloaded, errs
}

// uploadUniverseFiles uploads the universe's local media files to the
// remote bucket, flat under the slug prefix.
func (s *syncService) uploadUniverseFiles(ctx context.Context, slug string) (int, []string) {
	if s.bucket == nil {
		return 0, nil
	}

	files, err := s.media.ListUniverse(slug)
	if err != nil {
		return 0, []string{fmt.Sprintf("list local files: %v", err)}
	}

	var (
		uploaded int
		errs     []string
	)
	for _, rel := range files {
		content, ok := s.media.Read(rel)
		if !ok {
			errs = append(errs, fmt.Sprintf("read %s: missing", rel))
			continue
		}
		if err := s.bucket.Upload(ctx, content, rel, MimeType(rel)); err != nil {
			errs = append(errs, fmt.Sprintf("upload %s: %v", rel, err))
			continue
		}
		uploaded++
	}
	s.log.Info("Uploaded universe media", "slug", slug, "files", uploaded)
	return uploaded, errs
}
