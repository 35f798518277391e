package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
	"github.com/petitmonde/univers-backend/internal/pkg/envutil"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// RemoteUniverse is the full remote representation of one universe:
// the row itself plus everything it owns.
type RemoteUniverse struct {
	Universe     domain.Universe
	Prompts      *domain.UniversePrompts
	Translations []domain.UniverseTranslation
	MusicPrompts []domain.MusicPrompt
	Assets       []domain.Asset
}

// RemoteStore is the adapter over the Supabase Postgres database. The
// local and remote schemas are the same models, so the adapter is a thin
// GORM client against the remote connection.
type RemoteStore interface {
	IsConnected() bool
	GetAllUniverses(ctx context.Context) ([]domain.Universe, error)
	GetUniverseBySlug(ctx context.Context, slug string) (*domain.Universe, error)
	GetFullUniverse(ctx context.Context, slug string) (*RemoteUniverse, error)
	UpsertUniverse(ctx context.Context, u domain.Universe) (*domain.Universe, error)
	DeleteUniverse(ctx context.Context, remoteID int64) error

	UpsertPrompts(ctx context.Context, remoteID int64, imagePrompt, videoPrompt string) error
	ReplaceTranslations(ctx context.Context, remoteID int64, translations []domain.UniverseTranslation) error
	ReplaceMusicPrompts(ctx context.Context, remoteID int64, prompts []domain.MusicPrompt) error

	DeleteAllAssets(ctx context.Context, remoteID int64) error
	UpsertAsset(ctx context.Context, a domain.Asset) (*domain.Asset, error)
	UpsertAssetPrompts(ctx context.Context, assetID string, p domain.AssetPrompts) error
	ReplaceAssetTranslations(ctx context.Context, assetID string, translations []domain.AssetTranslation) error
}

type remoteStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewRemoteStore connects to the Supabase database. A missing DSN is not
// fatal: the adapter comes up disconnected and the process runs in
// local-only mode.
func NewRemoteStore(log *logger.Logger) (RemoteStore, error) {
	serviceLog := log.With("service", "RemoteStore")

	dsn := envutil.String("SUPABASE_DB_DSN", "")
	if dsn == "" {
		serviceLog.Info("Supabase credentials not configured, running in local-only mode")
		return &remoteStore{log: serviceLog}, nil
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		serviceLog.Warn("Could not connect to Supabase, running in local-only mode", "error", err)
		return &remoteStore{log: serviceLog}, nil
	}

	serviceLog.Info("Connected to Supabase database")
	return &remoteStore{db: gdb, log: serviceLog}, nil
}

func (r *remoteStore) IsConnected() bool { return r.db != nil }

func (r *remoteStore) require() error {
	if r.db == nil {
		return apperr.ErrRemoteUnavailable
	}
	return nil
}

func (r *remoteStore) GetAllUniverses(ctx context.Context) ([]domain.Universe, error) {
	if err := r.require(); err != nil {
		return nil, err
	}
	var out []domain.Universe
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *remoteStore) GetUniverseBySlug(ctx context.Context, slug string) (*domain.Universe, error) {
	if err := r.require(); err != nil {
		return nil, err
	}
	var u domain.Universe
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *remoteStore) GetFullUniverse(ctx context.Context, slug string) (*RemoteUniverse, error) {
	if err := r.require(); err != nil {
		return nil, err
	}
	u, err := r.GetUniverseBySlug(ctx, slug)
	if err != nil || u == nil {
		return nil, err
	}

	full := &RemoteUniverse{Universe: *u}
	conn := r.db.WithContext(ctx)

	var prompts domain.UniversePrompts
	err = conn.Where("univers_id = ?", u.ID).First(&prompts).Error
	if err == nil {
		full.Prompts = &prompts
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("fetch prompts: %w", err)
	}

	if err := conn.Where("univers_id = ?", u.ID).Find(&full.Translations).Error; err != nil {
		return nil, fmt.Errorf("fetch translations: %w", err)
	}
	if err := conn.Where("univers_id = ?", u.ID).Find(&full.MusicPrompts).Error; err != nil {
		return nil, fmt.Errorf("fetch music prompts: %w", err)
	}
	err = conn.
		Preload("Prompts").
		Preload("Translations").
		Where("univers_id = ?", u.ID).
		Order("sort_order ASC").
		Find(&full.Assets).Error
	if err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}
	return full, nil
}

// UpsertUniverse inserts or updates by slug and returns the remote row.
func (r *remoteStore) UpsertUniverse(ctx context.Context, u domain.Universe) (*domain.Universe, error) {
	if err := r.require(); err != nil {
		return nil, err
	}
	row := domain.Universe{
		Name:            u.Name,
		Slug:            u.Slug,
		ThumbnailURL:    u.ThumbnailURL,
		IsPublic:        u.IsPublic,
		OwnerID:         u.OwnerID,
		BackgroundMusic: u.BackgroundMusic,
		BackgroundColor: u.BackgroundColor,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "thumbnail_url", "is_public", "background_music", "background_color", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	// Re-read by slug: on conflict the returned struct keeps the zero id.
	return r.GetUniverseBySlug(ctx, u.Slug)
}

func (r *remoteStore) DeleteUniverse(ctx context.Context, remoteID int64) error {
	if err := r.require(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", remoteID).Delete(&domain.Universe{}).Error
}

func (r *remoteStore) UpsertPrompts(ctx context.Context, remoteID int64, imagePrompt, videoPrompt string) error {
	if err := r.require(); err != nil {
		return err
	}
	conn := r.db.WithContext(ctx)
	var existing domain.UniversePrompts
	err := conn.Where("univers_id = ?", remoteID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conn.Create(&domain.UniversePrompts{
			ID:                 uuid.NewString(),
			UniversID:          remoteID,
			DefaultImagePrompt: imagePrompt,
			DefaultVideoPrompt: videoPrompt,
		}).Error
	}
	if err != nil {
		return err
	}
	return conn.Model(&existing).Updates(map[string]interface{}{
		"default_image_prompt": imagePrompt,
		"default_video_prompt": videoPrompt,
	}).Error
}

func (r *remoteStore) ReplaceTranslations(ctx context.Context, remoteID int64, translations []domain.UniverseTranslation) error {
	if err := r.require(); err != nil {
		return err
	}
	conn := r.db.WithContext(ctx)
	if err := conn.Where("univers_id = ?", remoteID).Delete(&domain.UniverseTranslation{}).Error; err != nil {
		return err
	}
	for i := range translations {
		translations[i].ID = uuid.NewString()
		translations[i].UniversID = remoteID
	}
	if len(translations) == 0 {
		return nil
	}
	return conn.Create(&translations).Error
}

func (r *remoteStore) ReplaceMusicPrompts(ctx context.Context, remoteID int64, prompts []domain.MusicPrompt) error {
	if err := r.require(); err != nil {
		return err
	}
	conn := r.db.WithContext(ctx)
	if err := conn.Where("univers_id = ?", remoteID).Delete(&domain.MusicPrompt{}).Error; err != nil {
		return err
	}
	for i := range prompts {
		prompts[i].ID = uuid.NewString()
		prompts[i].UniversID = remoteID
	}
	if len(prompts) == 0 {
		return nil
	}
	return conn.Create(&prompts).Error
}

func (r *remoteStore) DeleteAllAssets(ctx context.Context, remoteID int64) error {
	if err := r.require(); err != nil {
		return err
	}
	conn := r.db.WithContext(ctx)
	var ids []string
	if err := conn.Model(&domain.Asset{}).Where("univers_id = ?", remoteID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := conn.Where("asset_id IN ?", ids).Delete(&domain.AssetPrompts{}).Error; err != nil {
		return err
	}
	if err := conn.Where("asset_id IN ?", ids).Delete(&domain.AssetTranslation{}).Error; err != nil {
		return err
	}
	return conn.Where("univers_id = ?", remoteID).Delete(&domain.Asset{}).Error
}

func (r *remoteStore) UpsertAsset(ctx context.Context, a domain.Asset) (*domain.Asset, error) {
	if err := r.require(); err != nil {
		return nil, err
	}
	row := domain.Asset{
		ID:          a.ID,
		UniversID:   a.UniversID,
		SortOrder:   a.SortOrder,
		ImageName:   a.ImageName,
		DisplayName: a.DisplayName,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"univers_id", "sort_order", "image_name", "display_name", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *remoteStore) UpsertAssetPrompts(ctx context.Context, assetID string, p domain.AssetPrompts) error {
	if err := r.require(); err != nil {
		return err
	}
	conn := r.db.WithContext(ctx)
	var existing domain.AssetPrompts
	err := conn.Where("asset_id = ?", assetID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.ID = uuid.NewString()
		p.AssetID = assetID
		return conn.Create(&p).Error
	}
	if err != nil {
		return err
	}
	return conn.Model(&existing).Updates(map[string]interface{}{
		"custom_image_prompt": p.CustomImagePrompt,
		"custom_video_prompt": p.CustomVideoPrompt,
		"generation_count":    p.GenerationCount,
	}).Error
}

func (r *remoteStore) ReplaceAssetTranslations(ctx context.Context, assetID string, translations []domain.AssetTranslation) error {
	if err := r.require(); err != nil {
		return err
	}
	conn := r.db.WithContext(ctx)
	if err := conn.Where("asset_id = ?", assetID).Delete(&domain.AssetTranslation{}).Error; err != nil {
		return err
	}
	for i := range translations {
		translations[i].ID = uuid.NewString()
		translations[i].AssetID = assetID
	}
	if len(translations) == 0 {
		return nil
	}
	return conn.Create(&translations).Error
}
