package repos

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

type AssetRepo interface {
	ListByUniverse(dbc dbctx.Context, universeID int64) ([]*domain.Asset, error)
	GetByID(dbc dbctx.Context, universeID int64, assetID string) (*domain.Asset, error)
	Create(dbc dbctx.Context, a *domain.Asset) error
	ReplaceAll(dbc dbctx.Context, universeID int64, assets []*domain.Asset) error
	DeleteAll(dbc dbctx.Context, universeID int64) error
	Delete(dbc dbctx.Context, a *domain.Asset) error
	UpdateFields(dbc dbctx.Context, assetID string, updates map[string]interface{}) error
	CountByUniverse(dbc dbctx.Context, universeID int64) (int64, error)

	UpsertPrompts(dbc dbctx.Context, assetID string, imagePrompt, videoPrompt *string) error
	MarkGenerated(dbc dbctx.Context, assetID string) error
	ReplaceTranslations(dbc dbctx.Context, assetID string, translations []domain.AssetTranslation) error
}

type assetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return &assetRepo{db: db, log: baseLog.With("repo", "AssetRepo")}
}

func (r *assetRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *assetRepo) ListByUniverse(dbc dbctx.Context, universeID int64) ([]*domain.Asset, error) {
	var out []*domain.Asset
	err := r.conn(dbc).
		Preload("Prompts").
		Preload("Translations").
		Where("univers_id = ?", universeID).
		Order("sort_order ASC").
		Find(&out).Error
	return out, err
}

func (r *assetRepo) GetByID(dbc dbctx.Context, universeID int64, assetID string) (*domain.Asset, error) {
	var a domain.Asset
	err := r.conn(dbc).
		Preload("Prompts").
		Preload("Translations").
		Where("univers_id = ? AND id = ?", universeID, assetID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assetRepo) Create(dbc dbctx.Context, a *domain.Asset) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Prompts != nil && a.Prompts.ID == "" {
		a.Prompts.ID = uuid.NewString()
		a.Prompts.AssetID = a.ID
	}
	for i := range a.Translations {
		if !domain.ValidLanguage(a.Translations[i].Language) {
			return fmt.Errorf("%w: unsupported language %q", apperr.ErrInvalidArgument, a.Translations[i].Language)
		}
		if a.Translations[i].ID == "" {
			a.Translations[i].ID = uuid.NewString()
		}
		a.Translations[i].AssetID = a.ID
	}
	return r.conn(dbc).Create(a).Error
}

// ReplaceAll swaps the universe's whole asset set, delete-then-insert.
// Regeneration and pull both replace wholesale rather than diffing.
func (r *assetRepo) ReplaceAll(dbc dbctx.Context, universeID int64, assets []*domain.Asset) error {
	if err := r.DeleteAll(dbc, universeID); err != nil {
		return err
	}
	for _, a := range assets {
		a.UniversID = universeID
		if err := r.Create(dbc, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *assetRepo) DeleteAll(dbc dbctx.Context, universeID int64) error {
	conn := r.conn(dbc)
	var ids []string
	if err := conn.Model(&domain.Asset{}).Where("univers_id = ?", universeID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	// SQLite enforces the cascades, but deleting children first keeps the
	// same behavior against a remote database migrated without constraints.
	if err := conn.Where("asset_id IN ?", ids).Delete(&domain.AssetPrompts{}).Error; err != nil {
		return err
	}
	if err := conn.Where("asset_id IN ?", ids).Delete(&domain.AssetTranslation{}).Error; err != nil {
		return err
	}
	return conn.Where("univers_id = ?", universeID).Delete(&domain.Asset{}).Error
}

func (r *assetRepo) Delete(dbc dbctx.Context, a *domain.Asset) error {
	conn := r.conn(dbc)
	if err := conn.Where("asset_id = ?", a.ID).Delete(&domain.AssetPrompts{}).Error; err != nil {
		return err
	}
	if err := conn.Where("asset_id = ?", a.ID).Delete(&domain.AssetTranslation{}).Error; err != nil {
		return err
	}
	return conn.Delete(a).Error
}

func (r *assetRepo) UpdateFields(dbc dbctx.Context, assetID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.conn(dbc).Model(&domain.Asset{}).Where("id = ?", assetID).Updates(updates).Error
}

func (r *assetRepo) CountByUniverse(dbc dbctx.Context, universeID int64) (int64, error) {
	var n int64
	err := r.conn(dbc).Model(&domain.Asset{}).Where("univers_id = ?", universeID).Count(&n).Error
	return n, err
}

func (r *assetRepo) UpsertPrompts(dbc dbctx.Context, assetID string, imagePrompt, videoPrompt *string) error {
	conn := r.conn(dbc)
	var existing domain.AssetPrompts
	err := conn.Where("asset_id = ?", assetID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p := domain.AssetPrompts{ID: uuid.NewString(), AssetID: assetID, GenerationCount: 1}
		if imagePrompt != nil {
			p.CustomImagePrompt = *imagePrompt
		}
		if videoPrompt != nil {
			p.CustomVideoPrompt = *videoPrompt
		}
		return conn.Create(&p).Error
	}
	if err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if imagePrompt != nil {
		updates["custom_image_prompt"] = *imagePrompt
	}
	if videoPrompt != nil {
		updates["custom_video_prompt"] = *videoPrompt
	}
	if len(updates) == 0 {
		return nil
	}
	return conn.Model(&existing).Updates(updates).Error
}

// MarkGenerated bumps the asset's generation counter and stamps the
// time, creating the prompts row when it does not exist yet.
func (r *assetRepo) MarkGenerated(dbc dbctx.Context, assetID string) error {
	conn := r.conn(dbc)
	now := time.Now().UTC()
	var existing domain.AssetPrompts
	err := conn.Where("asset_id = ?", assetID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p := domain.AssetPrompts{ID: uuid.NewString(), AssetID: assetID, GenerationCount: 1, LastGeneratedAt: &now}
		return conn.Create(&p).Error
	}
	if err != nil {
		return err
	}
	return conn.Model(&existing).Updates(map[string]interface{}{
		"generation_count":  gorm.Expr("generation_count + 1"),
		"last_generated_at": now,
	}).Error
}

func (r *assetRepo) ReplaceTranslations(dbc dbctx.Context, assetID string, translations []domain.AssetTranslation) error {
	for i := range translations {
		if !domain.ValidLanguage(translations[i].Language) {
			return fmt.Errorf("%w: unsupported language %q", apperr.ErrInvalidArgument, translations[i].Language)
		}
	}
	conn := r.conn(dbc)
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
