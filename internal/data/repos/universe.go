package repos

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

type UniverseRepo interface {
	Create(dbc dbctx.Context, u *domain.Universe) error
	GetBySlug(dbc dbctx.Context, slug string, withRelations bool) (*domain.Universe, error)
	List(dbc dbctx.Context, offset, limit int, isPublic *bool) ([]*domain.Universe, int64, error)
	UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, u *domain.Universe) error

	UpsertPrompts(dbc dbctx.Context, universeID int64, imagePrompt, videoPrompt string) error
	ReplaceTranslations(dbc dbctx.Context, universeID int64, translations []domain.UniverseTranslation) error
	ReplaceMusicPrompts(dbc dbctx.Context, universeID int64, prompts []domain.MusicPrompt) error

	ListMusicPrompts(dbc dbctx.Context, universeID int64) ([]domain.MusicPrompt, error)
	GetMusicPrompt(dbc dbctx.Context, universeID int64, language string) (*domain.MusicPrompt, error)
	CreateMusicPrompt(dbc dbctx.Context, mp *domain.MusicPrompt) error
	UpdateMusicPrompt(dbc dbctx.Context, id string, updates map[string]interface{}) error
	DeleteMusicPrompt(dbc dbctx.Context, id string) error
}

type universeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUniverseRepo(db *gorm.DB, baseLog *logger.Logger) UniverseRepo {
	return &universeRepo{db: db, log: baseLog.With("repo", "UniverseRepo")}
}

func (r *universeRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *universeRepo) Create(dbc dbctx.Context, u *domain.Universe) error {
	if !domain.ValidSlug(u.Slug) {
		return fmt.Errorf("%w: invalid slug %q", apperr.ErrInvalidArgument, u.Slug)
	}
	for i := range u.Translations {
		if !domain.ValidLanguage(u.Translations[i].Language) {
			return fmt.Errorf("%w: unsupported language %q", apperr.ErrInvalidArgument, u.Translations[i].Language)
		}
		if u.Translations[i].ID == "" {
			u.Translations[i].ID = uuid.NewString()
		}
	}
	if u.Prompts != nil && u.Prompts.ID == "" {
		u.Prompts.ID = uuid.NewString()
	}
	return r.conn(dbc).Create(u).Error
}

func (r *universeRepo) GetBySlug(dbc dbctx.Context, slug string, withRelations bool) (*domain.Universe, error) {
	q := r.conn(dbc)
	if withRelations {
		q = q.
			Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
			Preload("Assets.Prompts").
			Preload("Assets.Translations").
			Preload("Prompts").
			Preload("Translations").
			Preload("MusicPrompts")
	}
	var u domain.Universe
	err := q.Where("slug = ?", slug).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *universeRepo) List(dbc dbctx.Context, offset, limit int, isPublic *bool) ([]*domain.Universe, int64, error) {
	q := r.conn(dbc).Model(&domain.Universe{})
	if isPublic != nil {
		q = q.Where("is_public = ?", *isPublic)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*domain.Universe
	err := q.Preload("Assets").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *universeRepo) UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.conn(dbc).Model(&domain.Universe{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes the universe row. Owned rows go with it through the
// ON DELETE CASCADE constraints.
func (r *universeRepo) Delete(dbc dbctx.Context, u *domain.Universe) error {
	return r.conn(dbc).Delete(u).Error
}

func (r *universeRepo) UpsertPrompts(dbc dbctx.Context, universeID int64, imagePrompt, videoPrompt string) error {
	conn := r.conn(dbc)
	var existing domain.UniversePrompts
	err := conn.Where("univers_id = ?", universeID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conn.Create(&domain.UniversePrompts{
			ID:                 uuid.NewString(),
			UniversID:          universeID,
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

// ReplaceTranslations swaps the whole translation set, delete-then-insert.
func (r *universeRepo) ReplaceTranslations(dbc dbctx.Context, universeID int64, translations []domain.UniverseTranslation) error {
	for i := range translations {
		if !domain.ValidLanguage(translations[i].Language) {
			return fmt.Errorf("%w: unsupported language %q", apperr.ErrInvalidArgument, translations[i].Language)
		}
	}
	conn := r.conn(dbc)
	if err := conn.Where("univers_id = ?", universeID).Delete(&domain.UniverseTranslation{}).Error; err != nil {
		return err
	}
	for i := range translations {
		translations[i].ID = uuid.NewString()
		translations[i].UniversID = universeID
	}
	if len(translations) == 0 {
		return nil
	}
	return conn.Create(&translations).Error
}

// ReplaceMusicPrompts swaps the whole music prompt set, delete-then-insert.
func (r *universeRepo) ReplaceMusicPrompts(dbc dbctx.Context, universeID int64, prompts []domain.MusicPrompt) error {
	for i := range prompts {
		if !domain.ValidLanguage(prompts[i].Language) {
			return fmt.Errorf("%w: unsupported language %q", apperr.ErrInvalidArgument, prompts[i].Language)
		}
	}
	conn := r.conn(dbc)
	if err := conn.Where("univers_id = ?", universeID).Delete(&domain.MusicPrompt{}).Error; err != nil {
		return err
	}
	for i := range prompts {
		prompts[i].ID = uuid.NewString()
		prompts[i].UniversID = universeID
	}
	if len(prompts) == 0 {
		return nil
	}
	return conn.Create(&prompts).Error
}

func (r *universeRepo) ListMusicPrompts(dbc dbctx.Context, universeID int64) ([]domain.MusicPrompt, error) {
	var out []domain.MusicPrompt
	err := r.conn(dbc).Where("univers_id = ?", universeID).Order("language ASC").Find(&out).Error
	return out, err
}

func (r *universeRepo) GetMusicPrompt(dbc dbctx.Context, universeID int64, language string) (*domain.MusicPrompt, error) {
	var mp domain.MusicPrompt
	err := r.conn(dbc).Where("univers_id = ? AND language = ?", universeID, language).First(&mp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mp, nil
}

// CreateMusicPrompt rejects a second prompt for an already populated
// (universe, language) pair instead of overwriting it.
func (r *universeRepo) CreateMusicPrompt(dbc dbctx.Context, mp *domain.MusicPrompt) error {
	if !domain.ValidLanguage(mp.Language) {
		return fmt.Errorf("%w: unsupported language %q", apperr.ErrInvalidArgument, mp.Language)
	}
	existing, err := r.GetMusicPrompt(dbc, mp.UniversID, mp.Language)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: music prompt for language %q", apperr.ErrAlreadyExists, mp.Language)
	}
	if mp.ID == "" {
		mp.ID = uuid.NewString()
	}
	return r.conn(dbc).Create(mp).Error
}

func (r *universeRepo) UpdateMusicPrompt(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.conn(dbc).Model(&domain.MusicPrompt{}).Where("id = ?", id).Updates(updates).Error
}

func (r *universeRepo) DeleteMusicPrompt(dbc dbctx.Context, id string) error {
	return r.conn(dbc).Where("id = ?", id).Delete(&domain.MusicPrompt{}).Error
}
