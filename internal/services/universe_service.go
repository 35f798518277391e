package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// AssetView is an asset enriched with the media URLs for its generated
// files. URLs are empty when the file does not exist locally yet.
type AssetView struct {
	domain.Asset
	ImageURL string `json:"image_url,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

// UniverseView is a universe with its full relations and media URLs.
type UniverseView struct {
	domain.Universe
	Assets     []AssetView       `json:"assets"`
	Thumbnail  string            `json:"thumbnail,omitempty"`
	MusicURLs  map[string]string `json:"music_urls,omitempty"`
	AssetCount int               `json:"asset_count"`
}

type CreateUniverseInput struct {
	Name            string `json:"name" binding:"required"`
	Slug            string `json:"slug"`
	ThumbnailURL    string `json:"thumbnail_url"`
	IsPublic        *bool  `json:"is_public"`
	OwnerID         string `json:"owner_id"`
	BackgroundMusic string `json:"background_music"`
	BackgroundColor string `json:"background_color"`
}

type CreateAssetInput struct {
	DisplayName  string                    `json:"display_name" binding:"required"`
	SortOrder    *int                      `json:"sort_order"`
	ImageName    string                    `json:"image_name"`
	Translations []domain.AssetTranslation `json:"translations"`
}

type UpdateAssetInput struct {
	DisplayName       *string                    `json:"display_name"`
	SortOrder         *int                       `json:"sort_order"`
	NewConcept        *string                    `json:"new_concept"`
	CustomImagePrompt *string                    `json:"custom_image_prompt"`
	CustomVideoPrompt *string                    `json:"custom_video_prompt"`
	Translations      *[]domain.AssetTranslation `json:"translations"`
}

// UniverseService is the local CRUD surface over universes, assets and
// music prompts. It owns the coupling between database rows and the
// media files that belong to them.
type UniverseService interface {
	List(ctx context.Context, offset, limit int, isPublic *bool) ([]*domain.Universe, int64, error)
	Create(ctx context.Context, input CreateUniverseInput) (*domain.Universe, error)
	Get(ctx context.Context, slug string) (*UniverseView, error)
	Update(ctx context.Context, slug string, updates map[string]interface{}) (*domain.Universe, error)
	UpdatePrompts(ctx context.Context, slug string, imagePrompt, videoPrompt string) error
	ReplaceTranslations(ctx context.Context, slug string, translations []domain.UniverseTranslation) error
	Delete(ctx context.Context, slug string) error

	ListAssets(ctx context.Context, slug string) ([]AssetView, error)
	CreateAsset(ctx context.Context, slug string, input CreateAssetInput) (*domain.Asset, error)
	GetAsset(ctx context.Context, slug, assetID string) (*AssetView, error)
	UpdateAsset(ctx context.Context, slug, assetID string, input UpdateAssetInput) (*domain.Asset, error)
	DeleteAsset(ctx context.Context, slug, assetID string) error

	ListMusicPrompts(ctx context.Context, slug string) ([]domain.MusicPrompt, error)
	GetMusicPrompt(ctx context.Context, slug, language string) (*domain.MusicPrompt, error)
	CreateMusicPrompt(ctx context.Context, slug string, mp *domain.MusicPrompt) error
	UpdateMusicPrompt(ctx context.Context, slug, language string, updates map[string]interface{}) error
	DeleteMusicPrompt(ctx context.Context, slug, language string) error
}

type universeService struct {
	db           *gorm.DB
	log          *logger.Logger
	universeRepo repos.UniverseRepo
	assetRepo    repos.AssetRepo
	media        MediaStore
}

func NewUniverseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	universeRepo repos.UniverseRepo,
	assetRepo repos.AssetRepo,
	media MediaStore,
) UniverseService {
	return &universeService{
		db:           db,
		log:          baseLog.With("service", "UniverseService"),
		universeRepo: universeRepo,
		assetRepo:    assetRepo,
		media:        media,
	}
}

func (s *universeService) List(ctx context.Context, offset, limit int, isPublic *bool) ([]*domain.Universe, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.universeRepo.List(dbctx.Context{Ctx: ctx}, offset, limit, isPublic)
}

// Create assigns the slug once, deriving it from the name when not
// given. The slug never changes afterwards.
func (s *universeService) Create(ctx context.Context, input CreateUniverseInput) (*domain.Universe, error) {
	dbc := dbctx.Context{Ctx: ctx}
	slug := input.Slug
	if slug == "" {
		slug = domain.Slugify(input.Name)
	}
	if !domain.ValidSlug(slug) {
		return nil, fmt.Errorf("%w: invalid slug %q", apperr.ErrInvalidArgument, slug)
	}

	existing, err := s.universeRepo.GetBySlug(dbc, slug, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: universe with slug %q already exists", apperr.ErrInvalidArgument, slug)
	}

	u := &domain.Universe{
		Name:            input.Name,
		Slug:            slug,
		ThumbnailURL:    input.ThumbnailURL,
		IsPublic:        true,
		OwnerID:         input.OwnerID,
		BackgroundMusic: input.BackgroundMusic,
		BackgroundColor: input.BackgroundColor,
	}
	if input.IsPublic != nil {
		u.IsPublic = *input.IsPublic
	}
	if err := s.universeRepo.Create(dbc, u); err != nil {
		return nil, err
	}
	if err := s.media.CreateUniverseDir(slug); err != nil {
		s.log.Warn("Failed to create media dir", "slug", slug, "error", err)
	}
	s.log.Info("Created universe", "slug", slug)
	return u, nil
}

func (s *universeService) Get(ctx context.Context, slug string) (*UniverseView, error) {
	u, err := s.universeRepo.GetBySlug(dbctx.Context{Ctx: ctx}, slug, true)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: universe %q", apperr.ErrNotFound, slug)
	}
	return s.buildView(u), nil
}

func (s *universeService) buildView(u *domain.Universe) *UniverseView {
	view := &UniverseView{Universe: *u, Assets: []AssetView{}}
	for i := range u.Assets {
		a := u.Assets[i]
		view.Assets = append(view.Assets, AssetView{
			Asset:    a,
			ImageURL: s.media.AssetImageURL(u.Slug, a.ImageName),
			VideoURL: s.media.AssetVideoURL(u.Slug, a.ImageName),
		})
	}
	view.Universe.Assets = nil
	view.AssetCount = len(view.Assets)
	view.Thumbnail = s.media.ThumbnailURL(u.Slug)

	urls := map[string]string{}
	for _, lang := range domain.Languages {
		if url := s.media.MusicURL(u.Slug, lang); url != "" {
			urls[lang] = url
		}
	}
	if len(urls) > 0 {
		view.MusicURLs = urls
	}
	return view
}

// Update patches mutable fields. The slug is immutable: requests that
// try to change it are rejected.
func (s *universeService) Update(ctx context.Context, slug string, updates map[string]interface{}) (*domain.Universe, error) {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.universeRepo.GetBySlug(dbc, slug, false)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: universe %q", apperr.ErrNotFound, slug)
	}
	if newSlug, ok := updates["slug"]; ok && newSlug != slug {
		return nil, fmt.Errorf("%w: slug is immutable", apperr.ErrInvalidArgument)
	}
	delete(updates, "slug")

	allowed := map[string]bool{
		"name": true, "thumbnail_url": true, "is_public": true,
		"background_music": true, "background_color": true, "owner_id": true,
	}
	for k := range updates {
		if !allowed[k] {
			delete(updates, k)
		}
	}
	if err := s.universeRepo.UpdateFields(dbc, u.ID, updates); err != nil {
		return nil, err
	}
	return s.universeRepo.GetBySlug(dbc, slug, false)
}

func (s *universeService) UpdatePrompts(ctx context.Context, slug string, imagePrompt, videoPrompt string) error {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return err
	}
	return s.universeRepo.UpsertPrompts(dbc, u.ID, imagePrompt, videoPrompt)
}

func (s *universeService) ReplaceTranslations(ctx context.Context, slug string, translations []domain.UniverseTranslation) error {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return err
	}
	return s.universeRepo.ReplaceTranslations(dbc, u.ID, translations)
}

// Delete removes the universe row (owned rows cascade) and then the
// media folder. The folder removal is best effort; orphan files are
// harmless.
func (s *universeService) Delete(ctx context.Context, slug string) error {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return err
	}
	if err := s.universeRepo.Delete(dbc, u); err != nil {
		return err
	}
	s.media.DeleteUniverseDir(slug)
	s.log.Info("Deleted universe", "slug", slug)
	return nil
}

func (s *universeService) ListAssets(ctx context.Context, slug string) ([]AssetView, error) {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return nil, err
	}
	assets, err := s.assetRepo.ListByUniverse(dbc, u.ID)
	if err != nil {
		return nil, err
	}
	out := make([]AssetView, 0, len(assets))
	for _, a := range assets {
		out = append(out, AssetView{
			Asset:    *a,
			ImageURL: s.media.AssetImageURL(slug, a.ImageName),
			VideoURL: s.media.AssetVideoURL(slug, a.ImageName),
		})
	}
	return out, nil
}

// CreateAsset appends an asset. Sort order defaults to the end of the
// sequence and the image name is derived from the concept at that
// position.
func (s *universeService) CreateAsset(ctx context.Context, slug string, input CreateAssetInput) (*domain.Asset, error) {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return nil, err
	}

	sortOrder := 0
	if input.SortOrder != nil {
		sortOrder = *input.SortOrder
	} else {
		n, err := s.assetRepo.CountByUniverse(dbc, u.ID)
		if err != nil {
			return nil, err
		}
		sortOrder = int(n)
	}

	imageName := input.ImageName
	if imageName == "" {
		imageName = domain.AssetImageName(sortOrder, input.DisplayName)
	}

	a := &domain.Asset{
		UniversID:    u.ID,
		SortOrder:    sortOrder,
		ImageName:    imageName,
		DisplayName:  input.DisplayName,
		Translations: input.Translations,
	}
	if err := s.assetRepo.Create(dbc, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *universeService) GetAsset(ctx context.Context, slug, assetID string) (*AssetView, error) {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return nil, err
	}
	a, err := s.assetRepo.GetByID(dbc, u.ID, assetID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: asset %q", apperr.ErrNotFound, assetID)
	}
	return &AssetView{
		Asset:    *a,
		ImageURL: s.media.AssetImageURL(slug, a.ImageName),
		VideoURL: s.media.AssetVideoURL(slug, a.ImageName),
	}, nil
}

// UpdateAsset patches an asset. Renaming the concept re-derives the
// image name and moves the image and video files together; when the
// move fails nothing is renamed and the row is unchanged.
func (s *universeService) UpdateAsset(ctx context.Context, slug, assetID string, input UpdateAssetInput) (*domain.Asset, error) {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return nil, err
	}
	a, err := s.assetRepo.GetByID(dbc, u.ID, assetID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: asset %q", apperr.ErrNotFound, assetID)
	}

	updates := map[string]interface{}{}
	if input.DisplayName != nil {
		updates["display_name"] = *input.DisplayName
	}
	if input.SortOrder != nil {
		updates["sort_order"] = *input.SortOrder
	}

	renamedTo := ""
	if input.NewConcept != nil && *input.NewConcept != "" {
		newImageName := domain.AssetImageName(a.SortOrder, *input.NewConcept)
		if newImageName != a.ImageName {
			if err := s.media.RenameAssetMedia(slug, a.ImageName, newImageName); err != nil {
				return nil, fmt.Errorf("rename media: %w", err)
			}
			renamedTo = newImageName
			updates["image_name"] = newImageName
		}
		updates["display_name"] = *input.NewConcept
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		if err := s.assetRepo.UpdateFields(dbc, a.ID, updates); err != nil {
			// The row still names the old files, so move them back.
			if renamedTo != "" {
				if rbErr := s.media.RenameAssetMedia(slug, renamedTo, a.ImageName); rbErr != nil {
					s.log.Error("Failed to restore media names", "asset_id", a.ID, "error", rbErr)
				}
			}
			return nil, err
		}
	}

	if input.CustomImagePrompt != nil || input.CustomVideoPrompt != nil {
		if err := s.assetRepo.UpsertPrompts(dbc, a.ID, input.CustomImagePrompt, input.CustomVideoPrompt); err != nil {
			return nil, err
		}
	}
	if input.Translations != nil {
		if err := s.assetRepo.ReplaceTranslations(dbc, a.ID, *input.Translations); err != nil {
			return nil, err
		}
	}

	return s.assetRepo.GetByID(dbc, u.ID, a.ID)
}

// DeleteAsset removes the row and the asset's media files.
func (s *universeService) DeleteAsset(ctx context.Context, slug, assetID string) error {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return err
	}
	a, err := s.assetRepo.GetByID(dbc, u.ID, assetID)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("%w: asset %q", apperr.ErrNotFound, assetID)
	}
	if err := s.assetRepo.Delete(dbc, a); err != nil {
		return err
	}
	s.media.Delete(slug + "/" + a.ImageName)
	s.media.Delete(slug + "/" + domain.AssetVideoName(a.ImageName))
	return nil
}

func (s *universeService) ListMusicPrompts(ctx context.Context, slug string) ([]domain.MusicPrompt, error) {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return nil, err
	}
	return s.universeRepo.ListMusicPrompts(dbc, u.ID)
}

func (s *universeService) GetMusicPrompt(ctx context.Context, slug, language string) (*domain.MusicPrompt, error) {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return nil, err
	}
	mp, err := s.universeRepo.GetMusicPrompt(dbc, u.ID, language)
	if err != nil {
		return nil, err
	}
	if mp == nil {
		return nil, fmt.Errorf("%w: music prompt for language %q", apperr.ErrNotFound, language)
	}
	return mp, nil
}

func (s *universeService) CreateMusicPrompt(ctx context.Context, slug string, mp *domain.MusicPrompt) error {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return err
	}
	mp.UniversID = u.ID
	return s.universeRepo.CreateMusicPrompt(dbc, mp)
}

func (s *universeService) UpdateMusicPrompt(ctx context.Context, slug, language string, updates map[string]interface{}) error {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return err
	}
	mp, err := s.universeRepo.GetMusicPrompt(dbc, u.ID, language)
	if err != nil {
		return err
	}
	if mp == nil {
		return fmt.Errorf("%w: music prompt for language %q", apperr.ErrNotFound, language)
	}
	allowed := map[string]bool{"prompt": true, "lyrics": true}
	for k := range updates {
		if !allowed[k] {
			delete(updates, k)
		}
	}
	return s.universeRepo.UpdateMusicPrompt(dbc, mp.ID, updates)
}

func (s *universeService) DeleteMusicPrompt(ctx context.Context, slug, language string) error {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.mustGet(dbc, slug)
	if err != nil {
		return err
	}
	mp, err := s.universeRepo.GetMusicPrompt(dbc, u.ID, language)
	if err != nil {
		return err
	}
	if mp == nil {
		return fmt.Errorf("%w: music prompt for language %q", apperr.ErrNotFound, language)
	}
	return s.universeRepo.DeleteMusicPrompt(dbc, mp.ID)
}

func (s *universeService) mustGet(dbc dbctx.Context, slug string) (*domain.Universe, error) {
	u, err := s.universeRepo.GetBySlug(dbc, slug, false)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: universe %q", apperr.ErrNotFound, slug)
	}
	return u, nil
}
