package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// ConceptSet is the output of concept generation: the source-language
// concepts plus their renderings in every supported language.
type ConceptSet struct {
	SourceLanguage string              `json:"source_language"`
	Concepts       []string            `json:"concepts"`
	Translations   map[string][]string `json:"translations"`
}

// GenerationOutcome summarizes one batch generation run. Per-item
// failures land in Errors and do not stop the batch.
type GenerationOutcome struct {
	Generated []string `json:"generated"`
	Errors    []string `json:"errors,omitempty"`
}

// GenerationService orchestrates AI content generation for universes:
// concept lists, their translations, per-asset images and videos, and
// per-language music. Batch operations run inside jobs and report
// progress through the JobService.
type GenerationService interface {
	Available() bool
	GenerateConcepts(ctx context.Context, theme string, count int, language string) (*ConceptSet, error)
	ApplyConcepts(ctx context.Context, slug string, set ConceptSet) (int, error)
	GenerateAllImages(ctx context.Context, jobID, slug string) (*GenerationOutcome, error)
	GenerateAllVideos(ctx context.Context, jobID, slug string) (*GenerationOutcome, error)
	GenerateMusic(ctx context.Context, jobID, slug string, languages []string) (*GenerationOutcome, error)
	GenerateUniverseContent(ctx context.Context, jobID, slug, theme string, conceptCount int, withVideos, withMusic bool) (map[string]interface{}, error)
}

type generationService struct {
	log          *logger.Logger
	client       GenerationClient
	jobs         JobService
	media        MediaStore
	universeRepo repos.UniverseRepo
	assetRepo    repos.AssetRepo
}

func NewGenerationService(
	baseLog *logger.Logger,
	client GenerationClient,
	jobs JobService,
	media MediaStore,
	universeRepo repos.UniverseRepo,
	assetRepo repos.AssetRepo,
) GenerationService {
	return &generationService{
		log:          baseLog.With("service", "GenerationService"),
		client:       client,
		jobs:         jobs,
		media:        media,
		universeRepo: universeRepo,
		assetRepo:    assetRepo,
	}
}

func (s *generationService) Available() bool {
	return s.client.Available()
}

// GenerateConcepts produces the concept list for a theme and translates
// it into every supported language. A failed translation falls back to
// the source-language text so the set stays rectangular.
func (s *generationService) GenerateConcepts(ctx context.Context, theme string, count int, language string) (*ConceptSet, error) {
	if !domain.ValidLanguage(language) {
		return nil, fmt.Errorf("%w: unsupported language %q", apperr.ErrInvalidArgument, language)
	}
	if count <= 0 {
		count = 10
	}

	concepts, err := s.client.GenerateConcepts(ctx, theme, count, language)
	if err != nil {
		return nil, err
	}

	return &ConceptSet{
		SourceLanguage: language,
		Concepts:       concepts,
		Translations:   s.translateConcepts(ctx, concepts, language),
	}, nil
}

func (s *generationService) translateConcepts(ctx context.Context, concepts []string, sourceLang string) map[string][]string {
	out := map[string][]string{sourceLang: concepts}
	for _, lang := range domain.Languages {
		if lang == sourceLang {
			continue
		}
		translated := make([]string, 0, len(concepts))
		for _, concept := range concepts {
			t, err := s.client.Translate(ctx, concept, sourceLang, lang)
			if err != nil {
				s.log.Warn("Translation failed, keeping source text", "concept", concept, "lang", lang, "error", err)
				t = concept
			}
			translated = append(translated, t)
		}
		out[lang] = translated
	}
	return out
}

// ApplyConcepts replaces the universe's asset set from a concept set.
// Asset n gets image name "NN_stem.png" from its source-language
// concept and one translation row per language.
func (s *generationService) ApplyConcepts(ctx context.Context, slug string, set ConceptSet) (int, error) {
	if len(set.Concepts) == 0 {
		return 0, fmt.Errorf("%w: empty concept list", apperr.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	universe, err := s.universeRepo.GetBySlug(dbc, slug, false)
	if err != nil {
		return 0, err
	}
	if universe == nil {
		return 0, fmt.Errorf("%w: universe %q", apperr.ErrNotFound, slug)
	}

	assets := make([]*domain.Asset, 0, len(set.Concepts))
	for i, concept := range set.Concepts {
		asset := &domain.Asset{
			SortOrder:   i,
			ImageName:   domain.AssetImageName(i, concept),
			DisplayName: concept,
		}
		for lang, translated := range set.Translations {
			if i >= len(translated) {
				continue
			}
			asset.Translations = append(asset.Translations, domain.AssetTranslation{
				Language:    lang,
				DisplayName: translated[i],
			})
		}
		assets = append(assets, asset)
	}

	if err := s.assetRepo.ReplaceAll(dbc, universe.ID, assets); err != nil {
		return 0, err
	}
	s.log.Info("Applied concepts to universe", "slug", slug, "assets", len(assets))
	return len(assets), nil
}

// GenerateAllImages renders one image per asset in sort order. Prompt
// precedence is custom asset prompt, then the universe default with
// {concept} substituted, then a derived prompt.
func (s *generationService) GenerateAllImages(ctx context.Context, jobID, slug string) (*GenerationOutcome, error) {
	universe, assets, err := s.loadUniverse(ctx, slug)
	if err != nil {
		return nil, err
	}

	s.jobs.SetTotalSteps(jobID, len(assets))
	outcome := &GenerationOutcome{}

	for i, asset := range assets {
		prompt := s.imagePrompt(universe, asset)
		content, err := s.client.GenerateImage(ctx, prompt)
		if err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", asset.DisplayName, err))
			s.jobs.Step(jobID, fmt.Sprintf("Error on %s", asset.DisplayName))
			continue
		}
		rel := slug + "/" + asset.ImageName
		if _, err := s.media.Save(content, rel); err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: save: %v", asset.DisplayName, err))
			s.jobs.Step(jobID, fmt.Sprintf("Error on %s", asset.DisplayName))
			continue
		}
		if err := s.assetRepo.MarkGenerated(dbctx.Context{Ctx: ctx}, asset.ID); err != nil {
			s.log.Warn("Failed to record generation", "asset", asset.ID, "error", err)
		}
		outcome.Generated = append(outcome.Generated, rel)
		s.jobs.Step(jobID, fmt.Sprintf("Generated image %d/%d: %s", i+1, len(assets), asset.DisplayName))
	}
	return outcome, nil
}

// GenerateAllVideos animates each asset's existing image. Assets with
// no image yet are recorded as errors and skipped.
func (s *generationService) GenerateAllVideos(ctx context.Context, jobID, slug string) (*GenerationOutcome, error) {
	universe, assets, err := s.loadUniverse(ctx, slug)
	if err != nil {
		return nil, err
	}

	s.jobs.SetTotalSteps(jobID, len(assets))
	outcome := &GenerationOutcome{}

	for i, asset := range assets {
		imageRel := slug + "/" + asset.ImageName
		image, ok := s.media.Read(imageRel)
		if !ok {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: no image to animate", asset.DisplayName))
			s.jobs.Step(jobID, fmt.Sprintf("Skipped %s", asset.DisplayName))
			continue
		}
		prompt := s.videoPrompt(universe, asset)
		content, err := s.client.GenerateVideo(ctx, image, prompt)
		if err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", asset.DisplayName, err))
			s.jobs.Step(jobID, fmt.Sprintf("Error on %s", asset.DisplayName))
			continue
		}
		rel := slug + "/" + domain.AssetVideoName(asset.ImageName)
		if _, err := s.media.Save(content, rel); err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: save: %v", asset.DisplayName, err))
			s.jobs.Step(jobID, fmt.Sprintf("Error on %s", asset.DisplayName))
			continue
		}
		outcome.Generated = append(outcome.Generated, rel)
		s.jobs.Step(jobID, fmt.Sprintf("Generated video %d/%d: %s", i+1, len(assets), asset.DisplayName))
	}
	return outcome, nil
}

// GenerateMusic renders one track per requested language, named
// "{lang}.mp3" under the universe folder. The stored music prompt for
// the language supplies style and lyrics; without one, a default style
// built from the universe name is used with no lyrics.
func (s *generationService) GenerateMusic(ctx context.Context, jobID, slug string, languages []string) (*GenerationOutcome, error) {
	if len(languages) == 0 {
		languages = domain.Languages
	}
	for _, lang := range languages {
		if !domain.ValidLanguage(lang) {
			return nil, fmt.Errorf("%w: unsupported language %q", apperr.ErrInvalidArgument, lang)
		}
	}

	dbc := dbctx.Context{Ctx: ctx}
	universe, err := s.universeRepo.GetBySlug(dbc, slug, false)
	if err != nil {
		return nil, err
	}
	if universe == nil {
		return nil, fmt.Errorf("%w: universe %q", apperr.ErrNotFound, slug)
	}

	s.jobs.SetTotalSteps(jobID, len(languages))
	outcome := &GenerationOutcome{}

	for i, lang := range languages {
		prompt := fmt.Sprintf("children's music, playful, upbeat, instrumental background music for %s", universe.Name)
		lyrics := ""
		stored, err := s.universeRepo.GetMusicPrompt(dbc, universe.ID, lang)
		if err != nil {
			s.log.Warn("Failed to load music prompt", "slug", slug, "lang", lang, "error", err)
		} else if stored != nil {
			if stored.Prompt != "" {
				prompt = stored.Prompt
			}
			lyrics = stored.Lyrics
		}

		content, err := s.client.GenerateMusic(ctx, prompt, lyrics, 60)
		if err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", lang, err))
			s.jobs.Step(jobID, fmt.Sprintf("Error on %s", lang))
			continue
		}
		rel := slug + "/" + domain.MusicFileName(lang)
		if _, err := s.media.Save(content, rel); err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: save: %v", lang, err))
			s.jobs.Step(jobID, fmt.Sprintf("Error on %s", lang))
			continue
		}
		outcome.Generated = append(outcome.Generated, rel)
		s.jobs.Step(jobID, fmt.Sprintf("Generated music %d/%d: %s", i+1, len(languages), lang))
	}
	return outcome, nil
}

// GenerateUniverseContent is the full pipeline: concepts, translations,
// asset rows, images, then optionally videos and music. The first two
// stages are fatal on error; media stages collect per-item errors.
func (s *generationService) GenerateUniverseContent(ctx context.Context, jobID, slug, theme string, conceptCount int, withVideos, withMusic bool) (map[string]interface{}, error) {
	result := map[string]interface{}{}

	if err := s.media.CreateUniverseDir(slug); err != nil {
		return nil, err
	}

	s.jobs.UpdateMessage(jobID, "Generating concepts...")
	set, err := s.GenerateConcepts(ctx, theme, conceptCount, "fr")
	if err != nil {
		return nil, fmt.Errorf("concepts: %w", err)
	}
	result["concepts"] = set.Concepts
	result["translations"] = set.Translations

	if _, err := s.ApplyConcepts(ctx, slug, *set); err != nil {
		return nil, fmt.Errorf("apply concepts: %w", err)
	}

	s.jobs.UpdateMessage(jobID, "Generating images...")
	images, err := s.GenerateAllImages(ctx, jobID, slug)
	if err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	result["images"] = images

	if withVideos {
		s.jobs.UpdateMessage(jobID, "Generating videos...")
		videos, err := s.GenerateAllVideos(ctx, jobID, slug)
		if err != nil {
			return nil, fmt.Errorf("videos: %w", err)
		}
		result["videos"] = videos
	}

	if withMusic {
		s.jobs.UpdateMessage(jobID, "Generating music...")
		music, err := s.GenerateMusic(ctx, jobID, slug, nil)
		if err != nil {
			return nil, fmt.Errorf("music: %w", err)
		}
		result["music"] = music
	}

	return result, nil
}

func (s *generationService) loadUniverse(ctx context.Context, slug string) (*domain.Universe, []*domain.Asset, error) {
	dbc := dbctx.Context{Ctx: ctx}
	universe, err := s.universeRepo.GetBySlug(dbc, slug, true)
	if err != nil {
		return nil, nil, err
	}
	if universe == nil {
		return nil, nil, fmt.Errorf("%w: universe %q", apperr.ErrNotFound, slug)
	}
	assets, err := s.assetRepo.ListByUniverse(dbc, universe.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(assets) == 0 {
		return nil, nil, fmt.Errorf("%w: universe %q has no assets", apperr.ErrInvalidArgument, slug)
	}
	return universe, assets, nil
}

func (s *generationService) imagePrompt(universe *domain.Universe, asset *domain.Asset) string {
	if asset.Prompts != nil && asset.Prompts.CustomImagePrompt != "" {
		return asset.Prompts.CustomImagePrompt
	}
	if universe.Prompts != nil && universe.Prompts.DefaultImagePrompt != "" {
		return substituteConcept(universe.Prompts.DefaultImagePrompt, asset.DisplayName)
	}
	return fmt.Sprintf("A cute, friendly %s in a %s setting, children's illustration, vibrant colors, simple shapes, no text, centered composition, white background", asset.DisplayName, universe.Name)
}

func (s *generationService) videoPrompt(universe *domain.Universe, asset *domain.Asset) string {
	if asset.Prompts != nil && asset.Prompts.CustomVideoPrompt != "" {
		return asset.Prompts.CustomVideoPrompt
	}
	if universe.Prompts != nil && universe.Prompts.DefaultVideoPrompt != "" {
		return substituteConcept(universe.Prompts.DefaultVideoPrompt, asset.DisplayName)
	}
	return fmt.Sprintf("The %s has gentle swaying, soft breathing motion, slight shimmer, looping seamlessly, child-friendly animation", asset.DisplayName)
}

// substituteConcept fills the {concept} placeholder in a prompt
// template; templates without the placeholder get the concept appended.
func substituteConcept(tmpl, concept string) string {
	if strings.Contains(tmpl, "{concept}") {
		return strings.ReplaceAll(tmpl, "{concept}", concept)
	}
	return tmpl + ": " + concept
}

// IsNotFound reports whether an error from this package means a missing
// entity rather than a failure.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
