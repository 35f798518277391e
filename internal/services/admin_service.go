package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
	"github.com/petitmonde/univers-backend/internal/pkg/dbctx"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

const listTestUniversesLimit = 1000

// CleanupResult reports what happened to one test universe across the
// local store, the remote store and the remote bucket.
type CleanupResult struct {
	Slug          string   `json:"slug"`
	LocalDeleted  bool     `json:"local_deleted"`
	RemoteDeleted bool     `json:"remote_deleted"`
	FilesDeleted  int      `json:"files_deleted"`
	Errors        []string `json:"errors,omitempty"`
}

// CleanupReport aggregates a sweep over every test universe.
type CleanupReport struct {
	DryRun    bool            `json:"dry_run"`
	Found     []string        `json:"found_test_universes"`
	Succeeded int             `json:"successful_cleanups"`
	Failed    int             `json:"failed_cleanups"`
	Results   []CleanupResult `json:"results,omitempty"`
}

// AdminService removes universes left behind by manual testing, both
// locally and on the remote side. Only slugs recognized as test
// universes may be touched through it.
type AdminService interface {
	ListTestUniverses(ctx context.Context) ([]string, error)
	CleanupTestUniverse(ctx context.Context, slug string) (*CleanupResult, error)
	CleanupAllTestUniverses(ctx context.Context, dryRun bool) (*CleanupReport, error)
}

// IsTestUniverse reports whether a slug names a throwaway universe.
// Anything containing "test", in any case, qualifies.
func IsTestUniverse(slug string) bool {
	return strings.Contains(strings.ToLower(slug), "test")
}

type adminService struct {
	log          *logger.Logger
	universeRepo repos.UniverseRepo
	universes    UniverseService
	remote       RemoteStore
	bucket       RemoteBucket
}

func NewAdminService(
	baseLog *logger.Logger,
	universeRepo repos.UniverseRepo,
	universes UniverseService,
	remote RemoteStore,
	bucket RemoteBucket,
) AdminService {
	return &adminService{
		log:          baseLog.With("service", "AdminService"),
		universeRepo: universeRepo,
		universes:    universes,
		remote:       remote,
		bucket:       bucket,
	}
}

func (s *adminService) ListTestUniverses(ctx context.Context) ([]string, error) {
	all, _, err := s.universeRepo.List(dbctx.Context{Ctx: ctx}, 0, listTestUniversesLimit, nil)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0)
	for _, u := range all {
		if IsTestUniverse(u.Slug) {
			slugs = append(slugs, u.Slug)
		}
	}
	return slugs, nil
}

// CleanupTestUniverse deletes the universe locally (rows plus media
// dir), then remotely (bucket files first, then rows). A side that is
// already absent counts as cleaned; per-side failures are collected so
// the other side is still attempted.
func (s *adminService) CleanupTestUniverse(ctx context.Context, slug string) (*CleanupResult, error) {
	if !IsTestUniverse(slug) {
		return nil, fmt.Errorf("%w: %q is not a test universe", apperr.ErrInvalidArgument, slug)
	}

	res := &CleanupResult{Slug: slug}

	switch err := s.universes.Delete(ctx, slug); {
	case err == nil:
		res.LocalDeleted = true
	case IsNotFound(err):
	default:
		res.Errors = append(res.Errors, fmt.Sprintf("local: %v", err))
	}

	if s.remote != nil && s.remote.IsConnected() {
		s.cleanupRemote(ctx, slug, res)
	}

	s.log.Info("Cleaned up test universe",
		"slug", slug, "local", res.LocalDeleted, "remote", res.RemoteDeleted,
		"files", res.FilesDeleted, "errors", len(res.Errors))
	return res, nil
}

func (s *adminService) cleanupRemote(ctx context.Context, slug string, res *CleanupResult) {
	u, err := s.remote.GetUniverseBySlug(ctx, slug)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("remote lookup: %v", err))
		return
	}
	if u == nil {
		return
	}

	if s.bucket == nil {
		s.log.Debug("Remote bucket not configured, skipping file cleanup", "slug", slug)
	} else if objects, err := s.bucket.List(ctx, slug+"/"); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("list bucket: %v", err))
	} else if len(objects) > 0 {
		paths := make([]string, 0, len(objects))
		for _, obj := range objects {
			paths = append(paths, obj.Name)
		}
		if err := s.bucket.Delete(ctx, paths); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("delete bucket files: %v", err))
		} else {
			res.FilesDeleted = len(paths)
		}
	}

	if err := s.remote.DeleteAllAssets(ctx, u.ID); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("delete remote assets: %v", err))
		return
	}
	if err := s.remote.DeleteUniverse(ctx, u.ID); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("delete remote universe: %v", err))
		return
	}
	res.RemoteDeleted = true
}

func (s *adminService) CleanupAllTestUniverses(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	slugs, err := s.ListTestUniverses(ctx)
	if err != nil {
		return nil, err
	}
	report := &CleanupReport{DryRun: dryRun, Found: slugs}
	if dryRun {
		return report, nil
	}
	for _, slug := range slugs {
		res, err := s.CleanupTestUniverse(ctx, slug)
		if err != nil {
			report.Failed++
			report.Results = append(report.Results, CleanupResult{Slug: slug, Errors: []string{err.Error()}})
			continue
		}
		if len(res.Errors) == 0 {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, *res)
	}
	return report, nil
}
