package services

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/envutil"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// MediaStore is the local filesystem mirror of the remote storage bucket.
// Layout is flat per universe: {root}/{bucket}/{slug}/{filename}.
type MediaStore interface {
	Save(content []byte, relPath string) (string, error)
	Read(relPath string) ([]byte, bool)
	Delete(relPath string) bool
	Exists(relPath string) bool
	ListUniverse(slug string) ([]string, error)
	CreateUniverseDir(slug string) error
	DeleteUniverseDir(slug string) bool
	RenameAssetMedia(slug, oldImageName, newImageName string) error

	PublicURL(relPath string) string
	AssetImageURL(slug, imageName string) string
	AssetVideoURL(slug, imageName string) string
	ThumbnailURL(slug string) string
	MusicURL(slug, language string) string

	BucketName() string
	Root() string
}

type mediaStore struct {
	log        *logger.Logger
	bucketName string
	root       string
}

func NewMediaStore(log *logger.Logger) (MediaStore, error) {
	bucketName := envutil.String("SUPABASE_BUCKET_NAME", "univers")
	mediaRoot := envutil.String("MEDIA_ROOT", "storage/buckets")
	root := filepath.Join(mediaRoot, bucketName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &mediaStore{
		log:        log.With("service", "MediaStore"),
		bucketName: bucketName,
		root:       root,
	}, nil
}

func (m *mediaStore) BucketName() string { return m.bucketName }
func (m *mediaStore) Root() string       { return m.root }

func (m *mediaStore) localPath(relPath string) string {
	return filepath.Join(m.root, filepath.FromSlash(relPath))
}

func (m *mediaStore) Save(content []byte, relPath string) (string, error) {
	p := m.localPath(relPath)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", relPath, err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", relPath, err)
	}
	return m.PublicURL(relPath), nil
}

func (m *mediaStore) Read(relPath string) ([]byte, bool) {
	data, err := os.ReadFile(m.localPath(relPath))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (m *mediaStore) Delete(relPath string) bool {
	return os.Remove(m.localPath(relPath)) == nil
}

func (m *mediaStore) Exists(relPath string) bool {
	info, err := os.Stat(m.localPath(relPath))
	return err == nil && !info.IsDir()
}

// ListUniverse returns the universe's file paths relative to the bucket
// root, e.g. "jungle/00_lion.png", sorted for deterministic ordering.
func (m *mediaStore) ListUniverse(slug string) ([]string, error) {
	dir := filepath.Join(m.root, slug)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, slug+"/"+e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (m *mediaStore) CreateUniverseDir(slug string) error {
	return os.MkdirAll(filepath.Join(m.root, slug), 0o755)
}

func (m *mediaStore) DeleteUniverseDir(slug string) bool {
	dir := filepath.Join(m.root, slug)
	if _, err := os.Stat(dir); err != nil {
		return false
	}
	return os.RemoveAll(dir) == nil
}

// RenameAssetMedia renames an asset's image and video together. If the
// video rename fails the image rename is rolled back, so the pair either
// moves as a unit or not at all.
func (m *mediaStore) RenameAssetMedia(slug, oldImageName, newImageName string) error {
	oldImage := m.localPath(slug + "/" + oldImageName)
	newImage := m.localPath(slug + "/" + newImageName)
	if err := os.Rename(oldImage, newImage); err != nil {
		return fmt.Errorf("rename image %s: %w", oldImageName, err)
	}
	oldVideo := m.localPath(slug + "/" + domain.AssetVideoName(oldImageName))
	newVideo := m.localPath(slug + "/" + domain.AssetVideoName(newImageName))
	if _, err := os.Stat(oldVideo); err == nil {
		if err := os.Rename(oldVideo, newVideo); err != nil {
			_ = os.Rename(newImage, oldImage)
			return fmt.Errorf("rename video %s: %w", domain.AssetVideoName(oldImageName), err)
		}
	}
	return nil
}

func (m *mediaStore) PublicURL(relPath string) string {
	return fmt.Sprintf("/storage/buckets/%s/%s", m.bucketName, relPath)
}

func (m *mediaStore) AssetImageURL(slug, imageName string) string {
	rel := slug + "/" + imageName
	if !m.Exists(rel) {
		return ""
	}
	return m.PublicURL(rel)
}

func (m *mediaStore) AssetVideoURL(slug, imageName string) string {
	rel := slug + "/" + domain.AssetVideoName(imageName)
	if !m.Exists(rel) {
		return ""
	}
	return m.PublicURL(rel)
}

func (m *mediaStore) ThumbnailURL(slug string) string {
	rel := slug + "/" + domain.ThumbnailFileName
	if !m.Exists(rel) {
		return ""
	}
	return m.PublicURL(rel)
}

func (m *mediaStore) MusicURL(slug, language string) string {
	rel := slug + "/" + domain.MusicFileName(language)
	if !m.Exists(rel) {
		return ""
	}
	return m.PublicURL(rel)
}

// MimeType guesses the content type from the file extension, falling back
// to application/octet-stream.
func MimeType(relPath string) string {
	if t := mime.TypeByExtension(filepath.Ext(relPath)); t != "" {
		return t
	}
	return "application/octet-stream"
}
