package domain

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Slugify derives the canonical URL-safe identifier from a display name.
// The rule is the single slugification scheme used everywhere: lowercase,
// accents and punctuation dropped, separator runs collapsed to one dash.
// The slug is assigned once at universe creation and never regenerated.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_' || r == '/':
			return '-'
		default:
			return -1
		}
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

func ValidSlug(slug string) bool {
	return slug != "" && len(slug) <= 100 && slugPattern.MatchString(slug)
}

// ConceptStem derives the filename stem for a concept. Stems use
// underscore separators to match the existing asset naming on disk.
func ConceptStem(concept string) string {
	return strings.ReplaceAll(Slugify(concept), "-", "_")
}

// AssetImageName derives the deterministic image filename for the
// concept at the given position in the generation sequence.
func AssetImageName(index int, concept string) string {
	stem := ConceptStem(concept)
	if stem == "" {
		stem = fmt.Sprintf("item_%d", index+1)
	}
	return fmt.Sprintf("%02d_%s.png", index, stem)
}

// AssetVideoName derives the video filename from an asset's image name:
// same stem, .mp4 extension.
func AssetVideoName(imageName string) string {
	return strings.TrimSuffix(imageName, path.Ext(imageName)) + ".mp4"
}

func MusicFileName(language string) string {
	return language + ".mp3"
}

const ThumbnailFileName = "thumbnail.jpg"
