package source

import (
	"strings"
	"unicode"

	"mangafox/models"
)

// NormalizeStatus maps a raw provider status string onto the fixed enum.
// Substring matching on purpose: upstreams say "Ongoing", "releasing",
// "2 (Completed)" and worse.
func NormalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return models.StatusUnknown
	case strings.Contains(s, "ongoing"), strings.Contains(s, "releasing"), strings.Contains(s, "current"), strings.Contains(s, "publishing"):
		return models.StatusOngoing
	case strings.Contains(s, "complete"), strings.Contains(s, "finished"):
		return models.StatusCompleted
	case strings.Contains(s, "hiatus"):
		return models.StatusHiatus
	case strings.Contains(s, "cancel"), strings.Contains(s, "dropped"):
		return models.StatusCancelled
	default:
		return models.StatusUnknown
	}
}

// AdultFromRating reports whether an upstream content-rating bucket means
// adult content.
func AdultFromRating(rating string) bool {
	switch strings.ToLower(rating) {
	case "erotica", "pornographic", "r18", "adult":
		return true
	}
	return false
}

// NormalizeManga applies the canonical defaults and invariants to a record
// a provider produced. Total by design: malformed upstream data degrades to
// defaults instead of failing the batch.
func NormalizeManga(m models.Manga, d *Descriptor) models.Manga {
	m.SourceID = d.ID
	if !strings.HasPrefix(m.ID, d.ID+":") {
		m.ID = d.ID + ":" + m.ID
	}
	if m.Title == "" {
		m.Title = m.ID
	}
	if m.Author == "" {
		m.Author = "Unknown"
	}
	if m.Artist == "" {
		m.Artist = m.Author
	}
	m.Status = NormalizeStatus(m.Status)
	if d.Adult == AdultOnly {
		m.Adult = true
	}
	return m
}

// NormalizeChapter applies the canonical chapter defaults.
func NormalizeChapter(c models.Chapter, d *Descriptor) models.Chapter {
	c.SourceID = d.ID
	if c.Chapter == "" {
		c.Chapter = "0"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	return c
}

// TitleNormalizer reduces a title to a comparison key for cross-source
// deduplication. Pluggable so fuzzy matching can replace it without
// touching the manager.
type TitleNormalizer interface {
	Normalize(title string) string
}

// basicTitleNormalizer lower-cases, strips everything that is not a word
// character and collapses whitespace. Titles are the only correlation
// signal providers share, noisy as they are.
type basicTitleNormalizer struct{}

func (basicTitleNormalizer) Normalize(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	space := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// DefaultTitleNormalizer is the strategy the manager uses unless one is
// injected through Options.
var DefaultTitleNormalizer TitleNormalizer = basicTitleNormalizer{}
