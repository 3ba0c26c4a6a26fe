package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mangafox/models"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"Ongoing":       models.StatusOngoing,
		"RELEASING":     models.StatusOngoing,
		"current":       models.StatusOngoing,
		"Publishing":    models.StatusOngoing,
		"completed":     models.StatusCompleted,
		"2 (Finished)":  models.StatusCompleted,
		"On Hiatus":     models.StatusHiatus,
		"cancelled":     models.StatusCancelled,
		"Dropped":       models.StatusCancelled,
		"":              models.StatusUnknown,
		"tba":           models.StatusUnknown,
		"something odd": models.StatusUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), "raw=%q", raw)
	}
}

func TestAdultFromRating(t *testing.T) {
	assert.True(t, AdultFromRating("erotica"))
	assert.True(t, AdultFromRating("Pornographic"))
	assert.True(t, AdultFromRating("R18"))
	assert.False(t, AdultFromRating("safe"))
	assert.False(t, AdultFromRating("suggestive"))
	assert.False(t, AdultFromRating(""))
}

func TestNormalizeMangaDefaults(t *testing.T) {
	d := &Descriptor{ID: "alpha"}

	m := NormalizeManga(models.Manga{ID: "raw-slug", Status: "Releasing"}, d)

	assert.Equal(t, "alpha:raw-slug", m.ID)
	assert.Equal(t, "alpha", m.SourceID)
	assert.Equal(t, "alpha:raw-slug", m.Title)
	assert.Equal(t, "Unknown", m.Author)
	assert.Equal(t, "Unknown", m.Artist)
	assert.Equal(t, models.StatusOngoing, m.Status)
}

func TestNormalizeMangaKeepsExistingPrefix(t *testing.T) {
	d := &Descriptor{ID: "alpha"}

	m := NormalizeManga(models.Manga{ID: "alpha:slug", Title: "Title", Author: "A"}, d)

	assert.Equal(t, "alpha:slug", m.ID)
	assert.Equal(t, "A", m.Artist, "artist defaults to author")
}

func TestNormalizeMangaForcesAdultForAdultOnlySources(t *testing.T) {
	d := &Descriptor{ID: "lewd", Adult: AdultOnly}

	m := NormalizeManga(models.Manga{ID: "1", Title: "X"}, d)
	assert.True(t, m.Adult)
}

func TestNormalizeChapterDefaults(t *testing.T) {
	d := &Descriptor{ID: "alpha"}

	c := NormalizeChapter(models.Chapter{ID: "c1"}, d)

	assert.Equal(t, "alpha", c.SourceID)
	assert.Equal(t, "0", c.Chapter)
	assert.Equal(t, "en", c.Language)

	c = NormalizeChapter(models.Chapter{ID: "c2", Chapter: "12.5", Language: "pt-br"}, d)
	assert.Equal(t, "12.5", c.Chapter)
	assert.Equal(t, "pt-br", c.Language)
}

func TestTitleNormalizer(t *testing.T) {
	n := DefaultTitleNormalizer

	assert.Equal(t, "one piece", n.Normalize("One Piece"))
	assert.Equal(t, "one piece", n.Normalize("  ONE   PIECE!! "))
	assert.Equal(t, "solo leveling official", n.Normalize("Solo Leveling (Official)"))
	assert.Equal(t, n.Normalize("Dr. Stone"), n.Normalize("Dr STONE"))
	assert.Equal(t, "", n.Normalize("!!!"))
}
