package source

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMangadex(t *testing.T) {
	raw := `{
		"id": "b73f9a0e",
		"attributes": {
			"title": {"en": "Chainsaw Man"},
			"altTitles": [{"ja": "チェンソーマン"}],
			"description": {"en": "Denji has a simple dream."},
			"status": "ongoing",
			"year": 2018,
			"contentRating": "suggestive",
			"lastChapter": "97",
			"updatedAt": "2024-05-01T10:00:00+00:00",
			"tags": [
				{"id": "t1", "attributes": {"name": {"en": "Action"}, "group": "genre"}},
				{"id": "t2", "attributes": {"name": {"en": "Gore"}, "group": "theme"}}
			]
		},
		"relationships": [
			{"type": "cover_art", "attributes": {"fileName": "cover.jpg"}},
			{"type": "author", "attributes": {"name": "Tatsuki Fujimoto"}}
		]
	}`
	var m mdManga
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	got := mapMangadex(m)

	assert.Equal(t, "mangadex:b73f9a0e", got.ID)
	assert.Equal(t, "Chainsaw Man", got.Title)
	assert.Equal(t, []string{"チェンソーマン"}, got.AltTitles)
	assert.Equal(t, "https://uploads.mangadex.org/covers/b73f9a0e/cover.jpg.512.jpg", got.CoverURL)
	assert.Equal(t, "Tatsuki Fujimoto", got.Author)
	assert.Equal(t, []string{"Action", "Gore"}, got.Tags)
	assert.Equal(t, []string{"Action"}, got.Genres)
	assert.Equal(t, 2018, got.Year)
	assert.Equal(t, "97", got.LastChapter)
	assert.False(t, got.Adult)
	require.NotNil(t, got.UpdatedAt)
}

func TestMapMangadexAdultRating(t *testing.T) {
	m := mdManga{ID: "x"}
	m.Attributes.Title = map[string]string{"en": "X"}
	m.Attributes.ContentRating = "erotica"

	assert.True(t, mapMangadex(m).Adult)
}

func TestMapMangadexTitleFallsBackToRomaji(t *testing.T) {
	m := mdManga{ID: "x"}
	m.Attributes.Title = map[string]string{"ja-ro": "Boku no Kokoro"}

	assert.Equal(t, "Boku no Kokoro", mapMangadex(m).Title)
}

func TestMapComick(t *testing.T) {
	raw := `{
		"hid": "h1",
		"slug": "vagabond",
		"title": "Vagabond",
		"desc": "Musashi.",
		"status": 2,
		"bayesian_rating": "9.40",
		"year": 1998,
		"last_chapter": "327",
		"hentai": false,
		"md_titles": [{"title": "バガボンド"}],
		"md_covers": [{"b2key": "abc.jpg"}],
		"md_comic_md_genres": [
			{"md_genres": {"name": "Seinen", "group": "Category", "slug": "seinen"}},
			{"md_genres": {"name": "Action", "group": "Genre", "slug": "action"}}
		]
	}`
	var c ckComic
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	got := mapComick(c)

	assert.Equal(t, "comick:vagabond", got.ID)
	assert.Equal(t, "Vagabond", got.Title)
	assert.Equal(t, "https://meo.comick.pictures/abc.jpg", got.CoverURL)
	assert.Equal(t, "completed", got.Status)
	require.NotNil(t, got.Rating)
	assert.InDelta(t, 4.7, *got.Rating, 0.001)
	assert.Equal(t, []string{"Seinen", "Action"}, got.Tags)
	assert.Equal(t, []string{"Action"}, got.Genres)
	assert.False(t, got.Adult)
}

func TestComickStatusMapping(t *testing.T) {
	for status, want := range map[int]string{1: "ongoing", 2: "completed", 3: "cancelled", 4: "hiatus", 9: "unknown"} {
		c := ckComic{Slug: "s", Title: "T", Status: status}
		assert.Equal(t, want, mapComick(c).Status, "status=%d", status)
	}
}

func TestMapKitsu(t *testing.T) {
	raw := `{
		"id": "42",
		"attributes": {
			"canonicalTitle": "Monster",
			"titles": {"en": "Monster", "ja_jp": "モンスター"},
			"abbreviatedTitles": ["Mon"],
			"synopsis": "Dr. Tenma.",
			"averageRating": "84.2",
			"startDate": "1994-12-05",
			"ageRating": "R",
			"status": "finished",
			"chapterCount": 162,
			"posterImage": {"original": "https://kitsu/poster.jpg"}
		}
	}`
	var m ktManga
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	got := mapKitsu(m)

	assert.Equal(t, "kitsu:42", got.ID)
	assert.Equal(t, "Monster", got.Title)
	assert.Contains(t, got.AltTitles, "モンスター")
	assert.Contains(t, got.AltTitles, "Mon")
	assert.Equal(t, "https://kitsu/poster.jpg", got.CoverURL)
	require.NotNil(t, got.Rating)
	assert.InDelta(t, 4.21, *got.Rating, 0.001)
	assert.Equal(t, 1994, got.Year)
	assert.Equal(t, "162", got.LastChapter)
	assert.False(t, got.Adult, "R is not R18")
}

func TestMapKitsuR18IsAdult(t *testing.T) {
	m := ktManga{ID: "7"}
	m.Attributes.CanonicalTitle = "X"
	m.Attributes.AgeRating = "R18"

	assert.True(t, mapKitsu(m).Adult)
}

func TestMDContentRatings(t *testing.T) {
	check := func(opts SearchOptions) []string {
		params := url.Values{}
		mdContentRatings(params, opts)
		return params["contentRating[]"]
	}

	assert.Equal(t, []string{"safe", "suggestive"}, check(SearchOptions{}))
	assert.Equal(t, []string{"safe", "suggestive", "erotica", "pornographic"}, check(SearchOptions{IncludeAdult: true}))
	assert.Equal(t, []string{"erotica", "pornographic"}, check(SearchOptions{AdultOnly: true}))
}
