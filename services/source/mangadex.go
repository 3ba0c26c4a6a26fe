package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"mangafox/models"
)

const mangadexAPI = "https://api.mangadex.org"

// MangaDexDescriptor is the static metadata for the official MangaDex API.
// It is the priority-tier source: API-backed, fast and reliable.
func MangaDexDescriptor() Descriptor {
	return Descriptor{
		ID:           "mangadex",
		Name:         "MangaDex",
		Icon:         "🔷",
		Description:  "Official API, reliable",
		Adult:        Mixed,
		Enabled:      true,
		ContentTypes: []string{"manga", "manhwa", "manhua", "oneshot"},
		Filters: Filters{
			Tags:   true,
			Status: true,
			Sorts:  []string{"relevance", "popular", "latest", "rating", "title"},
		},
		RateLimit: 100 * time.Millisecond,
	}
}

type mangadexProvider struct {
	mu       sync.Mutex
	tagCache []mdTag
	tagTime  time.Time
}

// NewMangaDex creates the MangaDex adapter.
func NewMangaDex() Provider {
	return &mangadexProvider{}
}

// --- Raw API models ---

type mdListResponse struct {
	Data  []mdManga `json:"data"`
	Total int       `json:"total"`
}

type mdEntityResponse struct {
	Data *mdManga `json:"data"`
}

type mdManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title         map[string]string   `json:"title"`
		AltTitles     []map[string]string `json:"altTitles"`
		Description   map[string]string   `json:"description"`
		Status        string              `json:"status"`
		Year          int                 `json:"year"`
		ContentRating string              `json:"contentRating"`
		LastChapter   string              `json:"lastChapter"`
		UpdatedAt     string              `json:"updatedAt"`
		Tags          []mdTag             `json:"tags"`
	} `json:"attributes"`
	Relationships []mdRelationship `json:"relationships"`
}

type mdTag struct {
	ID         string `json:"id"`
	Attributes struct {
		Name  map[string]string `json:"name"`
		Group string            `json:"group"`
	} `json:"attributes"`
}

type mdTagResponse struct {
	Data []mdTag `json:"data"`
}

type mdRelationship struct {
	Type       string `json:"type"`
	Attributes struct {
		FileName string `json:"fileName"`
		Name     string `json:"name"`
	} `json:"attributes"`
}

type mdChapterResponse struct {
	Data  []mdChapter `json:"data"`
	Total int         `json:"total"`
}

type mdChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Chapter            string `json:"chapter"`
		Volume             string `json:"volume"`
		Title              string `json:"title"`
		Pages              int    `json:"pages"`
		TranslatedLanguage string `json:"translatedLanguage"`
		PublishAt          string `json:"publishAt"`
		ExternalURL        string `json:"externalUrl"`
	} `json:"attributes"`
	Relationships []mdRelationship `json:"relationships"`
}

type mdAtHomeResponse struct {
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash      string   `json:"hash"`
		Data      []string `json:"data"`
		DataSaver []string `json:"dataSaver"`
	} `json:"chapter"`
}

// --- Implementation ---

func mdContentRatings(params url.Values, opts SearchOptions) {
	if opts.AdultOnly {
		params.Add("contentRating[]", "erotica")
		params.Add("contentRating[]", "pornographic")
		return
	}
	params.Add("contentRating[]", "safe")
	params.Add("contentRating[]", "suggestive")
	if opts.IncludeAdult {
		params.Add("contentRating[]", "erotica")
		params.Add("contentRating[]", "pornographic")
	}
}

func (p *mangadexProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]models.Manga, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 24
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("offset", fmt.Sprintf("%d", (page-1)*limit))
	params.Add("includes[]", "cover_art")
	params.Set("hasAvailableChapters", "true")
	mdContentRatings(params, opts)

	if query != "" {
		params.Set("title", query)
	}

	switch opts.Sort {
	case "latest":
		params.Set("order[latestUploadedChapter]", "desc")
	case "rating":
		params.Set("order[rating]", "desc")
	case "title":
		params.Set("order[title]", "asc")
	case "relevance":
		params.Set("order[relevance]", "desc")
	default:
		if query != "" {
			params.Set("order[relevance]", "desc")
		} else {
			params.Set("order[followedCount]", "desc")
		}
	}

	if opts.Status != "" && opts.Status != "all" {
		params.Add("status[]", opts.Status)
	}

	// MangaDex filters by tag UUID, not name.
	if ids := p.tagIDs(ctx, opts.Tags); len(ids) > 0 {
		for _, id := range ids {
			params.Add("includedTags[]", id)
		}
	}
	if ids := p.tagIDs(ctx, opts.ExcludeTags); len(ids) > 0 {
		for _, id := range ids {
			params.Add("excludedTags[]", id)
		}
	}

	var raw mdListResponse
	if err := fetchJSON(ctx, mangadexAPI+"/manga?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	mangas := make([]models.Manga, 0, len(raw.Data))
	for _, m := range raw.Data {
		mangas = append(mangas, mapMangadex(m))
	}
	return mangas, nil
}

func (p *mangadexProvider) GetPopular(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.Search(ctx, "", SearchOptions{Page: opts.Page, Limit: opts.Limit, IncludeAdult: opts.IncludeAdult})
}

func (p *mangadexProvider) GetLatest(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.Search(ctx, "", SearchOptions{Page: opts.Page, Limit: opts.Limit, IncludeAdult: opts.IncludeAdult, Sort: "latest"})
}

func (p *mangadexProvider) GetNewlyAdded(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 24
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("offset", fmt.Sprintf("%d", (page-1)*limit))
	params.Add("includes[]", "cover_art")
	params.Set("order[createdAt]", "desc")
	params.Set("hasAvailableChapters", "true")
	mdContentRatings(params, SearchOptions{IncludeAdult: opts.IncludeAdult})

	var raw mdListResponse
	if err := fetchJSON(ctx, mangadexAPI+"/manga?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	mangas := make([]models.Manga, 0, len(raw.Data))
	for _, m := range raw.Data {
		mangas = append(mangas, mapMangadex(m))
	}
	return mangas, nil
}

func (p *mangadexProvider) GetTopRated(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.Search(ctx, "", SearchOptions{Page: opts.Page, Limit: opts.Limit, IncludeAdult: opts.IncludeAdult, Sort: "rating"})
}

func (p *mangadexProvider) GetMangaDetails(ctx context.Context, id string) (*models.Manga, error) {
	slug := strings.TrimPrefix(id, "mangadex:")

	params := url.Values{}
	params.Add("includes[]", "cover_art")
	params.Add("includes[]", "author")
	params.Add("includes[]", "artist")

	var raw mdEntityResponse
	if err := fetchJSON(ctx, mangadexAPI+"/manga/"+slug+"?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	if raw.Data == nil {
		return nil, ErrNotFound
	}

	manga := mapMangadex(*raw.Data)
	return &manga, nil
}

func (p *mangadexProvider) GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	slug := strings.TrimPrefix(mangaID, "mangadex:")

	// Page through the full feed; dedupe per (volume, chapter, language)
	// keeping the upload with the most pages.
	type chapterKey struct{ vol, num, lang string }
	best := make(map[chapterKey]mdChapter)
	var order []chapterKey

	const pageSize = 500
	for offset := 0; offset <= 10000; offset += pageSize {
		params := url.Values{}
		params.Set("limit", fmt.Sprintf("%d", pageSize))
		params.Set("offset", fmt.Sprintf("%d", offset))
		params.Set("order[chapter]", "asc")
		params.Add("contentRating[]", "safe")
		params.Add("contentRating[]", "suggestive")
		params.Add("contentRating[]", "erotica")
		params.Add("contentRating[]", "pornographic")
		params.Add("includes[]", "scanlation_group")

		var raw mdChapterResponse
		if err := fetchJSON(ctx, mangadexAPI+"/manga/"+slug+"/feed?"+params.Encode(), nil, &raw); err != nil {
			return nil, err
		}

		for _, ch := range raw.Data {
			key := chapterKey{ch.Attributes.Volume, ch.Attributes.Chapter, ch.Attributes.TranslatedLanguage}
			existing, ok := best[key]
			if !ok {
				order = append(order, key)
				best[key] = ch
			} else if ch.Attributes.Pages > existing.Attributes.Pages {
				best[key] = ch
			}
		}

		if offset+pageSize >= raw.Total || len(raw.Data) < pageSize {
			break
		}
	}

	chapters := make([]models.Chapter, 0, len(best))
	for _, key := range order {
		ch := best[key]
		var volume *string
		if v := ch.Attributes.Volume; v != "" {
			volume = &v
		}
		var published *time.Time
		if t, err := time.Parse(time.RFC3339, ch.Attributes.PublishAt); err == nil {
			published = &t
		}
		scanlator := ""
		for _, rel := range ch.Relationships {
			if rel.Type == "scanlation_group" {
				scanlator = rel.Attributes.Name
				break
			}
		}
		chapters = append(chapters, models.Chapter{
			ID:          ch.ID,
			MangaID:     "mangadex:" + slug,
			Chapter:     ch.Attributes.Chapter,
			Volume:      volume,
			Title:       ch.Attributes.Title,
			Pages:       ch.Attributes.Pages,
			Language:    ch.Attributes.TranslatedLanguage,
			Scanlator:   scanlator,
			PublishedAt: published,
			SourceID:    "mangadex",
		})
	}
	return chapters, nil
}

func (p *mangadexProvider) SearchChaptersByTitle(ctx context.Context, title string) ([]models.Chapter, error) {
	results, err := p.Search(ctx, title, SearchOptions{Limit: 1, IncludeAdult: true})
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return p.GetChapters(ctx, results[0].ID)
}

func (p *mangadexProvider) GetChapterPages(ctx context.Context, chapterID, mangaID string) ([]models.Page, error) {
	var raw mdAtHomeResponse
	if err := fetchJSON(ctx, mangadexAPI+"/at-home/server/"+chapterID, nil, &raw); err != nil {
		return nil, err
	}

	pages := make([]models.Page, 0, len(raw.Chapter.Data))
	for i, file := range raw.Chapter.Data {
		page := models.Page{
			Index: i + 1,
			URL:   fmt.Sprintf("%s/data/%s/%s", raw.BaseURL, raw.Chapter.Hash, file),
		}
		if i < len(raw.Chapter.DataSaver) {
			page.DataSaverURL = fmt.Sprintf("%s/data-saver/%s/%s", raw.BaseURL, raw.Chapter.Hash, raw.Chapter.DataSaver[i])
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (p *mangadexProvider) GetTags(ctx context.Context) ([]string, error) {
	tags, err := p.loadTags(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, t := range tags {
		if t.Attributes.Group != "genre" && t.Attributes.Group != "theme" {
			continue
		}
		if name := t.Attributes.Name["en"]; name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (p *mangadexProvider) CheckConnectivity(ctx context.Context) bool {
	return probe(ctx, mangadexAPI+"/ping")
}

// loadTags caches the tag vocabulary for an hour; it is needed both for
// the tags listing and for name-to-UUID filter translation.
func (p *mangadexProvider) loadTags(ctx context.Context) ([]mdTag, error) {
	p.mu.Lock()
	if p.tagCache != nil && time.Since(p.tagTime) < time.Hour {
		cached := p.tagCache
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	var raw mdTagResponse
	if err := fetchJSON(ctx, mangadexAPI+"/manga/tag", nil, &raw); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.tagCache = raw.Data
	p.tagTime = time.Now()
	p.mu.Unlock()
	return raw.Data, nil
}

func (p *mangadexProvider) tagIDs(ctx context.Context, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	tags, err := p.loadTags(ctx)
	if err != nil {
		return nil
	}

	var ids []string
	for _, name := range names {
		for _, t := range tags {
			if strings.EqualFold(t.Attributes.Name["en"], name) {
				ids = append(ids, t.ID)
				break
			}
		}
	}
	return ids
}

func mapMangadex(m mdManga) models.Manga {
	attrs := m.Attributes

	title := attrs.Title["en"]
	if title == "" {
		title = attrs.Title["ja-ro"]
	}
	if title == "" {
		for _, v := range attrs.Title {
			title = v
			break
		}
	}

	var altTitles []string
	for _, alt := range attrs.AltTitles {
		for _, v := range alt {
			if v != "" {
				altTitles = append(altTitles, v)
			}
			break
		}
	}

	description := attrs.Description["en"]
	if description == "" {
		for _, v := range attrs.Description {
			description = v
			break
		}
	}

	var cover, author, artist string
	for _, rel := range m.Relationships {
		switch rel.Type {
		case "cover_art":
			if rel.Attributes.FileName != "" {
				cover = fmt.Sprintf("https://uploads.mangadex.org/covers/%s/%s.512.jpg", m.ID, rel.Attributes.FileName)
			}
		case "author":
			author = rel.Attributes.Name
		case "artist":
			artist = rel.Attributes.Name
		}
	}

	var tags, genres []string
	for _, t := range attrs.Tags {
		name := t.Attributes.Name["en"]
		if name == "" {
			continue
		}
		tags = append(tags, name)
		if t.Attributes.Group == "genre" {
			genres = append(genres, name)
		}
	}

	var updated *time.Time
	if t, err := time.Parse(time.RFC3339, attrs.UpdatedAt); err == nil {
		updated = &t
	}

	return models.Manga{
		ID:          "mangadex:" + m.ID,
		Title:       title,
		AltTitles:   altTitles,
		Description: description,
		CoverURL:    cover,
		Author:      author,
		Artist:      artist,
		Status:      attrs.Status,
		Tags:        tags,
		Genres:      genres,
		Year:        attrs.Year,
		LastChapter: attrs.LastChapter,
		Adult:       AdultFromRating(attrs.ContentRating),
		SourceID:    "mangadex",
		UpdatedAt:   updated,
	}
}
