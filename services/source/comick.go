package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mangafox/models"
)

const (
	comickAPI    = "https://api.comick.fun"
	comickImages = "https://meo.comick.pictures"
)

// ComickDescriptor is the static metadata for the ComicK aggregator API.
func ComickDescriptor() Descriptor {
	return Descriptor{
		ID:           "comick",
		Name:         "ComicK",
		Icon:         "📚",
		Description:  "Large aggregator, fast API",
		Adult:        Mixed,
		Enabled:      true,
		ContentTypes: []string{"manga", "manhwa", "manhua", "webtoon"},
		Filters: Filters{
			Tags:  true,
			Sorts: []string{"popular", "latest", "rating"},
		},
		RateLimit: 200 * time.Millisecond,
	}
}

type comickProvider struct{}

// NewComick creates the ComicK adapter.
func NewComick() Provider {
	return comickProvider{}
}

// --- Raw API models ---

type ckComic struct {
	HID       string       `json:"hid"`
	Slug      string       `json:"slug"`
	Title     string       `json:"title"`
	Desc      string       `json:"desc"`
	Status    int          `json:"status"`
	Rating    string       `json:"bayesian_rating"`
	Year      int          `json:"year"`
	LastChap  string       `json:"last_chapter"`
	Hentai    bool         `json:"hentai"`
	UpdatedAt string       `json:"uploaded_at"`
	MDTitles  []ckMDTitle  `json:"md_titles"`
	MDCovers  []ckCover    `json:"md_covers"`
	MDGenres  []ckGenreRef `json:"md_comic_md_genres"`
}

type ckMDTitle struct {
	Title string `json:"title"`
}

type ckCover struct {
	B2Key string `json:"b2key"`
}

type ckGenreRef struct {
	MDGenres ckGenre `json:"md_genres"`
}

type ckGenre struct {
	Name  string `json:"name"`
	Group string `json:"group"`
	Slug  string `json:"slug"`
}

type ckComicDetail struct {
	Comic   ckComic `json:"comic"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

type ckChapterList struct {
	Chapters []ckChapter `json:"chapters"`
	Total    int         `json:"total"`
}

type ckChapter struct {
	HID       string   `json:"hid"`
	Chap      string   `json:"chap"`
	Vol       string   `json:"vol"`
	Title     string   `json:"title"`
	Lang      string   `json:"lang"`
	CreatedAt string   `json:"created_at"`
	GroupName []string `json:"group_name"`
}

type ckChapterDetail struct {
	Chapter struct {
		MDImages []struct {
			B2Key string `json:"b2key"`
		} `json:"md_images"`
	} `json:"chapter"`
}

// --- Implementation ---

func comickSort(sort string, hasQuery bool) string {
	switch sort {
	case "latest":
		return "uploaded"
	case "rating":
		return "rating"
	case "popular":
		return "follow"
	default:
		if hasQuery {
			return ""
		}
		return "follow"
	}
}

func (comickProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]models.Manga, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 50 {
		limit = 24
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))
	params.Set("tachiyomi", "true")
	if query != "" {
		params.Set("q", query)
	}
	if s := comickSort(opts.Sort, query != ""); s != "" {
		params.Set("sort", s)
	}
	for _, tag := range opts.Tags {
		params.Add("genres", comickGenreSlug(tag))
	}
	for _, tag := range opts.ExcludeTags {
		params.Add("excludes", comickGenreSlug(tag))
	}

	var raw []ckComic
	if err := fetchJSON(ctx, comickAPI+"/v1.0/search?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	mangas := make([]models.Manga, 0, len(raw))
	for _, c := range raw {
		m := mapComick(c)
		if m.Adult && !opts.IncludeAdult && !opts.AdultOnly {
			continue
		}
		if opts.AdultOnly && !m.Adult {
			continue
		}
		mangas = append(mangas, m)
	}
	return mangas, nil
}

func (p comickProvider) GetPopular(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.Search(ctx, "", SearchOptions{Page: opts.Page, Limit: opts.Limit, IncludeAdult: opts.IncludeAdult, Sort: "popular"})
}

func (p comickProvider) GetLatest(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.Search(ctx, "", SearchOptions{Page: opts.Page, Limit: opts.Limit, IncludeAdult: opts.IncludeAdult, Sort: "latest"})
}

func (p comickProvider) GetNewlyAdded(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 50 {
		limit = 24
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))
	params.Set("sort", "created_at")
	params.Set("tachiyomi", "true")

	var raw []ckComic
	if err := fetchJSON(ctx, comickAPI+"/v1.0/search?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	mangas := make([]models.Manga, 0, len(raw))
	for _, c := range raw {
		m := mapComick(c)
		if m.Adult && !opts.IncludeAdult {
			continue
		}
		mangas = append(mangas, m)
	}
	return mangas, nil
}

func (p comickProvider) GetTopRated(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.Search(ctx, "", SearchOptions{Page: opts.Page, Limit: opts.Limit, IncludeAdult: opts.IncludeAdult, Sort: "rating"})
}

func (comickProvider) GetMangaDetails(ctx context.Context, id string) (*models.Manga, error) {
	slug := strings.TrimPrefix(id, "comick:")

	var raw ckComicDetail
	if err := fetchJSON(ctx, comickAPI+"/comic/"+slug+"?tachiyomi=true", nil, &raw); err != nil {
		return nil, err
	}
	if raw.Comic.Slug == "" && raw.Comic.HID == "" {
		return nil, ErrNotFound
	}

	manga := mapComick(raw.Comic)
	if len(raw.Authors) > 0 {
		manga.Author = raw.Authors[0].Name
	}
	if len(raw.Artists) > 0 {
		manga.Artist = raw.Artists[0].Name
	}
	return &manga, nil
}

func (comickProvider) GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	slug := strings.TrimPrefix(mangaID, "comick:")

	// The chapter feed is keyed by hid, not slug.
	var detail ckComicDetail
	if err := fetchJSON(ctx, comickAPI+"/comic/"+slug, nil, &detail); err != nil {
		return nil, err
	}
	if detail.Comic.HID == "" {
		return nil, ErrNotFound
	}

	var raw ckChapterList
	feed := fmt.Sprintf("%s/comic/%s/chapters?lang=en&limit=99999", comickAPI, detail.Comic.HID)
	if err := fetchJSON(ctx, feed, nil, &raw); err != nil {
		return nil, err
	}

	chapters := make([]models.Chapter, 0, len(raw.Chapters))
	for _, ch := range raw.Chapters {
		var volume *string
		if ch.Vol != "" {
			volume = &ch.Vol
		}
		var published *time.Time
		if t, err := time.Parse(time.RFC3339, ch.CreatedAt); err == nil {
			published = &t
		}
		scanlator := ""
		if len(ch.GroupName) > 0 {
			scanlator = ch.GroupName[0]
		}
		chapters = append(chapters, models.Chapter{
			ID:          ch.HID,
			MangaID:     "comick:" + slug,
			Chapter:     ch.Chap,
			Volume:      volume,
			Title:       ch.Title,
			Language:    ch.Lang,
			Scanlator:   scanlator,
			PublishedAt: published,
			SourceID:    "comick",
		})
	}
	return chapters, nil
}

func (p comickProvider) SearchChaptersByTitle(ctx context.Context, title string) ([]models.Chapter, error) {
	results, err := p.Search(ctx, title, SearchOptions{Limit: 1, IncludeAdult: true})
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return p.GetChapters(ctx, results[0].ID)
}

func (comickProvider) GetChapterPages(ctx context.Context, chapterID, mangaID string) ([]models.Page, error) {
	var raw ckChapterDetail
	if err := fetchJSON(ctx, comickAPI+"/chapter/"+chapterID+"?tachiyomi=true", nil, &raw); err != nil {
		return nil, err
	}

	pages := make([]models.Page, 0, len(raw.Chapter.MDImages))
	for i, img := range raw.Chapter.MDImages {
		pages = append(pages, models.Page{
			Index: i + 1,
			URL:   comickImages + "/" + img.B2Key,
		})
	}
	return pages, nil
}

func (comickProvider) GetTags(ctx context.Context) ([]string, error) {
	var raw []ckGenre
	if err := fetchJSON(ctx, comickAPI+"/genre/", nil, &raw); err != nil {
		return nil, err
	}

	var names []string
	for _, g := range raw {
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	return names, nil
}

func (comickProvider) CheckConnectivity(ctx context.Context) bool {
	return probe(ctx, comickAPI+"/v1.0/search?limit=1")
}

// comickGenreSlug approximates the API's genre slugs from display names.
func comickGenreSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func mapComick(c ckComic) models.Manga {
	var altTitles []string
	for _, t := range c.MDTitles {
		if t.Title != "" {
			altTitles = append(altTitles, t.Title)
		}
	}

	cover := ""
	if len(c.MDCovers) > 0 && c.MDCovers[0].B2Key != "" {
		cover = comickImages + "/" + c.MDCovers[0].B2Key
	}

	var tags, genres []string
	for _, ref := range c.MDGenres {
		if ref.MDGenres.Name == "" {
			continue
		}
		tags = append(tags, ref.MDGenres.Name)
		if ref.MDGenres.Group == "Genre" {
			genres = append(genres, ref.MDGenres.Name)
		}
	}

	// ComicK rates on a ten-point scale; the canonical scale is five.
	var rating *float64
	if r, err := strconv.ParseFloat(c.Rating, 64); err == nil && r > 0 {
		halved := r / 2
		rating = &halved
	}

	var status string
	switch c.Status {
	case 1:
		status = models.StatusOngoing
	case 2:
		status = models.StatusCompleted
	case 3:
		status = models.StatusCancelled
	case 4:
		status = models.StatusHiatus
	default:
		status = models.StatusUnknown
	}

	var updated *time.Time
	if t, err := time.Parse(time.RFC3339, c.UpdatedAt); err == nil {
		updated = &t
	}

	return models.Manga{
		ID:          "comick:" + c.Slug,
		Title:       c.Title,
		AltTitles:   altTitles,
		Description: c.Desc,
		CoverURL:    cover,
		Status:      status,
		Tags:        tags,
		Genres:      genres,
		Rating:      rating,
		Year:        c.Year,
		LastChapter: c.LastChap,
		Adult:       c.Hentai,
		SourceID:    "comick",
		UpdatedAt:   updated,
	}
}
