package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mangafox/models"
)

const kitsuAPI = "https://kitsu.io/api/edge"

var kitsuHeaders = map[string]string{
	"Accept":       "application/vnd.api+json",
	"Content-Type": "application/vnd.api+json",
}

// KitsuDescriptor is the static metadata for the Kitsu catalog API.
// Kitsu carries rich metadata and community ratings but hosts no chapters,
// so the chapter and page operations report empty.
func KitsuDescriptor() Descriptor {
	return Descriptor{
		ID:           "kitsu",
		Name:         "Kitsu",
		Icon:         "🦊",
		Description:  "Metadata and ratings, no reading",
		Adult:        SafeOnly,
		Enabled:      true,
		ContentTypes: []string{"manga", "manhwa", "novel", "oneshot"},
		Filters: Filters{
			Sorts: []string{"popular", "latest", "rating"},
		},
		RateLimit: 200 * time.Millisecond,
	}
}

type kitsuProvider struct{}

// NewKitsu creates the Kitsu adapter.
func NewKitsu() Provider {
	return kitsuProvider{}
}

// --- Raw API models ---

type ktListResponse struct {
	Data []ktManga `json:"data"`
}

type ktEntityResponse struct {
	Data *ktManga `json:"data"`
}

type ktManga struct {
	ID         string `json:"id"`
	Attributes struct {
		CanonicalTitle    string            `json:"canonicalTitle"`
		Titles            map[string]string `json:"titles"`
		AbbreviatedTitles []string          `json:"abbreviatedTitles"`
		Synopsis          string            `json:"synopsis"`
		AverageRating     string            `json:"averageRating"`
		StartDate         string            `json:"startDate"`
		AgeRating         string            `json:"ageRating"`
		Status            string            `json:"status"`
		ChapterCount      int               `json:"chapterCount"`
		PosterImage       struct {
			Original string `json:"original"`
			Large    string `json:"large"`
		} `json:"posterImage"`
		UpdatedAt string `json:"updatedAt"`
	} `json:"attributes"`
}

type ktCategoryResponse struct {
	Data []struct {
		Attributes struct {
			Title string `json:"title"`
		} `json:"attributes"`
	} `json:"data"`
}

// --- Implementation ---

func (kitsuProvider) list(ctx context.Context, query, sort string, opts ListOptions) ([]models.Manga, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 20 {
		limit = 20
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page[limit]", strconv.Itoa(limit))
	params.Set("page[offset]", strconv.Itoa((page-1)*limit))
	if query != "" {
		params.Set("filter[text]", query)
	}
	if sort != "" {
		params.Set("sort", sort)
	}

	var raw ktListResponse
	if err := fetchJSON(ctx, kitsuAPI+"/manga?"+params.Encode(), kitsuHeaders, &raw); err != nil {
		return nil, err
	}

	mangas := make([]models.Manga, 0, len(raw.Data))
	for _, m := range raw.Data {
		mangas = append(mangas, mapKitsu(m))
	}
	return mangas, nil
}

func (p kitsuProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]models.Manga, error) {
	sort := ""
	switch opts.Sort {
	case "popular":
		sort = "-userCount"
	case "latest":
		sort = "-updatedAt"
	case "rating":
		sort = "-averageRating"
	}
	return p.list(ctx, query, sort, ListOptions{Page: opts.Page, Limit: opts.Limit})
}

func (p kitsuProvider) GetPopular(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.list(ctx, "", "-userCount", opts)
}

func (p kitsuProvider) GetLatest(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.list(ctx, "", "-updatedAt", opts)
}

func (p kitsuProvider) GetNewlyAdded(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.list(ctx, "", "-createdAt", opts)
}

func (p kitsuProvider) GetTopRated(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.list(ctx, "", "-averageRating", opts)
}

func (kitsuProvider) GetMangaDetails(ctx context.Context, id string) (*models.Manga, error) {
	slug := strings.TrimPrefix(id, "kitsu:")

	var raw ktEntityResponse
	if err := fetchJSON(ctx, kitsuAPI+"/manga/"+slug, kitsuHeaders, &raw); err != nil {
		return nil, err
	}
	if raw.Data == nil {
		return nil, ErrNotFound
	}

	manga := mapKitsu(*raw.Data)
	return &manga, nil
}

// GetChapters reports empty. Kitsu indexes series, not uploads; readers
// resolve chapters through a hosting source instead.
func (kitsuProvider) GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	return nil, nil
}

func (kitsuProvider) SearchChaptersByTitle(ctx context.Context, title string) ([]models.Chapter, error) {
	return nil, nil
}

func (kitsuProvider) GetChapterPages(ctx context.Context, chapterID, mangaID string) ([]models.Page, error) {
	return nil, nil
}

func (kitsuProvider) GetTags(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("page[limit]", "40")
	params.Set("sort", "-totalMediaCount")

	var raw ktCategoryResponse
	if err := fetchJSON(ctx, kitsuAPI+"/categories?"+params.Encode(), kitsuHeaders, &raw); err != nil {
		return nil, err
	}

	var names []string
	for _, c := range raw.Data {
		if c.Attributes.Title != "" {
			names = append(names, c.Attributes.Title)
		}
	}
	return names, nil
}

func (kitsuProvider) CheckConnectivity(ctx context.Context) bool {
	return probe(ctx, kitsuAPI+"/manga?page[limit]=1")
}

func mapKitsu(m ktManga) models.Manga {
	attrs := m.Attributes

	title := attrs.CanonicalTitle
	if title == "" {
		title = attrs.Titles["en"]
	}

	var altTitles []string
	for _, t := range attrs.Titles {
		if t != "" && t != title {
			altTitles = append(altTitles, t)
		}
	}
	altTitles = append(altTitles, attrs.AbbreviatedTitles...)

	cover := attrs.PosterImage.Original
	if cover == "" {
		cover = attrs.PosterImage.Large
	}

	// Kitsu rates 0-100, the canonical scale is five.
	var rating *float64
	if r, err := strconv.ParseFloat(attrs.AverageRating, 64); err == nil && r > 0 {
		scaled := r / 20
		rating = &scaled
	}

	year := 0
	if len(attrs.StartDate) >= 4 {
		if y, err := strconv.Atoi(attrs.StartDate[:4]); err == nil {
			year = y
		}
	}

	lastChapter := ""
	if attrs.ChapterCount > 0 {
		lastChapter = strconv.Itoa(attrs.ChapterCount)
	}

	var updated *time.Time
	if t, err := time.Parse(time.RFC3339, attrs.UpdatedAt); err == nil {
		updated = &t
	}

	return models.Manga{
		ID:          "kitsu:" + m.ID,
		Title:       title,
		AltTitles:   altTitles,
		Description: attrs.Synopsis,
		CoverURL:    cover,
		Status:      attrs.Status,
		Rating:      rating,
		Year:        year,
		LastChapter: lastChapter,
		Adult:       AdultFromRating(attrs.AgeRating),
		SourceID:    "kitsu",
		UpdatedAt:   updated,
	}
}
