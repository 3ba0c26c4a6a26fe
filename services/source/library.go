package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"mangafox/models"
)

// LibraryDescriptor is the local admin-curated catalog. It sits behind the
// same contract as the remote sources so aggregate queries include it for
// free.
func LibraryDescriptor() Descriptor {
	return Descriptor{
		ID:           "library",
		Name:         "Library",
		Icon:         "🗄️",
		Description:  "Locally hosted uploads",
		Adult:        Mixed,
		Enabled:      true,
		ContentTypes: []string{"manga", "doujinshi"},
		Filters: Filters{
			Status: true,
			Sorts:  []string{"latest", "title", "rating"},
		},
	}
}

type libraryProvider struct {
	db *gorm.DB
}

// NewLibrary creates the database-backed provider.
func NewLibrary(db *gorm.DB) Provider {
	return &libraryProvider{db: db}
}

func (p *libraryProvider) query(ctx context.Context, opts SearchOptions) *gorm.DB {
	q := p.db.WithContext(ctx).Model(&models.LibraryEntry{})
	if !opts.IncludeAdult && !opts.AdultOnly {
		q = q.Where("adult = ?", false)
	}
	if opts.AdultOnly {
		q = q.Where("adult = ?", true)
	}
	if opts.Status != "" && opts.Status != "all" {
		q = q.Where("status = ?", opts.Status)
	}
	return q
}

func libraryPage(opts SearchOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 24
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func (p *libraryProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]models.Manga, error) {
	limit, offset := libraryPage(opts)

	q := p.query(ctx, opts)
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(alt_titles) LIKE ?", like, like)
	}

	switch opts.Sort {
	case "title":
		q = q.Order("title ASC")
	case "rating":
		q = q.Order("rating DESC")
	default:
		q = q.Order("updated_at DESC")
	}

	var entries []models.LibraryEntry
	if err := q.Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("library search: %w", err)
	}
	return mapLibraryEntries(entries), nil
}

func (p *libraryProvider) GetPopular(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.Search(ctx, "", SearchOptions{Page: opts.Page, Limit: opts.Limit, IncludeAdult: opts.IncludeAdult, Sort: "rating"})
}

func (p *libraryProvider) GetLatest(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.Search(ctx, "", SearchOptions{Page: opts.Page, Limit: opts.Limit, IncludeAdult: opts.IncludeAdult})
}

func (p *libraryProvider) GetNewlyAdded(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	limit, offset := libraryPage(SearchOptions{Page: opts.Page, Limit: opts.Limit})

	var entries []models.LibraryEntry
	q := p.query(ctx, SearchOptions{IncludeAdult: opts.IncludeAdult}).
		Order("created_at DESC").Limit(limit).Offset(offset)
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("library newly added: %w", err)
	}
	return mapLibraryEntries(entries), nil
}

func (p *libraryProvider) GetTopRated(ctx context.Context, opts ListOptions) ([]models.Manga, error) {
	return p.GetPopular(ctx, opts)
}

func (p *libraryProvider) GetMangaDetails(ctx context.Context, id string) (*models.Manga, error) {
	slug := strings.TrimPrefix(id, "library:")

	var entry models.LibraryEntry
	err := p.db.WithContext(ctx).First(&entry, "id = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("library entry %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("library details: %w", err)
	}

	manga := mapLibraryEntry(entry)
	return &manga, nil
}

func (p *libraryProvider) GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	slug := strings.TrimPrefix(mangaID, "library:")

	var rows []models.LibraryChapter
	err := p.db.WithContext(ctx).
		Where("entry_id = ?", slug).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("library chapters: %w", err)
	}

	chapters := make([]models.Chapter, 0, len(rows))
	for _, row := range rows {
		chapters = append(chapters, models.Chapter{
			ID:       strconv.FormatUint(uint64(row.ID), 10),
			MangaID:  "library:" + slug,
			Chapter:  row.Number,
			Title:    row.Title,
			Pages:    len(row.PageList()),
			Language: row.Language,
			SourceID: "library",
		})
	}
	return chapters, nil
}

func (p *libraryProvider) SearchChaptersByTitle(ctx context.Context, title string) ([]models.Chapter, error) {
	results, err := p.Search(ctx, title, SearchOptions{Limit: 1, IncludeAdult: true})
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return p.GetChapters(ctx, results[0].ID)
}

func (p *libraryProvider) GetChapterPages(ctx context.Context, chapterID, mangaID string) ([]models.Page, error) {
	id, err := strconv.ParseUint(chapterID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("library chapter %s: %w", chapterID, ErrNotFound)
	}

	var row models.LibraryChapter
	err = p.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("library chapter %s: %w", chapterID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("library pages: %w", err)
	}

	urls := row.PageList()
	pages := make([]models.Page, 0, len(urls))
	for i, u := range urls {
		pages = append(pages, models.Page{Index: i + 1, URL: u})
	}
	return pages, nil
}

func (p *libraryProvider) GetTags(ctx context.Context) ([]string, error) {
	var cols []string
	err := p.db.WithContext(ctx).
		Model(&models.LibraryEntry{}).
		Distinct().
		Pluck("tags", &cols).Error
	if err != nil {
		return nil, fmt.Errorf("library tags: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, col := range cols {
		for _, tag := range models.SplitList(col) {
			if !seen[tag] {
				seen[tag] = true
				names = append(names, tag)
			}
		}
	}
	return names, nil
}

func (p *libraryProvider) CheckConnectivity(ctx context.Context) bool {
	db, err := p.db.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func mapLibraryEntries(entries []models.LibraryEntry) []models.Manga {
	out := make([]models.Manga, 0, len(entries))
	for _, e := range entries {
		out = append(out, mapLibraryEntry(e))
	}
	return out
}

func mapLibraryEntry(e models.LibraryEntry) models.Manga {
	var rating *float64
	if e.Rating > 0 {
		r := e.Rating
		rating = &r
	}
	updated := e.UpdatedAt

	return models.Manga{
		ID:          "library:" + e.ID,
		Title:       e.Title,
		AltTitles:   models.SplitList(e.AltTitles),
		Description: e.Description,
		CoverURL:    e.CoverURL,
		Author:      e.Author,
		Artist:      e.Artist,
		Status:      e.Status,
		Tags:        models.SplitList(e.Tags),
		Genres:      models.SplitList(e.Genres),
		Rating:      rating,
		Adult:       e.Adult,
		SourceID:    "library",
		UpdatedAt:   &updated,
	}
}
