package handlers

import (
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mangafox/models"
	"mangafox/services/source"
)

// Engine is the aggregation engine shared by all handlers, set once at
// startup.
var Engine *source.Manager

// --- Utils ---

// decodeParam unescapes a path parameter; canonical ids contain colons
// and some native slugs arrive percent-encoded.
func decodeParam(c *fiber.Ctx, name string) (string, error) {
	return url.PathUnescape(c.Params(name))
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func queryOptions(c *fiber.Ctx) source.QueryOptions {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	return source.QueryOptions{
		Sources:      splitParam(c.Query("sources")),
		IncludeAdult: c.QueryBool("includeAdult"),
		AdultOnly:    c.QueryBool("adultOnly"),
		Page:         page,
		Limit:        limit,
		Tags:         splitParam(c.Query("tags")),
		ExcludeTags:  splitParam(c.Query("excludeTags")),
		Status:       c.Query("status"),
		Sort:         c.Query("sort"),
	}
}

func sendLookupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, source.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, source.ErrUnknownSource):
		return c.Status(400).JSON(fiber.Map{"error": "Unknown source"})
	default:
		return c.Status(502).JSON(fiber.Map{"error": "Failed to fetch from source"})
	}
}

// --- Handlers ---

// SearchManga runs an aggregate search across the selected sources.
// Status and title sorting are re-applied here: sources without native
// support for them return unfiltered lists.
func SearchManga(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	opts := queryOptions(c)
	results := Engine.Search(c.Context(), query, opts)

	if opts.Status != "" && opts.Status != "all" {
		filtered := make([]models.Manga, 0, len(results))
		for _, m := range results {
			if m.Status == opts.Status {
				filtered = append(filtered, m)
			}
		}
		results = filtered
	}
	if opts.Sort == "title" {
		// The engine may have served a cached slice; sort a copy so the
		// cached entry keeps its merge order for other readers.
		sorted := make([]models.Manga, len(results))
		copy(sorted, results)
		sort.SliceStable(sorted, func(i, j int) bool {
			return strings.ToLower(sorted[i].Title) < strings.ToLower(sorted[j].Title)
		})
		results = sorted
	}

	return c.JSON(models.MangaListResponse{Data: results, Total: len(results)})
}

// GetPopularManga lists popular works, priority sources first.
func GetPopularManga(c *fiber.Ctx) error {
	results := Engine.GetPopular(c.Context(), queryOptions(c))
	return c.JSON(models.MangaListResponse{Data: results, Total: len(results)})
}

// GetLatestManga lists recently updated works across sources.
func GetLatestManga(c *fiber.Ctx) error {
	results := Engine.GetLatest(c.Context(), queryOptions(c))
	return c.JSON(models.MangaListResponse{Data: results, Total: len(results)})
}

// GetNewManga lists recently catalogued works across sources.
func GetNewManga(c *fiber.Ctx) error {
	results := Engine.GetNewlyAdded(c.Context(), queryOptions(c))
	return c.JSON(models.MangaListResponse{Data: results, Total: len(results)})
}

// GetTopRatedManga lists the highest rated works across sources.
func GetTopRatedManga(c *fiber.Ctx) error {
	results := Engine.GetTopRated(c.Context(), queryOptions(c))
	return c.JSON(models.MangaListResponse{Data: results, Total: len(results)})
}

// GetMangaDetail returns one manga from its owning source.
func GetMangaDetail(c *fiber.Ctx) error {
	id, err := decodeParam(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid id"})
	}

	manga, err := Engine.GetMangaDetails(c.Context(), id)
	if err != nil {
		return sendLookupError(c, err)
	}
	return c.JSON(manga)
}

// GetChapters returns a manga's chapter list. With all=true the list is
// consolidated across every enabled source, using title as the fallback
// correlation key.
func GetChapters(c *fiber.Ctx) error {
	mangaID, err := decodeParam(c, "mangaId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid id"})
	}

	if c.QueryBool("all") {
		chapters := Engine.GetChaptersFromAllSources(c.Context(), mangaID, c.Query("title"), c.QueryBool("includeAdult"))
		return c.JSON(models.ChapterListResponse{Data: chapters})
	}

	chapters, err := Engine.GetChapters(c.Context(), mangaID)
	if err != nil {
		return sendLookupError(c, err)
	}
	return c.JSON(models.ChapterListResponse{Data: chapters})
}

// GetChapterPages returns the page image list for one chapter of one source.
func GetChapterPages(c *fiber.Ctx) error {
	sourceID := c.Params("sourceId")
	chapterID, err := decodeParam(c, "chapterId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid id"})
	}

	pages, err := Engine.GetChapterPages(c.Context(), chapterID, sourceID)
	if err != nil {
		return sendLookupError(c, err)
	}
	return c.JSON(models.PageListResponse{Pages: pages})
}

// GetOpenGraph returns the share-card metadata for one manga.
func GetOpenGraph(c *fiber.Ctx) error {
	id, err := decodeParam(c, "mangaId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid id"})
	}

	manga, err := Engine.GetMangaDetails(c.Context(), id)
	if err != nil {
		return sendLookupError(c, err)
	}

	description := manga.Description
	if runes := []rune(description); len(runes) > 200 {
		description = string(runes[:197]) + "..."
	}
	return c.JSON(models.OGResponse{
		Title:       manga.Title,
		Description: description,
		Image:       manga.CoverURL,
		Type:        "article",
	})
}
