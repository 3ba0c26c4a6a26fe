package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangafox/models"
	"mangafox/services/source"
)

// fakeProvider serves a fixed catalog for handler tests.
type fakeProvider struct {
	mangas   []models.Manga
	chapters []models.Chapter
	pages    []models.Page
}

func (f *fakeProvider) Search(ctx context.Context, query string, opts source.SearchOptions) ([]models.Manga, error) {
	return f.mangas, nil
}

func (f *fakeProvider) GetPopular(ctx context.Context, opts source.ListOptions) ([]models.Manga, error) {
	return f.mangas, nil
}

func (f *fakeProvider) GetLatest(ctx context.Context, opts source.ListOptions) ([]models.Manga, error) {
	return f.mangas, nil
}

func (f *fakeProvider) GetNewlyAdded(ctx context.Context, opts source.ListOptions) ([]models.Manga, error) {
	return f.mangas, nil
}

func (f *fakeProvider) GetTopRated(ctx context.Context, opts source.ListOptions) ([]models.Manga, error) {
	return f.mangas, nil
}

func (f *fakeProvider) GetMangaDetails(ctx context.Context, id string) (*models.Manga, error) {
	for i := range f.mangas {
		if f.mangas[i].ID == id {
			return &f.mangas[i], nil
		}
	}
	return nil, source.ErrNotFound
}

func (f *fakeProvider) GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	return f.chapters, nil
}

func (f *fakeProvider) SearchChaptersByTitle(ctx context.Context, title string) ([]models.Chapter, error) {
	return f.chapters, nil
}

func (f *fakeProvider) GetChapterPages(ctx context.Context, chapterID, mangaID string) ([]models.Page, error) {
	return f.pages, nil
}

func (f *fakeProvider) GetTags(ctx context.Context) ([]string, error) {
	return []string{"Action"}, nil
}

func (f *fakeProvider) CheckConnectivity(ctx context.Context) bool { return true }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	provider := &fakeProvider{
		mangas: []models.Manga{
			{ID: "alpha:1", Title: "Vinland Saga", Author: "Yukimura", Description: "Vikings."},
		},
		chapters: []models.Chapter{{ID: "c1", MangaID: "alpha:1", Chapter: "1", Pages: 30}},
		pages:    []models.Page{{Index: 1, URL: "https://img/1.jpg"}},
	}

	reg := source.NewRegistry()
	require.NoError(t, reg.Register(source.Descriptor{ID: "alpha", Name: "Alpha", Enabled: true}, provider))
	Engine = source.NewManager(reg, source.NewCache(), source.Options{PrioritySources: []string{"alpha"}})

	app := fiber.New()
	api := app.Group("/api")
	api.Get("/sources", GetSources)
	api.Get("/tags", GetTags)
	api.Get("/manga/search", SearchManga)
	api.Get("/manga/popular", GetPopularManga)
	api.Get("/manga/:id", GetMangaDetail)
	api.Get("/chapters/:mangaId", GetChapters)
	api.Get("/pages/:sourceId/:chapterId", GetChapterPages)
	api.Get("/og/:mangaId", GetOpenGraph)
	api.Post("/admin/login", AdminLogin)
	admin := api.Group("/admin", RequireAdmin)
	admin.Get("/cache", GetCacheStats)
	return app
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, out))
}

func TestSearchEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/manga/search?q=vinland", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out models.MangaListResponse
	decodeBody(t, resp, &out)
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "alpha:1", out.Data[0].ID)
	assert.Equal(t, "alpha", out.Data[0].SourceID)
}

func TestDetailEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/manga/alpha:1", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out models.Manga
	decodeBody(t, resp, &out)
	assert.Equal(t, "Vinland Saga", out.Title)
}

func TestDetailEndpointNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/manga/alpha:999", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestDetailEndpointUnknownSource(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/manga/ghost:1", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestChaptersEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chapters/alpha:1", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out models.ChapterListResponse
	decodeBody(t, resp, &out)
	require.Len(t, out.Data, 1)
	assert.Equal(t, "1", out.Data[0].Chapter)
}

func TestPagesEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/pages/alpha/c1", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out models.PageListResponse
	decodeBody(t, resp, &out)
	require.Len(t, out.Pages, 1)
	assert.Equal(t, "https://img/1.jpg", out.Pages[0].URL)
}

func TestSourcesEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/sources", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out struct {
		Sources []source.Descriptor `json:"sources"`
		Enabled []string            `json:"enabled"`
	}
	decodeBody(t, resp, &out)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "alpha", out.Sources[0].ID)
	assert.Equal(t, []string{"alpha"}, out.Enabled)
}

func TestOpenGraphEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/og/alpha:1", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out models.OGResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, "Vinland Saga", out.Title)
	assert.Equal(t, "article", out.Type)
}

func TestTitleSortLeavesCachedOrderIntact(t *testing.T) {
	provider := &fakeProvider{mangas: []models.Manga{
		{ID: "alpha:z", Title: "Zeta"},
		{ID: "alpha:a", Title: "Alpha"},
	}}
	reg := source.NewRegistry()
	require.NoError(t, reg.Register(source.Descriptor{ID: "alpha", Name: "Alpha", Enabled: true}, provider))
	Engine = source.NewManager(reg, source.NewCache(), source.Options{PrioritySources: []string{"alpha"}})

	app := fiber.New()
	app.Get("/api/manga/search", SearchManga)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/manga/search?q=x&sort=title", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var out models.MangaListResponse
	decodeBody(t, resp, &out)
	require.Equal(t, 2, out.Total)
	assert.Equal(t, "Alpha", out.Data[0].Title)
	assert.Equal(t, "Zeta", out.Data[1].Title)

	// The cached slice behind the same query keeps the engine's merge order.
	cached := Engine.Search(context.Background(), "x", source.QueryOptions{Page: 1, Sort: "title"})
	require.Len(t, cached, 2)
	assert.Equal(t, "Zeta", cached[0].Title)
	assert.Equal(t, "Alpha", cached[1].Title)
}

func TestOpenGraphTruncatesOnRuneBoundary(t *testing.T) {
	provider := &fakeProvider{mangas: []models.Manga{
		{ID: "alpha:1", Title: "Long One", Description: strings.Repeat("あ", 300)},
	}}
	reg := source.NewRegistry()
	require.NoError(t, reg.Register(source.Descriptor{ID: "alpha", Name: "Alpha", Enabled: true}, provider))
	Engine = source.NewManager(reg, source.NewCache(), source.Options{})

	app := fiber.New()
	app.Get("/api/og/:mangaId", GetOpenGraph)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/og/alpha:1", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var out models.OGResponse
	decodeBody(t, resp, &out)
	assert.True(t, utf8.ValidString(out.Description))
	assert.Equal(t, strings.Repeat("あ", 197)+"...", out.Description)
}

func TestAdminLoginAndGuard(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	app := newTestApp(t)

	// Bad credentials
	req := httptest.NewRequest("POST", "/api/admin/login", strings.NewReader(`{"username":"admin","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	// Good credentials issue a token
	req = httptest.NewRequest("POST", "/api/admin/login", strings.NewReader(`{"username":"admin","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var login struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &login)
	require.NotEmpty(t, login.Token)

	// Guarded route rejects missing and accepts valid tokens
	resp, err = app.Test(httptest.NewRequest("GET", "/api/admin/cache", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/admin/cache", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
