package handlers

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProxyApp() *fiber.App {
	app := fiber.New()
	app.Get("/api/proxy/image", ProxyImage)
	return app
}

func TestProxyImageRequiresURL(t *testing.T) {
	app := newProxyApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/proxy/image", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestProxyImageRejectsBadScheme(t *testing.T) {
	app := newProxyApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/proxy/image?url="+url.QueryEscape("file:///etc/passwd"), nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestProxyImageFetchesAndCaches(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer upstream.Close()

	app := newProxyApp()
	target := "/api/proxy/image?url=" + url.QueryEscape(upstream.URL+"/cover.png")

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "png-bytes", string(body))

	// Second request is served from the cache.
	resp, err = app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get("X-Proxy-Cache"))
	assert.Equal(t, 1, hits)
}

func TestProxyImageStreamsChunkedUpstream(t *testing.T) {
	// No Content-Length: the response is chunked and too big to buffer,
	// so it takes the streaming path. The whole body must arrive.
	payload := bytes.Repeat([]byte("x"), 256*1024)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		flusher := w.(http.Flusher)
		for i := 0; i < len(payload); i += 32 * 1024 {
			w.Write(payload[i : i+32*1024])
			flusher.Flush()
		}
	}))
	defer upstream.Close()

	app := newProxyApp()
	req := httptest.NewRequest("GET", "/api/proxy/image?url="+url.QueryEscape(upstream.URL+"/big.jpg"), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Len(t, body, len(payload))
}

func TestProxyImagePassesUpstreamErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer upstream.Close()

	app := newProxyApp()
	resp, err := app.Test(httptest.NewRequest("GET", "/api/proxy/image?url="+url.QueryEscape(upstream.URL+"/gone.png"), nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
