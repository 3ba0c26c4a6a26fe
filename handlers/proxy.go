package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"mangafox/services/source"
)

// Page hosts that refuse hotlinks, mapped to the referer they expect.
var refererByHost = map[string]string{
	"uploads.mangadex.org": "https://mangadex.org/",
	"mangadex.network":     "https://mangadex.org/",
	"meo.comick.pictures":  "https://comick.io/",
}

const maxCachedImage = 5 << 20 // bytes

type cachedImage struct {
	ContentType string
	Body        []byte
}

// imageCache keeps recently proxied images so a reader paging back and
// forth does not hammer the upstream CDN. Swept from main on a ticker.
var imageCache = source.NewCache()

// ImageCache exposes the proxy cache for sweeping and admin stats.
func ImageCache() *source.Cache { return imageCache }

// ProxyImage fetches an upstream image on the client's behalf, injecting
// the referer the host demands and relaxing CORS.
func ProxyImage(c *fiber.Ctx) error {
	targetURL := c.Query("url")
	if targetURL == "" {
		return c.Status(400).SendString("Missing url param")
	}

	u, err := url.Parse(targetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return c.Status(400).SendString("Invalid URL")
	}

	c.Set("Access-Control-Allow-Origin", "*")

	if v, ok := imageCache.Get(targetURL); ok {
		img := v.(cachedImage)
		c.Set("Content-Type", img.ContentType)
		c.Set("X-Proxy-Cache", "hit")
		return c.Send(img.Body)
	}

	req, err := http.NewRequestWithContext(c.Context(), "GET", targetURL, nil)
	if err != nil {
		return c.Status(500).SendString("Invalid URL")
	}
	req.Header.Set("User-Agent", c.Get("User-Agent"))
	for host, referer := range refererByHost {
		if u.Host == host || strings.HasSuffix(u.Host, "."+host) {
			req.Header.Set("Referer", referer)
			break
		}
	}

	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return c.Status(502).SendString("Failed to fetch upstream: " + err.Error())
	}

	if resp.StatusCode != 200 {
		resp.Body.Close()
		return c.Status(resp.StatusCode).SendString("Upstream error")
	}

	contentType := resp.Header.Get("Content-Type")
	c.Set("Content-Type", contentType)
	c.Set("Cache-Control", "public, max-age=86400")

	// Small images are buffered and cached; anything larger streams through.
	if resp.ContentLength >= 0 && resp.ContentLength <= maxCachedImage {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxCachedImage+1))
		resp.Body.Close()
		if err != nil {
			return c.Status(502).SendString("Failed to read upstream")
		}
		if len(body) <= maxCachedImage {
			imageCache.Set(targetURL, cachedImage{ContentType: contentType, Body: body}, 30*time.Minute)
		}
		return c.Send(body)
	}

	// The body is drained after this handler returns, so it must not be
	// closed here; fasthttp closes the stream once it is fully sent.
	return c.SendStream(resp.Body)
}
