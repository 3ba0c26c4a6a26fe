package main

import (
	"log"
	"os"
	"time"

	"mangafox/database"
	"mangafox/handlers"
	"mangafox/services/source"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	app := fiber.New()

	// Security Middleware
	app.Use(helmet.New()) // XSS, Clickjacking, etc.

	// Rate Limiting (120 reqs / min)
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // Limit by IP
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":  "error",
				"message": "Too many requests, please try again later.",
			})
		},
	}))

	// CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000,http://localhost:4321,https://mangafox.app,https://www.mangafox.app",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Database (local library storage)
	database.Connect()

	// Source registry
	registry := source.NewRegistry()
	if err := registry.Register(source.MangaDexDescriptor(), source.NewMangaDex()); err != nil {
		log.Fatal("Register mangadex: ", err)
	}
	if err := registry.Register(source.ComickDescriptor(), source.NewComick()); err != nil {
		log.Fatal("Register comick: ", err)
	}
	if err := registry.Register(source.KitsuDescriptor(), source.NewKitsu()); err != nil {
		log.Fatal("Register kitsu: ", err)
	}
	if err := registry.Register(source.LibraryDescriptor(), source.NewLibrary(database.DB)); err != nil {
		log.Fatal("Register library: ", err)
	}

	cache := source.NewCache()
	handlers.Engine = source.NewManager(registry, cache, source.Options{})

	// Bound cache memory; lookups already evict lazily.
	go func() {
		for range time.Tick(10 * time.Minute) {
			cache.Sweep()
			handlers.ImageCache().Sweep()
		}
	}()

	// Routes
	api := app.Group("/api")

	api.Get("/sources", handlers.GetSources)
	api.Get("/status", handlers.GetSourceStatus)
	api.Get("/tags", handlers.GetTags)

	api.Get("/manga/search", handlers.SearchManga)
	api.Get("/manga/popular", handlers.GetPopularManga)
	api.Get("/manga/latest", handlers.GetLatestManga)
	api.Get("/manga/new", handlers.GetNewManga)
	api.Get("/manga/top-rated", handlers.GetTopRatedManga)
	api.Get("/manga/:id", handlers.GetMangaDetail)

	api.Get("/chapters/:mangaId", handlers.GetChapters)
	api.Get("/pages/:sourceId/:chapterId", handlers.GetChapterPages)
	api.Get("/og/:mangaId", handlers.GetOpenGraph)

	api.Get("/proxy/image", handlers.ProxyImage)

	// Admin Login (Public)
	api.Post("/admin/login", handlers.AdminLogin)

	// Admin (Protected)
	admin := api.Group("/admin")
	admin.Use(handlers.RequireAdmin)

	admin.Put("/sources/:id", handlers.SetSourceEnabled)
	admin.Get("/cache", handlers.GetCacheStats)
	admin.Delete("/cache", handlers.PurgeCache)

	// Library management
	admin.Get("/library", handlers.GetLibraryEntries)
	admin.Post("/library", handlers.CreateLibraryEntry)
	admin.Put("/library/:id", handlers.UpdateLibraryEntry)
	admin.Delete("/library/:id", handlers.DeleteLibraryEntry)
	admin.Post("/library/:id/chapters", handlers.AddLibraryChapter)
	admin.Delete("/library/:id/chapters/:chapterId", handlers.DeleteLibraryChapter)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("Starting server on :" + port + "...")
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Server Listen Error: ", err)
	}
}
