package handlers

import (
	"os"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mangafox/database"
	"mangafox/models"
	"mangafox/utils"
)

// AdminLogin checks the configured credentials and issues a JWT.
// ADMIN_PASSWORD_HASH holds a bcrypt hash; ADMIN_PASSWORD is the plaintext
// fallback for local development.
func AdminLogin(c *fiber.Ctx) error {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Invalid input"})
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}

	ok := false
	if input.Username == username {
		if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
			ok = bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)) == nil
		} else if plain := os.Getenv("ADMIN_PASSWORD"); plain != "" {
			ok = input.Password == plain
		}
	}
	if !ok {
		return c.Status(401).JSON(fiber.Map{"status": "error", "message": "Invalid credentials"})
	}

	token, err := utils.GenerateAdminToken(username)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"status": "error", "message": "Failed to issue token"})
	}

	return c.JSON(fiber.Map{"status": "success", "token": token})
}

// RequireAdmin guards the admin routes with the bearer token.
func RequireAdmin(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return c.Status(401).JSON(fiber.Map{"status": "error", "message": "Missing token"})
	}

	claims, err := utils.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil || claims["role"] != "admin" {
		return c.Status(401).JSON(fiber.Map{"status": "error", "message": "Invalid token"})
	}
	return c.Next()
}

// SetSourceEnabled toggles one source's participation in aggregate queries.
func SetSourceEnabled(c *fiber.Ctx) error {
	var input struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Invalid input"})
	}

	if err := Engine.SetSourceEnabled(c.Params("id"), input.Enabled); err != nil {
		return c.Status(404).JSON(fiber.Map{"status": "error", "message": "Unknown source"})
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// GetCacheStats reports both the query cache and the image proxy cache.
func GetCacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"queries": Engine.Cache().Stats(),
		"images":  ImageCache().Stats(),
	})
}

// PurgeCache drops every cached query result and proxied image.
func PurgeCache(c *fiber.Ctx) error {
	Engine.Cache().Purge()
	ImageCache().Purge()
	return c.JSON(fiber.Map{"status": "success", "message": "Cache purged"})
}

// --- Library management ---

// GetLibraryEntries lists the locally hosted catalog for the admin panel.
func GetLibraryEntries(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	search := c.Query("q")

	query := database.DB.Model(&models.LibraryEntry{})
	if search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	query.Count(&total)

	var entries []models.LibraryEntry
	query.Order("updated_at desc").Limit(limit).Offset((page - 1) * limit).Find(&entries)

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   entries,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// CreateLibraryEntry adds a manga to the local library.
func CreateLibraryEntry(c *fiber.Ctx) error {
	var input models.LibraryEntry
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Invalid input"})
	}
	if input.Title == "" {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Title is required"})
	}

	input.ID = uuid.NewString()
	if input.Status == "" {
		input.Status = models.StatusOngoing
	}

	if err := database.DB.Create(&input).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"status": "error", "message": "Failed to create entry"})
	}

	Engine.Cache().Purge()
	return c.Status(201).JSON(fiber.Map{"status": "success", "data": input})
}

// UpdateLibraryEntry edits a library entry's metadata.
func UpdateLibraryEntry(c *fiber.Ctx) error {
	var input models.LibraryEntry
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Invalid input"})
	}

	var entry models.LibraryEntry
	if result := database.DB.First(&entry, "id = ?", c.Params("id")); result.Error != nil {
		return c.Status(404).JSON(fiber.Map{"status": "error", "message": "Entry not found"})
	}

	entry.Title = input.Title
	entry.AltTitles = input.AltTitles
	entry.Description = input.Description
	entry.CoverURL = input.CoverURL
	entry.Author = input.Author
	entry.Artist = input.Artist
	entry.Status = input.Status
	entry.Tags = input.Tags
	entry.Genres = input.Genres
	entry.Rating = input.Rating
	entry.Adult = input.Adult

	database.DB.Save(&entry)
	Engine.Cache().Purge()

	return c.JSON(fiber.Map{"status": "success", "data": entry})
}

// DeleteLibraryEntry removes an entry and its chapters.
func DeleteLibraryEntry(c *fiber.Ctx) error {
	id := c.Params("id")

	database.DB.Where("entry_id = ?", id).Delete(&models.LibraryChapter{})
	result := database.DB.Delete(&models.LibraryEntry{}, "id = ?", id)
	if result.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"status": "error", "message": "Entry not found"})
	}

	Engine.Cache().Purge()
	return c.JSON(fiber.Map{"status": "success", "message": "Entry deleted"})
}

// AddLibraryChapter uploads one chapter's page URLs for an entry.
func AddLibraryChapter(c *fiber.Ctx) error {
	var input struct {
		Chapter  string   `json:"chapter"`
		Title    string   `json:"title"`
		Language string   `json:"language"`
		Pages    []string `json:"pages"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Invalid input"})
	}
	if len(input.Pages) == 0 {
		return c.Status(400).JSON(fiber.Map{"status": "error", "message": "Pages are required"})
	}

	var entry models.LibraryEntry
	if result := database.DB.First(&entry, "id = ?", c.Params("id")); result.Error != nil {
		return c.Status(404).JSON(fiber.Map{"status": "error", "message": "Entry not found"})
	}

	chapter := models.LibraryChapter{
		EntryID:  entry.ID,
		Number:   input.Chapter,
		Title:    input.Title,
		Language: input.Language,
		PageURLs: strings.Join(input.Pages, "\n"),
	}
	if chapter.Number == "" {
		chapter.Number = "0"
	}
	if chapter.Language == "" {
		chapter.Language = "en"
	}

	if err := database.DB.Create(&chapter).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"status": "error", "message": "Failed to create chapter"})
	}

	Engine.Cache().Purge()
	return c.Status(201).JSON(fiber.Map{"status": "success", "data": chapter})
}

// DeleteLibraryChapter removes one uploaded chapter.
func DeleteLibraryChapter(c *fiber.Ctx) error {
	result := database.DB.Delete(&models.LibraryChapter{}, "id = ? AND entry_id = ?", c.Params("chapterId"), c.Params("id"))
	if result.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"status": "error", "message": "Chapter not found"})
	}

	Engine.Cache().Purge()
	return c.JSON(fiber.Map{"status": "success", "message": "Chapter deleted"})
}
