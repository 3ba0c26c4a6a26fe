package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"mangafox/models"
	"mangafox/services/source"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Bulk-imports MangaDex metadata into the local library so a fresh deploy
// has a browsable catalog before any admin uploads.
func main() {
	dbPath := flag.String("db", "mangafox.db", "sqlite database path")
	pages := flag.Int("pages", 5, "number of pages to import")
	perPage := flag.Int("limit", 50, "entries per page")
	flag.Parse()

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	log.Println("Connected to Database")

	if err := models.MigrateLibrary(db); err != nil {
		log.Fatal("Migration failed:", err)
	}

	provider := source.NewMangaDex()
	ctx := context.Background()

	for page := 1; page <= *pages; page++ {
		log.Printf("Fetching Page %d...", page)

		mangas, err := provider.GetPopular(ctx, source.ListOptions{Page: page, Limit: *perPage})
		if err != nil {
			log.Printf("Error fetching page %d: %v", page, err)
			continue
		}
		if len(mangas) == 0 {
			log.Println("No more data found. Stopping.")
			break
		}

		entries := make([]models.LibraryEntry, 0, len(mangas))
		for _, m := range mangas {
			rating := 0.0
			if m.Rating != nil {
				rating = *m.Rating
			}
			// The native id keys the row so re-runs update instead of duplicating.
			_, native := source.SplitID(m.ID)
			entries = append(entries, models.LibraryEntry{
				ID:          "md-" + native,
				Title:       m.Title,
				AltTitles:   strings.Join(m.AltTitles, ", "),
				Description: m.Description,
				CoverURL:    m.CoverURL,
				Author:      m.Author,
				Artist:      m.Artist,
				Status:      m.Status,
				Tags:        strings.Join(m.Tags, ", "),
				Genres:      strings.Join(m.Genres, ", "),
				Rating:      rating,
				Adult:       m.Adult,
			})
		}

		// Batch Upsert
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "cover_url", "description", "status", "rating"}),
		}).Create(&entries).Error; err != nil {
			log.Printf("Error saving page %d: %v", page, err)
		} else {
			log.Printf("Successfully saved %d entries from page %d", len(entries), page)
		}

		// Be polite to the API
		time.Sleep(500 * time.Millisecond)
	}

	log.Println("Ingestion Complete!")
}
