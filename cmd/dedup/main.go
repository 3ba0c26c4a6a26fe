package main

import (
	"flag"
	"log"

	"mangafox/models"
	"mangafox/services/source"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Removes library entries whose normalized titles collide, keeping the
// oldest row of each group. Repeated imports can leave near-duplicate
// titles behind.
func main() {
	dbPath := flag.String("db", "mangafox.db", "sqlite database path")
	flag.Parse()

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}

	var entries []models.LibraryEntry
	if err := db.Order("created_at asc").Find(&entries).Error; err != nil {
		log.Fatal(err)
	}

	seen := make(map[string]models.LibraryEntry)
	removed := 0
	for _, entry := range entries {
		key := source.DefaultTitleNormalizer.Normalize(entry.Title)
		kept, ok := seen[key]
		if !ok {
			seen[key] = entry
			continue
		}

		log.Printf("Deduplicating: %q (keeping %s, deleting %s)", entry.Title, kept.ID, entry.ID)
		db.Where("entry_id = ?", entry.ID).Delete(&models.LibraryChapter{})
		db.Delete(&models.LibraryEntry{}, "id = ?", entry.ID)
		removed++
	}

	log.Printf("Deduplication complete. Removed %d entries.", removed)
}
