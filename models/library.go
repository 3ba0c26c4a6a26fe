package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// LibraryEntry is an admin-uploaded manga stored locally. It is served
// through the same provider contract as the remote sources.
type LibraryEntry struct {
	ID          string  `gorm:"primaryKey" json:"id"`
	Title       string  `gorm:"index" json:"title"`
	AltTitles   string  `json:"altTitles"` // comma separated
	Description string  `json:"description"`
	CoverURL    string  `json:"cover"`
	Author      string  `json:"author"`
	Artist      string  `json:"artist"`
	Status      string  `json:"status"`
	Tags        string  `json:"tags"`   // comma separated
	Genres      string  `json:"genres"` // comma separated
	Rating      float64 `json:"rating"`
	Adult       bool    `json:"isAdult"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Chapters []LibraryChapter `gorm:"foreignKey:EntryID;references:ID" json:"chapters,omitempty"`
}

// LibraryChapter holds an uploaded chapter with its page URLs.
type LibraryChapter struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	EntryID  string `gorm:"index" json:"entryId"`
	Number   string `json:"chapter"`
	Title    string `json:"title"`
	Language string `json:"language"`
	PageURLs string `json:"-"` // newline separated
}

// PageList splits the stored page URLs.
func (c *LibraryChapter) PageList() []string {
	if c.PageURLs == "" {
		return nil
	}
	var out []string
	for _, u := range strings.Split(c.PageURLs, "\n") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// SplitList splits a comma separated column into a clean slice.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// MigrateLibrary migrates the library tables.
func MigrateLibrary(db *gorm.DB) error {
	return db.AutoMigrate(&LibraryEntry{}, &LibraryChapter{})
}
