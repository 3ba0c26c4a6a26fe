package models

import "time"

// Publication status values. Every provider's native status string is
// normalized into one of these before leaving the engine.
const (
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusHiatus    = "hiatus"
	StatusCancelled = "cancelled"
	StatusUnknown   = "unknown"
)

// Manga is the canonical catalog entry shared by every source.
// ID is always "<sourceId>:<nativeSlug>" so callers can route follow-up
// requests by splitting on the first colon.
type Manga struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	AltTitles   []string   `json:"altTitles,omitempty"`
	Description string     `json:"description"`
	CoverURL    string     `json:"cover"`
	Author      string     `json:"author"`
	Artist      string     `json:"artist"`
	Status      string     `json:"status"`
	Tags        []string   `json:"tags,omitempty"`
	Genres      []string   `json:"genres,omitempty"`
	Rating      *float64   `json:"rating"`
	Views       int64      `json:"views,omitempty"`
	LastChapter string     `json:"lastChapter,omitempty"`
	Year        int        `json:"year,omitempty"`
	Adult       bool       `json:"isAdult"`
	SourceID    string     `json:"sourceId"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Chapter is one release of a manga. ID is the provider-native chapter id,
// unique only within its source; Chapter keeps decimals as text ("12.5")
// because it is an identity, not a number.
type Chapter struct {
	ID          string     `json:"id"`
	MangaID     string     `json:"mangaId"`
	Chapter     string     `json:"chapter"`
	Volume      *string    `json:"volume"`
	Title       string     `json:"title"`
	Pages       int        `json:"pages"`
	Language    string     `json:"language"`
	Scanlator   string     `json:"scanlator,omitempty"`
	PublishedAt *time.Time `json:"publishedAt"`
	SourceID    string     `json:"sourceId"`
}

// Page is a single image of a chapter.
type Page struct {
	Index        int    `json:"index"`
	URL          string `json:"url"`
	DataSaverURL string `json:"dataSaverUrl,omitempty"`
}

// Response envelopes for the JSON API.

type MangaListResponse struct {
	Data  []Manga `json:"data"`
	Total int     `json:"total"`
}

type ChapterListResponse struct {
	Data []Chapter `json:"data"`
}

type PageListResponse struct {
	Pages []Page `json:"pages"`
}

type OGResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Type        string `json:"type,omitempty"`
}
