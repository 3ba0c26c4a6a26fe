package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mangafox/models"
)

// Errors surfaced to callers. Aggregate operations never return these;
// single-source operations do.
var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrNotFound        = errors.New("not found")
	ErrDuplicateSource = errors.New("source already registered")
)

// AdultRating classifies a source's catalog.
type AdultRating int

const (
	// SafeOnly sources never return adult content.
	SafeOnly AdultRating = iota
	// AdultOnly sources return nothing but adult content.
	AdultOnly
	// Mixed sources carry both and are shown under every filter.
	Mixed
)

func (r AdultRating) String() string {
	switch r {
	case AdultOnly:
		return "adult"
	case Mixed:
		return "mixed"
	default:
		return "safe"
	}
}

func (r AdultRating) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *AdultRating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "safe", "":
		*r = SafeOnly
	case "adult":
		*r = AdultOnly
	case "mixed":
		*r = Mixed
	default:
		return fmt.Errorf("unknown adult rating %q", s)
	}
	return nil
}

// Filters describes which query parameters a source understands natively.
// Sources that do not are still queried; they just ignore the parameter.
type Filters struct {
	Tags   bool     `json:"tags"`
	Status bool     `json:"status"`
	Sorts  []string `json:"sorts,omitempty"`
}

// Descriptor is the static metadata for one source. Enabled is the only
// mutable field and is guarded by the registry.
type Descriptor struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Icon         string        `json:"icon,omitempty"`
	Description  string        `json:"description,omitempty"`
	Adult        AdultRating   `json:"adult"`
	Enabled      bool          `json:"enabled"`
	ContentTypes []string      `json:"contentTypes,omitempty"`
	Filters      Filters       `json:"filters"`
	RateLimit    time.Duration `json:"-"` // min interval between calls
}

// SearchOptions carries everything a source may use to narrow a search.
type SearchOptions struct {
	Page         int
	Limit        int
	IncludeAdult bool
	AdultOnly    bool
	Tags         []string
	ExcludeTags  []string
	Status       string
	Sort         string
}

// ListOptions is the reduced option set for popular/latest style listings.
type ListOptions struct {
	Page         int
	Limit        int
	IncludeAdult bool
}

// Provider maps a specific upstream (e.g. MangaDex, Comick) onto the
// canonical schema. Every method is mandatory; a source that cannot serve
// an operation returns an empty result instead of an error. Implementations
// must never panic past their own boundary; the manager recovers anyway,
// but a fault should surface as an error or an empty list.
type Provider interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]models.Manga, error)
	GetPopular(ctx context.Context, opts ListOptions) ([]models.Manga, error)
	GetLatest(ctx context.Context, opts ListOptions) ([]models.Manga, error)
	GetNewlyAdded(ctx context.Context, opts ListOptions) ([]models.Manga, error)
	GetTopRated(ctx context.Context, opts ListOptions) ([]models.Manga, error)
	GetMangaDetails(ctx context.Context, id string) (*models.Manga, error)
	GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error)
	SearchChaptersByTitle(ctx context.Context, title string) ([]models.Chapter, error)
	GetChapterPages(ctx context.Context, chapterID, mangaID string) ([]models.Page, error)
	GetTags(ctx context.Context) ([]string, error)
	CheckConnectivity(ctx context.Context) bool
}
