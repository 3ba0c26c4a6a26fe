package source

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"mangafox/models"
)

// Options tunes the orchestration. Zero values fall back to the defaults
// the production config uses.
type Options struct {
	// PrioritySources are queried first under PriorityDeadline. Known
	// fast, API-backed sources belong here.
	PrioritySources  []string
	PriorityDeadline time.Duration
	// OverallDeadline bounds the whole operation, measured from request
	// start (not from the start of the secondary round).
	OverallDeadline time.Duration
	// MaxSecondary caps how many non-priority sources join the second round.
	MaxSecondary int
	DefaultLimit int

	ListTTL   time.Duration // search/popular/latest
	EntityTTL time.Duration // details/chapters/pages
	TagsTTL   time.Duration // tag lists
	StatusTTL time.Duration // connectivity snapshot

	Titles TitleNormalizer
}

func (o Options) withDefaults() Options {
	if len(o.PrioritySources) == 0 {
		o.PrioritySources = []string{"mangadex"}
	}
	if o.PriorityDeadline <= 0 {
		o.PriorityDeadline = 3 * time.Second
	}
	if o.OverallDeadline <= 0 {
		o.OverallDeadline = 5 * time.Second
	}
	if o.MaxSecondary <= 0 {
		o.MaxSecondary = 3
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 24
	}
	if o.ListTTL <= 0 {
		o.ListTTL = 5 * time.Minute
	}
	if o.EntityTTL <= 0 {
		o.EntityTTL = 5 * time.Minute
	}
	if o.TagsTTL <= 0 {
		o.TagsTTL = time.Hour
	}
	if o.StatusTTL <= 0 {
		o.StatusTTL = time.Minute
	}
	if o.Titles == nil {
		o.Titles = DefaultTitleNormalizer
	}
	return o
}

// QueryOptions selects sources and narrows an aggregate query.
type QueryOptions struct {
	Sources      []string `json:"sources,omitempty"`
	IncludeAdult bool     `json:"includeAdult"`
	AdultOnly    bool     `json:"adultOnly"`
	Page         int      `json:"page"`
	Limit        int      `json:"limit"`
	Tags         []string `json:"tags,omitempty"`
	ExcludeTags  []string `json:"excludeTags,omitempty"`
	Status       string   `json:"status,omitempty"`
	Sort         string   `json:"sort,omitempty"`
}

// TagSet is the aggregated tag listing.
type TagSet struct {
	Tags     []string            `json:"tags"`
	BySource map[string][]string `json:"bySource"`
}

// SourceStatus is one source's connectivity snapshot.
type SourceStatus struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Adult     AdultRating `json:"adult"`
	Available bool        `json:"available"`
	LastCheck time.Time   `json:"lastCheck"`
}

// Manager fans one logical request out to many sources, bounds the total
// latency, folds the per-source results into the canonical schema and
// memoizes them. One slow or broken source never blocks or corrupts the
// others: aggregate operations always succeed, possibly with fewer results.
type Manager struct {
	registry *Registry
	cache    *Cache
	opts     Options
}

func NewManager(registry *Registry, cache *Cache, opts Options) *Manager {
	return &Manager{registry: registry, cache: cache, opts: opts.withDefaults()}
}

// Registry exposes the source registry to the HTTP layer.
func (m *Manager) Registry() *Registry { return m.registry }

// Cache exposes the cache for the admin surface.
func (m *Manager) Cache() *Cache { return m.cache }

// SplitID recovers the owning source from a canonical "<source>:<native>" id.
func SplitID(id string) (sourceID, native string) {
	if i := strings.Index(id, ":"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, ""
}

// safeCall runs one provider call with pacing, panic recovery and
// error-to-empty conversion. Provider faults are logged and isolated;
// they never reach the caller of an aggregate operation.
func safeCall[T any](h *Handle, op string, call func() ([]T, error)) (out []T) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[sources] %s: %s panic: %v", h.Descriptor.ID, op, r)
			out = nil
		}
	}()
	h.limiter.wait()
	res, err := call()
	if err != nil {
		log.Printf("[sources] %s: %s error: %v", h.Descriptor.ID, op, err)
		return nil
	}
	return res
}

// fanOut launches call against every handle concurrently and collects
// whatever completes before timeout, preserving handle order. Results
// arriving after the deadline are discarded; the goroutines write into
// buffered channels and are abandoned, never blocked on.
func fanOut[T any](handles []*Handle, timeout time.Duration, call func(h *Handle) []T) [][]T {
	out := make([][]T, len(handles))
	if len(handles) == 0 || timeout <= 0 {
		return out
	}

	chans := make([]chan []T, len(handles))
	for i, h := range handles {
		ch := make(chan []T, 1)
		chans[i] = ch
		go func(h *Handle, ch chan<- []T) {
			ch <- call(h)
		}(h, ch)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	expired := false
	for i := range chans {
		if expired {
			// Deadline passed; take only what already finished.
			select {
			case items := <-chans[i]:
				out[i] = items
			default:
			}
			continue
		}
		select {
		case items := <-chans[i]:
			out[i] = items
		case <-timer.C:
			expired = true
			select {
			case items := <-chans[i]:
				out[i] = items
			default:
			}
		}
	}
	return out
}

// targets resolves the handle set for an aggregate query: an explicit
// source list (unknown ids skipped, enabled flag bypassed) or the enabled
// set under the adult filter.
func (m *Manager) targets(q QueryOptions) []*Handle {
	if len(q.Sources) > 0 {
		out := make([]*Handle, 0, len(q.Sources))
		for _, id := range q.Sources {
			if h, err := m.registry.Resolve(id); err == nil {
				out = append(out, h)
			}
		}
		return out
	}
	return m.registry.Enabled(ListFilter{IncludeAdult: q.IncludeAdult || q.AdultOnly, AdultOnly: q.AdultOnly})
}

// splitPriority partitions handles into the priority tier and the rest,
// both keeping their original order.
func (m *Manager) splitPriority(handles []*Handle) (priority, rest []*Handle) {
	prio := make(map[string]bool, len(m.opts.PrioritySources))
	for _, id := range m.opts.PrioritySources {
		prio[id] = true
	}
	for _, h := range handles {
		if prio[h.Descriptor.ID] {
			priority = append(priority, h)
		} else {
			rest = append(rest, h)
		}
	}
	return priority, rest
}

// mergeDedup folds per-source result lists into acc in order, dropping
// any work whose normalized title was already seen. First source wins:
// deterministic for a fixed registration order, independent of network
// timing, because lists only exist after the round's deadline resolved.
func (m *Manager) mergeDedup(acc []models.Manga, seen map[string]bool, lists [][]models.Manga) []models.Manga {
	for _, list := range lists {
		for _, manga := range list {
			key := m.opts.Titles.Normalize(manga.Title)
			if seen[key] {
				continue
			}
			seen[key] = true
			acc = append(acc, manga)
		}
	}
	return acc
}

func (m *Manager) limit(q QueryOptions) int {
	if q.Limit > 0 {
		return q.Limit
	}
	return m.opts.DefaultLimit
}

func searchOptions(q QueryOptions, limit int) SearchOptions {
	return SearchOptions{
		Page:         q.Page,
		Limit:        limit,
		IncludeAdult: q.IncludeAdult || q.AdultOnly,
		AdultOnly:    q.AdultOnly,
		Tags:         q.Tags,
		ExcludeTags:  q.ExcludeTags,
		Status:       q.Status,
		Sort:         q.Sort,
	}
}

func listOptions(q QueryOptions, limit int) ListOptions {
	return ListOptions{Page: q.Page, Limit: limit, IncludeAdult: q.IncludeAdult || q.AdultOnly}
}

// Search runs the two-phase fan-out: priority tier first under the short
// deadline, then (only if the accumulator is still under the limit) up
// to MaxSecondary remaining sources under whatever is left of the overall
// deadline.
func (m *Manager) Search(ctx context.Context, query string, q QueryOptions) []models.Manga {
	key := cacheKey("search", query, q)
	if v, ok := m.cache.Get(key); ok {
		return v.([]models.Manga)
	}

	start := time.Now()
	limit := m.limit(q)
	priority, rest := m.splitPriority(m.targets(q))

	call := func(h *Handle) []models.Manga {
		return safeCall(h, "search", func() ([]models.Manga, error) {
			items, err := h.Provider.Search(ctx, query, searchOptions(q, limit))
			return m.normalizeAll(items, h), err
		})
	}

	seen := make(map[string]bool)
	results := m.mergeDedup(nil, seen, fanOut(priority, m.opts.PriorityDeadline, call))

	if len(results) < limit {
		if len(rest) > m.opts.MaxSecondary {
			rest = rest[:m.opts.MaxSecondary]
		}
		remaining := m.opts.OverallDeadline - time.Since(start)
		results = m.mergeDedup(results, seen, fanOut(rest, remaining, call))
	}

	if len(results) > limit {
		results = results[:limit]
	}
	m.cache.Set(key, results, m.opts.ListTTL)
	return results
}

// GetPopular asks the priority tier first and returns its results when it
// produced any. Only when the tier comes back empty does the fallback
// round query the secondary sources, bounded by the overall deadline.
func (m *Manager) GetPopular(ctx context.Context, q QueryOptions) []models.Manga {
	key := cacheKey("popular", q)
	if v, ok := m.cache.Get(key); ok {
		return v.([]models.Manga)
	}

	start := time.Now()
	limit := m.limit(q)
	priority, rest := m.splitPriority(m.targets(q))

	call := func(h *Handle) []models.Manga {
		return safeCall(h, "popular", func() ([]models.Manga, error) {
			items, err := h.Provider.GetPopular(ctx, listOptions(q, limit))
			return m.normalizeAll(items, h), err
		})
	}

	seen := make(map[string]bool)
	results := m.mergeDedup(nil, seen, fanOut(priority, m.opts.PriorityDeadline, call))

	if len(results) == 0 {
		if len(rest) > m.opts.MaxSecondary {
			rest = rest[:m.opts.MaxSecondary]
		}
		remaining := m.opts.OverallDeadline - time.Since(start)
		results = m.mergeDedup(results, seen, fanOut(rest, remaining, call))
	}

	if len(results) > limit {
		results = results[:limit]
	}
	m.cache.Set(key, results, m.opts.ListTTL)
	return results
}

// GetLatest fans out to every target, merges with dedup and orders by
// update recency before trimming to the limit.
func (m *Manager) GetLatest(ctx context.Context, q QueryOptions) []models.Manga {
	return m.listAcrossSources(ctx, "latest", q, func(ctx context.Context, h *Handle, opts ListOptions) ([]models.Manga, error) {
		return h.Provider.GetLatest(ctx, opts)
	}, true)
}

// GetNewlyAdded lists recently catalogued works across sources.
func (m *Manager) GetNewlyAdded(ctx context.Context, q QueryOptions) []models.Manga {
	return m.listAcrossSources(ctx, "newlyAdded", q, func(ctx context.Context, h *Handle, opts ListOptions) ([]models.Manga, error) {
		return h.Provider.GetNewlyAdded(ctx, opts)
	}, false)
}

// GetTopRated lists the highest rated works across sources.
func (m *Manager) GetTopRated(ctx context.Context, q QueryOptions) []models.Manga {
	return m.listAcrossSources(ctx, "topRated", q, func(ctx context.Context, h *Handle, opts ListOptions) ([]models.Manga, error) {
		return h.Provider.GetTopRated(ctx, opts)
	}, false)
}

func (m *Manager) listAcrossSources(ctx context.Context, op string, q QueryOptions, fetch func(context.Context, *Handle, ListOptions) ([]models.Manga, error), sortByUpdate bool) []models.Manga {
	key := cacheKey(op, q)
	if v, ok := m.cache.Get(key); ok {
		return v.([]models.Manga)
	}

	limit := m.limit(q)
	handles := m.targets(q)

	perSource := limit
	if len(handles) > 1 {
		perSource = (limit + len(handles) - 1) / len(handles)
	}

	call := func(h *Handle) []models.Manga {
		return safeCall(h, op, func() ([]models.Manga, error) {
			items, err := fetch(ctx, h, listOptions(q, perSource))
			return m.normalizeAll(items, h), err
		})
	}

	seen := make(map[string]bool)
	results := m.mergeDedup(nil, seen, fanOut(handles, m.opts.OverallDeadline, call))

	if sortByUpdate {
		sort.SliceStable(results, func(i, j int) bool {
			var a, b time.Time
			if results[i].UpdatedAt != nil {
				a = *results[i].UpdatedAt
			}
			if results[j].UpdatedAt != nil {
				b = *results[j].UpdatedAt
			}
			return a.After(b)
		})
	}

	if len(results) > limit {
		results = results[:limit]
	}
	m.cache.Set(key, results, m.opts.ListTTL)
	return results
}

func (m *Manager) normalizeAll(items []models.Manga, h *Handle) []models.Manga {
	out := make([]models.Manga, 0, len(items))
	for _, item := range items {
		out = append(out, NormalizeManga(item, h.Descriptor))
	}
	return out
}

// GetMangaDetails routes to the owning source by id prefix. There is no
// fallback target, so not-found and unknown-source propagate.
func (m *Manager) GetMangaDetails(ctx context.Context, id string) (*models.Manga, error) {
	key := cacheKey("manga", id)
	if v, ok := m.cache.Get(key); ok {
		return v.(*models.Manga), nil
	}

	sourceID, _ := SplitID(id)
	h, err := m.registry.Resolve(sourceID)
	if err != nil {
		return nil, err
	}

	h.limiter.wait()
	details, err := h.Provider.GetMangaDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, ErrNotFound
	}

	normalized := NormalizeManga(*details, h.Descriptor)
	m.cache.Set(key, &normalized, m.opts.EntityTTL)
	return &normalized, nil
}

// GetChapters returns the owning source's chapter list for one manga.
func (m *Manager) GetChapters(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	key := cacheKey("chapters", mangaID)
	if v, ok := m.cache.Get(key); ok {
		return v.([]models.Chapter), nil
	}

	sourceID, _ := SplitID(mangaID)
	h, err := m.registry.Resolve(sourceID)
	if err != nil {
		return nil, err
	}

	h.limiter.wait()
	chapters, err := h.Provider.GetChapters(ctx, mangaID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Chapter, 0, len(chapters))
	for _, c := range chapters {
		out = append(out, NormalizeChapter(c, h.Descriptor))
	}
	m.cache.Set(key, out, m.opts.EntityTTL)
	return out, nil
}

// GetChaptersFromAllSources consolidates one manga's chapters across every
// enabled source. Sources that find nothing by id fall back to a title
// search. Chapters colliding on the same number keep the version with the
// most pages; the merged list is ordered by numeric chapter value.
func (m *Manager) GetChaptersFromAllSources(ctx context.Context, mangaID, title string, includeAdult bool) []models.Chapter {
	key := cacheKey("chaptersAll", mangaID, title, includeAdult)
	if v, ok := m.cache.Get(key); ok {
		return v.([]models.Chapter)
	}

	handles := m.registry.Enabled(ListFilter{IncludeAdult: includeAdult})

	call := func(h *Handle) []models.Chapter {
		return safeCall(h, "chapters", func() ([]models.Chapter, error) {
			chapters, err := h.Provider.GetChapters(ctx, mangaID)
			if (err != nil || len(chapters) == 0) && title != "" {
				chapters, err = h.Provider.SearchChaptersByTitle(ctx, title)
			}
			out := make([]models.Chapter, 0, len(chapters))
			for _, c := range chapters {
				out = append(out, NormalizeChapter(c, h.Descriptor))
			}
			return out, err
		})
	}

	// No priority tier here: chapter lists feed background consolidation,
	// not a top-of-page render.
	lists := fanOut(handles, m.opts.OverallDeadline, call)

	merged := make(map[string]models.Chapter)
	order := make([]string, 0)
	for _, list := range lists {
		for _, c := range list {
			existing, ok := merged[c.Chapter]
			if !ok {
				order = append(order, c.Chapter)
				merged[c.Chapter] = c
				continue
			}
			if c.Pages > existing.Pages {
				merged[c.Chapter] = c
			}
		}
	}

	out := make([]models.Chapter, 0, len(merged))
	for _, num := range order {
		out = append(out, merged[num])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return chapterNumber(out[i].Chapter) < chapterNumber(out[j].Chapter)
	})

	m.cache.Set(key, out, m.opts.EntityTTL)
	return out
}

// chapterNumber parses the chapter string for ordering only. Identity
// stays textual.
func chapterNumber(s string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return n
}

// GetChapterPages fetches a chapter's page list from an explicitly named
// source. Unknown sources and provider failures propagate; there is
// nothing to fall back to.
func (m *Manager) GetChapterPages(ctx context.Context, chapterID, sourceID string) ([]models.Page, error) {
	key := cacheKey("pages", sourceID, chapterID)
	if v, ok := m.cache.Get(key); ok {
		return v.([]models.Page), nil
	}

	h, err := m.registry.Resolve(sourceID)
	if err != nil {
		return nil, err
	}

	h.limiter.wait()
	pages, err := h.Provider.GetChapterPages(ctx, chapterID, "")
	if err != nil {
		return nil, err
	}
	m.cache.Set(key, pages, m.opts.EntityTTL)
	return pages, nil
}

// GetTags aggregates tag vocabularies. With no explicit source list it
// covers every enabled source under the adult filter.
func (m *Manager) GetTags(ctx context.Context, sourceIDs []string, includeAdult bool) TagSet {
	key := cacheKey("tags", sourceIDs, includeAdult)
	if v, ok := m.cache.Get(key); ok {
		return v.(TagSet)
	}

	handles := m.targets(QueryOptions{Sources: sourceIDs, IncludeAdult: includeAdult})

	type sourceTags struct {
		id   string
		tags []string
	}
	call := func(h *Handle) []sourceTags {
		return safeCall(h, "tags", func() ([]sourceTags, error) {
			tags, err := h.Provider.GetTags(ctx)
			if err != nil {
				return nil, err
			}
			return []sourceTags{{id: h.Descriptor.ID, tags: tags}}, nil
		})
	}

	lists := fanOut(handles, m.opts.OverallDeadline, call)

	set := TagSet{BySource: make(map[string][]string)}
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, st := range list {
			set.BySource[st.id] = st.tags
			for _, t := range st.tags {
				if !seen[t] {
					seen[t] = true
					set.Tags = append(set.Tags, t)
				}
			}
		}
	}
	sort.Strings(set.Tags)

	m.cache.Set(key, set, m.opts.TagsTTL)
	return set
}

// Status probes every registered source. Cached briefly; probes are cheap
// but upstreams dislike being pinged per page load.
func (m *Manager) Status(ctx context.Context) []SourceStatus {
	key := cacheKey("status")
	if v, ok := m.cache.Get(key); ok {
		return v.([]SourceStatus)
	}

	handles := m.registry.All()
	call := func(h *Handle) []SourceStatus {
		return safeCall(h, "status", func() ([]SourceStatus, error) {
			return []SourceStatus{{
				ID:        h.Descriptor.ID,
				Name:      h.Descriptor.Name,
				Adult:     h.Descriptor.Adult,
				Available: h.Provider.CheckConnectivity(ctx),
				LastCheck: time.Now(),
			}}, nil
		})
	}

	lists := fanOut(handles, m.opts.OverallDeadline, call)

	out := make([]SourceStatus, 0, len(handles))
	for i, list := range lists {
		if len(list) > 0 {
			out = append(out, list[0])
			continue
		}
		// Probe did not finish in time; report the source as down.
		out = append(out, SourceStatus{
			ID:        handles[i].Descriptor.ID,
			Name:      handles[i].Descriptor.Name,
			Adult:     handles[i].Descriptor.Adult,
			LastCheck: time.Now(),
		})
	}

	m.cache.Set(key, out, m.opts.StatusTTL)
	return out
}

// ListSources returns descriptors under the adult filter plus the ids of
// the currently enabled ones.
func (m *Manager) ListSources(includeAdult, adultOnly bool) ([]Descriptor, []string) {
	filter := ListFilter{IncludeAdult: includeAdult, AdultOnly: adultOnly}
	descriptors := m.registry.List(filter)
	enabled := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Enabled {
			enabled = append(enabled, d.ID)
		}
	}
	return descriptors, enabled
}

// SetSourceEnabled toggles fan-out participation for one source.
func (m *Manager) SetSourceEnabled(id string, enabled bool) error {
	return m.registry.SetEnabled(id, enabled)
}
