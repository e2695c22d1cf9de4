package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dropper-mc/dropper/pkg/httputil"
)

// maxConcurrentFetches bounds how many upstream catalog requests run at
// once. The pool is fixed rather than unbounded to respect upstream rate
// limits and avoid tripping anti-scraping defenses.
const maxConcurrentFetches = 4

// Conflict records a disagreement between two sources about the dependency
// metadata of the same (name, version). The higher-priority source's listing
// wins, but the disagreement is kept for diagnostics rather than silently
// dropped.
type Conflict struct {
	Name    string
	Version string
	Winner  string // source ID whose metadata was kept
	Loser   string // source ID whose metadata was shadowed
}

// Registry merges listings across an ordered set of configured sources.
//
// Listings fetched within the cache TTL are reused without re-querying
// upstream; [Registry.Invalidate] drops a single name on demand (the
// explicit refresh action) — there is no hidden background refresh. At most
// one upstream fetch per name is in flight at a time; concurrent callers
// for the same name wait for that result instead of issuing duplicates.
type Registry struct {
	sources []*Source // sorted by priority, highest (lowest value) first
	fetcher httputil.Fetcher
	cache   *httputil.Cache
	logger  *log.Logger

	mu        sync.Mutex
	inflight  map[string]*inflightCall
	conflicts []Conflict
}

type inflightCall struct {
	done     chan struct{}
	listings []Listing
	err      error
}

// NewRegistry creates a Registry over the given sources. The cache may be
// nil to disable response caching; the logger may be nil to silence
// diagnostics.
func NewRegistry(sources []*Source, fetcher httputil.Fetcher, cache *httputil.Cache, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ordered := make([]*Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	return &Registry{
		sources:  ordered,
		fetcher:  fetcher,
		cache:    cache,
		logger:   logger,
		inflight: make(map[string]*inflightCall),
	}
}

// ListingsFor returns every known listing for name, merged across all
// configured sources and de-duplicated by (name, version, source). Listings
// for the same version are ordered authoritative-first: source priority,
// then confidence. An empty result with a nil error means every source
// answered but none lists the name.
func (r *Registry) ListingsFor(ctx context.Context, name string) ([]Listing, error) {
	if cached, ok := r.cachedListings(name); ok {
		return cached, nil
	}

	r.mu.Lock()
	if call, ok := r.inflight[name]; ok {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.listings, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	r.inflight[name] = call
	r.mu.Unlock()

	call.listings, call.err = r.fetchAll(ctx, name)
	close(call.done)

	r.mu.Lock()
	delete(r.inflight, name)
	r.mu.Unlock()

	if call.err == nil && r.cache != nil {
		if err := r.cache.Set(name, call.listings); err != nil {
			r.logger.Debug("cache write failed", "name", name, "err", err)
		}
	}
	return call.listings, call.err
}

func (r *Registry) cachedListings(name string) ([]Listing, bool) {
	if r.cache == nil {
		return nil, false
	}
	var listings []Listing
	ok, err := r.cache.Get(name, &listings)
	if err != nil && !errors.Is(err, httputil.ErrExpired) {
		r.logger.Debug("cache read failed", "name", name, "err", err)
	}
	return listings, ok
}

// fetchAll queries every source concurrently (bounded) and merges the
// results. A source that fails to fetch or extract is logged and skipped;
// the call fails only when every source fails.
func (r *Registry) fetchAll(ctx context.Context, name string) ([]Listing, error) {
	perSource := make([][]Listing, len(r.sources))
	errs := make([]error, len(r.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, src := range r.sources {
		g.Go(func() error {
			listings, err := r.fetchOne(gctx, src, name)
			if err != nil {
				errs[i] = err
				r.logger.Debug("source failed", "source", src.ID, "name", name, "err", err)
				return nil // other sources may still answer
			}
			perSource[i] = listings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(r.sources) {
		return nil, fmt.Errorf("all %d sources failed for %s: %w", failed, name, errors.Join(errs...))
	}

	return r.merge(name, perSource), nil
}

func (r *Registry) fetchOne(ctx context.Context, src *Source, name string) ([]Listing, error) {
	doc, err := r.fetcher.Fetch(ctx, src.CatalogURL(name))
	if errors.Is(err, httputil.ErrNotFound) {
		// The source simply does not carry this plugin.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := src.Extractor.Extract(name, doc)
	if err != nil {
		return nil, err
	}
	if res.Skipped > 0 {
		r.logger.Debug("skipped unparseable records", "source", src.ID, "name", name, "count", res.Skipped)
	}
	return res.Listings, nil
}

// merge combines per-source listings in priority order, collapsing
// (name, version, source) duplicates to the highest-confidence record and
// recording dependency-metadata conflicts between sources that list the
// same version.
func (r *Registry) merge(name string, perSource [][]Listing) []Listing {
	var merged []Listing
	seen := make(map[string]int)          // name|version|source -> index in merged
	authoritative := make(map[string]int) // name|version -> index in merged

	for i, listings := range perSource {
		src := r.sources[i]
		for _, l := range listings {
			key := l.Name + "|" + l.Version.String() + "|" + l.SourceID
			if idx, ok := seen[key]; ok {
				// The same source listed this version twice. Keep the
				// higher-confidence record: a schema-declared listing must
				// not be shadowed by an earlier heuristic one.
				if l.Confidence > merged[idx].Confidence {
					r.logger.Debug("replacing lower-confidence duplicate",
						"name", l.Name, "version", l.Version.String(), "source", l.SourceID,
						"kept", l.Confidence, "dropped", merged[idx].Confidence)
					merged[idx] = l
				}
				continue
			}
			seen[key] = len(merged)

			vkey := l.Name + "|" + l.Version.String()
			if idx, ok := authoritative[vkey]; ok {
				winner := merged[idx]
				if !sameDependencies(winner.Dependencies, l.Dependencies) {
					c := Conflict{
						Name:    name,
						Version: l.Version.String(),
						Winner:  winner.SourceID,
						Loser:   src.ID,
					}
					r.recordConflict(c)
				}
			} else {
				authoritative[vkey] = len(merged)
			}
			merged = append(merged, l)
		}
	}
	return merged
}

func (r *Registry) recordConflict(c Conflict) {
	r.mu.Lock()
	r.conflicts = append(r.conflicts, c)
	r.mu.Unlock()
	r.logger.Warn("sources disagree on dependency metadata",
		"name", c.Name, "version", c.Version, "kept", c.Winner, "shadowed", c.Loser)
}

// Conflicts returns the dependency-metadata disagreements observed so far.
func (r *Registry) Conflicts() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conflict, len(r.conflicts))
	copy(out, r.conflicts)
	return out
}

// Invalidate drops the cached listings for one name, forcing the next
// lookup to re-query upstream.
func (r *Registry) Invalidate(name string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(name)
}

// InvalidateAll clears the whole listing cache.
func (r *Registry) InvalidateAll() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.InvalidateAll()
}

// Sources returns the configured sources in priority order.
func (r *Registry) Sources() []*Source {
	return r.sources
}

// PriorityOf returns the priority of the source with the given ID, or the
// lowest possible priority when the ID is unknown (shadowed listings from
// deconfigured sources should never win a tie).
func (r *Registry) PriorityOf(sourceID string) int {
	for _, s := range r.sources {
		if s.ID == sourceID {
			return s.Priority
		}
	}
	return int(^uint(0) >> 1)
}

func sameDependencies(a, b []Dependency) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Constraint.String() != b[i].Constraint.String() {
			return false
		}
	}
	return true
}
