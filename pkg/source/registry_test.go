package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropper-mc/dropper/pkg/httputil"
	"github.com/dropper-mc/dropper/pkg/mcver"
)

// stubFetcher serves canned bodies by URL and counts fetches.
type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  atomic.Int32
	delay  time.Duration
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.bodies[url]; ok {
		return body, nil
	}
	return nil, httputil.ErrNotFound
}

// stubExtractor emits one listing per line of "version[:dep@constraint]".
type stubExtractor struct {
	sourceID string
}

func (e *stubExtractor) Extract(name string, doc []byte) (*Result, error) {
	res := &Result{}
	for _, line := range strings.Split(string(doc), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		version, depSpec, hasDep := strings.Cut(line, ":")
		l := Listing{
			Name:        name,
			Version:     mcver.Parse(version),
			SourceID:    e.sourceID,
			DownloadURL: "https://" + e.sourceID + "/" + name + "/" + version,
			Confidence:  Exact,
		}
		if hasDep {
			depName, c, _ := strings.Cut(depSpec, "@")
			l.Dependencies = []Dependency{{Name: depName, Constraint: mcver.MustConstraint(c)}}
		}
		res.Listings = append(res.Listings, l)
	}
	if len(res.Listings) == 0 {
		return nil, &ExtractionError{SourceID: e.sourceID, Reason: Empty, Detail: "no lines"}
	}
	return res, nil
}

func testSource(id string, priority int) *Source {
	return &Source{
		ID:        id,
		Priority:  priority,
		Extractor: &stubExtractor{sourceID: id},
		CatalogURL: func(name string) string {
			return fmt.Sprintf("https://%s/%s", id, name)
		},
	}
}

func TestRegistryMergesByPriority(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string][]byte{
		"https://primary/WorldEdit":   []byte("7.0.0\n6.1.9"),
		"https://secondary/WorldEdit": []byte("6.1.9\n5.0.0"),
	}}
	// Deliberately registered out of order; the registry sorts by priority.
	reg := NewRegistry([]*Source{testSource("secondary", 2), testSource("primary", 1)}, fetcher, nil, nil)

	listings, err := reg.ListingsFor(context.Background(), "WorldEdit")
	if err != nil {
		t.Fatalf("ListingsFor() error: %v", err)
	}
	if len(listings) != 4 {
		t.Fatalf("len(listings) = %d, want 4", len(listings))
	}
	if listings[0].SourceID != "primary" {
		t.Errorf("listings[0] from %s, want primary first", listings[0].SourceID)
	}
}

func TestRegistryDeduplicates(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string][]byte{
		"https://primary/P": []byte("1.0.0\n1.0.0"),
	}}
	reg := NewRegistry([]*Source{testSource("primary", 1)}, fetcher, nil, nil)

	listings, err := reg.ListingsFor(context.Background(), "P")
	if err != nil {
		t.Fatalf("ListingsFor() error: %v", err)
	}
	if len(listings) != 1 {
		t.Errorf("len(listings) = %d, want 1 after (name, version, source) dedupe", len(listings))
	}
}

// tierExtractor emits one listing per line of "version/confidence".
type tierExtractor struct {
	sourceID string
}

func (e *tierExtractor) Extract(name string, doc []byte) (*Result, error) {
	tiers := map[string]Confidence{"exact": Exact, "inferred": Inferred, "unreliable": Unreliable}
	res := &Result{}
	for _, line := range strings.Split(string(doc), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		version, tier, _ := strings.Cut(line, "/")
		res.Listings = append(res.Listings, Listing{
			Name:        name,
			Version:     mcver.Parse(version),
			SourceID:    e.sourceID,
			DownloadURL: "https://" + e.sourceID + "/" + name + "/" + version,
			Confidence:  tiers[tier],
		})
	}
	return res, nil
}

func TestRegistryDedupeKeepsHighestConfidence(t *testing.T) {
	// The same source lists 1.0.0 twice: first recovered heuristically,
	// then from a strict schema field. The schema-backed record must
	// survive the dedupe regardless of document order.
	fetcher := &stubFetcher{bodies: map[string][]byte{
		"https://primary/P": []byte("1.0.0/inferred\n1.0.0/exact"),
	}}
	src := &Source{
		ID:         "primary",
		Priority:   1,
		Extractor:  &tierExtractor{sourceID: "primary"},
		CatalogURL: func(name string) string { return "https://primary/" + name },
	}
	reg := NewRegistry([]*Source{src}, fetcher, nil, nil)

	listings, err := reg.ListingsFor(context.Background(), "P")
	if err != nil {
		t.Fatalf("ListingsFor() error: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("len(listings) = %d, want 1", len(listings))
	}
	if listings[0].Confidence != Exact {
		t.Errorf("surviving confidence = %s, want exact", listings[0].Confidence)
	}
}

func TestRegistryRecordsMetadataConflicts(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string][]byte{
		"https://primary/P":   []byte("1.0.0:Vault@>=1.7"),
		"https://secondary/P": []byte("1.0.0:Vault@>=2.0"),
	}}
	reg := NewRegistry([]*Source{testSource("primary", 1), testSource("secondary", 2)}, fetcher, nil, nil)

	listings, err := reg.ListingsFor(context.Background(), "P")
	if err != nil {
		t.Fatalf("ListingsFor() error: %v", err)
	}
	// Both listings retained: winner authoritative, loser kept for fallback.
	if len(listings) != 2 {
		t.Fatalf("len(listings) = %d, want 2", len(listings))
	}

	conflicts := reg.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("len(Conflicts()) = %d, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Winner != "primary" || c.Loser != "secondary" {
		t.Errorf("conflict = %+v, want primary over secondary", c)
	}
}

func TestRegistryCachesWithinTTL(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string][]byte{
		"https://primary/P": []byte("1.0.0"),
	}}
	cache, err := httputil.NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache() error: %v", err)
	}
	reg := NewRegistry([]*Source{testSource("primary", 1)}, fetcher, cache, nil)

	for range 3 {
		if _, err := reg.ListingsFor(context.Background(), "P"); err != nil {
			t.Fatalf("ListingsFor() error: %v", err)
		}
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("upstream fetches = %d, want 1 (cache should absorb repeats)", got)
	}

	// Explicit invalidation forces a re-query.
	if err := reg.Invalidate("P"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, err := reg.ListingsFor(context.Background(), "P"); err != nil {
		t.Fatalf("ListingsFor() after Invalidate error: %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("upstream fetches = %d, want 2 after invalidation", got)
	}
}

func TestRegistryCachedListingsRoundTrip(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string][]byte{
		"https://primary/P": []byte("1.0.0:Vault@>=1.7"),
	}}
	cache, _ := httputil.NewCache(t.TempDir(), time.Hour)
	reg := NewRegistry([]*Source{testSource("primary", 1)}, fetcher, cache, nil)

	first, err := reg.ListingsFor(context.Background(), "P")
	if err != nil {
		t.Fatalf("ListingsFor() error: %v", err)
	}
	second, err := reg.ListingsFor(context.Background(), "P")
	if err != nil {
		t.Fatalf("cached ListingsFor() error: %v", err)
	}

	if len(second) != len(first) {
		t.Fatalf("cached result has %d listings, want %d", len(second), len(first))
	}
	if !second[0].Version.Equal(first[0].Version) {
		t.Errorf("cached version = %s, want %s", second[0].Version, first[0].Version)
	}
	if second[0].Dependencies[0].Constraint.String() != ">=1.7" {
		t.Errorf("cached constraint = %q, want >=1.7", second[0].Dependencies[0].Constraint)
	}
	if !second[0].Dependencies[0].Constraint.Satisfies(mcver.Parse("1.8")) {
		t.Error("cached constraint lost its predicate")
	}
}

func TestRegistrySingleFlight(t *testing.T) {
	fetcher := &stubFetcher{
		bodies: map[string][]byte{"https://primary/P": []byte("1.0.0")},
		delay:  20 * time.Millisecond,
	}
	reg := NewRegistry([]*Source{testSource("primary", 1)}, fetcher, nil, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.ListingsFor(context.Background(), "P"); err != nil {
				t.Errorf("ListingsFor() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("upstream fetches = %d, want 1 (concurrent callers must share one fetch)", got)
	}
}

func TestRegistryToleratesPartialSourceFailure(t *testing.T) {
	fetcher := &stubFetcher{
		bodies: map[string][]byte{"https://secondary/P": []byte("1.0.0")},
		errs:   map[string]error{"https://primary/P": errors.New("connection reset")},
	}
	reg := NewRegistry([]*Source{testSource("primary", 1), testSource("secondary", 2)}, fetcher, nil, nil)

	listings, err := reg.ListingsFor(context.Background(), "P")
	if err != nil {
		t.Fatalf("ListingsFor() error: %v", err)
	}
	if len(listings) != 1 || listings[0].SourceID != "secondary" {
		t.Errorf("listings = %+v, want one from secondary", listings)
	}
}

func TestRegistryFailsWhenAllSourcesFail(t *testing.T) {
	boom := errors.New("connection reset")
	fetcher := &stubFetcher{errs: map[string]error{
		"https://primary/P":   boom,
		"https://secondary/P": boom,
	}}
	reg := NewRegistry([]*Source{testSource("primary", 1), testSource("secondary", 2)}, fetcher, nil, nil)

	if _, err := reg.ListingsFor(context.Background(), "P"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestRegistryTreatsNotFoundAsAbsent(t *testing.T) {
	fetcher := &stubFetcher{} // every URL 404s
	reg := NewRegistry([]*Source{testSource("primary", 1)}, fetcher, nil, nil)

	listings, err := reg.ListingsFor(context.Background(), "Ghost")
	if err != nil {
		t.Fatalf("ListingsFor() error: %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("listings = %+v, want none", listings)
	}
}
