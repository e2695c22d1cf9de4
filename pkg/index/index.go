// Package index builds ordered per-plugin version catalogs on top of the
// source registry and answers best-match queries for the resolver.
package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/dropper-mc/dropper/pkg/mcver"
	"github.com/dropper-mc/dropper/pkg/source"
)

// UnknownPackageError is returned when no configured source has any listing
// for a name.
type UnknownPackageError struct {
	Name string
}

func (e *UnknownPackageError) Error() string {
	return fmt.Sprintf("unknown package: no source lists %s", e.Name)
}

// NoMatchError is returned when a catalog exists but no version satisfies
// the constraint.
type NoMatchError struct {
	Name       string
	Constraint mcver.Constraint
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no version of %s satisfies %s", e.Name, e.Constraint)
}

// Index answers version queries per plugin name. Catalogs are built from
// registry listings and held for the lifetime of one resolution run, so
// the constraint solve never races concurrent cache mutation.
type Index struct {
	registry *source.Registry
	catalogs map[string][]source.Listing
}

// New creates an Index over the registry.
func New(registry *source.Registry) *Index {
	return &Index{
		registry: registry,
		catalogs: make(map[string][]source.Listing),
	}
}

// CatalogFor returns the known versions of name, newest first, one
// authoritative listing per distinct version. Returns
// [*UnknownPackageError] when no source lists the name.
func (ix *Index) CatalogFor(ctx context.Context, name string) ([]source.Listing, error) {
	if cat, ok := ix.catalogs[name]; ok {
		return cat, nil
	}

	listings, err := ix.registry.ListingsFor(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, &UnknownPackageError{Name: name}
	}

	cat := ix.buildCatalog(listings)
	ix.catalogs[name] = cat
	return cat, nil
}

// buildCatalog orders listings newest first and collapses same-version
// listings to the authoritative one: source priority first, then Exact
// confidence over Inferred/Unreliable.
func (ix *Index) buildCatalog(listings []source.Listing) []source.Listing {
	sorted := make([]source.Listing, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if cmp := mcver.Compare(a.Version, b.Version); cmp != 0 {
			return cmp > 0
		}
		pa, pb := ix.registry.PriorityOf(a.SourceID), ix.registry.PriorityOf(b.SourceID)
		if pa != pb {
			return pa < pb
		}
		return a.Confidence > b.Confidence
	})

	catalog := sorted[:0:0]
	for _, l := range sorted {
		if n := len(catalog); n > 0 && catalog[n-1].Version.Equal(l.Version) {
			continue
		}
		catalog = append(catalog, l)
	}
	return catalog
}

// BestMatch picks the newest version of name satisfying the constraint.
// Returns [*UnknownPackageError] when the name is unlisted everywhere and
// [*NoMatchError] when a catalog exists but nothing satisfies.
func (ix *Index) BestMatch(ctx context.Context, name string, c mcver.Constraint) (source.Listing, error) {
	catalog, err := ix.CatalogFor(ctx, name)
	if err != nil {
		return source.Listing{}, err
	}
	for _, l := range catalog {
		if c.Satisfies(l.Version) {
			return l, nil
		}
	}
	return source.Listing{}, &NoMatchError{Name: name, Constraint: c}
}
