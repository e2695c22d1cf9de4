// Package resolve turns a manifest plus the version index into a concrete,
// conflict-free selection of plugin versions.
//
// The resolver is iterative constraint propagation over a work queue, not a
// SAT solver: plugin dependency graphs are shallow and rarely conflicting,
// so backtracking search runs only when a conflict is actually detected,
// and is depth-bounded. Resolution is pure, synchronous computation over
// already-fetched metadata; it never touches the filesystem.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropper-mc/dropper/pkg/index"
	"github.com/dropper-mc/dropper/pkg/mcver"
	"github.com/dropper-mc/dropper/pkg/source"
)

// maxBacktrackDepth bounds how many conflict-driven restarts a single
// resolution run may take. The limit is a fixed guard against pathological
// constraint chains, not a tunable: this is a shallow-dependency domain.
const maxBacktrackDepth = 8

// Requirement is one entry of the work: a plugin name and the constraint
// someone placed on it.
type Requirement struct {
	Name       string
	Constraint mcver.Constraint
}

// origin identifies who placed a requirement: the manifest, or a selected
// package version whose declared dependency introduced it.
type origin struct {
	pkg     string // empty for manifest entries
	version string
}

func (o origin) String() string {
	if o.pkg == "" {
		return "manifest"
	}
	return o.pkg + " " + o.version
}

// Demand records one requirement and where it came from, for diagnostics.
type Demand struct {
	Origin     string
	Constraint mcver.Constraint
}

// Selected is the resolver's choice for one plugin: the authoritative
// listing, the effective (fully intersected) constraint, and every demand
// that contributed to it.
type Selected struct {
	Listing    source.Listing
	Constraint mcver.Constraint
	Demands    []Demand
}

// Selection maps each plugin name to its selected version. Invariant:
// every declared dependency constraint of every selected package is
// satisfied by some entry in the same selection.
type Selection struct {
	Packages map[string]Selected
}

// Validate checks the transitive-closure invariant, returning the first
// violation found. A nil error means the selection is internally
// consistent.
func (s *Selection) Validate() error {
	for name, sel := range s.Packages {
		for _, dep := range sel.Listing.Dependencies {
			chosen, ok := s.Packages[dep.Name]
			if !ok {
				return fmt.Errorf("%s depends on %s which is not selected", name, dep.Name)
			}
			if !dep.Constraint.Satisfies(chosen.Listing.Version) {
				return fmt.Errorf("%s requires %s@%s but %s is selected",
					name, dep.Name, dep.Constraint, chosen.Listing.Version)
			}
		}
	}
	return nil
}

// ConflictError reports requirements on one plugin whose intersection is
// empty. Each individually-satisfiable constraint is listed with its
// origin so the user can see the full chain without re-running in a debug
// mode.
type ConflictError struct {
	Name    string
	Demands []Demand
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Demands))
	for i, d := range e.Demands {
		parts[i] = fmt.Sprintf("%s requires %s", d.Origin, d.Constraint)
	}
	return fmt.Sprintf("conflicting constraints on %s: %s", e.Name, strings.Join(parts, "; "))
}

// UnsatisfiableError reports a constraint no available version satisfies.
type UnsatisfiableError struct {
	Name       string
	Constraint mcver.Constraint
	Origin     string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("no available version of %s satisfies %s (required by %s)",
		e.Name, e.Constraint, e.Origin)
}

// Resolver computes selections against a version index.
type Resolver struct {
	index *index.Index
}

// New creates a Resolver over the index.
func New(ix *index.Index) *Resolver {
	return &Resolver{index: ix}
}

// Resolve computes a selection satisfying every manifest requirement and
// every declared dependency of every selected package, or reports why it
// cannot. Fatal outcomes are *ConflictError, *UnsatisfiableError, or
// *index.UnknownPackageError (possibly wrapped); any error from Resolve
// means nothing may be installed.
func (r *Resolver) Resolve(ctx context.Context, reqs []Requirement) (*Selection, error) {
	// banned tracks versions excluded by backtracking, per plugin name.
	banned := make(map[string]map[string]bool)

	var lastConflict error
	for depth := 0; depth <= maxBacktrackDepth; depth++ {
		sel, conflict, err := r.attempt(ctx, reqs, banned)
		if err != nil {
			// Running out of non-banned versions mid-backtrack means the
			// original conflict stands; report that, not the exhaustion.
			var un *UnsatisfiableError
			if lastConflict != nil && errors.As(err, &un) && len(banned[un.Name]) > 0 {
				return nil, lastConflict
			}
			return nil, err
		}
		if conflict == nil {
			return sel, nil
		}
		lastConflict = conflict.err

		// Try the next-best version of whichever package introduced the
		// tighter constraint. Manifest-pinned constraints cannot be
		// backtracked: the user asked for them explicitly.
		if conflict.culprit.pkg == "" {
			return nil, conflict.err
		}
		if banned[conflict.culprit.pkg] == nil {
			banned[conflict.culprit.pkg] = make(map[string]bool)
		}
		banned[conflict.culprit.pkg][conflict.culprit.version] = true
	}
	return nil, lastConflict
}

// conflict carries a fatal-unless-backtracked outcome of one attempt: the
// user-facing error plus the package version to ban before retrying.
type conflict struct {
	err     error
	culprit origin
}

type node struct {
	listing    source.Listing
	constraint mcver.Constraint
	demands    []Demand
}

type workItem struct {
	name string
	c    mcver.Constraint
	from origin
}

// attempt runs one full propagation pass. It returns a fatal error for
// unknown packages and unsatisfiable fresh requirements, and a conflict
// for empty intersections (which Resolve may backtrack on).
func (r *Resolver) attempt(ctx context.Context, reqs []Requirement, banned map[string]map[string]bool) (*Selection, *conflict, error) {
	selected := make(map[string]*node)
	// seen suppresses re-enqueueing an identical (name, constraint, origin)
	// triple, so dependency cycles converge instead of looping.
	seen := make(map[string]bool)

	var queue []workItem
	enqueue := func(it workItem) {
		key := it.name + "|" + it.c.String() + "|" + it.from.String()
		if seen[key] {
			return
		}
		seen[key] = true
		queue = append(queue, it)
	}

	for _, req := range reqs {
		enqueue(workItem{name: req.Name, c: req.Constraint, from: origin{}})
	}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		n, ok := selected[it.name]
		if !ok {
			listing, err := r.pick(ctx, it.name, it.c, banned[it.name])
			if err != nil {
				if isNoMatch(err) {
					return nil, nil, &UnsatisfiableError{
						Name:       it.name,
						Constraint: it.c,
						Origin:     it.from.String(),
					}
				}
				return nil, nil, err
			}
			n = &node{
				listing:    listing,
				constraint: it.c,
				demands:    []Demand{{Origin: it.from.String(), Constraint: it.c}},
			}
			selected[it.name] = n
			enqueueDeps(enqueue, n.listing)
			continue
		}

		// Already tentatively selected: intersect the constraints.
		merged, ok := n.constraint.Intersect(it.c)
		n.demands = append(n.demands, Demand{Origin: it.from.String(), Constraint: it.c})
		if !ok {
			return nil, &conflict{
				err:     &ConflictError{Name: it.name, Demands: n.demands},
				culprit: tighteningCulprit(it.from, n.demands),
			}, nil
		}
		n.constraint = merged
		if merged.Satisfies(n.listing.Version) {
			continue
		}

		// The merged constraint excludes the current choice; re-select.
		listing, err := r.pick(ctx, it.name, merged, banned[it.name])
		if err != nil {
			if isNoMatch(err) {
				// Individually satisfiable demands whose intersection has
				// no available version: a conflict, backtrackable.
				return nil, &conflict{
					err:     &ConflictError{Name: it.name, Demands: n.demands},
					culprit: tighteningCulprit(it.from, n.demands),
				}, nil
			}
			return nil, nil, err
		}
		n.listing = listing
		enqueueDeps(enqueue, n.listing)
	}

	sel := &Selection{Packages: make(map[string]Selected, len(selected))}
	for name, n := range selected {
		sel.Packages[name] = Selected{
			Listing:    n.listing,
			Constraint: n.constraint,
			Demands:    n.demands,
		}
	}
	return sel, nil, nil
}

func enqueueDeps(enqueue func(workItem), l source.Listing) {
	for _, dep := range l.Dependencies {
		enqueue(workItem{
			name: dep.Name,
			c:    dep.Constraint,
			from: origin{pkg: l.Name, version: l.Version.String()},
		})
	}
}

// pick returns the newest non-banned catalog entry satisfying c.
func (r *Resolver) pick(ctx context.Context, name string, c mcver.Constraint, bannedVersions map[string]bool) (source.Listing, error) {
	catalog, err := r.index.CatalogFor(ctx, name)
	if err != nil {
		return source.Listing{}, err
	}
	for _, l := range catalog {
		if bannedVersions[l.Version.String()] {
			continue
		}
		if c.Satisfies(l.Version) {
			return l, nil
		}
	}
	return source.Listing{}, &index.NoMatchError{Name: name, Constraint: c}
}

// tighteningCulprit decides which package's selection to ban before the
// next attempt: the origin of the newly-arrived constraint when it is a
// package, otherwise the most recent package-origin demand. A zero origin
// means only the manifest constrains this name, so nothing can be
// backtracked.
func tighteningCulprit(latest origin, demands []Demand) origin {
	if latest.pkg != "" {
		return latest
	}
	for i := len(demands) - 1; i >= 0; i-- {
		if demands[i].Origin != "manifest" {
			pkg, version, _ := strings.Cut(demands[i].Origin, " ")
			return origin{pkg: pkg, version: version}
		}
	}
	return origin{}
}

func isNoMatch(err error) bool {
	var nm *index.NoMatchError
	return errors.As(err, &nm)
}
