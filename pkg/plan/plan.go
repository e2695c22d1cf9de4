// Package plan diffs a resolved selection against the installed state and
// produces an ordered list of actions for the installer. Planning is pure:
// given the same selection and state it always yields the same plan, and
// re-planning a plan's own outcome yields only no-ops.
package plan

import (
	"fmt"
	"sort"

	"github.com/dropper-mc/dropper/pkg/mcver"
	"github.com/dropper-mc/dropper/pkg/resolve"
	"github.com/dropper-mc/dropper/pkg/source"
)

// Op is the kind of change one action performs.
type Op int

const (
	OpNoop Op = iota
	OpInstall
	OpUpgrade
	OpDowngrade
	OpRemove
)

var opNames = map[Op]string{
	OpNoop:      "noop",
	OpInstall:   "install",
	OpUpgrade:   "upgrade",
	OpDowngrade: "downgrade",
	OpRemove:    "remove",
}

func (o Op) String() string { return opNames[o] }

// InstalledVersion is the planner's view of one installed plugin.
type InstalledVersion struct {
	Version  mcver.Spec
	SourceID string
}

// Action is one planned change. From is zero for installs, To is zero for
// removes, and Listing is populated for every op that fetches an artifact.
type Action struct {
	Op      Op
	Name    string
	From    mcver.Spec
	To      mcver.Spec
	Listing source.Listing

	depth int
}

func (a Action) String() string {
	switch a.Op {
	case OpInstall:
		return fmt.Sprintf("install %s %s", a.Name, a.To)
	case OpUpgrade:
		return fmt.Sprintf("upgrade %s %s -> %s", a.Name, a.From, a.To)
	case OpDowngrade:
		return fmt.Sprintf("downgrade %s %s -> %s", a.Name, a.From, a.To)
	case OpRemove:
		return fmt.Sprintf("remove %s %s", a.Name, a.From)
	default:
		return fmt.Sprintf("keep %s %s", a.Name, a.From)
	}
}

// Plan is an ordered action list. Fetching ops come first, dependencies
// before their dependents; removes always run last.
type Plan struct {
	Actions []Action
}

// Changes returns the actions that modify the plugin directory.
func (p *Plan) Changes() []Action {
	var out []Action
	for _, a := range p.Actions {
		if a.Op != OpNoop {
			out = append(out, a)
		}
	}
	return out
}

// IsNoop reports whether executing the plan would change nothing.
func (p *Plan) IsNoop() bool { return len(p.Changes()) == 0 }

// Build diffs the selection against what is installed. Every selected
// package yields exactly one action; every installed plugin absent from
// the selection yields a remove.
func Build(sel *resolve.Selection, installed map[string]InstalledVersion) *Plan {
	depths := dependencyDepths(sel)

	var actions []Action
	for name, chosen := range sel.Packages {
		a := Action{
			Name:    name,
			To:      chosen.Listing.Version,
			Listing: chosen.Listing,
			depth:   depths[name],
		}
		cur, ok := installed[name]
		switch {
		case !ok:
			a.Op = OpInstall
		case cur.Version.Equal(chosen.Listing.Version):
			a.Op = OpNoop
			a.From = cur.Version
		case mcver.Compare(chosen.Listing.Version, cur.Version) > 0:
			a.Op = OpUpgrade
			a.From = cur.Version
		default:
			a.Op = OpDowngrade
			a.From = cur.Version
		}
		actions = append(actions, a)
	}

	for name, cur := range installed {
		if _, ok := sel.Packages[name]; ok {
			continue
		}
		actions = append(actions, Action{Op: OpRemove, Name: name, From: cur.Version})
	}

	sort.SliceStable(actions, func(i, j int) bool {
		a, b := actions[i], actions[j]
		if (a.Op == OpRemove) != (b.Op == OpRemove) {
			return b.Op == OpRemove
		}
		if a.depth != b.depth {
			return a.depth < b.depth
		}
		return a.Name < b.Name
	})

	return &Plan{Actions: actions}
}

// dependencyDepths computes how deep in the dependency graph each selected
// package sits: a package with no selected dependencies has depth zero,
// and a dependent is always deeper than its deepest dependency. Cycles are
// cut at the first revisit, which keeps the ordering stable without
// claiming a meaningful depth inside the cycle.
func dependencyDepths(sel *resolve.Selection) map[string]int {
	depths := make(map[string]int, len(sel.Packages))
	visiting := make(map[string]bool)

	var walk func(name string) int
	walk = func(name string) int {
		if d, ok := depths[name]; ok {
			return d
		}
		if visiting[name] {
			return 0
		}
		visiting[name] = true
		defer delete(visiting, name)

		chosen, ok := sel.Packages[name]
		if !ok {
			return 0
		}
		depth := 0
		for _, dep := range chosen.Listing.Dependencies {
			if d := walk(dep.Name) + 1; d > depth {
				depth = d
			}
		}
		depths[name] = depth
		return depth
	}

	for name := range sel.Packages {
		walk(name)
	}
	return depths
}
