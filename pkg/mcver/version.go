// Package mcver implements version ordering and constraint matching for
// Minecraft plugin versions.
//
// Upstream plugin catalogs are inconsistent: some publish clean semantic
// versions ("6.1.9"), others embed free-form strings ("v6 beta PREVIEW").
// A [Spec] therefore holds either a structured semantic version or an
// opaque ordinal string, and [Compare] defines a total order across both.
package mcver

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Spec is a single plugin version, either structured (parsed as a
// semantic-ish version) or opaque (kept as the raw string).
//
// The zero Spec is the unknown version; it orders before everything else.
type Spec struct {
	raw        string
	structured *semver.Version
}

// Parse converts a raw version string into a Spec. Strings that coerce to a
// semantic version (including partial forms like "6.1" or "6") become
// structured; everything else is kept opaque. Parse never fails: an
// unparseable string is a valid opaque Spec.
func Parse(s string) Spec {
	s = strings.TrimSpace(s)
	if s == "" {
		return Spec{}
	}
	if v, err := semver.NewVersion(s); err == nil {
		return Spec{raw: s, structured: v}
	}
	return Spec{raw: s}
}

// String returns the original version text.
func (s Spec) String() string { return s.raw }

// IsZero reports whether the Spec is the unknown version.
func (s Spec) IsZero() bool { return s.raw == "" }

// Structured reports whether the version parsed as a semantic version.
func (s Spec) Structured() bool { return s.structured != nil }

// Compare returns -1, 0, or 1 ordering a relative to b.
//
// Structured versions order among themselves by semantic precedence and
// opaque versions order lexically. A structured version always orders newer
// than an opaque one: an unparseable string carries no recency signal, so
// the tie-break is a fixed policy rather than a guess. The unknown version
// orders before everything.
func Compare(a, b Spec) int {
	switch {
	case a.IsZero() || b.IsZero():
		return boolCmp(!a.IsZero(), !b.IsZero())
	case a.structured != nil && b.structured != nil:
		return a.structured.Compare(b.structured)
	case a.structured != nil:
		return 1
	case b.structured != nil:
		return -1
	default:
		return strings.Compare(a.raw, b.raw)
	}
}

// Equal reports whether a and b occupy the same position in the total order.
func (s Spec) Equal(o Spec) bool { return Compare(s, o) == 0 }

// Less reports whether s orders before o.
func (s Spec) Less(o Spec) bool { return Compare(s, o) < 0 }

// MarshalText implements encoding.TextMarshaler so Specs round-trip through
// the JSON state file.
func (s Spec) MarshalText() ([]byte, error) { return []byte(s.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Spec) UnmarshalText(b []byte) error {
	*s = Parse(string(b))
	return nil
}

func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
