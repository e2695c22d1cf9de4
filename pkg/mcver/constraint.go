package mcver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrMalformedConstraint is returned when a constraint string cannot be
// interpreted.
var ErrMalformedConstraint = errors.New("malformed constraint")

// Kind identifies the shape of a Constraint predicate.
type Kind int

const (
	// KindLatest matches any version; the newest available wins.
	KindLatest Kind = iota
	// KindExact matches one version only.
	KindExact
	// KindMinimum matches the bound and anything newer.
	KindMinimum
	// KindRange matches [min, max).
	KindRange
)

// Constraint is an immutable predicate over version Specs. Constraints
// serialize to and from the manifest's textual form:
//
//	6.1.9        exact
//	>=6.1        minimum
//	>=6.1 <7.0   range (min inclusive, max exclusive)
//	6.1.*        wildcard, normalized to a range
//	*            latest (also the form used when the constraint is absent)
type Constraint struct {
	kind     Kind
	exact    Spec
	min, max Spec
	raw      string
}

// Latest is the constraint matching any version.
var Latest = Constraint{kind: KindLatest, raw: "*"}

// ParseConstraint interprets the textual constraint form. Parsing and
// re-serializing yields an equivalent predicate.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "*":
		return Latest, nil
	case strings.Contains(s, "*"):
		return parseWildcard(s)
	case strings.HasPrefix(s, ">="):
		return parseBounds(s)
	default:
		v := Parse(s)
		return Constraint{kind: KindExact, exact: v, raw: v.String()}, nil
	}
}

// MustConstraint is ParseConstraint for constants and tests; it panics on
// malformed input.
func MustConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// parseWildcard normalizes forms like "6.1.*" into a half-open range.
// The segments before the star must be numeric.
func parseWildcard(s string) (Constraint, error) {
	parts := strings.Split(s, ".")
	if parts[len(parts)-1] != "*" || len(parts) > 3 {
		return Constraint{}, fmt.Errorf("%w: %q", ErrMalformedConstraint, s)
	}
	nums := make([]uint64, 0, 2)
	for _, p := range parts[:len(parts)-1] {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Constraint{}, fmt.Errorf("%w: %q", ErrMalformedConstraint, s)
		}
		nums = append(nums, n)
	}

	var lo, hi *semver.Version
	switch len(nums) {
	case 1: // "6.*"
		lo = semver.New(nums[0], 0, 0, "", "")
		hi = semver.New(nums[0]+1, 0, 0, "", "")
	case 2: // "6.1.*"
		lo = semver.New(nums[0], nums[1], 0, "", "")
		hi = semver.New(nums[0], nums[1]+1, 0, "", "")
	default:
		return Constraint{}, fmt.Errorf("%w: %q", ErrMalformedConstraint, s)
	}

	return Constraint{
		kind: KindRange,
		min:  Parse(lo.String()),
		max:  Parse(hi.String()),
		raw:  s,
	}, nil
}

// parseBounds handles ">=A" and ">=A <B".
func parseBounds(s string) (Constraint, error) {
	fields := strings.Fields(s)
	min := Parse(strings.TrimPrefix(fields[0], ">="))
	if min.IsZero() {
		return Constraint{}, fmt.Errorf("%w: %q", ErrMalformedConstraint, s)
	}
	if len(fields) == 1 {
		return Constraint{kind: KindMinimum, min: min, raw: s}, nil
	}
	if len(fields) != 2 || !strings.HasPrefix(fields[1], "<") {
		return Constraint{}, fmt.Errorf("%w: %q", ErrMalformedConstraint, s)
	}
	max := Parse(strings.TrimPrefix(fields[1], "<"))
	if max.IsZero() || Compare(min, max) >= 0 {
		return Constraint{}, fmt.Errorf("%w: empty range %q", ErrMalformedConstraint, s)
	}
	return Constraint{kind: KindRange, min: min, max: max, raw: s}, nil
}

// Kind returns the constraint's predicate shape.
func (c Constraint) Kind() Kind { return c.kind }

// String returns the textual form the constraint was parsed from (or an
// equivalent synthesized form for intersections).
func (c Constraint) String() string {
	if c.raw == "" {
		return "*"
	}
	return c.raw
}

// IsLatest reports whether the constraint matches any version.
func (c Constraint) IsLatest() bool { return c.kind == KindLatest }

// Satisfies reports whether v matches the constraint.
func (c Constraint) Satisfies(v Spec) bool {
	switch c.kind {
	case KindLatest:
		return !v.IsZero()
	case KindExact:
		return v.Equal(c.exact)
	case KindMinimum:
		return Compare(v, c.min) >= 0
	case KindRange:
		return Compare(v, c.min) >= 0 && Compare(v, c.max) < 0
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler so constraints round-trip
// through JSON caches and the state file in their manifest textual form.
func (c Constraint) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constraint) UnmarshalText(b []byte) error {
	parsed, err := ParseConstraint(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Intersect combines two constraints on the same package into one that is
// satisfied exactly when both are. ok is false when the intersection is
// empty, which callers must report as a conflict rather than picking a side.
func (c Constraint) Intersect(o Constraint) (Constraint, bool) {
	// Exact pins dominate: the other side either admits the pin or the
	// intersection is empty.
	if c.kind == KindExact {
		if o.Satisfies(c.exact) {
			return c, true
		}
		return Constraint{}, false
	}
	if o.kind == KindExact {
		return o.Intersect(c)
	}

	lo, hi := c.min, c.max
	if Compare(o.min, lo) > 0 {
		lo = o.min
	}
	if hi.IsZero() || (!o.max.IsZero() && Compare(o.max, hi) < 0) {
		hi = o.max
	}

	switch {
	case lo.IsZero() && hi.IsZero():
		return Latest, true
	case hi.IsZero():
		return Constraint{kind: KindMinimum, min: lo, raw: ">=" + lo.String()}, true
	case Compare(lo, hi) >= 0:
		return Constraint{}, false
	default:
		return Constraint{
			kind: KindRange,
			min:  lo,
			max:  hi,
			raw:  fmt.Sprintf(">=%s <%s", lo, hi),
		}, true
	}
}
