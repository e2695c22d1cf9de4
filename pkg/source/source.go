// Package source normalizes heterogeneous plugin catalogs into a uniform
// listing model.
//
// Every upstream — HTML-scraped sites, JSON APIs — sits behind the
// [Extractor] contract and produces [Listing] records. The rest of the
// pipeline never branches on where a listing came from; it only reads the
// listing's fields and its confidence tier.
package source

import (
	"fmt"

	"github.com/dropper-mc/dropper/pkg/mcver"
)

// Confidence grades how a listing's fields were obtained. The resolver's
// tie-breaks and the user-facing summary distinguish certain data from
// guessed data instead of hiding the ambiguity.
type Confidence int

const (
	// Unreliable fields were recovered from free text with weak signals.
	Unreliable Confidence = iota
	// Inferred fields were extracted by best-effort heuristics.
	Inferred
	// Exact fields came from a strict schema or attribute match.
	Exact
)

// String returns the lowercase tier name.
func (c Confidence) String() string {
	switch c {
	case Exact:
		return "exact"
	case Inferred:
		return "inferred"
	default:
		return "unreliable"
	}
}

// Dependency is one declared dependency of a listing: a plugin name and the
// constraint its host requires.
type Dependency struct {
	Name       string
	Constraint mcver.Constraint
}

// Listing is one source's claim about a package version and its metadata.
// Listings are immutable once produced by an extractor. Multiple listings
// may exist for the same (name, version) across sources; the registry
// treats the highest-priority successfully-parsed one as authoritative and
// retains the others for fallback.
type Listing struct {
	Name         string       // plugin name as the source publishes it
	Version      mcver.Spec   // may be opaque when the source's text is unparseable
	SourceID     string       // which configured source produced this listing
	DownloadURL  string       // absolute URL of the artifact
	SHA256       string       // declared content fingerprint, empty if the source has none
	Dependencies []Dependency // ordered as declared
	Confidence   Confidence
}

// Result is the outcome of extracting one upstream document. Skipped counts
// individual records that failed to extract; a bad record never fails the
// whole batch.
type Result struct {
	Listings []Listing
	Skipped  int
}

// Extractor converts one upstream document into listings for a plugin name.
// Implementations target one upstream shape (an HTML page family or a JSON
// schema) and must tag every listing with a confidence tier.
//
// A structurally unparseable document fails the whole call with an
// [*ExtractionError]; individually malformed records are skipped and
// counted in the Result instead.
type Extractor interface {
	Extract(name string, doc []byte) (*Result, error)
}

// ExtractionReason classifies why a document could not be extracted.
type ExtractionReason int

const (
	// Malformed: the document does not parse structurally.
	Malformed ExtractionReason = iota
	// Unsupported: the document parses but is not a shape this extractor handles.
	Unsupported
	// Empty: the document parses but contains no records at all.
	Empty
)

func (r ExtractionReason) String() string {
	switch r {
	case Malformed:
		return "malformed"
	case Unsupported:
		return "unsupported"
	default:
		return "empty"
	}
}

// ExtractionError reports a whole-document extraction failure.
type ExtractionError struct {
	SourceID string
	Reason   ExtractionReason
	Detail   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %s document: %s", e.SourceID, e.Reason, e.Detail)
}

// Source is one configured upstream: an identifier, a caller-assigned
// priority (lower wins), a catalog URL scheme, and the extractor for the
// documents that URL serves.
type Source struct {
	ID        string
	Priority  int
	Extractor Extractor

	// CatalogURL maps a plugin name to the URL of the document listing its
	// versions.
	CatalogURL func(name string) string
}
