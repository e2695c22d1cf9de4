package source

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/dropper-mc/dropper/pkg/mcver"
)

// versionRE matches a version-looking token embedded in free text, e.g.
// "WorldEdit 6.1.9" or "CraftBook v3.10-beta2".
var versionRE = regexp.MustCompile(`\bv?\d+(?:\.\d+){0,2}(?:[.-][0-9A-Za-z]+)*\b`)

// BukkitExtractor scrapes dev.bukkit.org-style plugin file pages. The page
// family is HTML with a list container holding one row per uploaded file;
// rows carry structured data-* attributes on well-behaved pages and only
// free-text anchors on older ones.
//
// Confidence tagging:
//   - a data-version attribute is an attribute match: Exact
//   - a version token recovered from the anchor text: Inferred
//   - no recognizable token, whole text kept as an opaque version: Unreliable
type BukkitExtractor struct {
	SourceID string
	// BaseURL resolves relative download hrefs.
	BaseURL string
	// ListClass is the class of the container holding file rows.
	ListClass string
	// ItemClass is the class of one file row inside the container.
	ItemClass string
	// LinkClass is the class of the anchor inside a row holding the file
	// name and download href.
	LinkClass string
}

// NewBukkitExtractor returns an extractor with the selectors used by
// dev.bukkit.org file listings.
func NewBukkitExtractor(sourceID, baseURL string) *BukkitExtractor {
	return &BukkitExtractor{
		SourceID:  sourceID,
		BaseURL:   baseURL,
		ListClass: "listing",
		ItemClass: "file-row",
		LinkClass: "file-name",
	}
}

// Extract implements [Extractor] for the scraped HTML page family.
func (e *BukkitExtractor) Extract(name string, doc []byte) (*Result, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, &ExtractionError{SourceID: e.SourceID, Reason: Malformed, Detail: err.Error()}
	}

	container := findByClass(root, e.ListClass)
	if container == nil {
		return nil, &ExtractionError{
			SourceID: e.SourceID,
			Reason:   Unsupported,
			Detail:   "no " + e.ListClass + " container in document",
		}
	}

	rows := collectByClass(container, e.ItemClass)
	if len(rows) == 0 {
		return nil, &ExtractionError{SourceID: e.SourceID, Reason: Empty, Detail: "no file rows"}
	}

	res := &Result{}
	for _, row := range rows {
		listing, ok := e.extractRow(name, row)
		if !ok {
			res.Skipped++
			continue
		}
		res.Listings = append(res.Listings, listing)
	}
	return res, nil
}

// extractRow converts one file row into a listing. ok is false when the row
// is missing required fields or carries unparseable metadata; such rows are
// counted, not fatal.
func (e *BukkitExtractor) extractRow(name string, row *html.Node) (Listing, bool) {
	anchor := findByClass(row, e.LinkClass)
	if anchor == nil {
		return Listing{}, false
	}
	href := attr(anchor, "href")
	if href == "" {
		return Listing{}, false
	}
	downloadURL, err := e.resolveURL(href)
	if err != nil {
		return Listing{}, false
	}

	version, confidence := e.extractVersion(row, anchor)
	if version.IsZero() {
		return Listing{}, false
	}

	deps, ok := parseDeclaredDeps(attr(row, "data-deps"))
	if !ok {
		return Listing{}, false
	}

	return Listing{
		Name:         name,
		Version:      version,
		SourceID:     e.SourceID,
		DownloadURL:  downloadURL,
		SHA256:       attr(row, "data-sha256"),
		Dependencies: deps,
		Confidence:   confidence,
	}, true
}

// extractVersion pulls the row's version, preferring the structured
// attribute over text heuristics.
func (e *BukkitExtractor) extractVersion(row, anchor *html.Node) (mcver.Spec, Confidence) {
	if v := attr(row, "data-version"); v != "" {
		return mcver.Parse(v), Exact
	}

	text := strings.TrimSpace(nodeText(anchor))
	// The anchor text usually embeds the version after the plugin name,
	// e.g. "WorldEdit 6.1.9". A matched token is a heuristic, not a schema
	// field, so it is at best Inferred.
	if m := versionRE.FindString(text); m != "" {
		return mcver.Parse(m), Inferred
	}
	if text != "" {
		return mcver.Parse(text), Unreliable
	}
	return mcver.Spec{}, Unreliable
}

func (e *BukkitExtractor) resolveURL(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(e.BaseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// parseDeclaredDeps reads a semicolon-separated dependency attribute, each
// entry in Name or Name@Constraint form. A malformed entry poisons the
// whole row: dependency metadata that half-parses is worse than none.
func parseDeclaredDeps(raw string) ([]Dependency, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	var deps []Dependency
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, constraintText, _ := strings.Cut(entry, "@")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, false
		}
		c, err := mcver.ParseConstraint(constraintText)
		if err != nil {
			return nil, false
		}
		deps = append(deps, Dependency{Name: name, Constraint: c})
	}
	return deps, true
}

// findByClass returns the first element under n (inclusive) whose class
// attribute contains class as a whole word.
func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

// collectByClass returns every element under n whose class attribute
// contains class as a whole word.
func collectByClass(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			out = append(out, n)
			// Rows do not nest; no need to descend into a match.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
