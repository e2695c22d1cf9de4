package source

import (
	"encoding/json"
	"strings"

	"github.com/dropper-mc/dropper/pkg/mcver"
)

// SpigetExtractor reads Spiget-style JSON version documents. The API is a
// proper schema, so fields taken directly from it are Exact; version names
// the API itself could not normalize (free-text "name" with a separate
// empty "version" field) degrade to Inferred.
type SpigetExtractor struct {
	SourceID string
}

// NewSpigetExtractor returns an extractor for the Spiget JSON schema.
func NewSpigetExtractor(sourceID string) *SpigetExtractor {
	return &SpigetExtractor{SourceID: sourceID}
}

// spigetDocument mirrors the upstream response shape.
type spigetDocument struct {
	Resource struct {
		Name string `json:"name"`
	} `json:"resource"`
	Versions []spigetVersion `json:"versions"`
}

type spigetVersion struct {
	// Version is the normalized version field; Name is the uploader's
	// free-text title, used as fallback when Version is absent.
	Version      string            `json:"version"`
	Name         string            `json:"name"`
	DownloadURL  string            `json:"downloadUrl"`
	SHA256       string            `json:"sha256"`
	Dependencies []spigetDependency `json:"dependencies"`
}

type spigetDependency struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint"`
}

// Extract implements [Extractor] for the JSON API family.
func (e *SpigetExtractor) Extract(name string, doc []byte) (*Result, error) {
	var parsed spigetDocument
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, &ExtractionError{SourceID: e.SourceID, Reason: Malformed, Detail: err.Error()}
	}
	if len(parsed.Versions) == 0 {
		return nil, &ExtractionError{SourceID: e.SourceID, Reason: Empty, Detail: "no versions in document"}
	}

	res := &Result{}
	for _, v := range parsed.Versions {
		listing, ok := e.extractVersion(name, v)
		if !ok {
			res.Skipped++
			continue
		}
		res.Listings = append(res.Listings, listing)
	}
	return res, nil
}

func (e *SpigetExtractor) extractVersion(name string, v spigetVersion) (Listing, bool) {
	if v.DownloadURL == "" {
		return Listing{}, false
	}

	version, confidence := spigetVersionSpec(v)
	if version.IsZero() {
		return Listing{}, false
	}

	deps := make([]Dependency, 0, len(v.Dependencies))
	for _, d := range v.Dependencies {
		if d.Name == "" {
			return Listing{}, false
		}
		c, err := mcver.ParseConstraint(d.Constraint)
		if err != nil {
			return Listing{}, false
		}
		deps = append(deps, Dependency{Name: d.Name, Constraint: c})
	}
	if len(deps) == 0 {
		deps = nil
	}

	return Listing{
		Name:         name,
		Version:      version,
		SourceID:     e.SourceID,
		DownloadURL:  v.DownloadURL,
		SHA256:       v.SHA256,
		Dependencies: deps,
		Confidence:   confidence,
	}, true
}

func spigetVersionSpec(v spigetVersion) (mcver.Spec, Confidence) {
	if v.Version != "" {
		return mcver.Parse(v.Version), Exact
	}
	title := strings.TrimSpace(v.Name)
	if title == "" {
		return mcver.Spec{}, Unreliable
	}
	// Fallback to the uploader's free-text title: heuristic, so at best
	// Inferred, and Unreliable when no version token is recognizable.
	if m := versionRE.FindString(title); m != "" {
		return mcver.Parse(m), Inferred
	}
	return mcver.Parse(title), Unreliable
}
