// Package manifest reads and writes pkg.yml, the user-edited list of
// wanted plugins. Entry order is preserved across edits so diffs stay
// readable, and saves land via temp-file-then-rename.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dropper-mc/dropper/pkg/errors"
	"github.com/dropper-mc/dropper/pkg/mcver"
	"github.com/dropper-mc/dropper/pkg/resolve"
)

// DefaultFileName is the manifest's conventional name in a server root.
const DefaultFileName = "pkg.yml"

// Entry is one wanted plugin.
type Entry struct {
	Name       string
	Constraint mcver.Constraint
}

// Specifier renders the entry in the Name@Constraint command-line form.
func (e Entry) Specifier() string {
	if e.Constraint.IsLatest() {
		return e.Name
	}
	return e.Name + "@" + e.Constraint.String()
}

// Manifest is the in-memory pkg.yml.
type Manifest struct {
	path    string
	Entries []Entry
}

// yaml document shape. The version field is omitted for latest, matching
// what users write by hand.
type document struct {
	Plugins []documentEntry `yaml:"plugins"`
}

type documentEntry struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// Load reads the manifest at path. A missing file yields an empty
// manifest bound to that path, so `dropper add` works in a fresh server
// directory.
func Load(path string) (*Manifest, error) {
	m := &Manifest{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", filepath.Base(path))
	}
	for _, de := range doc.Plugins {
		if err := errors.ValidatePluginName(de.Name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid entry in %s", filepath.Base(path))
		}
		c, err := mcver.ParseConstraint(de.Version)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid constraint for %s", de.Name)
		}
		m.Entries = append(m.Entries, Entry{Name: de.Name, Constraint: c})
	}
	return m, nil
}

// Path returns the file the manifest is bound to.
func (m *Manifest) Path() string { return m.path }

// Find returns the entry for name, if present.
func (m *Manifest) Find(name string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Add appends an entry, or tightens the constraint of an existing one in
// place. Position in the file never changes on re-add.
func (m *Manifest) Add(name string, c mcver.Constraint) error {
	if err := errors.ValidatePluginName(name); err != nil {
		return err
	}
	for i, e := range m.Entries {
		if e.Name == name {
			m.Entries[i].Constraint = c
			return nil
		}
	}
	m.Entries = append(m.Entries, Entry{Name: name, Constraint: c})
	return nil
}

// Remove drops the entry for name, reporting whether it was present.
func (m *Manifest) Remove(name string) bool {
	for i, e := range m.Entries {
		if e.Name == name {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Requirements converts the manifest into resolver input.
func (m *Manifest) Requirements() []resolve.Requirement {
	reqs := make([]resolve.Requirement, len(m.Entries))
	for i, e := range m.Entries {
		reqs[i] = resolve.Requirement{Name: e.Name, Constraint: e.Constraint}
	}
	return reqs
}

// Save writes the manifest back atomically.
func (m *Manifest) Save() error {
	doc := document{Plugins: make([]documentEntry, len(m.Entries))}
	for i, e := range m.Entries {
		de := documentEntry{Name: e.Name}
		if !e.Constraint.IsLatest() {
			de.Version = e.Constraint.String()
		}
		doc.Plugins[i] = de
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pkg-*.yml.tmp")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod manifest: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// ParseSpecifier splits the Name@Constraint command-line form. A bare
// name means latest.
func ParseSpecifier(spec string) (Entry, error) {
	name, raw, pinned := strings.Cut(spec, "@")
	name = strings.TrimSpace(name)
	if err := errors.ValidatePluginName(name); err != nil {
		return Entry{}, err
	}
	if !pinned {
		return Entry{Name: name, Constraint: mcver.Latest}, nil
	}
	c, err := mcver.ParseConstraint(raw)
	if err != nil {
		return Entry{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid specifier %q", spec)
	}
	return Entry{Name: name, Constraint: c}, nil
}
