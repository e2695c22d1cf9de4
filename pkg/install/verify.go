package install

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dropper-mc/dropper/pkg/errors"
	"github.com/dropper-mc/dropper/pkg/source"
)

// pluginDescriptor is the subset of a jar's plugin.yml we verify against.
type pluginDescriptor struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// verification is the outcome of checking one downloaded artifact. Warnings
// carry mismatches that were tolerated because the listing's metadata was
// not authoritative to begin with.
type verification struct {
	Fingerprint string
	Warnings    []string
}

// verifyArtifact checks a downloaded jar against its listing: the declared
// SHA-256 when present, that the payload is a well-formed jar, and the
// embedded plugin.yml identity when one exists. Mismatches are fatal when
// the listing's confidence is Exact and demoted to warnings otherwise,
// since inferred or unreliable metadata cannot be held to its own claims.
func verifyArtifact(l source.Listing, data []byte) (*verification, error) {
	v := &verification{Fingerprint: fingerprint(data)}

	if l.SHA256 != "" && !strings.EqualFold(l.SHA256, v.Fingerprint) {
		msg := fmt.Sprintf("checksum mismatch: listing declares %s, artifact is %s", l.SHA256, v.Fingerprint)
		if l.Confidence == source.Exact {
			return nil, errors.New(errors.ErrCodeVerification, "%s", msg)
		}
		v.Warnings = append(v.Warnings, msg)
	}

	desc, err := readPluginDescriptor(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeVerification, err, "artifact is not a valid plugin jar")
	}
	if desc == nil {
		v.Warnings = append(v.Warnings, "jar has no plugin.yml, identity not verifiable")
		return v, nil
	}

	if !strings.EqualFold(normalizePluginName(desc.Name), normalizePluginName(l.Name)) {
		msg := fmt.Sprintf("plugin.yml names %q, expected %q", desc.Name, l.Name)
		if l.Confidence == source.Exact {
			return nil, errors.New(errors.ErrCodeVerification, "%s", msg)
		}
		v.Warnings = append(v.Warnings, msg)
	}
	if desc.Version != "" && desc.Version != l.Version.String() {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("plugin.yml declares version %s, listing says %s", desc.Version, l.Version))
	}
	return v, nil
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// readPluginDescriptor opens the jar and parses its plugin.yml (or the
// paper-plugin.yml successor). Returns nil when the jar carries neither.
func readPluginDescriptor(data []byte) (*pluginDescriptor, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open jar: %w", err)
	}
	for _, name := range []string{"plugin.yml", "paper-plugin.yml"} {
		f, err := zr.Open(name)
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var desc pluginDescriptor
		if err := yaml.Unmarshal(raw, &desc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		return &desc, nil
	}
	return nil, nil
}

// normalizePluginName strips the separators plugin authors vary on, so
// "World Edit" and "WorldEdit" compare equal.
func normalizePluginName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, name)
}
