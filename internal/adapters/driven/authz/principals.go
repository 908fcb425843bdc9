// Package authz resolves principals and their per-source permissions
// from a TOML file and issues the bearer tokens the HTTP surface
// checks.
package authz

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

// Principal is one entry of the principals file.
type Principal struct {
	Username string   `toml:"username"`
	FullName string   `toml:"full_name"`
	Password string   `toml:"password"`
	Sources  []string `toml:"sources"`
	Disabled bool     `toml:"disabled"`
}

// principalsFile is the TOML document layout.
type principalsFile struct {
	Principals []Principal `toml:"principal"`
}

// LoadPrincipals reads and validates the principals file. Every listed
// source must be a known source ID; a typo in the file should fail
// startup, not silently grant nothing.
func LoadPrincipals(path string) ([]Principal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read principals file: %w", err)
	}

	var doc principalsFile
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse principals file: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Principals))
	for _, p := range doc.Principals {
		if p.Username == "" {
			return nil, fmt.Errorf("principals file: entry without username")
		}
		if _, dup := seen[p.Username]; dup {
			return nil, fmt.Errorf("principals file: duplicate username %q", p.Username)
		}
		seen[p.Username] = struct{}{}

		for _, src := range p.Sources {
			if _, err := domain.ParseSourceID(src); err != nil {
				return nil, fmt.Errorf("principals file: user %q: unknown source %q", p.Username, src)
			}
		}
	}
	return doc.Principals, nil
}

// SourceIDs returns the principal's sources as typed IDs. Call only
// after LoadPrincipals has validated the entries.
func (p Principal) SourceIDs() []domain.SourceID {
	out := make([]domain.SourceID, 0, len(p.Sources))
	for _, src := range p.Sources {
		id, err := domain.ParseSourceID(src)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
