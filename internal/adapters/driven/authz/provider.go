package authz

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.AuthorizationProvider = (*Provider)(nil)

// Provider answers credential checks and per-source permissions from
// an in-memory copy of the principals file.
type Provider struct {
	mu         sync.RWMutex
	path       string
	byUsername map[string]Principal
}

// NewProvider loads the principals file at path.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewStaticProvider builds a provider from an in-memory principal
// list. Used by tests and the fixture-backed dev setup.
func NewStaticProvider(principals []Principal) *Provider {
	byUsername := make(map[string]Principal, len(principals))
	for _, principal := range principals {
		byUsername[principal.Username] = principal
	}
	return &Provider{byUsername: byUsername}
}

// Reload re-reads the principals file. On error the previous state is
// kept.
func (p *Provider) Reload() error {
	principals, err := LoadPrincipals(p.path)
	if err != nil {
		return err
	}

	byUsername := make(map[string]Principal, len(principals))
	for _, principal := range principals {
		byUsername[principal.Username] = principal
	}

	p.mu.Lock()
	p.byUsername = byUsername
	p.mu.Unlock()
	return nil
}

// Authenticate checks username and password and returns the matching
// principal. Unknown users, wrong passwords and disabled accounts all
// fail the same way so responses do not leak which part was wrong.
func (p *Provider) Authenticate(username, password string) (Principal, error) {
	p.mu.RLock()
	principal, ok := p.byUsername[username]
	p.mu.RUnlock()

	match := ok && subtle.ConstantTimeCompare([]byte(principal.Password), []byte(password)) == 1
	if !match || principal.Disabled {
		return Principal{}, fmt.Errorf("%w: invalid credentials", domain.ErrForbidden)
	}
	return principal, nil
}

// AuthorizedSources returns the sources the principal may query.
func (p *Provider) AuthorizedSources(_ context.Context, username string) ([]domain.SourceID, error) {
	p.mu.RLock()
	principal, ok := p.byUsername[username]
	p.mu.RUnlock()

	if !ok || principal.Disabled {
		return nil, fmt.Errorf("%w: unknown principal %q", domain.ErrForbidden, username)
	}
	return principal.SourceIDs(), nil
}
