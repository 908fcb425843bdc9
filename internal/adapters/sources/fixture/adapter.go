// Package fixture implements a source adapter that reads documents
// from JSON files on disk. It stands in for the real zoom, gmail,
// notion and salesforce connectors in development and tests, and can
// watch its directory so edits trigger a re-sync.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// record is the on-disk document format. One fixture file holds a
// JSON array of records.
type record struct {
	ExternalID   string            `json:"external_id"`
	Kind         string            `json:"kind"`
	Text         string            `json:"text"`
	Metadata     map[string]string `json:"metadata"`
	LastModified time.Time         `json:"last_modified"`
}

// Adapter streams documents for one source from *.json files under
// dir. Files are re-read on every fetch so a running service picks up
// edits without restarting.
type Adapter struct {
	source domain.SourceID
	dir    string
}

// NewAdapter creates a fixture adapter for the source, reading from
// dir. The directory must exist.
func NewAdapter(source domain.SourceID, dir string) (*Adapter, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixture dir for %s: %w", source, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixture dir for %s: %s is not a directory", source, dir)
	}
	return &Adapter{source: source, dir: dir}, nil
}

// Source returns the source this adapter serves.
func (a *Adapter) Source() domain.SourceID {
	return a.source
}

// Dir returns the directory the adapter reads from.
func (a *Adapter) Dir() string {
	return a.dir
}

// FetchSince streams documents modified after since, oldest first.
func (a *Adapter) FetchSince(ctx context.Context, since time.Time) (<-chan domain.Document, <-chan error) {
	docsCh := make(chan domain.Document)
	errsCh := make(chan error, 1)

	go func() {
		defer close(docsCh)
		defer close(errsCh)

		docs, err := a.load()
		if err != nil {
			errsCh <- fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, a.source, err)
			return
		}

		for _, doc := range docs {
			if !since.IsZero() && !doc.LastModified.After(since) {
				continue
			}
			select {
			case docsCh <- doc:
			case <-ctx.Done():
				errsCh <- ctx.Err()
				return
			}
		}
	}()

	return docsCh, errsCh
}

// load reads every fixture file and returns valid documents sorted by
// modification time, oldest first.
func (a *Adapter) load() ([]domain.Document, error) {
	paths, err := filepath.Glob(filepath.Join(a.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var docs []domain.Document
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var records []record
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		for i, rec := range records {
			doc, err := a.toDocument(rec)
			if err != nil {
				return nil, fmt.Errorf("%s entry %d: %w", filepath.Base(path), i, err)
			}
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].LastModified.Equal(docs[j].LastModified) {
			return docs[i].LastModified.Before(docs[j].LastModified)
		}
		return docs[i].ExternalID < docs[j].ExternalID
	})
	return docs, nil
}

func (a *Adapter) toDocument(rec record) (domain.Document, error) {
	if rec.ExternalID == "" {
		return domain.Document{}, fmt.Errorf("missing external_id")
	}
	kind, err := parseKind(rec.Kind)
	if err != nil {
		return domain.Document{}, err
	}
	if rec.LastModified.IsZero() {
		return domain.Document{}, fmt.Errorf("%s: missing last_modified", rec.ExternalID)
	}
	return domain.Document{
		Source:       a.source,
		ExternalID:   rec.ExternalID,
		Kind:         kind,
		Text:         rec.Text,
		Metadata:     rec.Metadata,
		LastModified: rec.LastModified.UTC(),
	}, nil
}

func parseKind(raw string) (domain.ItemKind, error) {
	kind := domain.ItemKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case domain.KindEmail, domain.KindMeeting, domain.KindPage,
		domain.KindOpportunity, domain.KindAccount, domain.KindContact:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown kind %q", raw)
	}
}

// Close releases resources.
func (a *Adapter) Close() error {
	return nil
}
