package domain

import "fmt"

// SourceID identifies one of the integrated content sources.
type SourceID string

// Known sources. Each maps to a source adapter and to an isolated
// partition of the document store.
const (
	SourceZoom       SourceID = "zoom"
	SourceGmail      SourceID = "gmail"
	SourceNotion     SourceID = "notion"
	SourceSalesforce SourceID = "salesforce"
)

// AllSources returns every known source in stable order.
func AllSources() []SourceID {
	return []SourceID{SourceZoom, SourceGmail, SourceNotion, SourceSalesforce}
}

// Valid reports whether the source is one of the known identifiers.
func (s SourceID) Valid() bool {
	switch s {
	case SourceZoom, SourceGmail, SourceNotion, SourceSalesforce:
		return true
	}
	return false
}

// String returns the wire representation of the source.
func (s SourceID) String() string {
	return string(s)
}

// ParseSourceID validates a raw string as a SourceID.
func ParseSourceID(raw string) (SourceID, error) {
	s := SourceID(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidQuery, raw)
	}
	return s, nil
}
