package domain

import (
	"strconv"
	"strings"
	"time"
)

// ContextItem is the externally visible result unit, derived from a
// chunk at query time and never persisted.
//
// The type-specific payload lives behind the Detail interface rather
// than as optional fields on one flat record, so an email result can
// never leak meeting fields and vice versa.
type ContextItem struct {
	Kind      ItemKind   `json:"type"`
	Source    SourceID   `json:"source"`
	Content   string     `json:"content"`
	Score     float64    `json:"score"`
	Timestamp time.Time  `json:"timestamp"`
	Detail    ItemDetail `json:"detail,omitempty"`
}

// ItemDetail is the type-specific display payload of a context item.
type ItemDetail interface {
	// DetailKind returns the item kind this payload belongs to.
	DetailKind() ItemKind
}

// EmailDetail is the payload for Gmail results.
type EmailDetail struct {
	Subject    string   `json:"subject,omitempty"`
	Sender     string   `json:"sender,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	ThreadID   string   `json:"thread_id,omitempty"`
}

// DetailKind implements ItemDetail.
func (EmailDetail) DetailKind() ItemKind { return KindEmail }

// MeetingDetail is the payload for Zoom results.
type MeetingDetail struct {
	Title           string   `json:"title,omitempty"`
	Participants    []string `json:"participants,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	MeetingID       string   `json:"meeting_id,omitempty"`
}

// DetailKind implements ItemDetail.
func (MeetingDetail) DetailKind() ItemKind { return KindMeeting }

// PageDetail is the payload for Notion results.
type PageDetail struct {
	Title   string   `json:"title,omitempty"`
	Authors []string `json:"authors,omitempty"`
	PageID  string   `json:"page_id,omitempty"`
	URL     string   `json:"url,omitempty"`
}

// DetailKind implements ItemDetail.
func (PageDetail) DetailKind() ItemKind { return KindPage }

// RecordDetail is the payload for Salesforce results (opportunities,
// accounts and contacts share one shape plus a free-form field map).
type RecordDetail struct {
	Kind      ItemKind          `json:"record_kind"`
	Name      string            `json:"name,omitempty"`
	EntityID  string            `json:"entity_id,omitempty"`
	AccountID string            `json:"account_id,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// DetailKind implements ItemDetail.
func (r RecordDetail) DetailKind() ItemKind { return r.Kind }

// Metadata keys written by source adapters and read back when building
// item details.
const (
	MetaSubject      = "subject"
	MetaSender       = "sender"
	MetaRecipients   = "recipients"
	MetaThreadID     = "thread_id"
	MetaTitle        = "title"
	MetaParticipants = "participants"
	MetaDuration     = "duration_minutes"
	MetaMeetingID    = "meeting_id"
	MetaAuthors      = "authors"
	MetaPageID       = "page_id"
	MetaURL          = "url"
	MetaName         = "name"
	MetaEntityID     = "entity_id"
	MetaAccountID    = "account_id"
	MetaStage        = "stage"
)

// DetailFromMetadata reconstructs the typed payload for a kind from
// chunk metadata. Unknown kinds yield a nil detail.
func DetailFromMetadata(kind ItemKind, md map[string]string) ItemDetail {
	if md == nil {
		md = map[string]string{}
	}
	switch kind {
	case KindEmail:
		return EmailDetail{
			Subject:    md[MetaSubject],
			Sender:     md[MetaSender],
			Recipients: splitList(md[MetaRecipients]),
			ThreadID:   md[MetaThreadID],
		}
	case KindMeeting:
		duration, _ := strconv.Atoi(md[MetaDuration])
		return MeetingDetail{
			Title:           md[MetaTitle],
			Participants:    splitList(md[MetaParticipants]),
			DurationMinutes: duration,
			MeetingID:       md[MetaMeetingID],
		}
	case KindPage:
		return PageDetail{
			Title:   md[MetaTitle],
			Authors: splitList(md[MetaAuthors]),
			PageID:  md[MetaPageID],
			URL:     md[MetaURL],
		}
	case KindOpportunity, KindAccount, KindContact:
		return RecordDetail{
			Kind:      kind,
			Name:      md[MetaName],
			EntityID:  md[MetaEntityID],
			AccountID: md[MetaAccountID],
			Stage:     md[MetaStage],
			Fields:    recordFields(md),
		}
	}
	return nil
}

// splitList parses a comma-separated metadata value.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// recordFields copies metadata that has no dedicated RecordDetail field.
func recordFields(md map[string]string) map[string]string {
	known := map[string]bool{
		MetaName: true, MetaEntityID: true, MetaAccountID: true, MetaStage: true,
	}
	var fields map[string]string
	for k, v := range md {
		if known[k] || v == "" {
			continue
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[k] = v
	}
	return fields
}
