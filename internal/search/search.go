package search

import (
	"context"
	"errors"
	"strings"

	"volumeapi/internal/model"
)

// ErrInvalidQuery is returned when the query expression cannot be parsed by the index.
var ErrInvalidQuery = errors.New("invalid query")

// AttachmentsField holds the searchable projection of a volume's attachments.
const AttachmentsField = "_attachments"

// Result is one page of matching volume ids, best match first.
type Result struct {
	Total int
	IDs   []string
}

// Index is a derived, queryable projection of volume metadata. The document
// store stays the source of truth; an Index only answers which ids match.
type Index interface {
	// Index inserts or replaces the entry for v.
	Index(ctx context.Context, v *model.Volume) error

	// Remove drops the entry for id. Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error

	// Query runs expr and returns the total match count plus one page of ids.
	Query(ctx context.Context, expr string, offset, limit int) (*Result, error)

	Ping(ctx context.Context) error
	Close() error
}

// Document projects a volume into the document that gets indexed: every
// metadata key as-is plus the names, mime types and notes of its attachments.
func Document(v *model.Volume) map[string]any {
	doc := make(map[string]any, len(v.Metadata)+1)
	for k, val := range v.Metadata {
		doc[k] = val
	}

	atts := make([]map[string]any, 0, len(v.Attachments))
	for _, a := range v.Attachments {
		atts = append(atts, map[string]any{
			"name":  a.Name,
			"mime":  a.Mime,
			"notes": a.Notes,
		})
	}
	doc[AttachmentsField] = atts
	return doc
}

// MatchAll reports whether expr asks for every document.
func MatchAll(expr string) bool {
	switch strings.TrimSpace(expr) {
	case "", "*", "*:*":
		return true
	}
	return false
}
