package model

import "time"

// LanguageField is the metadata key every volume must carry.
const LanguageField = "_language"

// Metadata is a semi-structured volume document: string keys mapped to
// JSON-compatible values (string, float64, bool, nil, []any, map[string]any).
type Metadata map[string]any

// Clone returns a shallow copy of m. A nil Metadata clones to an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a new document holding the keys of m overwritten by the keys of patch.
// Keys absent from patch are retained.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Volume represents one archived item: its metadata document and the
// attachments it owns. This is a pure domain model shared by all layers.
type Volume struct {
	ID          string       `json:"id"`
	Metadata    Metadata     `json:"metadata"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Attachment is a binary file plus descriptive metadata, owned by exactly one volume.
// StoragePath is the blob key the bytes were committed under.
type Attachment struct {
	ID          string    `json:"id"`
	VolumeID    string    `json:"volume_id"`
	Name        string    `json:"name"`
	Mime        string    `json:"mime"`
	Notes       string    `json:"notes"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AttachmentPatch carries a metadata-only attachment update. Nil fields are left untouched.
type AttachmentPatch struct {
	Name  *string
	Mime  *string
	Notes *string
}

// Apply returns a copy of a with the patch applied.
func (p AttachmentPatch) Apply(a Attachment) Attachment {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Mime != nil {
		a.Mime = *p.Mime
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	return a
}
