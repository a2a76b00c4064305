package repository

import (
	"context"
	"errors"

	"volumeapi/internal/model"
)

var (
	// ErrVolumeNotFound is returned when the referenced volume does not exist.
	ErrVolumeNotFound = errors.New("volume not found")
	// ErrAttachmentNotFound is returned when the volume exists but the attachment does not.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrConflict is returned when a record with the same identifier already exists.
	ErrConflict = errors.New("record already exists")
)

// VolumeRepository is the durable store for volume and attachment metadata and the
// source of truth for their existence. No business logic here, strictly persistence.
//
// Every read observes either the state before or after a concurrent mutation, never a mix:
// a volume is always returned together with the attachment list it had at that instant.
type VolumeRepository interface {
	// CreateVolume inserts a new volume. The caller supplies the ID and timestamps.
	CreateVolume(ctx context.Context, v *model.Volume) (*model.Volume, error)

	// FindVolume returns a volume with its attachments.
	FindVolume(ctx context.Context, id string) (*model.Volume, error)

	// FindVolumes returns the volumes among ids that exist, in the order of ids.
	FindVolumes(ctx context.Context, ids []string) ([]model.Volume, error)

	// ListVolumeIDs returns the id of every stored volume.
	ListVolumeIDs(ctx context.Context) ([]string, error)

	// UpdateVolume merges md into the stored metadata, or replaces it when replace is set,
	// and returns the updated volume.
	UpdateVolume(ctx context.Context, id string, md model.Metadata, replace bool) (*model.Volume, error)

	// DeleteVolume removes the volume and every attachment record beneath it in one step
	// and returns what was removed.
	DeleteVolume(ctx context.Context, id string) (*model.Volume, error)

	// CreateAttachment records an attachment under its volume.
	CreateAttachment(ctx context.Context, a *model.Attachment) (*model.Attachment, error)

	// FindAttachment returns one attachment of a volume.
	FindAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error)

	// ListAttachments returns the attachments of a volume in insertion order.
	ListAttachments(ctx context.Context, volumeID string) ([]model.Attachment, error)

	// UpdateAttachment applies a metadata-only patch to an attachment.
	UpdateAttachment(ctx context.Context, volumeID, attachmentID string, p model.AttachmentPatch) (*model.Attachment, error)

	// DeleteAttachment removes an attachment record and returns it.
	DeleteAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
