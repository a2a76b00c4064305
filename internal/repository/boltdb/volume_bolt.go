package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"volumeapi/internal/model"
	"volumeapi/internal/repository"
)

var bucketVolumes = []byte("volumes")

// VolumeBolt implements repository.VolumeRepository on an embedded BoltDB file.
// Each volume is one JSON value with its attachments embedded, so every
// mutation is a single read-modify-write inside one bolt transaction.
type VolumeBolt struct {
	db  *bolt.DB
	now func() time.Time
}

// NewVolumeBolt opens (or creates) the database file at path.
func NewVolumeBolt(path string) (*VolumeBolt, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVolumes); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketVolumes, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &VolumeBolt{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

var _ repository.VolumeRepository = (*VolumeBolt)(nil)

// Close closes the database.
func (s *VolumeBolt) Close() error {
	return s.db.Close()
}

func (s *VolumeBolt) CreateVolume(_ context.Context, v *model.Volume) (*model.Volume, error) {
	out := *v
	out.Metadata = v.Metadata.Clone()
	out.Attachments = []model.Attachment{}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVolumes)
		if b.Get([]byte(out.ID)) != nil {
			return fmt.Errorf("%w: volume %s", repository.ErrConflict, out.ID)
		}
		return put(b, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *VolumeBolt) ListVolumeIDs(_ context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVolumes).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *VolumeBolt) FindVolume(_ context.Context, id string) (*model.Volume, error) {
	var v *model.Volume
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		v, err = get(tx.Bucket(bucketVolumes), id)
		return err
	})
	return v, err
}

func (s *VolumeBolt) FindVolumes(_ context.Context, ids []string) ([]model.Volume, error) {
	out := make([]model.Volume, 0, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVolumes)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var v model.Volume
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func (s *VolumeBolt) UpdateVolume(_ context.Context, id string, md model.Metadata, replace bool) (*model.Volume, error) {
	return s.mutate(id, func(v *model.Volume) error {
		if replace {
			v.Metadata = md.Clone()
		} else {
			v.Metadata = v.Metadata.Merge(md)
		}
		v.UpdatedAt = s.now()
		return nil
	})
}

func (s *VolumeBolt) DeleteVolume(_ context.Context, id string) (*model.Volume, error) {
	var v *model.Volume
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVolumes)
		var err error
		if v, err = get(b, id); err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *VolumeBolt) CreateAttachment(_ context.Context, a *model.Attachment) (*model.Attachment, error) {
	out := *a
	_, err := s.mutate(a.VolumeID, func(v *model.Volume) error {
		for _, existing := range v.Attachments {
			if existing.ID == a.ID {
				return fmt.Errorf("%w: attachment %s", repository.ErrConflict, a.ID)
			}
		}
		v.Attachments = append(v.Attachments, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *VolumeBolt) FindAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error) {
	v, err := s.FindVolume(ctx, volumeID)
	if err != nil {
		return nil, err
	}
	i := indexOf(v.Attachments, attachmentID)
	if i < 0 {
		return nil, repository.ErrAttachmentNotFound
	}
	return &v.Attachments[i], nil
}

func (s *VolumeBolt) ListAttachments(ctx context.Context, volumeID string) ([]model.Attachment, error) {
	v, err := s.FindVolume(ctx, volumeID)
	if err != nil {
		return nil, err
	}
	return v.Attachments, nil
}

func (s *VolumeBolt) UpdateAttachment(_ context.Context, volumeID, attachmentID string, p model.AttachmentPatch) (*model.Attachment, error) {
	var out model.Attachment
	_, err := s.mutate(volumeID, func(v *model.Volume) error {
		i := indexOf(v.Attachments, attachmentID)
		if i < 0 {
			return repository.ErrAttachmentNotFound
		}
		out = p.Apply(v.Attachments[i])
		out.UpdatedAt = s.now()
		v.Attachments[i] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *VolumeBolt) DeleteAttachment(_ context.Context, volumeID, attachmentID string) (*model.Attachment, error) {
	var out model.Attachment
	_, err := s.mutate(volumeID, func(v *model.Volume) error {
		i := indexOf(v.Attachments, attachmentID)
		if i < 0 {
			return repository.ErrAttachmentNotFound
		}
		out = v.Attachments[i]
		v.Attachments = append(v.Attachments[:i], v.Attachments[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping reports whether the database file is still open.
func (s *VolumeBolt) Ping(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketVolumes) == nil {
			return fmt.Errorf("bucket %s missing", bucketVolumes)
		}
		return nil
	})
}

// mutate loads the volume, applies fn and writes it back in one transaction.
func (s *VolumeBolt) mutate(id string, fn func(v *model.Volume) error) (*model.Volume, error) {
	var v *model.Volume
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVolumes)
		var err error
		if v, err = get(b, id); err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		return put(b, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func get(b *bolt.Bucket, id string) (*model.Volume, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, repository.ErrVolumeNotFound
	}
	var v model.Volume
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v.Metadata == nil {
		v.Metadata = model.Metadata{}
	}
	if v.Attachments == nil {
		v.Attachments = []model.Attachment{}
	}
	return &v, nil
}

func put(b *bolt.Bucket, v *model.Volume) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(v.ID), data)
}

func indexOf(atts []model.Attachment, id string) int {
	for i := range atts {
		if atts[i].ID == id {
			return i
		}
	}
	return -1
}
