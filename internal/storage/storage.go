// Package storage contains attachment blob storage abstractions (S3-compatible or local directory)
// and the staging area uploads pass through before they are committed.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the blob store attachments are committed to.
// A Put under an existing key overwrites it; there is no versioning.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns the keys of every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}

// BlobRoot is the prefix every attachment blob lives under.
const BlobRoot = "volumes/"

// BlobKey is the key an attachment's bytes are committed under.
func BlobKey(volumeID, attachmentID string) string {
	return VolumePrefix(volumeID) + "attachments/" + attachmentID
}

// VolumePrefix is the key prefix shared by every blob of a volume.
func VolumePrefix(volumeID string) string {
	return BlobRoot + volumeID + "/"
}

// ParseBlobKey splits a key built by BlobKey. ok is false for any other key.
func ParseBlobKey(key string) (volumeID, attachmentID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0]+"/" != BlobRoot || parts[2] != "attachments" || parts[1] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// DeletePrefix removes every object under prefix and returns how many were removed.
func DeletePrefix(ctx context.Context, s Storage, prefix string) (int, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
