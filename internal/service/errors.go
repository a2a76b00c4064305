package service

import (
	"errors"
	"fmt"

	"volumeapi/internal/apperror"
	"volumeapi/internal/repository"
	"volumeapi/internal/search"
	"volumeapi/internal/storage"
)

func kindLabel(err error) string {
	return apperror.KindOf(err).String()
}

// storeError classifies a document store failure.
func storeError(err error, volumeID, attachmentID string) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrVolumeNotFound):
		return apperror.NotFound("volume not found", fmt.Sprintf("no volume with id '%s'", volumeID))
	case errors.Is(err, repository.ErrAttachmentNotFound):
		return apperror.NotFound("attachment not found",
			fmt.Sprintf("no attachment with id '%s' in volume '%s'", attachmentID, volumeID))
	case errors.Is(err, repository.ErrConflict):
		return apperror.Conflict("record already exists", err)
	default:
		return apperror.Backend("document store unavailable", err)
	}
}

// blobError classifies a blob store failure.
func blobError(err error, key string) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return apperror.NotFound("attachment file not found", fmt.Sprintf("no blob under '%s'", key))
	}
	return apperror.Backend("blob storage unavailable", err)
}

// indexError classifies a search index failure.
func indexError(err error) error {
	if errors.Is(err, search.ErrInvalidQuery) {
		return apperror.Validation("malformed query", err.Error())
	}
	return apperror.Backend("search index unavailable", err)
}
