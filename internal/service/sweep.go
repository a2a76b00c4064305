package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"volumeapi/internal/repository"
	"volumeapi/internal/storage"
)

// Sweep brings the index and the blob store back in line with the document store.
// It is the backstop for reconcile tasks that gave up or were never run: every stored
// volume is reindexed, index entries without a stored volume are removed and blobs no
// attachment references are deleted. Each volume is handled under its lock.
func (s *volumeService) Sweep(ctx context.Context) (rep SweepReport, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.Sweep")
	defer s.finish(span, "sweep", &err)

	ids, err := s.store.ListVolumeIDs(ctx)
	if err != nil {
		return rep, storeError(err, "", "")
	}
	stored := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		stored[id] = struct{}{}
		if err := s.lockedReindex(ctx, id); err != nil {
			return rep, indexError(err)
		}
		rep.Reindexed++
	}

	indexed, err := s.indexedIDs(ctx)
	if err != nil {
		return rep, indexError(err)
	}
	for _, id := range indexed {
		if _, ok := stored[id]; ok {
			continue
		}
		// A volume inserted after ListVolumeIDs is indexed again rather than removed.
		if err := s.lockedReindex(ctx, id); err != nil {
			return rep, indexError(err)
		}
		rep.StaleRemoved++
	}

	keys, err := s.blobs.List(ctx, storage.BlobRoot)
	if err != nil {
		return rep, blobError(err, storage.BlobRoot)
	}
	byVolume := make(map[string][]string)
	for _, k := range keys {
		vid, _, ok := storage.ParseBlobKey(k)
		if !ok {
			rep.UnknownBlobs++
			s.log.Warn().Str("key", k).Msg("sweep found a blob outside the attachment layout")
			continue
		}
		byVolume[vid] = append(byVolume[vid], k)
	}
	for vid, keys := range byVolume {
		n, err := s.dropOrphanBlobs(ctx, vid, keys)
		rep.BlobsRemoved += n
		if err != nil {
			return rep, err
		}
	}

	span.SetAttributes(
		attribute.Int("reindexed", rep.Reindexed),
		attribute.Int("stale_removed", rep.StaleRemoved),
		attribute.Int("blobs_removed", rep.BlobsRemoved),
	)
	s.log.Info().
		Int("reindexed", rep.Reindexed).
		Int("stale_removed", rep.StaleRemoved).
		Int("blobs_removed", rep.BlobsRemoved).
		Int("unknown_blobs", rep.UnknownBlobs).
		Msg("sweep finished")
	return rep, nil
}

func (s *volumeService) lockedReindex(ctx context.Context, id string) error {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)
	return s.reindex(ctx, id)
}

// indexedIDs pages through every entry of the index. Ids are collected before anything
// is removed so removals cannot shift the pages.
func (s *volumeService) indexedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for from := 0; ; from += sweepPageSize {
		res, err := s.index.Query(ctx, "*:*", from, sweepPageSize)
		if err != nil {
			return nil, err
		}
		ids = append(ids, res.IDs...)
		if len(res.IDs) < sweepPageSize || from+len(res.IDs) >= res.Total {
			return ids, nil
		}
	}
}

// dropOrphanBlobs deletes the keys of a volume that none of its attachments point at.
// Every key goes when the volume no longer exists.
func (s *volumeService) dropOrphanBlobs(ctx context.Context, volumeID string, keys []string) (int, error) {
	s.locks.Lock(volumeID)
	defer s.locks.Unlock(volumeID)

	referenced := make(map[string]struct{})
	v, err := s.store.FindVolume(ctx, volumeID)
	switch {
	case errors.Is(err, repository.ErrVolumeNotFound):
	case err != nil:
		return 0, storeError(err, volumeID, "")
	default:
		for _, a := range v.Attachments {
			referenced[a.StoragePath] = struct{}{}
		}
	}

	removed := 0
	for _, k := range keys {
		if _, ok := referenced[k]; ok {
			continue
		}
		if err := s.blobs.Delete(ctx, k); err != nil {
			return removed, blobError(err, k)
		}
		s.log.Debug().Str("key", k).Str("volume_id", volumeID).Msg("sweep removed orphan blob")
		removed++
	}
	return removed, nil
}
