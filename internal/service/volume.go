package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"volumeapi/internal/apperror"
	"volumeapi/internal/model"
	"volumeapi/internal/repository"
	"volumeapi/internal/search"
	"volumeapi/internal/storage"
	"volumeapi/internal/validator"
)

const (
	defaultMime = "application/octet-stream"

	// rollbackTimeout bounds a compensation that runs after the caller has gone away.
	rollbackTimeout = 15 * time.Second

	sweepPageSize = 500
)

var tracer = otel.Tracer("volumeapi/internal/service")

// AttachmentUpload is an incoming attachment: its byte stream plus descriptive fields.
type AttachmentUpload struct {
	Reader io.Reader
	Name   string
	Mime   string
	Notes  string
}

// VolumeService is the repository facade. It keeps the document store, the
// search index and the blob store consistent and reports failures as *apperror.Error.
type VolumeService interface {
	// InsertVolume validates md (which must carry _language), stores and indexes a new volume.
	// If indexing fails the stored record is removed again.
	InsertVolume(ctx context.Context, md model.Metadata) (*model.Volume, error)

	GetVolume(ctx context.Context, id string) (*model.Volume, error)

	// UpdateVolume merges md into the volume's metadata, or replaces it when replace is set.
	// An index failure leaves the store change in place and returns a retryable partial failure.
	UpdateVolume(ctx context.Context, id string, md model.Metadata, replace bool) (*model.Volume, error)

	// DeleteVolume removes the volume with its attachments and their blobs.
	DeleteVolume(ctx context.Context, id string) error

	ListAttachments(ctx context.Context, volumeID string) ([]model.Attachment, error)

	// InsertAttachment stages the upload, then commits blob and record under the volume lock.
	// Nothing is left behind on any failure.
	InsertAttachment(ctx context.Context, volumeID string, up AttachmentUpload) (*model.Attachment, error)

	GetAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error)

	// GetAttachmentFile opens the committed bytes. The caller closes the reader.
	GetAttachmentFile(ctx context.Context, volumeID, attachmentID string) (io.ReadCloser, *model.Attachment, error)

	// UpdateAttachment merges name, mime and notes from md into the attachment.
	UpdateAttachment(ctx context.Context, volumeID, attachmentID string, md model.Metadata) (*model.Attachment, error)

	DeleteAttachment(ctx context.Context, volumeID, attachmentID string) error

	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)

	// Ping checks every backend and returns the first failure.
	Ping(ctx context.Context) error

	// Sweep reconciles the index and the blob store against the document store.
	Sweep(ctx context.Context) (SweepReport, error)
}

// SweepReport counts what a Sweep repaired.
type SweepReport struct {
	Reindexed    int
	StaleRemoved int
	BlobsRemoved int
	UnknownBlobs int
}

// Reconciler runs follow-up work after an operation has returned.
type Reconciler interface {
	Submit(name string, fn func(ctx context.Context) error) error
}

// Config holds the facade settings.
type Config struct {
	MaxPageSize int
}

// Deps are the collaborators of the facade.
type Deps struct {
	Store      repository.VolumeRepository
	Index      search.Index
	Blobs      storage.Storage
	Stager     *storage.Stager
	Reconciler Reconciler
	Metrics    *Metrics
	Logger     zerolog.Logger
}

type volumeService struct {
	cfg     Config
	store   repository.VolumeRepository
	index   search.Index
	blobs   storage.Storage
	stager  *storage.Stager
	recon   Reconciler
	metrics *Metrics
	log     zerolog.Logger
	locks   *kmutex.Kmutex
	now     func() time.Time
}

// NewVolumeService constructs the repository facade.
func NewVolumeService(cfg Config, d Deps) VolumeService {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultMaxPage
	}
	if d.Stager == nil {
		d.Stager = storage.NewStager("")
	}
	return &volumeService{
		cfg:     cfg,
		store:   d.Store,
		index:   d.Index,
		blobs:   d.Blobs,
		stager:  d.Stager,
		recon:   d.Reconciler,
		metrics: d.Metrics,
		log:     d.Logger,
		locks:   kmutex.New(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *volumeService) InsertVolume(ctx context.Context, md model.Metadata) (v *model.Volume, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.InsertVolume")
	defer s.finish(span, "insert_volume", &err)

	if err := validator.Validate(md, model.LanguageField); err != nil {
		return nil, err
	}

	now := s.now()
	stored, err := s.store.CreateVolume(ctx, &model.Volume{
		ID:        uuid.NewString(),
		Metadata:  md.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, storeError(err, "", "")
	}
	span.SetAttributes(attribute.String("volume.id", stored.ID))

	if err := s.index.Index(ctx, stored); err != nil {
		s.metrics.rollback("insert_volume")
		rctx, cancel := detached(ctx)
		defer cancel()
		if _, rbErr := s.store.DeleteVolume(rctx, stored.ID); rbErr != nil {
			s.log.Error().Err(rbErr).Str("volume_id", stored.ID).Msg("rollback of volume insert failed")
			s.dropVolumeLater(stored.ID)
		}
		return nil, indexError(err)
	}
	return stored, nil
}

func (s *volumeService) GetVolume(ctx context.Context, id string) (v *model.Volume, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.GetVolume", trace.WithAttributes(attribute.String("volume.id", id)))
	defer s.finish(span, "get_volume", &err)

	v, err = s.store.FindVolume(ctx, id)
	if err != nil {
		return nil, storeError(err, id, "")
	}
	return v, nil
}

func (s *volumeService) UpdateVolume(ctx context.Context, id string, md model.Metadata, replace bool) (v *model.Volume, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.UpdateVolume", trace.WithAttributes(
		attribute.String("volume.id", id),
		attribute.Bool("replace", replace),
	))
	defer s.finish(span, "update_volume", &err)

	required := []string{}
	if replace {
		required = append(required, model.LanguageField)
	}
	if err := validator.Validate(md, required...); err != nil {
		return nil, err
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	v, err = s.store.UpdateVolume(ctx, id, md, replace)
	if err != nil {
		return nil, storeError(err, id, "")
	}

	if err := s.index.Index(ctx, v); err != nil {
		s.reindexLater(id)
		return nil, apperror.Partial("volume updated but the search index could not be refreshed", err)
	}
	return v, nil
}

func (s *volumeService) DeleteVolume(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.DeleteVolume", trace.WithAttributes(attribute.String("volume.id", id)))
	defer s.finish(span, "delete_volume", &err)

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	v, err := s.store.DeleteVolume(ctx, id)
	if err != nil {
		return storeError(err, id, "")
	}
	span.SetAttributes(attribute.Int("attachments", len(v.Attachments)))

	prefix := storage.VolumePrefix(id)
	if n, err := storage.DeletePrefix(ctx, s.blobs, prefix); err != nil {
		s.log.Warn().Err(err).Str("volume_id", id).Int("removed", n).Msg("blob cleanup failed, retrying in background")
		s.later("blobs.delete "+prefix, func(ctx context.Context) error {
			_, err := storage.DeletePrefix(ctx, s.blobs, prefix)
			return err
		})
	}

	if err := s.index.Remove(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("volume_id", id).Msg("index removal failed, retrying in background")
		s.reindexLater(id)
	}
	return nil
}

func (s *volumeService) ListAttachments(ctx context.Context, volumeID string) (atts []model.Attachment, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.ListAttachments", trace.WithAttributes(attribute.String("volume.id", volumeID)))
	defer s.finish(span, "list_attachments", &err)

	atts, err = s.store.ListAttachments(ctx, volumeID)
	if err != nil {
		return nil, storeError(err, volumeID, "")
	}
	return atts, nil
}

func (s *volumeService) InsertAttachment(ctx context.Context, volumeID string, up AttachmentUpload) (a *model.Attachment, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.InsertAttachment", trace.WithAttributes(attribute.String("volume.id", volumeID)))
	defer s.finish(span, "insert_attachment", &err)

	staged, err := s.stager.Stage(ctx, up.Reader)
	if err != nil {
		if errors.Is(err, storage.ErrReaderNil) {
			return nil, apperror.Validation("malformed request", "missing 'file' in request")
		}
		return nil, apperror.Backend("could not stage upload", err)
	}
	defer func() {
		if derr := staged.Discard(); derr != nil {
			s.log.Warn().Err(derr).Str("path", staged.Path()).Msg("failed to discard staged upload")
		}
	}()
	span.SetAttributes(attribute.Int64("attachment.size", staged.Size()))

	mime := up.Mime
	if mime == "" {
		mime = defaultMime
	}

	s.locks.Lock(volumeID)
	defer s.locks.Unlock(volumeID)

	if _, err := s.store.FindVolume(ctx, volumeID); err != nil {
		return nil, storeError(err, volumeID, "")
	}

	id := uuid.NewString()
	key := storage.BlobKey(volumeID, id)
	span.SetAttributes(attribute.String("attachment.id", id))

	if err := s.commitBlob(ctx, staged, key, up.Name, mime); err != nil {
		return nil, err
	}

	now := s.now()
	stored, err := s.store.CreateAttachment(ctx, &model.Attachment{
		ID:          id,
		VolumeID:    volumeID,
		Name:        up.Name,
		Mime:        mime,
		Notes:       up.Notes,
		Size:        staged.Size(),
		StoragePath: key,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.metrics.rollback("insert_attachment")
		s.dropBlob(ctx, key)
		return nil, storeError(err, volumeID, id)
	}

	if err := s.reindex(ctx, volumeID); err != nil {
		s.metrics.rollback("insert_attachment")
		rctx, cancel := detached(ctx)
		defer cancel()
		if _, rbErr := s.store.DeleteAttachment(rctx, volumeID, id); rbErr != nil {
			// The record still points at the blob, so the blob must stay.
			s.log.Error().Err(rbErr).Str("volume_id", volumeID).Str("attachment_id", id).
				Msg("rollback of attachment insert failed")
			s.reindexLater(volumeID)
			return nil, indexError(err)
		}
		s.dropBlob(ctx, key)
		return nil, indexError(err)
	}
	return stored, nil
}

// commitBlob copies the staged bytes into the blob store under key.
func (s *volumeService) commitBlob(ctx context.Context, staged *storage.Staged, key, name, mime string) error {
	f, err := staged.Open()
	if err != nil {
		return apperror.Backend("could not read staged upload", err)
	}
	defer f.Close()

	_, err = s.blobs.Put(ctx, key, f, storage.PutObjectOptions{
		Size:        staged.Size(),
		ContentType: mime,
		Metadata:    map[string]string{"original-filename": name},
	})
	if err != nil {
		s.dropBlob(ctx, key)
		return blobError(err, key)
	}
	return nil
}

func (s *volumeService) GetAttachment(ctx context.Context, volumeID, attachmentID string) (a *model.Attachment, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.GetAttachment", trace.WithAttributes(
		attribute.String("volume.id", volumeID),
		attribute.String("attachment.id", attachmentID),
	))
	defer s.finish(span, "get_attachment", &err)

	a, err = s.store.FindAttachment(ctx, volumeID, attachmentID)
	if err != nil {
		return nil, storeError(err, volumeID, attachmentID)
	}
	return a, nil
}

func (s *volumeService) GetAttachmentFile(ctx context.Context, volumeID, attachmentID string) (rc io.ReadCloser, a *model.Attachment, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.GetAttachmentFile", trace.WithAttributes(
		attribute.String("volume.id", volumeID),
		attribute.String("attachment.id", attachmentID),
	))
	defer s.finish(span, "get_attachment_file", &err)

	a, err = s.store.FindAttachment(ctx, volumeID, attachmentID)
	if err != nil {
		return nil, nil, storeError(err, volumeID, attachmentID)
	}
	rc, _, err = s.blobs.Get(ctx, a.StoragePath)
	if err != nil {
		return nil, nil, blobError(err, a.StoragePath)
	}
	return rc, a, nil
}

func (s *volumeService) UpdateAttachment(ctx context.Context, volumeID, attachmentID string, md model.Metadata) (a *model.Attachment, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.UpdateAttachment", trace.WithAttributes(
		attribute.String("volume.id", volumeID),
		attribute.String("attachment.id", attachmentID),
	))
	defer s.finish(span, "update_attachment", &err)

	patch, err := attachmentPatch(md)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(volumeID)
	defer s.locks.Unlock(volumeID)

	a, err = s.store.UpdateAttachment(ctx, volumeID, attachmentID, patch)
	if err != nil {
		return nil, storeError(err, volumeID, attachmentID)
	}

	if err := s.reindex(ctx, volumeID); err != nil {
		s.reindexLater(volumeID)
		return nil, apperror.Partial("attachment updated but the search index could not be refreshed", err)
	}
	return a, nil
}

func (s *volumeService) DeleteAttachment(ctx context.Context, volumeID, attachmentID string) (err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.DeleteAttachment", trace.WithAttributes(
		attribute.String("volume.id", volumeID),
		attribute.String("attachment.id", attachmentID),
	))
	defer s.finish(span, "delete_attachment", &err)

	s.locks.Lock(volumeID)
	defer s.locks.Unlock(volumeID)

	a, err := s.store.DeleteAttachment(ctx, volumeID, attachmentID)
	if err != nil {
		return storeError(err, volumeID, attachmentID)
	}

	s.dropBlob(ctx, a.StoragePath)

	if err := s.reindex(ctx, volumeID); err != nil {
		s.log.Warn().Err(err).Str("volume_id", volumeID).Msg("index refresh failed, retrying in background")
		s.reindexLater(volumeID)
	}
	return nil
}

func (s *volumeService) Query(ctx context.Context, req QueryRequest) (res *QueryResult, err error) {
	ctx, span := tracer.Start(ctx, "VolumeService.Query", trace.WithAttributes(
		attribute.String("query", req.Expr),
		attribute.Int("from", req.From),
		attribute.Int("size", req.Size),
	))
	defer s.finish(span, "query", &err)

	req, err = s.page(req)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Query(ctx, req.Expr, req.From, req.Size)
	if err != nil {
		return nil, indexError(err)
	}

	vols, err := s.store.FindVolumes(ctx, hits.IDs)
	if err != nil {
		return nil, storeError(err, "", "")
	}
	if len(vols) < len(hits.IDs) {
		s.log.Debug().Int("stale", len(hits.IDs)-len(vols)).Msg("search returned volumes missing from the store")
	}
	return newQueryResult(req, hits.Total, vols), nil
}

func (s *volumeService) Ping(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.store.Ping(ctx); err != nil {
			return apperror.Backend("document store unavailable", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.index.Ping(ctx); err != nil {
			return apperror.Backend("search index unavailable", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.blobs.Ping(ctx); err != nil {
			return apperror.Backend("blob storage unavailable", err)
		}
		return nil
	})
	return g.Wait()
}

// reindex projects the current store state of a volume into the index.
func (s *volumeService) reindex(ctx context.Context, volumeID string) error {
	v, err := s.store.FindVolume(ctx, volumeID)
	if errors.Is(err, repository.ErrVolumeNotFound) {
		return s.index.Remove(ctx, volumeID)
	}
	if err != nil {
		return err
	}
	return s.index.Index(ctx, v)
}

// detached keeps the values of ctx but not its cancellation, so a compensation still runs
// when the client that triggered it has disconnected.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
}

// reindexLater schedules a reindex so the entry converges to the store state. The task
// reads the store under the volume lock, otherwise a delete could land between its read
// and its write and the deleted volume would be indexed again.
func (s *volumeService) reindexLater(volumeID string) {
	s.later("reindex "+volumeID, func(ctx context.Context) error {
		s.locks.Lock(volumeID)
		defer s.locks.Unlock(volumeID)
		return s.reindex(ctx, volumeID)
	})
}

// dropVolumeLater finishes a volume insert rollback that could not reach the store.
func (s *volumeService) dropVolumeLater(volumeID string) {
	s.later("volume.drop "+volumeID, func(ctx context.Context) error {
		s.locks.Lock(volumeID)
		defer s.locks.Unlock(volumeID)
		if _, err := s.store.DeleteVolume(ctx, volumeID); err != nil && !errors.Is(err, repository.ErrVolumeNotFound) {
			return err
		}
		return s.index.Remove(ctx, volumeID)
	})
}

// dropBlob deletes a blob, handing the deletion to the reconciler when it fails. It runs
// detached from ctx because it is always cleanup.
func (s *volumeService) dropBlob(ctx context.Context, key string) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("blob delete failed, retrying in background")
		s.later("blob.delete "+key, func(ctx context.Context) error {
			return s.blobs.Delete(ctx, key)
		})
	}
}

func (s *volumeService) later(name string, fn func(ctx context.Context) error) {
	if s.recon == nil {
		s.log.Error().Str("task", name).Msg("no reconciler configured, task dropped")
		return
	}
	if err := s.recon.Submit(name, fn); err != nil {
		s.log.Error().Err(err).Str("task", name).Msg("could not schedule reconcile task")
	}
}

// finish ends the span, records the outcome and labels unclassified errors.
func (s *volumeService) finish(span trace.Span, op string, errp *error) {
	defer span.End()

	err := *errp
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			s.log.Error().Err(err).Str("operation", op).Msg("unclassified failure")
			err = apperror.Internal(err)
			*errp = err
		}
	}
	s.metrics.observe(op, err)
}

// attachmentPatch turns an attachment metadata document into a patch.
// Only name, mime and notes may be set and their values must be strings.
func attachmentPatch(md model.Metadata) (model.AttachmentPatch, error) {
	var p model.AttachmentPatch
	if err := validator.Validate(md); err != nil {
		return p, err
	}
	for k, v := range md {
		str, ok := v.(string)
		switch {
		case k != "name" && k != "mime" && k != "notes":
			return p, apperror.Validation("malformed metadata", fmt.Sprintf("unknown attachment field '%s'", k))
		case !ok:
			return p, apperror.Validation("malformed metadata", fmt.Sprintf("field '%s' should be a string", k))
		}
		switch k {
		case "name":
			p.Name = &str
		case "mime":
			p.Mime = &str
		case "notes":
			p.Notes = &str
		}
	}
	return p, nil
}
