package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"volumeapi/internal/model"
	"volumeapi/internal/repository"
)

// VolumePostgres is a PostgreSQL implementation of repository.VolumeRepository.
// It uses database/sql with parameterized queries and contains no business logic.
// Metadata is kept as JSONB; attachments live in their own table and are removed
// with their volume through ON DELETE CASCADE.
type VolumePostgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewVolumePostgres creates a new VolumePostgres repository.
func NewVolumePostgres(db *sql.DB) *VolumePostgres {
	return &VolumePostgres{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ repository.VolumeRepository = (*VolumePostgres)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const volumeColumns = `
	v.id, v.metadata, v.created_at, v.updated_at,
	COALESCE((
		SELECT jsonb_agg(jsonb_build_object(
			'id', a.id, 'volume_id', a.volume_id, 'name', a.name, 'mime', a.mime,
			'notes', a.notes, 'size', a.size, 'storage_path', a.storage_path,
			'created_at', a.created_at, 'updated_at', a.updated_at
		) ORDER BY a.created_at, a.id)
		FROM attachments a
		WHERE a.volume_id = v.id
	), '[]'::jsonb)`

const attachmentColumns = `id, volume_id, name, mime, notes, size, storage_path, created_at, updated_at`

// CreateVolume inserts a new volume row and returns the stored record.
func (r *VolumePostgres) CreateVolume(ctx context.Context, v *model.Volume) (*model.Volume, error) {
	md, err := json.Marshal(v.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	const q = `
		INSERT INTO volumes (id, metadata, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4)
		RETURNING id, metadata, created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, q, v.ID, string(md), v.CreatedAt, v.UpdatedAt)

	var (
		out model.Volume
		raw []byte
	)
	if err := row.Scan(&out.ID, &raw, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, translate(err, repository.ErrVolumeNotFound)
	}
	if err := json.Unmarshal(raw, &out.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	out.Attachments = []model.Attachment{}
	return &out, nil
}

// FindVolume fetches a volume and its attachments with a single statement.
func (r *VolumePostgres) FindVolume(ctx context.Context, id string) (*model.Volume, error) {
	return findVolume(ctx, r.db, id)
}

func findVolume(ctx context.Context, q querier, id string) (*model.Volume, error) {
	row := q.QueryRowContext(ctx, `SELECT `+volumeColumns+` FROM volumes v WHERE v.id = $1`, id)
	v, err := scanVolume(row)
	if err != nil {
		return nil, translate(err, repository.ErrVolumeNotFound)
	}
	return v, nil
}

// ListVolumeIDs returns every volume id in id order.
func (r *VolumePostgres) ListVolumeIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM volumes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindVolumes hydrates the given ids, skipping the ones that no longer exist.
func (r *VolumePostgres) FindVolumes(ctx context.Context, ids []string) ([]model.Volume, error) {
	out := make([]model.Volume, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	q := `SELECT ` + volumeColumns + ` FROM volumes v WHERE v.id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]model.Volume, len(ids))
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, err
		}
		byID[v.ID] = *v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// UpdateVolume merges (jsonb ||) or replaces the metadata and returns the new state.
func (r *VolumePostgres) UpdateVolume(ctx context.Context, id string, md model.Metadata, replace bool) (*model.Volume, error) {
	b, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	q := `UPDATE volumes SET metadata = metadata || $2::jsonb, updated_at = $3 WHERE id = $1`
	if replace {
		q = `UPDATE volumes SET metadata = $2::jsonb, updated_at = $3 WHERE id = $1`
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, q, id, string(b), r.now())
	if err != nil {
		return nil, translate(err, repository.ErrVolumeNotFound)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, repository.ErrVolumeNotFound
	}

	v, err := findVolume(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// DeleteVolume removes the volume row; attachment rows go with it in the same transaction.
func (r *VolumePostgres) DeleteVolume(ctx context.Context, id string) (*model.Volume, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	v, err := findVolume(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM volumes WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// CreateAttachment inserts an attachment row. A missing parent volume violates the foreign key.
func (r *VolumePostgres) CreateAttachment(ctx context.Context, a *model.Attachment) (*model.Attachment, error) {
	const q = `
		INSERT INTO attachments (id, volume_id, name, mime, notes, size, storage_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + attachmentColumns
	row := r.db.QueryRowContext(ctx, q,
		a.ID,
		a.VolumeID,
		a.Name,
		a.Mime,
		a.Notes,
		a.Size,
		a.StoragePath,
		a.CreatedAt,
		a.UpdatedAt,
	)
	out, err := scanAttachment(row)
	if err != nil {
		return nil, translate(err, repository.ErrVolumeNotFound)
	}
	return out, nil
}

// FindAttachment fetches one attachment scoped to its volume.
func (r *VolumePostgres) FindAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error) {
	q := `SELECT ` + attachmentColumns + ` FROM attachments WHERE volume_id = $1 AND id = $2`
	a, err := scanAttachment(r.db.QueryRowContext(ctx, q, volumeID, attachmentID))
	if err != nil {
		return nil, r.attachmentMiss(ctx, volumeID, err)
	}
	return a, nil
}

// ListAttachments returns the attachment list as seen together with its volume.
func (r *VolumePostgres) ListAttachments(ctx context.Context, volumeID string) ([]model.Attachment, error) {
	v, err := findVolume(ctx, r.db, volumeID)
	if err != nil {
		return nil, err
	}
	return v.Attachments, nil
}

// UpdateAttachment applies the non-nil fields of p.
func (r *VolumePostgres) UpdateAttachment(ctx context.Context, volumeID, attachmentID string, p model.AttachmentPatch) (*model.Attachment, error) {
	const q = `
		UPDATE attachments
		SET name = COALESCE($3, name), mime = COALESCE($4, mime), notes = COALESCE($5, notes), updated_at = $6
		WHERE volume_id = $1 AND id = $2
		RETURNING ` + attachmentColumns
	row := r.db.QueryRowContext(ctx, q,
		volumeID,
		attachmentID,
		nullString(p.Name),
		nullString(p.Mime),
		nullString(p.Notes),
		r.now(),
	)
	a, err := scanAttachment(row)
	if err != nil {
		return nil, r.attachmentMiss(ctx, volumeID, err)
	}
	return a, nil
}

// DeleteAttachment removes one attachment row and returns it.
func (r *VolumePostgres) DeleteAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error) {
	q := `DELETE FROM attachments WHERE volume_id = $1 AND id = $2 RETURNING ` + attachmentColumns
	a, err := scanAttachment(r.db.QueryRowContext(ctx, q, volumeID, attachmentID))
	if err != nil {
		return nil, r.attachmentMiss(ctx, volumeID, err)
	}
	return a, nil
}

// Ping checks database connectivity.
func (r *VolumePostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// attachmentMiss tells a missing volume apart from a missing attachment.
func (r *VolumePostgres) attachmentMiss(ctx context.Context, volumeID string, err error) error {
	err = translate(err, repository.ErrAttachmentNotFound)
	if !errors.Is(err, repository.ErrAttachmentNotFound) {
		return err
	}
	var exists bool
	if qerr := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM volumes WHERE id = $1)`, volumeID).Scan(&exists); qerr != nil {
		return translate(qerr, repository.ErrVolumeNotFound)
	}
	if !exists {
		return repository.ErrVolumeNotFound
	}
	return repository.ErrAttachmentNotFound
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVolume(s scanner) (*model.Volume, error) {
	var (
		v       model.Volume
		rawMeta []byte
		rawAtts []byte
	)
	if err := s.Scan(&v.ID, &rawMeta, &v.CreatedAt, &v.UpdatedAt, &rawAtts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawMeta, &v.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	v.Attachments = []model.Attachment{}
	if err := json.Unmarshal(rawAtts, &v.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	return &v, nil
}

func scanAttachment(s scanner) (*model.Attachment, error) {
	var a model.Attachment
	if err := s.Scan(
		&a.ID,
		&a.VolumeID,
		&a.Name,
		&a.Mime,
		&a.Notes,
		&a.Size,
		&a.StoragePath,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// translate maps driver errors onto repository sentinels. notFound is used for
// sql.ErrNoRows, malformed identifiers and foreign key violations.
func translate(err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.Detail)
		case "23503": // foreign_key_violation
			return repository.ErrVolumeNotFound
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return notFound
		}
	}
	return err
}
