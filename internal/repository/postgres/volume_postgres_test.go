package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"volumeapi/internal/model"
	"volumeapi/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var volumeCols = []string{"id", "metadata", "created_at", "updated_at", "attachments"}
var attachmentCols = []string{"id", "volume_id", "name", "mime", "notes", "size", "storage_path", "created_at", "updated_at"}

func newRepo(t *testing.T) (*VolumePostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewVolumePostgres(db), mock
}

func TestVolumePostgres_CreateVolume(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	v := &model.Volume{
		ID:        "2b1f7c9e-0000-4000-8000-000000000001",
		Metadata:  model.Metadata{"_language": "en"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "metadata", "created_at", "updated_at"}).
			AddRow(v.ID, []byte(`{"_language":"en"}`), now, now)
		mock.ExpectQuery("INSERT INTO volumes").
			WithArgs(v.ID, `{"_language":"en"}`, now, now).
			WillReturnRows(rows)

		got, err := repo.CreateVolume(ctx, v)

		require.NoError(t, err)
		assert.Equal(t, v.ID, got.ID)
		assert.Equal(t, "en", got.Metadata["_language"])
		assert.NotNil(t, got.Attachments)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate id", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO volumes").
			WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (id) already exists."})

		_, err := repo.CreateVolume(ctx, v)

		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestVolumePostgres_FindVolume(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	t.Run("found with attachments", func(t *testing.T) {
		atts := `[{"id":"a1","volume_id":"v1","name":"cover.jpg","mime":"image/jpeg","notes":"","size":4,` +
			`"storage_path":"volumes/v1/attachments/a1","created_at":"2024-01-01T00:00:00+00:00","updated_at":"2024-01-01T00:00:00+00:00"}]`
		rows := sqlmock.NewRows(volumeCols).
			AddRow("v1", []byte(`{"_language":"en","title":"Moby Dick"}`), time.Now(), time.Now(), []byte(atts))
		mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id = ").
			WithArgs("v1").
			WillReturnRows(rows)

		v, err := repo.FindVolume(ctx, "v1")

		require.NoError(t, err)
		assert.Equal(t, "Moby Dick", v.Metadata["title"])
		require.Len(t, v.Attachments, 1)
		assert.Equal(t, "cover.jpg", v.Attachments[0].Name)
		assert.Equal(t, int64(4), v.Attachments[0].Size)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id = ").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		v, err := repo.FindVolume(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrVolumeNotFound)
		assert.Nil(t, v)
	})

	t.Run("malformed id", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id = ").
			WithArgs("not-a-uuid").
			WillReturnError(&pgconn.PgError{Code: "22P02"})

		_, err := repo.FindVolume(ctx, "not-a-uuid")

		assert.ErrorIs(t, err, repository.ErrVolumeNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVolumePostgres_FindVolumes(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	rows := sqlmock.NewRows(volumeCols).
		AddRow("v1", []byte(`{"_language":"en"}`), time.Now(), time.Now(), []byte(`[]`)).
		AddRow("v2", []byte(`{"_language":"it"}`), time.Now(), time.Now(), []byte(`[]`))
	mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id IN").
		WithArgs("v2", "gone", "v1").
		WillReturnRows(rows)

	got, err := repo.FindVolumes(ctx, []string{"v2", "gone", "v1"})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "v2", got[0].ID)
	assert.Equal(t, "v1", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.FindVolumes(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVolumePostgres_ListVolumeIDs(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id FROM volumes ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v1").AddRow("v2"))

	ids, err := repo.ListVolumeIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, ids)

	mock.ExpectQuery("SELECT id FROM volumes ORDER BY id").WillReturnError(sql.ErrConnDone)
	_, err = repo.ListVolumeIDs(ctx)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVolumePostgres_UpdateVolume(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	t.Run("merge", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE volumes SET metadata = metadata \|\| `).
			WithArgs("v1", `{"title":"Moby-Dick"}`, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id = ").
			WithArgs("v1").
			WillReturnRows(sqlmock.NewRows(volumeCols).
				AddRow("v1", []byte(`{"_language":"en","title":"Moby-Dick"}`), time.Now(), time.Now(), []byte(`[]`)))
		mock.ExpectCommit()

		v, err := repo.UpdateVolume(ctx, "v1", model.Metadata{"title": "Moby-Dick"}, false)

		require.NoError(t, err)
		assert.Equal(t, "en", v.Metadata["_language"])
		assert.Equal(t, "Moby-Dick", v.Metadata["title"])
	})

	t.Run("replace", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE volumes SET metadata = \$2::jsonb`).
			WithArgs("v1", `{"_language":"it"}`, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id = ").
			WithArgs("v1").
			WillReturnRows(sqlmock.NewRows(volumeCols).
				AddRow("v1", []byte(`{"_language":"it"}`), time.Now(), time.Now(), []byte(`[]`)))
		mock.ExpectCommit()

		v, err := repo.UpdateVolume(ctx, "v1", model.Metadata{"_language": "it"}, true)

		require.NoError(t, err)
		assert.Equal(t, model.Metadata{"_language": "it"}, v.Metadata)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE volumes").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.UpdateVolume(ctx, "missing", model.Metadata{"title": "x"}, false)

		assert.ErrorIs(t, err, repository.ErrVolumeNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVolumePostgres_DeleteVolume(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	t.Run("cascade", func(t *testing.T) {
		atts := `[{"id":"a1","volume_id":"v1","storage_path":"volumes/v1/attachments/a1","created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}]`
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id = ").
			WithArgs("v1").
			WillReturnRows(sqlmock.NewRows(volumeCols).
				AddRow("v1", []byte(`{"_language":"en"}`), time.Now(), time.Now(), []byte(atts)))
		mock.ExpectExec("DELETE FROM volumes WHERE id = ").
			WithArgs("v1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		v, err := repo.DeleteVolume(ctx, "v1")

		require.NoError(t, err)
		require.Len(t, v.Attachments, 1)
		assert.Equal(t, "volumes/v1/attachments/a1", v.Attachments[0].StoragePath)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id = ").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.DeleteVolume(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrVolumeNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVolumePostgres_CreateAttachment(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := &model.Attachment{
		ID:          "a1",
		VolumeID:    "v1",
		Name:        "cover.jpg",
		Mime:        "image/jpeg",
		Size:        4,
		StoragePath: "volumes/v1/attachments/a1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO attachments").
			WithArgs(a.ID, a.VolumeID, a.Name, a.Mime, a.Notes, a.Size, a.StoragePath, now, now).
			WillReturnRows(sqlmock.NewRows(attachmentCols).
				AddRow(a.ID, a.VolumeID, a.Name, a.Mime, a.Notes, a.Size, a.StoragePath, now, now))

		got, err := repo.CreateAttachment(ctx, a)

		require.NoError(t, err)
		assert.Equal(t, "cover.jpg", got.Name)
	})

	t.Run("missing volume", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO attachments").
			WillReturnError(&pgconn.PgError{Code: "23503"})

		_, err := repo.CreateAttachment(ctx, a)

		assert.ErrorIs(t, err, repository.ErrVolumeNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVolumePostgres_FindAttachment(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM attachments WHERE volume_id = ").
			WithArgs("v1", "a1").
			WillReturnRows(sqlmock.NewRows(attachmentCols).
				AddRow("a1", "v1", "cover.jpg", "image/jpeg", "", 4, "volumes/v1/attachments/a1", time.Now(), time.Now()))

		a, err := repo.FindAttachment(ctx, "v1", "a1")

		require.NoError(t, err)
		assert.Equal(t, "a1", a.ID)
	})

	t.Run("attachment missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM attachments WHERE volume_id = ").
			WithArgs("v1", "nope").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("v1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.FindAttachment(ctx, "v1", "nope")

		assert.ErrorIs(t, err, repository.ErrAttachmentNotFound)
	})

	t.Run("volume missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM attachments WHERE volume_id = ").
			WithArgs("gone", "a1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("gone").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.FindAttachment(ctx, "gone", "a1")

		assert.ErrorIs(t, err, repository.ErrVolumeNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVolumePostgres_UpdateAttachment(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()
	name := "back.jpg"

	mock.ExpectQuery("UPDATE attachments").
		WithArgs("v1", "a1", "back.jpg", nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(attachmentCols).
			AddRow("a1", "v1", "back.jpg", "image/jpeg", "", 4, "volumes/v1/attachments/a1", time.Now(), time.Now()))

	a, err := repo.UpdateAttachment(ctx, "v1", "a1", model.AttachmentPatch{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, "back.jpg", a.Name)
	assert.Equal(t, "image/jpeg", a.Mime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVolumePostgres_DeleteAttachment(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("DELETE FROM attachments WHERE volume_id = ").
		WithArgs("v1", "a1").
		WillReturnRows(sqlmock.NewRows(attachmentCols).
			AddRow("a1", "v1", "cover.jpg", "image/jpeg", "", 4, "volumes/v1/attachments/a1", time.Now(), time.Now()))

	a, err := repo.DeleteAttachment(ctx, "v1", "a1")

	require.NoError(t, err)
	assert.Equal(t, "volumes/v1/attachments/a1", a.StoragePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVolumePostgres_ListAttachments(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM volumes v WHERE v.id = ").
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows(volumeCols).
			AddRow("v1", []byte(`{"_language":"en"}`), time.Now(), time.Now(), []byte(`[]`)))

	atts, err := repo.ListAttachments(ctx, "v1")

	require.NoError(t, err)
	assert.NotNil(t, atts)
	assert.Empty(t, atts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
