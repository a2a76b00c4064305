package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"volumeapi/internal/model"
	"volumeapi/internal/search"
)

// Index is a search.Index kept in the volume_index table. Bodies are
// tokenised with jsonb_to_tsvector and matched with websearch_to_tsquery,
// so expressions follow the web search syntax (`moby -whale "white whale"`).
type Index struct {
	db  *sql.DB
	now func() time.Time
}

var _ search.Index = (*Index)(nil)

func NewIndex(db *sql.DB) *Index {
	return &Index{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const tsvector = `jsonb_to_tsvector('simple', body, '["string", "numeric"]')`

func (i *Index) Index(ctx context.Context, v *model.Volume) error {
	body, err := json.Marshal(search.Document(v))
	if err != nil {
		return fmt.Errorf("encode index body: %w", err)
	}

	const q = `
		INSERT INTO volume_index (id, body, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`
	_, err = i.db.ExecContext(ctx, q, v.ID, string(body), i.now())
	return err
}

func (i *Index) Remove(ctx context.Context, id string) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM volume_index WHERE id = $1`, id)
	return err
}

func (i *Index) Query(ctx context.Context, expr string, offset, limit int) (*search.Result, error) {
	var (
		countQ string
		pageQ  string
		args   []any
	)
	if search.MatchAll(expr) {
		countQ = `SELECT COUNT(*) FROM volume_index`
		pageQ = `SELECT id FROM volume_index ORDER BY updated_at DESC, id LIMIT $1 OFFSET $2`
	} else {
		countQ = `SELECT COUNT(*) FROM volume_index WHERE ` + tsvector + ` @@ websearch_to_tsquery('simple', $1)`
		pageQ = `
			SELECT id FROM volume_index
			WHERE ` + tsvector + ` @@ websearch_to_tsquery('simple', $1)
			ORDER BY ts_rank(` + tsvector + `, websearch_to_tsquery('simple', $1)) DESC, updated_at DESC, id
			LIMIT $2 OFFSET $3`
		args = append(args, expr)
	}

	var total int
	if err := i.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, translate(err)
	}

	rows, err := i.db.QueryContext(ctx, pageQ, append(args, limit, offset)...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := &search.Result{Total: total, IDs: make([]string, 0, limit)}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out.IDs = append(out.IDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (i *Index) Ping(ctx context.Context) error {
	return i.db.PingContext(ctx)
}

// Close is a no-op; the connection pool is owned by the caller.
func (i *Index) Close() error { return nil }

// translate flags tsquery syntax errors as invalid queries.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42601" {
		return fmt.Errorf("%w: %s", search.ErrInvalidQuery, pgErr.Message)
	}
	return err
}
