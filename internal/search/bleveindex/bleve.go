package bleveindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"volumeapi/internal/model"
	"volumeapi/internal/search"
)

// Index is a search.Index backed by a bleve index. Query expressions use the
// bleve query string syntax (e.g. `title:moby +_language:en`).
type Index struct {
	idx bleve.Index
}

var _ search.Index = (*Index)(nil)

// newMapping indexes every field dynamically, except the language code which is kept
// verbatim: the standard analyzer would drop codes such as "it" as stop words.
func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultMapping.AddFieldMappingsAt(model.LanguageField, bleve.NewKeywordFieldMapping())
	return im
}

// NewMemOnly builds a volatile in-memory index.
func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Open opens the index at path, creating it when it does not exist yet.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

func (i *Index) Index(_ context.Context, v *model.Volume) error {
	return i.idx.Index(v.ID, search.Document(v))
}

func (i *Index) Remove(_ context.Context, id string) error {
	return i.idx.Delete(id)
}

func (i *Index) Query(ctx context.Context, expr string, offset, limit int) (*search.Result, error) {
	var q query.Query
	if search.MatchAll(expr) {
		q = bleve.NewMatchAllQuery()
	} else {
		qs := bleve.NewQueryStringQuery(expr)
		if _, err := qs.Parse(); err != nil {
			return nil, fmt.Errorf("%w: %v", search.ErrInvalidQuery, err)
		}
		q = qs
	}

	req := bleve.NewSearchRequestOptions(q, limit, offset, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &search.Result{Total: int(res.Total), IDs: make([]string, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		out.IDs = append(out.IDs, hit.ID)
	}
	return out, nil
}

func (i *Index) Ping(_ context.Context) error {
	_, err := i.idx.DocCount()
	return err
}

func (i *Index) Close() error {
	return i.idx.Close()
}
