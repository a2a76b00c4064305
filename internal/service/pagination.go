package service

import (
	"fmt"

	"volumeapi/internal/apperror"
	"volumeapi/internal/model"
)

const (
	DefaultPageSize = 10
	DefaultMaxPage  = 50
)

// QueryRequest is one page of a search. A zero Size selects DefaultPageSize, capped to the
// configured maximum.
type QueryRequest struct {
	Expr string
	From int
	Size int
}

// QueryResult is one page of matching volumes plus the offsets of its neighbours.
// Both neighbours are always present: Prev clamps to zero on the first page and
// Next points past the end on the last one, where it yields an empty page.
type QueryResult struct {
	Volumes []model.Volume `json:"data"`
	Total   int            `json:"total"`
	From    int            `json:"from"`
	Size    int            `json:"size"`
	Prev    int            `json:"-"`
	Next    int            `json:"-"`
}

// PrevOffset is the offset of the page before from, clamped to zero.
func PrevOffset(from, size int) int {
	if from-size < 0 {
		return 0
	}
	return from - size
}

func (s *volumeService) page(req QueryRequest) (QueryRequest, error) {
	if req.Size == 0 {
		req.Size = min(DefaultPageSize, s.cfg.MaxPageSize)
	}
	if req.From < 0 {
		return req, apperror.Validation("malformed request", "'from' must be a non-negative integer")
	}
	if req.Size < 0 {
		return req, apperror.Validation("malformed request", "'size' must be a positive integer")
	}
	if req.Size > s.cfg.MaxPageSize {
		return req, apperror.TooLarge("too many results requested",
			fmt.Sprintf("size %d exceeds the maximum of %d results per page", req.Size, s.cfg.MaxPageSize))
	}
	return req, nil
}

func newQueryResult(req QueryRequest, total int, vols []model.Volume) *QueryResult {
	return &QueryResult{
		Volumes: vols,
		Total:   total,
		From:    req.From,
		Size:    req.Size,
		Prev:    PrevOffset(req.From, req.Size),
		Next:    req.From + req.Size,
	}
}
