package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"volumeapi/internal/model"
	"volumeapi/internal/search"
)

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Index(ctx context.Context, v *model.Volume) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockIndex) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIndex) Query(ctx context.Context, expr string, offset, limit int) (*search.Result, error) {
	args := m.Called(ctx, expr, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Result), args.Error(1)
}

func (m *MockIndex) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIndex) Close() error {
	args := m.Called()
	return args.Error(0)
}
