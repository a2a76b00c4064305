package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"volumeapi/internal/model"
)

type MockVolumeRepository struct {
	mock.Mock
}

func (m *MockVolumeRepository) CreateVolume(ctx context.Context, v *model.Volume) (*model.Volume, error) {
	args := m.Called(ctx, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Volume), args.Error(1)
}

func (m *MockVolumeRepository) FindVolume(ctx context.Context, id string) (*model.Volume, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Volume), args.Error(1)
}

func (m *MockVolumeRepository) FindVolumes(ctx context.Context, ids []string) ([]model.Volume, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Volume), args.Error(1)
}

func (m *MockVolumeRepository) ListVolumeIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVolumeRepository) UpdateVolume(ctx context.Context, id string, md model.Metadata, replace bool) (*model.Volume, error) {
	args := m.Called(ctx, id, md, replace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Volume), args.Error(1)
}

func (m *MockVolumeRepository) DeleteVolume(ctx context.Context, id string) (*model.Volume, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Volume), args.Error(1)
}

func (m *MockVolumeRepository) CreateAttachment(ctx context.Context, a *model.Attachment) (*model.Attachment, error) {
	args := m.Called(ctx, a)
	if f, ok := args.Get(0).(func(context.Context, *model.Attachment) *model.Attachment); ok {
		return f(ctx, a), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

func (m *MockVolumeRepository) FindAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error) {
	args := m.Called(ctx, volumeID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

func (m *MockVolumeRepository) ListAttachments(ctx context.Context, volumeID string) ([]model.Attachment, error) {
	args := m.Called(ctx, volumeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Attachment), args.Error(1)
}

func (m *MockVolumeRepository) UpdateAttachment(ctx context.Context, volumeID, attachmentID string, p model.AttachmentPatch) (*model.Attachment, error) {
	args := m.Called(ctx, volumeID, attachmentID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

func (m *MockVolumeRepository) DeleteAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error) {
	args := m.Called(ctx, volumeID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

func (m *MockVolumeRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
