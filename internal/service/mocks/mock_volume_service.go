package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"volumeapi/internal/model"
	"volumeapi/internal/service"
)

type MockVolumeService struct {
	mock.Mock
}

func (m *MockVolumeService) InsertVolume(ctx context.Context, md model.Metadata) (*model.Volume, error) {
	args := m.Called(ctx, md)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Volume), args.Error(1)
}

func (m *MockVolumeService) GetVolume(ctx context.Context, id string) (*model.Volume, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Volume), args.Error(1)
}

func (m *MockVolumeService) UpdateVolume(ctx context.Context, id string, md model.Metadata, replace bool) (*model.Volume, error) {
	args := m.Called(ctx, id, md, replace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Volume), args.Error(1)
}

func (m *MockVolumeService) DeleteVolume(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockVolumeService) ListAttachments(ctx context.Context, volumeID string) ([]model.Attachment, error) {
	args := m.Called(ctx, volumeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Attachment), args.Error(1)
}

func (m *MockVolumeService) InsertAttachment(ctx context.Context, volumeID string, up service.AttachmentUpload) (*model.Attachment, error) {
	args := m.Called(ctx, volumeID, up)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

func (m *MockVolumeService) GetAttachment(ctx context.Context, volumeID, attachmentID string) (*model.Attachment, error) {
	args := m.Called(ctx, volumeID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

func (m *MockVolumeService) GetAttachmentFile(ctx context.Context, volumeID, attachmentID string) (io.ReadCloser, *model.Attachment, error) {
	args := m.Called(ctx, volumeID, attachmentID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*model.Attachment), args.Error(2)
}

func (m *MockVolumeService) UpdateAttachment(ctx context.Context, volumeID, attachmentID string, md model.Metadata) (*model.Attachment, error) {
	args := m.Called(ctx, volumeID, attachmentID, md)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

func (m *MockVolumeService) DeleteAttachment(ctx context.Context, volumeID, attachmentID string) error {
	args := m.Called(ctx, volumeID, attachmentID)
	return args.Error(0)
}

func (m *MockVolumeService) Query(ctx context.Context, req service.QueryRequest) (*service.QueryResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QueryResult), args.Error(1)
}

func (m *MockVolumeService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVolumeService) Sweep(ctx context.Context) (service.SweepReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.SweepReport), args.Error(1)
}
