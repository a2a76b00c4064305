package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"volumeapi/internal/apperror"
	"volumeapi/internal/model"
	"volumeapi/internal/service"
	serviceMocks "volumeapi/internal/service/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var res errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestHealthCheck(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Get("/health", HealthCheck(mockSvc))

	t.Run("healthy", func(t *testing.T) {
		mockSvc.On("Ping", mock.Anything).Return(nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		mockSvc.On("Ping", mock.Anything).Return(errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
	mockSvc.AssertExpectations(t)
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListVolumes(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Get("/api/v1/volumes", ListVolumes(mockSvc))

	t.Run("success with links", func(t *testing.T) {
		res := &service.QueryResult{
			Volumes: []model.Volume{{ID: uuid.New().String(), Metadata: model.Metadata{"title": "Moby Dick"}}},
			Total:   30, From: 10, Size: 10, Prev: 0, Next: 20,
		}
		mockSvc.On("Query", mock.Anything, service.QueryRequest{Expr: "title:moby", From: 10, Size: 10}).Return(res, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes?q=title:moby&from=10&size=10", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body queryResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 30, body.Total)
		assert.Len(t, body.Data, 1)
		assert.Equal(t, "/api/v1/volumes/?from=0&q=title%3Amoby&size=10", body.LinkPrev)
		assert.Equal(t, "/api/v1/volumes/?from=20&q=title%3Amoby&size=10", body.LinkNext)
		mockSvc.AssertExpectations(t)
	})

	t.Run("first page links clamp to zero and echo match-all", func(t *testing.T) {
		mockSvc.On("Query", mock.Anything, service.QueryRequest{}).
			Return(&service.QueryResult{Size: 10, Prev: 0, Next: 10}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		raw, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{
			"link_prev": "/api/v1/volumes/?from=0&q=%2A%3A%2A&size=10",
			"link_next": "/api/v1/volumes/?from=10&q=%2A%3A%2A&size=10",
			"total": 0,
			"data": []
		}`, string(raw))
		mockSvc.AssertExpectations(t)
	})

	t.Run("non numeric from", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes?from=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Equal(t, "'from' must be an integer", body.Error.Details)
	})

	t.Run("page too large", func(t *testing.T) {
		mockSvc.On("Query", mock.Anything, service.QueryRequest{Size: 500}).
			Return(nil, apperror.TooLarge("too many results requested", "size 500 exceeds the maximum of 50 results per page")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes?size=500", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, "REQUEST_TOO_LARGE", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed query", func(t *testing.T) {
		mockSvc.On("Query", mock.Anything, service.QueryRequest{Expr: "title:"}).
			Return(nil, apperror.Validation("malformed query", "")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes?q=title:", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestInsertVolume(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Post("/api/v1/volumes", InsertVolume(mockSvc))

	md := model.Metadata{"_language": "en", "title": "Moby Dick"}

	t.Run("json body", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("InsertVolume", mock.Anything, md).Return(&model.Volume{ID: id, Metadata: md}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes",
			strings.NewReader(`{"metadata":{"_language":"en","title":"Moby Dick"}}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "/api/v1/volumes/"+id, resp.Header.Get("Location"))

		var body createdResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, id, body.Data.ID)
		assert.Equal(t, "/api/v1/volumes/"+id, body.Data.LinkSelf)
		mockSvc.AssertExpectations(t)
	})

	t.Run("form field", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("InsertVolume", mock.Anything, md).Return(&model.Volume{ID: id, Metadata: md}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes",
			strings.NewReader(`metadata=%7B%22_language%22%3A%22en%22%2C%22title%22%3A%22Moby+Dick%22%7D`))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing metadata", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Equal(t, "missing 'metadata' in request", body.Error.Details)
	})

	t.Run("metadata not an object", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes", strings.NewReader(`{"metadata":[1,2]}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("backend unavailable", func(t *testing.T) {
		mockSvc.On("InsertVolume", mock.Anything, md).Return(nil, apperror.Backend("document store unavailable", errors.New("dial tcp"))).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes",
			strings.NewReader(`{"metadata":{"_language":"en","title":"Moby Dick"}}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "BACKEND_UNAVAILABLE", body.Error.Code)
		assert.NotContains(t, body.Error.Message, "dial tcp")
		mockSvc.AssertExpectations(t)
	})
}

func TestGetVolume(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Get("/api/v1/volumes/:volumeID", GetVolume(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("GetVolume", mock.Anything, id).Return(&model.Volume{ID: id, Metadata: model.Metadata{"_language": "en"}}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result volumeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		require.NotNil(t, result.Data)
		assert.Equal(t, id, result.Data.ID)
		assert.Equal(t, "en", result.Data.Metadata["_language"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("GetVolume", mock.Anything, id).Return(nil, apperror.NotFound("volume not found", "no volume with id '"+id+"'")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "NOT_FOUND", body.Error.Code)
		assert.Equal(t, "volume not found", body.Error.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})

	t.Run("unclassified error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("GetVolume", mock.Anything, id).Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestUpdateVolume(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Put("/api/v1/volumes/:volumeID", UpdateVolume(mockSvc))

	id := uuid.New().String()
	md := model.Metadata{"year": float64(1851)}

	tests := []struct {
		name       string
		url        string
		replace    bool
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "merge", url: "/api/v1/volumes/" + id, wantStatus: http.StatusCreated},
		{name: "replace", url: "/api/v1/volumes/" + id + "?replace=true", replace: true, wantStatus: http.StatusCreated},
		{
			name:       "partial failure",
			url:        "/api/v1/volumes/" + id,
			err:        apperror.Partial("volume updated but not indexed", errors.New("index down")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "PARTIAL_FAILURE",
		},
		{
			name:       "conflict",
			url:        "/api/v1/volumes/" + id,
			err:        apperror.Conflict("volume already exists", nil),
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err != nil {
				mockSvc.On("UpdateVolume", mock.Anything, id, md, tt.replace).Return(nil, tt.err).Once()
			} else {
				mockSvc.On("UpdateVolume", mock.Anything, id, md, tt.replace).Return(&model.Volume{ID: id}, nil).Once()
			}

			req := httptest.NewRequest(http.MethodPut, tt.url, strings.NewReader(`{"metadata":{"year":1851}}`))
			req.Header.Set("Content-Type", "application/json")
			resp, _ := app.Test(req)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, resp).Error.Code)
			} else {
				var body messageResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, messageResponse{Code: 201, Message: "Volume updated"}, body)
			}
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestDeleteVolume(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Delete("/api/v1/volumes/:volumeID", DeleteVolume(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("DeleteVolume", mock.Anything, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/volumes/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body messageResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Volume deleted", body.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("DeleteVolume", mock.Anything, id).Return(apperror.NotFound("volume not found", "")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/volumes/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestListAttachments(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Get("/api/v1/volumes/:volumeID/attachments", ListAttachments(mockSvc))

	id := uuid.New().String()
	mockSvc.On("ListAttachments", mock.Anything, id).Return([]model.Attachment{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+id+"/attachments", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"data":[]}`, string(raw))
	mockSvc.AssertExpectations(t)
}

func multipartUpload(t *testing.T, filename, content, metadata string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		part.Write([]byte(content))
	}
	if metadata != "" {
		require.NoError(t, writer.WriteField("metadata", metadata))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestInsertAttachment(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Post("/api/v1/volumes/:volumeID/attachments", InsertAttachment(mockSvc))

	vid := uuid.New().String()

	t.Run("success", func(t *testing.T) {
		aid := uuid.New().String()
		mockSvc.On("InsertAttachment", mock.Anything, vid, mock.MatchedBy(func(up service.AttachmentUpload) bool {
			data, _ := io.ReadAll(up.Reader)
			return up.Name == "cover_page.jpg" && up.Notes == "front cover" && string(data) == "jpeg bytes"
		})).Return(&model.Attachment{ID: aid, VolumeID: vid}, nil).Once()

		body, ct := multipartUpload(t, "../../cover page.jpg", "jpeg bytes", `{"notes":"front cover"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes/"+vid+"/attachments", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		link := "/api/v1/volumes/" + vid + "/attachments/" + aid
		assert.Equal(t, link, resp.Header.Get("Location"))

		var res createdResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, aid, res.Data.ID)
		assert.Equal(t, link, res.Data.LinkSelf)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		body, ct := multipartUpload(t, "", "", `{"notes":"x"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes/"+vid+"/attachments", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
		assert.Equal(t, "missing 'file' in request", res.Error.Details)
	})

	t.Run("notes must be a string", func(t *testing.T) {
		body, ct := multipartUpload(t, "a.txt", "x", `{"notes":42}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes/"+vid+"/attachments", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("volume not found", func(t *testing.T) {
		mockSvc.On("InsertAttachment", mock.Anything, vid, mock.Anything).
			Return(nil, apperror.NotFound("volume not found", "")).Once()

		body, ct := multipartUpload(t, "a.txt", "x", "")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/volumes/"+vid+"/attachments", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetAttachment(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Get("/api/v1/volumes/:volumeID/attachments/:attachmentID", GetAttachment(mockSvc))

	vid, aid := uuid.New().String(), uuid.New().String()

	t.Run("success", func(t *testing.T) {
		mockSvc.On("GetAttachment", mock.Anything, vid, aid).Return(&model.Attachment{ID: aid, VolumeID: vid, Name: "a.txt"}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+vid+"/attachments/"+aid, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body attachmentResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.NotNil(t, body.Data)
		assert.Equal(t, "a.txt", body.Data.Name)
		assert.Equal(t, vid, body.Data.VolumeID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid attachment id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+vid+"/attachments/nope", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
}

func TestGetAttachmentFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Get("/api/v1/volumes/:volumeID/attachments/:attachmentID/file", GetAttachmentFile(mockSvc))

	vid, aid := uuid.New().String(), uuid.New().String()

	t.Run("streams bytes", func(t *testing.T) {
		a := &model.Attachment{ID: aid, VolumeID: vid, Name: "notes.txt", Mime: "text/plain", Size: 5}
		mockSvc.On("GetAttachmentFile", mock.Anything, vid, aid).Return(io.NopCloser(strings.NewReader("hello")), a, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+vid+"/attachments/"+aid+"/file", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="notes.txt"`, resp.Header.Get("Content-Disposition"))
		data, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "hello", string(data))
		mockSvc.AssertExpectations(t)
	})

	t.Run("file missing", func(t *testing.T) {
		mockSvc.On("GetAttachmentFile", mock.Anything, vid, aid).Return(nil, nil, apperror.NotFound("attachment file not found", "")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+vid+"/attachments/"+aid+"/file", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUpdateAttachment(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Put("/api/v1/volumes/:volumeID/attachments/:attachmentID", UpdateAttachment(mockSvc))

	vid, aid := uuid.New().String(), uuid.New().String()

	t.Run("success", func(t *testing.T) {
		md := model.Metadata{"notes": "back cover"}
		mockSvc.On("UpdateAttachment", mock.Anything, vid, aid, md).Return(&model.Attachment{ID: aid}, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/api/v1/volumes/"+vid+"/attachments/"+aid,
			strings.NewReader(`{"metadata":{"notes":"back cover"}}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body messageResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Attachment updated", body.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown key", func(t *testing.T) {
		md := model.Metadata{"size": float64(3)}
		mockSvc.On("UpdateAttachment", mock.Anything, vid, aid, md).
			Return(nil, apperror.Validation("malformed metadata", "unsupported attachment field 'size'")).Once()

		req := httptest.NewRequest(http.MethodPut, "/api/v1/volumes/"+vid+"/attachments/"+aid,
			strings.NewReader(`{"metadata":{"size":3}}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteAttachment(t *testing.T) {
	mockSvc := new(serviceMocks.MockVolumeService)
	app := fiber.New()
	app.Delete("/api/v1/volumes/:volumeID/attachments/:attachmentID", DeleteAttachment(mockSvc))

	vid, aid := uuid.New().String(), uuid.New().String()
	mockSvc.On("DeleteAttachment", mock.Anything, vid, aid).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/volumes/"+vid+"/attachments/"+aid, nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	mockSvc.AssertExpectations(t)
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "passwd"},
		{`C:\Windows\system32\cmd.exe`, "cmd.exe"},
		{"i contain cool \u00fcml\u00e4uts.txt", "i_contain_cool_mluts.txt"},
		{".bashrc", "bashrc"},
		{"..", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SecureFilename(tt.in), tt.in)
	}
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockVolumeService)
	RegisterRoutes(app, mockSvc)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/unknown", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
		assert.Equal(t, "invalid URI", res.Error.Message)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("trailing slash collection", func(t *testing.T) {
		mockSvc.On("Query", mock.Anything, service.QueryRequest{Expr: "*:*"}).Return(&service.QueryResult{Size: 10}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/?q=*:*", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("attachment file route", func(t *testing.T) {
		vid, aid := uuid.New().String(), uuid.New().String()
		a := &model.Attachment{ID: aid, Name: "a.bin", Mime: "application/octet-stream", Size: 3}
		mockSvc.On("GetAttachmentFile", mock.Anything, vid, aid).Return(io.NopCloser(strings.NewReader("abc")), a, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/volumes/"+vid+"/attachments/"+aid+"/file", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}
