package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoRequestID answers with the id the middleware stored in the locals.
func echoRequestID(c *fiber.Ctx) error {
	id, _ := c.Locals(RequestIDLocalKey).(string)
	return c.SendString(id)
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/api/v1/volumes/", echoRequestID)

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"generated when absent", "", false},
		{"client id kept", "ingest-42", true},
		{"too long replaced", strings.Repeat("a", maxRequestIDLen+1), false},
		{"space replaced", "has space", false},
		{"non-ascii replaced", "café-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/volumes/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)

			got := resp.Header.Get(RequestIDHeader)
			assert.Equal(t, got, string(body), "locals and header must agree")
			if tt.keep {
				assert.Equal(t, tt.header, got)
				return
			}
			_, err = uuid.Parse(got)
			assert.NoError(t, err)
		})
	}
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Get("/api/v1/volumes/:volumeID", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/volumes/abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, resp.Header.Get(RequestIDHeader), entry["request_id"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/v1/volumes/abc", entry["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), entry["status"])
	assert.Contains(t, entry, "latency")
	assert.NotEmpty(t, entry["ts"])
}

func TestLogger_ServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Get("/health", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "down")
	})

	_, err := app.Test(httptest.NewRequest("GET", "/health?verbose=1", nil))
	require.NoError(t, err)

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "/health", entry["path"])
	assert.Equal(t, float64(fiber.StatusServiceUnavailable), entry["status"])
	assert.Equal(t, "", entry["request_id"])
}
