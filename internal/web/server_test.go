package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sqlscript/internal/config"
	"github.com/JonMunkholm/sqlscript/internal/core"
	"github.com/JonMunkholm/sqlscript/internal/source"
	"github.com/JonMunkholm/sqlscript/internal/storage/filestore"
)

const usersCSV = "id,name,email\n1,Alice,a@example.com\n2,O'Neil,\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Script: config.ScriptConfig{Dir: t.TempDir(), RecentLimit: 20},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
		Convert: config.ConvertConfig{
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			BatchSize:     1000,
			DefaultMode:   "guarded",
			PreviewLimit:  50,
			Timeout:       10 * time.Second,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	store, err := filestore.New(cfg.Script.Dir)
	require.NoError(t, err)

	svc := core.NewService(store, source.Loader(source.Options{}),
		core.NewLimiter(cfg.Convert.MaxConcurrent, cfg.Convert.MaxWaitTime),
		core.ServiceConfig{
			BatchSize:    cfg.Convert.BatchSize,
			PreviewLimit: cfg.Convert.PreviewLimit,
			DefaultMode:  cfg.Convert.Mode(),
		})

	s := NewServer(svc, cfg)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

// multipartBody builds a form upload. An empty fileName omits the file part.
func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// ============================================================================
// Page Tests
// ============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestIndex_RendersForm(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `name="table_name"`)
	assert.Contains(t, body, `name="columns"`)
	assert.Contains(t, body, `<option value="guarded" selected>`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestGenerateForm_Success(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	body, ct := multipartBody(t, map[string]string{
		"table_name": "users",
		"columns":    "id, name",
	}, "users.csv", usersCSV)

	rec := do(t, s, http.MethodPost, "/", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page := rec.Body.String()
	assert.Contains(t, page, "Generated 4 statements for table <strong>users</strong>")
	assert.Contains(t, page, `href="/download/users_inserts.sql"`)
	assert.Contains(t, page, "BEGIN TRANSACTION;")
}

func TestGenerateForm_ErrorRerendersForm(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	body, ct := multipartBody(t, map[string]string{
		"table_name": "users",
		"columns":    "id, phone",
	}, "users.csv", usersCSV)

	rec := do(t, s, http.MethodPost, "/", body, ct)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	page := rec.Body.String()
	assert.Contains(t, page, "VAL004")
	assert.Contains(t, page, "phone")
	assert.Contains(t, page, `value="id, phone"`)
}

// ============================================================================
// API Tests
// ============================================================================

func TestGenerateAPI_PlainThenDownload(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	body, ct := multipartBody(t, map[string]string{
		"table_name": "users",
		"columns":    "id,name,email",
		"mode":       "plain",
	}, "users.csv", usersCSV)

	rec := do(t, s, http.MethodPost, "/api/generate", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "users_inserts.sql", resp.FileName)
	assert.Equal(t, core.ModePlain, resp.Mode)
	assert.Equal(t, 2, resp.TotalStatements)
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Preview, 2)
	assert.Equal(t, "INSERT INTO users (id, name, email) VALUES (1, 'Alice', 'a@example.com');", resp.Preview[0])
	assert.Equal(t, "INSERT INTO users (id, name, email) VALUES (2, 'O''Neil', NULL);", resp.Preview[1])

	dl := do(t, s, http.MethodGet, resp.DownloadURL, nil, "")
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Header().Get("Content-Disposition"), `filename="users_inserts.sql"`)
	assert.Equal(t, strings.Join(resp.Preview, "\n"), dl.Body.String())
}

func TestGenerateAPI_OutputName(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	body, ct := multipartBody(t, map[string]string{
		"table_name":  "users",
		"columns":     "id",
		"output_name": "custom.sql",
	}, "users.csv", usersCSV)

	rec := do(t, s, http.MethodPost, "/api/generate", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GenerateResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "custom.sql", resp.FileName)
	assert.Equal(t, 4, resp.TotalStatements)
}

func TestGenerateAPI_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		fileName string
		content  string
		status   int
		code     string
	}{
		{
			name:     "missing column",
			fields:   map[string]string{"table_name": "users", "columns": "id,phone"},
			fileName: "users.csv", content: usersCSV,
			status: http.StatusBadRequest, code: "VAL004",
		},
		{
			name:   "no file",
			fields: map[string]string{"table_name": "users", "columns": "id"},
			status: http.StatusBadRequest, code: "FILE004",
		},
		{
			name:     "empty file",
			fields:   map[string]string{"table_name": "users", "columns": "id"},
			fileName: "users.csv", content: "",
			status: http.StatusBadRequest, code: "FILE005",
		},
		{
			name:     "bad mode",
			fields:   map[string]string{"table_name": "users", "columns": "id", "mode": "merge"},
			fileName: "users.csv", content: usersCSV,
			status: http.StatusBadRequest, code: "VAL007",
		},
		{
			name:     "bad batch size",
			fields:   map[string]string{"table_name": "users", "columns": "id", "batch_size": "0"},
			fileName: "users.csv", content: usersCSV,
			status: http.StatusBadRequest, code: "VAL007",
		},
		{
			name:     "no table name",
			fields:   map[string]string{"columns": "id"},
			fileName: "users.csv", content: usersCSV,
			status: http.StatusBadRequest, code: "VAL007",
		},
		{
			name:     "unreadable workbook",
			fields:   map[string]string{"table_name": "users", "columns": "id"},
			fileName: "users.xlsx", content: "not a zip",
			status: http.StatusBadRequest, code: "FILE002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(t))
			body, ct := multipartBody(t, tt.fields, tt.fileName, tt.content)

			rec := do(t, s, http.MethodPost, "/api/generate", body, ct)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp ErrorResponse
			decodeJSON(t, rec, &resp)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestGenerateAPI_FileTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxFileSize = 64
	s := newTestServer(t, cfg)

	body, ct := multipartBody(t, map[string]string{"table_name": "t", "columns": "id"},
		"big.csv", "id\n"+strings.Repeat("1\n", 200))

	rec := do(t, s, http.MethodPost, "/api/generate", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp ErrorResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "FILE001", resp.Code)
}

func TestDownload_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodGet, "/download/missing.sql", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE006")
}

func TestListScripts(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	for _, table := range []string{"users", "orders"} {
		body, ct := multipartBody(t, map[string]string{"table_name": table, "columns": "id"}, "f.csv", usersCSV)
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/generate", body, ct).Code)
	}

	rec := do(t, s, http.MethodGet, "/api/scripts?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scripts []core.Artifact `json:"scripts"`
		Count   int             `json:"count"`
	}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Scripts, 1)
}

func TestRateLimit_Convert(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ConvertLimit: 1}
	s := newTestServer(t, cfg)

	first, ct := multipartBody(t, map[string]string{"table_name": "users", "columns": "id"}, "u.csv", usersCSV)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/generate", first, ct).Code)

	second, ct := multipartBody(t, map[string]string{"table_name": "users", "columns": "id"}, "u.csv", usersCSV)
	rec := do(t, s, http.MethodPost, "/api/generate", second, ct)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are not subject to the conversion limit.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/scripts", nil, "").Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg)

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/scripts", nil, "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/scripts", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Pages stay public.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/", nil, "").Code)
}

func TestUploadDirSpooling(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.Dir = t.TempDir()
	s := newTestServer(t, cfg)

	body, ct := multipartBody(t, map[string]string{"table_name": "users", "columns": "id"}, "users.csv", usersCSV)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/generate", body, ct).Code)

	entries, err := os.ReadDir(cfg.Upload.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "spooled uploads are removed after conversion")
}
