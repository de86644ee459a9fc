package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcs-go/internal/app"
	"mcs-go/internal/config"
	"mcs-go/internal/mcs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubService struct {
	conn       mcs.ConnectionResult
	report     *mcs.Report
	migrateErr error
	url        string
	urlErr     error
	upload     *app.UploadResult
	uploadErr  error

	migrateCalls int
	gotKey       string
	gotFileName  string
	gotUploadID  string
}

func (s *stubService) TestConnection(context.Context) mcs.ConnectionResult {
	return s.conn
}

func (s *stubService) MigrateExistingFiles(context.Context) (*mcs.Report, error) {
	s.migrateCalls++
	return s.report, s.migrateErr
}

func (s *stubService) GenerateFileURL(_ context.Context, key, fileName string) (string, error) {
	s.gotKey, s.gotFileName = key, fileName
	return s.url, s.urlErr
}

func (s *stubService) UploadRecord(_ context.Context, id string) (*app.UploadResult, error) {
	s.gotUploadID = id
	return s.upload, s.uploadErr
}

func do(t *testing.T, h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTestConnection_AlwaysOK(t *testing.T) {
	for _, result := range []mcs.ConnectionResult{
		{Success: true, Message: mcs.MessageConnectionSuccessful},
		mcs.FailedConnection("cloud storage is not enabled"),
	} {
		svc := &stubService{conn: result}
		w := do(t, New(svc, nil, mcs.NewNopLogger()).Handler(), http.MethodPost, "/api/v1/storage/test-connection", "")

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, result.Success, body["success"])
		assert.Equal(t, result.Message, body["message"])
	}
}

func TestMigrate(t *testing.T) {
	report := &mcs.Report{Total: 3, Migrated: 1, Skipped: 1, SkippedNotLocalURL: 1,
		Errors: []mcs.RecordError{{File: "FILE-0003", Error: "upload failed"}}}

	tests := []struct {
		name       string
		report     *mcs.Report
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "report", report: report, wantStatus: http.StatusOK},
		{name: "not enabled", err: mcs.ErrNotEnabled, wantStatus: http.StatusUnprocessableEntity, wantError: "cloud storage is not enabled"},
		{
			name:       "invalid config",
			err:        fmt.Errorf("%w: %w", mcs.ErrInvalidConfig, &config.ValidationError{Problems: []string{"region is required"}}),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "invalid provider configuration: region is required",
		},
		{name: "already running", err: app.ErrMigrationRunning, wantStatus: http.StatusConflict, wantError: app.ErrMigrationRunning.Error()},
		{name: "record source down", err: errors.New("opening record store: connection refused"), wantStatus: http.StatusInternalServerError, wantError: "opening record store: connection refused"},
		{name: "cancelled", err: context.Canceled, wantStatus: http.StatusInternalServerError, wantError: "context canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{report: tt.report, migrateErr: tt.err}
			w := do(t, New(svc, nil, mcs.NewNopLogger()).Handler(), http.MethodPost, "/api/v1/storage/migrate", "")

			require.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				assert.NotContains(t, body, "total")
				return
			}
			assert.EqualValues(t, 3, body["total"])
			assert.EqualValues(t, 1, body["migrated"])
			assert.EqualValues(t, 1, body["skipped"])
			assert.EqualValues(t, 1, body["skipped_not_local_url"])
			assert.Len(t, body["errors"], 1)
		})
	}
}

func TestGenerateFile(t *testing.T) {
	t.Run("redirects to signed url", func(t *testing.T) {
		svc := &stubService{url: "https://bucket.example.com/k?sig=1"}
		w := do(t, New(svc, nil, mcs.NewNopLogger()).Handler(), http.MethodGet,
			"/api/v1/files/generate?key=private%3A2026%2F03%2F14%2FFile%2FAB_x.pdf&file_name=x.pdf", "")

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://bucket.example.com/k?sig=1", w.Header().Get("Location"))
		assert.Equal(t, "private:2026/03/14/File/AB_x.pdf", svc.gotKey)
		assert.Equal(t, "x.pdf", svc.gotFileName)
	})

	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
	}{
		{"missing key", "/api/v1/files/generate", nil, http.StatusBadRequest},
		{"unknown object", "/api/v1/files/generate?key=private:nope", fmt.Errorf("object nope: %w", mcs.ErrNotFound), http.StatusNotFound},
		{"disabled", "/api/v1/files/generate?key=private:k", mcs.ErrNotEnabled, http.StatusUnprocessableEntity},
		{"provider error", "/api/v1/files/generate?key=private:k", errors.New("timeout"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{urlErr: tt.err}
			w := do(t, New(svc, nil, mcs.NewNopLogger()).Handler(), http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestUploadRecord(t *testing.T) {
	t.Run("returns the result", func(t *testing.T) {
		svc := &stubService{upload: &app.UploadResult{ID: "FILE-0001", Uploaded: true, URL: "https://cloud.test/public/k"}}
		w := do(t, New(svc, nil, mcs.NewNopLogger()).Handler(), http.MethodPost, "/api/v1/files/FILE-0001/upload", "")

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "FILE-0001", svc.gotUploadID)
		assert.Equal(t, true, body["uploaded"])
		assert.Equal(t, "https://cloud.test/public/k", body["file_url"])
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown record", fmt.Errorf("file record x: %w", mcs.ErrNotFound), http.StatusNotFound},
		{"disabled", mcs.ErrNotEnabled, http.StatusUnprocessableEntity},
		{"upload failed", errors.New("uploading record x: write rejected"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{uploadErr: tt.err}
			w := do(t, New(svc, nil, mcs.NewNopLogger()).Handler(), http.MethodPost, "/api/v1/files/x/upload", "")
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuth(t *testing.T) {
	tokens := NewTokenManager("test-secret", 0)
	admin, err := tokens.Issue("admin@example.com", RoleStorageAdmin)
	require.NoError(t, err)
	viewer, err := tokens.Issue("viewer@example.com")
	require.NoError(t, err)
	forged, err := NewTokenManager("other-secret", 0).Issue("admin@example.com", RoleStorageAdmin)
	require.NoError(t, err)

	svc := &stubService{report: &mcs.Report{}, url: "https://example.com/signed", upload: &app.UploadResult{ID: "FILE-0001"}}
	h := New(svc, tokens, mcs.NewNopLogger()).Handler()

	tests := []struct {
		name       string
		method     string
		target     string
		token      string
		wantStatus int
	}{
		{"no token", http.MethodPost, "/api/v1/storage/migrate", "", http.StatusUnauthorized},
		{"forged token", http.MethodPost, "/api/v1/storage/migrate", forged, http.StatusUnauthorized},
		{"garbage token", http.MethodPost, "/api/v1/storage/test-connection", "not-a-jwt", http.StatusUnauthorized},
		{"missing role", http.MethodPost, "/api/v1/storage/migrate", viewer, http.StatusForbidden},
		{"admin migrate", http.MethodPost, "/api/v1/storage/migrate", admin, http.StatusOK},
		{"admin test connection", http.MethodPost, "/api/v1/storage/test-connection", admin, http.StatusOK},
		{"download without role", http.MethodGet, "/api/v1/files/generate?key=public:k", viewer, http.StatusFound},
		{"download without token", http.MethodGet, "/api/v1/files/generate?key=public:k", "", http.StatusUnauthorized},
		{"upload without role", http.MethodPost, "/api/v1/files/FILE-0001/upload", viewer, http.StatusForbidden},
		{"admin upload", http.MethodPost, "/api/v1/files/FILE-0001/upload", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.token)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
	assert.Equal(t, 1, svc.migrateCalls, "migration must only run for the admin token")
}

func TestTokenManager_Expired(t *testing.T) {
	tokens := NewTokenManager("s", 0)
	tok, err := tokens.Issue("admin", RoleStorageAdmin)
	require.NoError(t, err)

	later := NewTokenManager("s", 0)
	later.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = later.Verify(tok)
	assert.Error(t, err)

	claims, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.True(t, claims.HasRole(RoleStorageAdmin))
}
