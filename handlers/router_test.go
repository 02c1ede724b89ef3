package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{"/api/save-user", "/anything/at/all", "/"} {
		w := s.do(http.MethodOptions, target, "")
		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Empty(t, w.Body.String())
	}
}

func TestJSONResponsesCarryCORSHeaders(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/get-notifications", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestUnknownPostIsNotFound(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{"/api/unknown", "/api/save-user/", "/api/get-notifications"} {
		w := s.do(http.MethodPost, target, `{}`)
		assertError(t, w, http.StatusNotFound, "Endpoint not found")
	}
}

func TestUnsupportedMethod(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPut, "/api/save-user", `{}`)
	assertError(t, w, http.StatusNotImplemented, "Unsupported method")
}

func TestStaticFiles(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.staticDir, "hello.txt"), []byte("hello from disk"), 0o644))

	w := s.do(http.MethodGet, "/hello.txt", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello from disk", w.Body.String())

	w = s.do(http.MethodHead, "/hello.txt", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/missing.txt", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	s := newTestServer(t)
	s.router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := s.do(http.MethodGet, "/boom", "")
	assertError(t, w, http.StatusInternalServerError, "boom")

	// server keeps serving after a panic
	w = s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/pay-notification", `{"studentCode":"S1"}`).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/save-user", `{"email":"a@example.com","password":"pw"}`).Code)

	w := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `studentpay_http_requests_total{method="POST",route="/api/pay-notification",status="200"} 1`)
	assert.Contains(t, body, `studentpay_notification_events_total{type="created"} 1`)
	assert.Contains(t, body, `studentpay_users_registered_total 1`)
}

func multipartWorkbook(t *testing.T, rows [][]any) (*bytes.Buffer, string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "students.xlsx")
	require.NoError(t, err)
	require.NoError(t, f.Write(part))
	require.NoError(t, mw.Close())

	return &body, mw.FormDataContentType()
}

func TestImportStudents(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartWorkbook(t, [][]any{
		{"code", "name"},
		{"S1", "Ana"},
		{"S2", "Luis"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/import-students", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assertSuccess(t, w, "Import successful")
	assert.Equal(t, float64(2), decodeObject(t, w)["importedCount"])

	w = s.do(http.MethodGet, "/api/get-student?code=S2", "")
	assert.JSONEq(t, `{"code":"S2","name":"Luis"}`, w.Body.String())

	t.Run("MissingFile", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/import-students", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingCodeColumn", func(t *testing.T) {
		body, contentType := multipartWorkbook(t, [][]any{{"name"}, {"Ana"}})
		req := httptest.NewRequest(http.MethodPost, "/api/import-students", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "error", decodeObject(t, w)["status"])
	})
}

func TestExportNotifications(t *testing.T) {
	s := newTestServer(t)
	seedNotifications(t, s, 2)

	w := s.do(http.MethodGet, "/api/export-notifications", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "notifications.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Notifications")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "S1", rows[2][1])
	assert.Equal(t, "2026-10-18 14:05:09", rows[2][3])

	list, err := s.repos.Notifications.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
