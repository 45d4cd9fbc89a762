package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/config"
	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const messyCSV = "ID, Name ,Notes\n1,\"  Alice\",\"line1\nline2\"\n2,Bob,clean\n"

type fakeHistory struct {
	mu   sync.Mutex
	runs []core.Run
}

func (h *fakeHistory) Record(_ context.Context, run core.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, run)
	return nil
}

func (h *fakeHistory) Recent(_ context.Context, limit int) ([]core.Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]core.Run, 0, limit)
	for i := len(h.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.runs[i])
	}
	return out, nil
}

func (h *fakeHistory) PurgeBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 30 * time.Second},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       30 * time.Second,
			ResultTTL:     time.Minute,
			SweepInterval: time.Minute,
		},
		Clean: config.CleanConfig{PreviewRows: 50, OutputSheet: "Sheet1", DownloadName: "cleaned_file.xlsx"},
	}
}

func setupServer(t *testing.T, cfg *config.Config, history core.HistoryStore) *Server {
	t.Helper()
	srv := NewServer(cfg, core.NewService(cfg, history))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func uploadRequest(t *testing.T, target, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func messyWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{" Part ", "Description"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"A-1", "bolt\nsteel "}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"A-2", "nut"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func cleanViaAPI(t *testing.T, srv *Server) CleanResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "/api/clean", "people.csv", []byte(messyCSV)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CleanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Jobs.MaxConcurrent)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="file"`)
	assert.Contains(t, rec.Body.String(), acceptedTypes)
}

func TestAPIClean_CSV(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)

	resp := cleanViaAPI(t, srv)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, core.FormatCSV, resp.Format)
	assert.Equal(t, []string{"ID", "Name", "Notes"}, resp.Columns)
	assert.Equal(t, 2, resp.RowCount)
	assert.Equal(t, 2, resp.ChangedCells)
	assert.Equal(t, [][]string{{"1", "Alice", "line1 line2"}, {"2", "Bob", "clean"}}, resp.Preview)
	assert.Equal(t, "/api/clean/"+resp.ID+"/download", resp.DownloadURL)

	byColumn := map[string][]core.ChangeRecord{}
	for _, e := range resp.Changes.Entries() {
		byColumn[e.Column] = e.Changes
	}
	require.Len(t, byColumn["Name"], 1)
	assert.Equal(t, 2, byColumn["Name"][0].Row)
	assert.Equal(t, "  Alice", byColumn["Name"][0].Original)
	assert.Equal(t, "Alice", byColumn["Name"][0].Cleaned)
}

func TestAPIClean_Workbook(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "/api/clean?preview=1", "parts.xlsx", messyWorkbook(t)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Format  string     `json:"format"`
		Columns []string   `json:"columns"`
		Preview [][]string `json:"preview"`
		Changes []struct {
			Column  string `json:"column"`
			Changes []struct {
				Row     int    `json:"row"`
				Cleaned string `json:"cleaned"`
			} `json:"changes"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "xlsx", resp.Format)
	assert.Equal(t, []string{"Part", "Description"}, resp.Columns)
	assert.Equal(t, [][]string{{"A-1", "bolt steel"}}, resp.Preview)
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, "Description", resp.Changes[0].Column)
	assert.Equal(t, 2, resp.Changes[0].Changes[0].Row)
}

func TestReadUpload_NoFile(t *testing.T) {
	srv := setupServer(t, testConfig(), core.NopHistory{})

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/clean", strings.NewReader("{}"))},
		{"wrong field", func() *http.Request {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			require.NoError(t, mw.WriteField("other", "x"))
			require.NoError(t, mw.Close())
			req := httptest.NewRequest(http.MethodPost, "/api/clean", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			return req
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := srv.readUpload(httptest.NewRecorder(), tt.req)
			assert.ErrorIs(t, err, core.ErrNoFile)
		})
	}
}

func TestAPIClean_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name: "no file",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/clean", strings.NewReader("{}"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE004",
		},
		{
			name: "unsupported format",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/clean", "notes.txt", []byte("hello"))
			},
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "FILE006",
		},
		{
			name: "corrupt workbook",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/clean", "broken.xlsx", []byte("not a zip"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE003",
		},
		{
			name: "empty csv",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/clean", "empty.csv", nil)
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE005",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/clean", "big.csv", bytes.Repeat([]byte("a,b\n"), 1<<19))
			},
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE001",
		},
	}

	srv := setupServer(t, testConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, tt.req(t))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantErr, body.Code)
			assert.NotEmpty(t, body.Action)
		})
	}
}

func TestAPIResult(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)
	created := cleanViaAPI(t, srv)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/clean/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got CleanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/clean/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CLN001", body.Code)
}

func TestAPIForget(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)
	created := cleanViaAPI(t, srv)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/clean/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/clean/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownload(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)
	created := cleanViaAPI(t, srv)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, created.DownloadURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="cleaned_file.xlsx"`)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID", "Name", "Notes"}, {"1", "Alice", "line1 line2"}, {"2", "Bob", "clean"}}, rows)
}

func TestChangesCSV(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)
	created := cleanViaAPI(t, srv)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clean/"+created.ID+"/changes.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="cleaned_file_changes.csv"`)

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "Row,Column,Original,Cleaned\n"))
	assert.Contains(t, body, `2,Name,"  Alice",Alice`)
}

func TestCleanPage(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)

	t.Run("full page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, uploadRequest(t, "/clean", "people.csv", []byte(messyCSV)))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "<!DOCTYPE html>")
		assert.Contains(t, body, "File cleaned successfully!")
		assert.Contains(t, body, "Cleaned Data Preview")
		assert.Contains(t, body, "Cells That Were Cleaned")
		assert.Contains(t, body, "/clean/")
	})

	t.Run("htmx fragment", func(t *testing.T) {
		req := uploadRequest(t, "/clean", "people.csv", []byte(messyCSV))
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "<!DOCTYPE html>")
		assert.Contains(t, rec.Body.String(), "Cleaned Data Preview")
	})

	t.Run("already clean", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, uploadRequest(t, "/clean", "ok.csv", []byte("a,b\n1,2\n")))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "No cleaning was needed")
	})

	t.Run("error page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, uploadRequest(t, "/clean", "notes.txt", []byte("x")))

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Contains(t, rec.Body.String(), "FILE006")
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	})
}

func TestHistory(t *testing.T) {
	t.Parallel()
	history := &fakeHistory{}
	srv := setupServer(t, testConfig(), history)
	created := cleanViaAPI(t, srv)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []core.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, created.ID, body.Runs[0].ID)
	assert.Equal(t, "people.csv", body.Runs[0].FileName)
	assert.Equal(t, 2, body.Runs[0].ChangedCells)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "people.csv")
}

func TestAPIKeyRequired(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	srv := setupServer(t, cfg, nil)

	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusForbidden},
		{"valid", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	// Pages stay open.
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadRateLimit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	srv := setupServer(t, cfg, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "/api/clean", "people.csv", []byte(messyCSV)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "/api/clean", "people.csv", []byte(messyCSV)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE001", body.Code)

	// Reads keep their own budget.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     2,
		window:   time.Minute,
		now:      func() time.Time { return now },
		done:     make(chan struct{}),
	}

	assert.True(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("1.1.1.1"))
	assert.False(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("2.2.2.2"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("1.1.1.1"))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrResultNotFound, http.StatusNotFound},
		{core.ErrTooManyJobs, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{core.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{core.ErrSheetNotFound, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestAPIPreview(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, uploadRequest(t, "/api/preview", "parts.xlsx", messyWorkbook(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp core.PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sheet1", resp.Sheet)
	require.Len(t, resp.Sheets, 1)
	assert.Equal(t, core.SheetInfo{Name: "Sheet1", Rows: 2, Columns: 2}, resp.Sheets[0])
	assert.Equal(t, 1, resp.Summary.ChangedCells)
	assert.Equal(t, 0, srv.service.ResultCount())

	rec = httptest.NewRecorder()
	req := uploadRequest(t, "/api/preview", "parts.xlsx", messyWorkbook(t))
	req.Header.Set("Content-Type", "text/plain")
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// mockHistory is a testify mock of core.HistoryStore.
type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Record(ctx context.Context, run core.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockHistory) Recent(ctx context.Context, limit int) ([]core.Run, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]core.Run)
	return runs, args.Error(1)
}

func (m *mockHistory) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func TestHistory_StoreUnavailable(t *testing.T) {
	t.Parallel()
	history := &mockHistory{}
	history.On("Record", mock.Anything, mock.MatchedBy(func(run core.Run) bool {
		return run.FileName == "people.csv" && run.ChangedCells == 2 && run.UserAgent == "sheet-test"
	})).Return(errors.New("dial tcp: connection refused"))
	history.On("Recent", mock.Anything, 500).Return(nil, errors.New("dial tcp: connection refused"))

	srv := setupServer(t, testConfig(), history)

	// A failed history write never fails the clean.
	req := uploadRequest(t, "/api/clean", "people.csv", []byte(messyCSV))
	req.Header.Set("User-Agent", "sheet-test")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=9999", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DB001", body.Code)

	history.AssertExpectations(t)
}
