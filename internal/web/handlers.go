package web

import (
	"bytes"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/JonMunkholm/sheetclean/internal/logging"
	"github.com/JonMunkholm/sheetclean/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// acceptedTypes is the accept attribute of the upload input.
const acceptedTypes = ".xlsx,.xlsm,.csv"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	templates.IndexPage(templates.IndexData{
		MaxFileSize: s.cfg.Upload.MaxFileSize,
		Accept:      acceptedTypes,
		Sheet:       s.cfg.Clean.Sheet,
	}).Render(r.Context(), w)
}

// handleCleanPage cleans an uploaded form file and renders the result.
func (s *Server) handleCleanPage(w http.ResponseWriter, r *http.Request) {
	res, err := s.cleanUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	data := s.resultData(res, "/clean/", s.cfg.Clean.PreviewRows)
	if isHTMX(r) {
		templates.ResultPanel(data).Render(r.Context(), w)
		return
	}
	templates.ResultPage(data).Render(r.Context(), w)
}

func (s *Server) resultData(res *core.CleanResult, base string, previewRows int) templates.ResultData {
	return templates.ResultData{
		ID:           res.ID,
		FileName:     res.FileName,
		Columns:      res.Cleaned.ColumnNames(),
		Preview:      res.Cleaned.Head(previewRows),
		TotalRows:    res.Cleaned.RowCount(),
		ChangedCells: res.ChangedCells,
		Changes:      res.Ledger.Entries(),
		DownloadURL:  base + res.ID + "/download",
		ChangesURL:   base + res.ID + "/changes.csv",
		ExpiresAt:    res.ExpiresAt,
	}
}

// handleDownload serves the cleaned workbook.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Result(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	// Buffer so a write failure can still produce an error response.
	var buf bytes.Buffer
	if err := core.WriteWorkbook(&buf, res.Cleaned, s.cfg.Clean.OutputSheet); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	setAttachment(w, s.cfg.Clean.DownloadName)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.FromContext(r.Context()).Warn("download write failed", "job_id", res.ID, "error", err)
	}
}

// handleChangesCSV serves the change ledger as CSV.
func (s *Server) handleChangesCSV(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Result(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	name := strings.TrimSuffix(s.cfg.Clean.DownloadName, path.Ext(s.cfg.Clean.DownloadName)) + "_changes.csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	setAttachment(w, name)
	if err := core.WriteChangesCSV(w, res.Ledger); err != nil {
		logging.FromContext(r.Context()).Warn("changes export failed", "job_id", res.ID, "error", err)
	}
}

// handleHistoryPage lists recent runs.
func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.History(r.Context(), historyLimit(r))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	templates.HistoryPage(runs).Render(r.Context(), w)
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status        string             `json:"status"`
	Jobs          core.LimiterStatus `json:"jobs"`
	CachedResults int                `json:"cached_results"`
	Time          time.Time          `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Jobs:          s.service.LimiterStatus(),
		CachedResults: s.service.ResultCount(),
		Time:          time.Now().UTC(),
	})
}
