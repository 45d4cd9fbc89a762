package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/go-chi/chi/v5"
)

// CleanResponse is the JSON form of a clean result.
type CleanResponse struct {
	ID           string            `json:"id"`
	FileName     string            `json:"file_name"`
	Format       core.Format       `json:"format"`
	Columns      []string          `json:"columns"`
	RowCount     int               `json:"row_count"`
	ChangedCells int               `json:"changed_cells"`
	Changes      core.ChangeLedger `json:"changes"`
	Preview      [][]string        `json:"preview"`
	DownloadURL  string            `json:"download_url"`
	ChangesURL   string            `json:"changes_url"`
	DurationMS   int64             `json:"duration_ms"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

func (s *Server) cleanResponse(r *http.Request, res *core.CleanResult) CleanResponse {
	preview := res.Cleaned.Head(parseIntParam(r, "preview", s.cfg.Clean.PreviewRows))

	return CleanResponse{
		ID:           res.ID,
		FileName:     res.FileName,
		Format:       res.Format,
		Columns:      res.Cleaned.ColumnNames(),
		RowCount:     res.Cleaned.RowCount(),
		ChangedCells: res.ChangedCells,
		Changes:      res.Ledger,
		Preview:      preview,
		DownloadURL:  "/api/clean/" + res.ID + "/download",
		ChangesURL:   "/api/clean/" + res.ID + "/changes.csv",
		DurationMS:   res.Duration.Milliseconds(),
		CreatedAt:    res.CreatedAt,
		ExpiresAt:    res.ExpiresAt,
	}
}

// handleAPIClean cleans an uploaded file and returns the result as JSON.
func (s *Server) handleAPIClean(w http.ResponseWriter, r *http.Request) {
	res, err := s.cleanUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, s.cleanResponse(r, res))
}

func (s *Server) handleAPIResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Result(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, s.cleanResponse(r, res))
}

// handleAPIForget drops a cached result before it expires.
func (s *Server) handleAPIForget(w http.ResponseWriter, r *http.Request) {
	s.service.Forget(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.History(r.Context(), historyLimit(r))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
