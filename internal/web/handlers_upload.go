package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetclean/internal/core"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

// cleanUpload reads the multipart "file" field and runs it through the service.
func (s *Server) cleanUpload(w http.ResponseWriter, r *http.Request) (*core.CleanResult, error) {
	req, cleanup, err := s.readUpload(w, r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return s.service.Clean(WithRequestMetadata(r.Context(), r), req)
}

// readUpload parses the multipart form into a CleanRequest. The caller must
// run cleanup once the request reader is no longer needed.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (core.CleanRequest, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return core.CleanRequest{}, nil, core.ErrNoFile
		}
		return core.CleanRequest{}, nil, fmt.Errorf("parse upload: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		return core.CleanRequest{}, nil, core.ErrNoFile
	}

	cleanup := func() {
		file.Close()
		r.MultipartForm.RemoveAll()
	}
	return core.CleanRequest{
		FileName: header.Filename,
		Reader:   file,
		Sheet:    strings.TrimSpace(r.FormValue("sheet")),
	}, cleanup, nil
}

// handleAPIPreview analyzes an upload and reports what cleaning would change
// without storing a result.
func (s *Server) handleAPIPreview(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer cleanup()

	result, err := s.service.Preview(r.Context(), req)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
