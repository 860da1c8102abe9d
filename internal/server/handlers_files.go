package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"fstash/internal/api"
	"fstash/internal/models"
)

const (
	uploadMultipartMemory = 32 << 20 // in-memory threshold before multipart spills to disk
	uploadEncodingSlack   = 10 << 20 // headroom for multipart framing above the file limit
)

func storedFileFromRecord(record models.FileRecord) api.StoredFile {
	return api.StoredFile{
		ID:   record.ID,
		Name: record.Name,
		Type: string(record.Kind),
		Size: record.SizeBytes,
		Path: "uploads/" + record.StorageKey,
		Date: record.CreatedAt.UTC().Format(api.DateLayout),
	}
}

func storageInfo(u Usage) api.StorageInfo {
	return api.StorageInfo{Used: u.UsedBytes, Total: u.TotalBytes, Percent: u.Percent}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.uploadLimiter, w, r, "upload") {
		return
	}
	defer s.releaseLimiter(s.uploadLimiter)

	quota := s.service.Quota()
	r.Body = http.MaxBytesReader(w, r.Body, quota.MaxFileBytes+uploadEncodingSlack)

	if err := r.ParseMultipartForm(uploadMultipartMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err, quota.MaxFileBytes))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("file field is required"), ErrCodeMissingFile))
		return
	}
	defer file.Close()

	record, usage, err := s.service.Ingest(r.Context(), IngestInput{
		Name:         filepath.Base(header.Filename),
		DeclaredSize: header.Size,
		Content:      file,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		Success: true,
		File:    storedFileFromRecord(record),
		Storage: storageInfo(usage),
	})
}

func classifyMultipartError(err error, maxFileBytes int64) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fileTooLarge(maxFileBytes)
	}
	return badRequest(fmt.Errorf("invalid multipart request: %w", err))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, usage, err := s.service.List(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	files := make([]api.StoredFile, 0, len(records))
	for _, record := range records {
		files = append(files, storedFileFromRecord(record))
	}

	s.writeJSON(w, http.StatusOK, api.ListResponse{
		Success: true,
		Files:   files,
		Storage: storageInfo(usage),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("invalid file id"), ErrCodeInvalidID))
		return
	}
	s.deleteByID(w, r, req.ID)
}

// handleDeleteOverride accepts HTML form posts carrying _method=DELETE, for
// clients that cannot issue a real DELETE request.
func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, formMaxBody)
	if err := r.ParseForm(); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("invalid form payload: %w", err)))
		return
	}
	if r.PostFormValue("_method") != http.MethodDelete {
		s.writeErrorReq(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	id, err := parseFileID(r.PostFormValue("id"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	s.deleteByID(w, r, id)
}

func (s *Server) deleteByID(w http.ResponseWriter, r *http.Request, id int64) {
	record, usage, err := s.service.Evict(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.DeleteResponse{
		Success: true,
		Message: fmt.Sprintf("deleted %s", record.Name),
		Storage: storageInfo(usage),
	})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	rc, record, err := s.service.OpenContent(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(record.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": record.Name}))

	if _, err := io.Copy(w, rc); err != nil {
		s.log().Debug("stream content", "storage_key", key, "error", err)
	}
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	apply, err := queryBool(r, "apply")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := s.service.Reconcile(r.Context(), apply)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
