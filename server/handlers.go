package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/winsonsd1123/pdfano/annotate"
	"github.com/winsonsd1123/pdfano/observability"
	"github.com/winsonsd1123/pdfano/storage"
)

// maxUploadSize bounds multipart uploads (memory + spill to disk).
const maxUploadSize = 64 << 20

type exportRequest struct {
	Filename    string                        `json:"filename"`
	Annotations []annotate.FrontendAnnotation `json:"annotations"`
}

type suggestRequest struct {
	Filename  string `json:"filename"`
	PageIndex int    `json:"pageIndex"`
	Text      string `json:"text"`
}

// handleExport fetches the named source document, merges the posted
// annotations, and streams the annotated PDF back.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.Annotations == nil {
		writeError(w, http.StatusBadRequest, "annotations is required")
		return
	}

	ctx := r.Context()
	objectURL, err := s.store.Head(ctx, req.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("file %q not found", req.Filename))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("storage lookup: %v", err))
		return
	}
	src, err := s.store.Fetch(ctx, objectURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("fetch source: %v", err))
		return
	}

	out, count, err := s.exporter.Assemble(ctx, src, req.Annotations)
	if err != nil {
		s.logger.Error("export failed",
			observability.String("filename", req.Filename),
			observability.Error("error", err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("export: %v", err))
		return
	}

	name := "export_" + s.clock().UTC().Format("20060102150405") + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("X-Annotation-Count", strconv.Itoa(count))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Write(out)
}

// handleUpload stores one multipart file under its original name.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("read upload: %v", err))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := s.store.Put(r.Context(), header.Filename, contentType, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("store upload: %v", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"filename": header.Filename,
		"url":      url,
	})
}

// handleDelete removes the named object from the store.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if err := s.store.Delete(r.Context(), name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("file %q not found", name))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("delete: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSuggest forwards a passage to the AI collaborator.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		writeError(w, http.StatusServiceUnavailable, "suggestions are not configured")
		return
	}
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	suggestions, err := s.suggester.Suggest(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("suggest failed", observability.Error("error", err))
		writeError(w, http.StatusBadGateway, fmt.Sprintf("suggest: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":    req.Filename,
		"pageIndex":   req.PageIndex,
		"suggestions": suggestions,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
