package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/brunobiangulo/examparse"
	"github.com/brunobiangulo/examparse/merge"
)

const maxUpload = 200 << 20 // 200MB per request

type handler struct {
	engine examparse.Engine
}

func newHandler(e examparse.Engine) *handler {
	return &handler{engine: e}
}

// POST /exams/{name}
// Creates an exam from multipart "file" uploads or JSON {"paths": [...]}.
func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.handleRun(w, r, h.engine.Create)
}

// POST /exams/{name}/append
func (h *handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	h.handleRun(w, r, h.engine.Append)
}

type runFunc func(ctx context.Context, name string, paths []string) (*merge.Report, error)

func (h *handler) handleRun(w http.ResponseWriter, r *http.Request, run runFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()
	name := r.PathValue("name")

	paths, cleanup, err := documentPaths(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	report, err := run(ctx, name, paths)
	if err != nil {
		writeEngineError(w, err)
		slog.Error("server: run failed", "exam", name, "documents", len(paths), "error", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// documentPaths collects the documents of a request. Uploads are saved
// under their base name in a fresh temp dir, since the file name becomes
// the source of every record.
func documentPaths(r *http.Request) ([]string, func(), error) {
	noop := func() {}
	if err := r.ParseMultipartForm(maxUpload); err == nil && r.MultipartForm != nil {
		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			return nil, noop, errors.New("no \"file\" parts in upload")
		}
		dir, err := os.MkdirTemp("", "examparse-upload-")
		if err != nil {
			return nil, noop, fmt.Errorf("creating upload dir: %w", err)
		}
		cleanup := func() { os.RemoveAll(dir) }
		paths := make([]string, 0, len(files))
		for _, fh := range files {
			p, err := saveUpload(dir, fh)
			if err != nil {
				cleanup()
				return nil, noop, err
			}
			paths = append(paths, p)
		}
		return paths, cleanup, nil
	}

	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, noop, errors.New("invalid request: expected multipart files or JSON with 'paths'")
	}
	paths := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		// Validate that path is a real file (prevents directory traversal probing).
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid path %q", p)
		}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			return nil, noop, fmt.Errorf("path must be an existing file: %s", p)
		}
		paths = append(paths, abs)
	}
	return paths, noop, nil
}

func saveUpload(dir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("reading upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	// Sanitise filename to prevent path traversal.
	p := filepath.Join(dir, filepath.Base(fh.Filename))
	dst, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("saving upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("saving upload: %w", err)
	}
	return p, dst.Close()
}

// GET /exams
func (h *handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.engine.ListExams(r.Context())
	if err != nil {
		writeEngineError(w, err)
		slog.Error("server: list exams failed", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exams": exams})
}

// GET /exams/{name}
func (h *handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	ex, err := h.engine.Exam(r.Context(), r.PathValue("name"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      ex.Name,
		"stats":     ex.Stats(),
		"questions": ex.Questions,
	})
}

// GET /exams/{name}/review
// Streams the review workbook of an exam.
func (h *handler) handleReview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	dir, err := os.MkdirTemp("", "examparse-review-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export review")
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name+".xlsx")
	if err := h.engine.ExportReview(r.Context(), name, nil, path); err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	http.ServeFile(w, r, path)
}

// DELETE /exams/{name}
func (h *handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.engine.DeleteExam(r.Context(), name); err != nil {
		writeEngineError(w, err)
		slog.Error("server: delete failed", "exam", name, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// writeEngineError maps engine sentinels to status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, examparse.ErrExamNotFound):
		writeError(w, http.StatusNotFound, "exam not found")
	case errors.Is(err, examparse.ErrExamExists):
		writeError(w, http.StatusConflict, "exam already exists")
	case errors.Is(err, examparse.ErrInvalidExamName):
		writeError(w, http.StatusBadRequest, "invalid exam name")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	case errors.Is(err, examparse.ErrEngineClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
