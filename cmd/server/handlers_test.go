package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/examparse"
	"github.com/brunobiangulo/examparse/exam"
	"github.com/brunobiangulo/examparse/merge"
	"github.com/brunobiangulo/examparse/pipeline"
)

// fakeEngine records the documents it is given.
type fakeEngine struct {
	exams map[string]exam.Exam
	seen  []string // base names of the last run's documents
}

func (f *fakeEngine) Parse(ctx context.Context, paths []string) ([]pipeline.Result, error) {
	return nil, nil
}

func (f *fakeEngine) Create(ctx context.Context, name string, paths []string) (*merge.Report, error) {
	if _, ok := f.exams[name]; ok {
		return nil, fmt.Errorf("%w: %s", examparse.ErrExamExists, name)
	}
	return f.Append(ctx, name, paths)
}

func (f *fakeEngine) Append(ctx context.Context, name string, paths []string) (*merge.Report, error) {
	f.seen = nil
	rep := &merge.Report{RunID: "run", Exam: name}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, err
		}
		f.seen = append(f.seen, filepath.Base(p))
		rep.Documents = append(rep.Documents, merge.DocumentReport{Document: filepath.Base(p), Questions: 1})
	}
	f.exams[name] = exam.Exam{Name: name, Questions: []exam.Record{}}
	return rep, nil
}

func (f *fakeEngine) Exam(ctx context.Context, name string) (exam.Exam, error) {
	e, ok := f.exams[name]
	if !ok {
		return exam.Exam{}, examparse.ErrExamNotFound
	}
	return e, nil
}

func (f *fakeEngine) ListExams(ctx context.Context) ([]examparse.ExamInfo, error) {
	var out []examparse.ExamInfo
	for n, e := range f.exams {
		out = append(out, examparse.ExamInfo{Name: n, Stats: e.Stats()})
	}
	return out, nil
}

func (f *fakeEngine) DeleteExam(ctx context.Context, name string) error {
	if _, ok := f.exams[name]; !ok {
		return examparse.ErrExamNotFound
	}
	delete(f.exams, name)
	return nil
}

func (f *fakeEngine) ExportReview(ctx context.Context, name string, report *merge.Report, path string) error {
	if _, ok := f.exams[name]; !ok {
		return examparse.ErrExamNotFound
	}
	return os.WriteFile(path, []byte("xlsx"), 0o644)
}

func (f *fakeEngine) Close() error { return nil }

func newTestServer(t *testing.T, apiKey string) (*httptest.Server, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{exams: map[string]exam.Exam{}}
	h := newHandler(eng)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /exams/{name}", h.handleCreate)
	mux.HandleFunc("POST /exams/{name}/append", h.handleAppend)
	mux.HandleFunc("GET /exams", h.handleListExams)
	mux.HandleFunc("GET /exams/{name}", h.handleGetExam)
	mux.HandleFunc("GET /exams/{name}/review", h.handleReview)
	mux.HandleFunc("DELETE /exams/{name}", h.handleDeleteExam)
	mux.HandleFunc("GET /health", h.handleHealth)
	srv := httptest.NewServer(recoveryMiddleware(authMiddleware(apiKey, logMiddleware(mux))))
	t.Cleanup(srv.Close)
	return srv, eng
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestCreateWithPaths(t *testing.T) {
	srv, eng := newTestServer(t, "")
	doc := filepath.Join(t.TempDir(), "Part1.pdf")
	os.WriteFile(doc, []byte("%PDF"), 0o644)

	resp := postJSON(t, srv.URL+"/exams/az-900", map[string]any{"paths": []string{doc}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var rep merge.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.Exam != "az-900" || len(rep.Documents) != 1 {
		t.Errorf("report = %+v", rep)
	}

	again := postJSON(t, srv.URL+"/exams/az-900", map[string]any{"paths": []string{doc}})
	again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Errorf("second create status = %d, want 409", again.StatusCode)
	}
	if len(eng.exams) != 1 {
		t.Errorf("exams = %v", eng.exams)
	}
}

func TestAppendUpload(t *testing.T) {
	srv, eng := newTestServer(t, "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range []string{"Part1.pdf", "../../Part2.pdf"} {
		fw, _ := mw.CreateFormFile("file", name)
		fw.Write([]byte("%PDF"))
	}
	mw.Close()

	resp, err := http.Post(srv.URL+"/exams/az/append", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if fmt.Sprint(eng.seen) != "[Part1.pdf Part2.pdf]" {
		t.Errorf("documents = %v, want base names kept", eng.seen)
	}
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, "")
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing file", map[string]any{"paths": []string{"/does/not/exist.pdf"}}, http.StatusBadRequest},
		{"directory", map[string]any{"paths": []string{t.TempDir()}}, http.StatusBadRequest},
		{"not json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/exams/az/append", tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestExamNotFound(t *testing.T) {
	srv, _ := newTestServer(t, "")
	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/exams/missing"},
		{http.MethodGet, "/exams/missing/review"},
		{http.MethodDelete, "/exams/missing"},
	} {
		r, _ := http.NewRequest(req.method, srv.URL+req.path, nil)
		resp, err := http.DefaultClient.Do(r)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s %s status = %d", req.method, req.path, resp.StatusCode)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	tests := []struct {
		name   string
		path   string
		header [2]string
		status int
	}{
		{"health is open", "/health", [2]string{}, http.StatusOK},
		{"no key", "/exams", [2]string{}, http.StatusUnauthorized},
		{"bearer", "/exams", [2]string{"Authorization", "Bearer secret"}, http.StatusOK},
		{"api key header", "/exams", [2]string{"X-API-Key", "secret"}, http.StatusOK},
		{"wrong key", "/exams", [2]string{"Authorization", "Bearer nope"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, srv.URL+tt.path, nil)
			if tt.header[0] != "" {
				r.Header.Set(tt.header[0], tt.header[1])
			}
			resp, err := http.DefaultClient.Do(r)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}
