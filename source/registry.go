package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

type Registry struct {
	sources map[string]Source
}

func NewRegistry() *Registry {
	r := &Registry{sources: make(map[string]Source)}
	// Register built-in sources
	for _, s := range []Source{&PDFSource{}, &TextSource{}} {
		for _, f := range s.SupportedFormats() {
			r.sources[f] = s
		}
	}
	return r
}

func (r *Registry) Get(format string) (Source, error) {
	s, ok := r.sources[format]
	if !ok {
		return nil, fmt.Errorf("no source for format: %s", format)
	}
	return s, nil
}

func (r *Registry) Register(format string, s Source) {
	r.sources[format] = s
}

// FormatOf returns the lower-cased extension of path without the dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Open decodes path with the source registered for its extension.
func (r *Registry) Open(ctx context.Context, path string) (Document, error) {
	s, err := r.Get(FormatOf(path))
	if err != nil {
		return Document{}, err
	}
	pages, err := s.Pages(ctx, path)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: filepath.Base(path), Path: path, Pages: pages}, nil
}
