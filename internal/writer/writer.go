// Package writer persists harvested records.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-scripts/harvest/internal/types"
)

// Sink receives the final record sequence of one site.
type Sink interface {
	Write(ctx context.Context, site string, records []types.Record) error
	Close() error
}

// FileWriter writes each site's records as a JSON array.
type FileWriter struct {
	outputDir string
	file      string
}

// New creates a FileWriter that writes <outputDir>/<site>.json.
func New(outputDir string) (*FileWriter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileWriter{outputDir: outputDir}, nil
}

// NewFile creates a FileWriter that writes every site to path. Meant for
// single-site runs.
func NewFile(path string) (*FileWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileWriter{outputDir: dir, file: path}, nil
}

// Path is the file site's records are written to.
func (w *FileWriter) Path(site string) string {
	if w.file != "" {
		return w.file
	}
	return filepath.Join(w.outputDir, sanitizeFilename(site)+".json")
}

// Write replaces the site's file atomically.
func (w *FileWriter) Write(_ context.Context, site string, records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	path := w.Path(site)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".harvest-*.json")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(records); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func (w *FileWriter) Close() error { return nil }

// sanitizeFilename creates a safe filename from a site name
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	for _, char := range unsafe {
		name = strings.ReplaceAll(name, char, "_")
	}
	if name == "" {
		return "site"
	}
	return name
}

type multi []Sink

// Multi fans writes out to every sink. All sinks are attempted; their
// errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Write(ctx context.Context, site string, records []types.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, site, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
