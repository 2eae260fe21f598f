// Package web provides HTTP handlers for the script generator.
// This file contains request parsing shared by the form and API handlers.
package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sqlscript/internal/core"
	"github.com/JonMunkholm/sqlscript/internal/web/templates"
)

// multipartMemory is how much of a multipart body is held in memory before
// the rest spills to temporary files.
const multipartMemory = 32 << 20

var (
	errFileTooLarge = errors.New("file too large")
	errBadForm      = errors.New("invalid form")
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseConvertRequest reads the multipart fields table_name, columns, mode,
// batch_size, output_name and file. The returned form echoes what the user
// typed so the page can be re-rendered on error. cleanup is never nil and
// must be called once the request has been converted.
func (s *Server) parseConvertRequest(w http.ResponseWriter, r *http.Request) (core.Request, templates.FormData, func(), error) {
	cleanup := func() {}
	form := s.defaultForm()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "too large") {
			return core.Request{}, form, cleanup, fmt.Errorf("%w: %v", errFileTooLarge, err)
		}
		return core.Request{}, form, cleanup, fmt.Errorf("%w: %v", errBadForm, err)
	}

	form.TableName = r.FormValue("table_name")
	form.Columns = r.FormValue("columns")
	if v := r.FormValue("mode"); v != "" {
		form.Mode = v
	}
	if v := r.FormValue("batch_size"); v != "" {
		form.BatchSize = v
	}

	req := core.Request{
		TableName:  form.TableName,
		Columns:    core.ParseColumns(form.Columns),
		OutputName: strings.TrimSpace(r.FormValue("output_name")),
	}

	if v := r.FormValue("mode"); v != "" {
		mode, err := core.ParseMode(v)
		if err != nil {
			return core.Request{}, form, cleanup, err
		}
		req.Mode = mode
	}

	if v := strings.TrimSpace(r.FormValue("batch_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return core.Request{}, form, cleanup, fmt.Errorf("%w (got %q)", core.ErrInvalidBatchSize, v)
		}
		req.BatchSize = n
	}

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		if file != nil {
			file.Close()
		}
		return core.Request{}, form, cleanup, errNoFile
	}
	req.FileName = filepath.Base(header.Filename)

	if s.cfg.Upload.Dir == "" {
		req.Source = file
		return req, form, func() { file.Close() }, nil
	}

	spooled, err := spool(file, s.cfg.Upload.Dir, req.FileName)
	file.Close()
	if err != nil {
		return core.Request{}, form, cleanup, err
	}
	req.Source = spooled
	return req, form, func() {
		spooled.Close()
		os.Remove(spooled.Name())
	}, nil
}

// spool copies an upload into dir so the conversion reads from local disk.
func spool(src io.Reader, dir, fileName string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(fileName))
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	return f, nil
}
