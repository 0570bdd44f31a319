package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/profile"
)

// multipartMemory is how much of a multipart body is kept in memory before
// file parts spill to temporary files.
const multipartMemory = 32 << 20

// acceptedExtensions are the file name suffixes taken as CSV input. Parts
// without an extension are accepted too.
var acceptedExtensions = map[string]bool{".csv": true, ".txt": true, ".tsv": true}

// handleMerge merges the uploaded files and returns the result as a CSV
// attachment.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := s.parseMergeRequest(w, r)
	defer cleanup()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	result, err := s.service.Merge(WithRequestMetadata(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := s.service.WriteCSV(&buf, result); err != nil {
		s.respondError(w, r, fmt.Errorf("encode merged csv: %w", err), http.StatusInternalServerError)
		return
	}

	name := outputName(r.FormValue("output_name"), s.cfg.Merge.OutputName)
	h := w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	h.Set("X-Merge-Run-ID", result.RunID.String())
	h.Set("X-Merge-Rows", strconv.Itoa(len(result.Records)))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("write merged csv", "run_id", result.RunID, "error", err)
	}
}

// handleMergePreview runs the same merge and returns a JSON summary with the
// first rows.
func (s *Server) handleMergePreview(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := s.parseMergeRequest(w, r)
	defer cleanup()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	preview, err := s.service.Preview(WithRequestMetadata(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("X-Merge-Run-ID", preview.RunID.String())
	writeJSON(w, http.StatusOK, preview)
}

// parseMergeRequest reads the multipart form. Files come from the "files"
// parts in the order they were sent. The returned cleanup closes the files
// and removes any temporary files; it is safe to call on error.
func (s *Server) parseMergeRequest(w http.ResponseWriter, r *http.Request) (core.MergeRequest, func(), error) {
	var (
		req   core.MergeRequest
		files []multipart.File
	)
	cleanup := func() {
		for _, f := range files {
			_ = f.Close()
		}
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxTotalSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, cleanup, fmt.Errorf("%w: limit %d bytes", core.ErrRequestTooLarge, tooLarge.Limit)
		}
		return req, cleanup, fmt.Errorf("%w: %w", core.ErrBadForm, err)
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return req, cleanup, core.ErrNoSources
	}

	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if ext := strings.ToLower(filepath.Ext(name)); ext != "" && !acceptedExtensions[ext] {
			return req, cleanup, fmt.Errorf("%s: %w", name, core.ErrNotCSV)
		}
		if fh.Size == 0 {
			return req, cleanup, fmt.Errorf("%s: %w", name, core.ErrEmptyFile)
		}
		if limit := s.cfg.Upload.MaxFileSize; limit > 0 && fh.Size > limit {
			return req, cleanup, fmt.Errorf("%s: %w (%d bytes, limit %d)", name, core.ErrFileTooLarge, fh.Size, limit)
		}

		f, err := fh.Open()
		if err != nil {
			return req, cleanup, fmt.Errorf("%s: %w: %w", name, core.ErrUnreadableFile, err)
		}
		files = append(files, f)
		req.Sources = append(req.Sources, core.NamedSource{Name: name, Reader: f})
	}

	overrides, err := parseOverrides(r)
	if err != nil {
		return req, cleanup, err
	}
	req.Profile = strings.TrimSpace(r.FormValue("profile"))
	req.Overrides = overrides
	return req, cleanup, nil
}

// parseOverrides reads the optional per-run settings from the form.
func parseOverrides(r *http.Request) (profile.Overrides, error) {
	field := func(name string) string { return strings.TrimSpace(r.FormValue(name)) }

	o := profile.Overrides{
		KeyColumn:     field("key_column"),
		MalformedRows: field("malformed_rows"),
		Delimiter:     r.FormValue("delimiter"),
		Quote:         r.FormValue("quote"),
		LineEnding:    field("line_ending"),
		KeyContains:   r.FormValue("key_contains"),
	}

	if v := field("no_filter"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "on", "yes":
			o.NoFilter = true
		case "0", "false", "off", "no":
		default:
			return o, fmt.Errorf("%w: no_filter %q must be true or false", core.ErrInvalidOptions, v)
		}
	}

	if col := field("min_length_column"); col != "" {
		length := 0
		if v := field("min_length"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return o, fmt.Errorf("%w: min_length %q must be a non-negative integer", core.ErrInvalidOptions, v)
			}
			length = n
		}
		o.MinLength = &profile.MinLength{Column: col, Length: length}
	}
	return o, nil
}

// outputName sanitizes a requested download name, falling back to def.
func outputName(requested, def string) string {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(requested, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = def
	}
	if name == "" {
		name = "merged.csv"
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		name += ".csv"
	}
	return name
}
