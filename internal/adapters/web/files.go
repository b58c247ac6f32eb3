package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/assetbuilder/internal/core/domain"
)

const defaultContentType = "application/octet-stream"

// ServeFiles writes the files at paths as one response body, joined by
// separator. Conditional GETs are answered from the newest mtime. With
// immutable set, the response may be cached forever.
//
// The returned error reports a failed body write; every other outcome is
// written to w.
func ServeFiles(w http.ResponseWriter, r *http.Request, paths []string, separator string, immutable bool) error {
	if len(paths) == 0 {
		http.Error(w, "not found.", http.StatusNotFound)
		return nil
	}

	var lastModified time.Time
	var size int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			http.Error(w, "not found.", http.StatusNotFound)
			return nil
		}
		if mtime := info.ModTime(); mtime.After(lastModified) {
			lastModified = mtime
		}
		size += info.Size()
	}
	lastModified = lastModified.Truncate(time.Second)

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		since, err := http.ParseTime(ims)
		if err != nil {
			http.Error(w, "invalid if-modified-since value", http.StatusBadRequest)
			return nil
		}
		if !lastModified.After(since) {
			w.WriteHeader(http.StatusNotModified)
			return nil
		}
	}
	size += int64(len(paths)-1) * int64(len(separator))

	body, err := openFiles(paths, separator)
	if err != nil {
		http.Error(w, "access denied.", http.StatusForbidden)
		return nil
	}
	defer func() { _ = body.Close() }()

	h := w.Header()
	h.Set("Content-Type", contentType(paths[0]))
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	h.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	h.Set("Expires", domain.FarFutureExpires)
	if immutable {
		h.Set("Cache-Control", domain.ImmutableCacheControl)
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}
	_, err = io.Copy(w, body)
	return err
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return defaultContentType
}

// multiFile reads a list of open files in order with a separator between
// them. Close closes every file.
type multiFile struct {
	io.Reader
	files []*os.File
}

// openFiles opens every path. On failure the files opened so far are closed.
func openFiles(paths []string, separator string) (*multiFile, error) {
	files := make([]*os.File, 0, len(paths))
	readers := make([]io.Reader, 0, 2*len(paths))
	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			return nil, err
		}
		if i > 0 && separator != "" {
			readers = append(readers, strings.NewReader(separator))
		}
		files = append(files, f)
		readers = append(readers, f)
	}
	return &multiFile{Reader: io.MultiReader(readers...), files: files}, nil
}

func (m *multiFile) Close() error {
	errs := make([]error, 0, len(m.files))
	for _, f := range m.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
