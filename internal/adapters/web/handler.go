// Package web serves registered assets and signed asset groups over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
)

// Assets is the part of the asset registry the handler serves from.
type Assets interface {
	Lookup(vpath string) (*domain.Asset, bool)
	Directory() string
	Autobuild() bool
	EnsureUpToDate(ctx context.Context, vpath string) error
	Token(ctx context.Context, vpaths ...string) (string, error)
	RebuildAll(ctx context.Context, clean bool) error
}

// Handler is an http.Handler for assets. It is meant to be mounted at the
// configured base URL with the prefix stripped.
type Handler struct {
	assets Assets
	signer ports.Signer
	tracer ports.Tracer
	logger ports.Logger
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a new Handler.
func NewHandler(assets Assets, signer ports.Signer, tracer ports.Tracer, logger ports.Logger) *Handler {
	return &Handler{
		assets: assets,
		signer: signer,
		tracer: tracer,
		logger: logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "serve", ports.WithAttribute("path", r.URL.Path))
	defer span.End()

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.serve(rec, r.WithContext(ctx))
	span.SetAttribute("status", rec.status)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	reqPath := strings.TrimPrefix(r.URL.Path, "/")
	if strings.Trim(reqPath, "/") == domain.UpdatePath && h.assets.Autobuild() {
		h.update(w, r)
		return
	}

	var requested []string
	var separator, cachebuster string
	if rest, ok := strings.CutPrefix(reqPath, domain.GroupPrefix); ok {
		signed, token, found := strings.Cut(rest, "/")
		if !found {
			http.Error(w, "not found.", http.StatusNotFound)
			return
		}
		group, err := h.signer.Verify(signed)
		if err != nil {
			h.logger.Warn("rejected asset group token", "error", err.Error())
			http.Error(w, "invalid group token.", http.StatusBadRequest)
			return
		}
		requested, separator, cachebuster = group.Paths, group.Separator, token
	} else {
		requested, cachebuster = []string{reqPath}, r.URL.RawQuery
	}

	ctx := r.Context()
	paths, registered, ok := h.resolve(ctx, requested)
	if !ok {
		http.Error(w, "not found.", http.StatusNotFound)
		return
	}

	immutable := registered && cachebuster != "" && h.tokenMatches(ctx, requested, cachebuster)
	if err := ServeFiles(w, r, paths, separator, immutable); err != nil {
		h.logger.Debug("response body not fully written", "path", r.URL.Path, "error", err.Error())
	}
}

// update rebuilds every asset. A busy build lock yields 503.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	clean := strings.EqualFold(r.URL.RawQuery, "clean")
	if err := h.assets.RebuildAll(r.Context(), clean); err != nil {
		h.logger.Error(err)
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrLockTimeout) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolve maps requested virtual paths to files. Registered assets are
// brought up to date with autobuild; other paths fall through to static
// files under the asset directory. registered reports whether every path
// was a registered asset.
func (h *Handler) resolve(ctx context.Context, requested []string) (paths []string, registered, ok bool) {
	registered = true
	paths = make([]string, 0, len(requested))
	for _, vpath := range requested {
		if asset, found := h.assets.Lookup(vpath); found {
			if h.assets.Autobuild() {
				if err := h.assets.EnsureUpToDate(ctx, vpath); err != nil {
					h.logger.Error(err)
				}
			}
			paths = append(paths, asset.Path)
			continue
		}

		registered = false
		p, found := h.staticFile(vpath)
		if !found {
			return nil, false, false
		}
		paths = append(paths, p)
	}
	return paths, registered, true
}

// staticFile returns the regular file at vpath under the asset directory.
func (h *Handler) staticFile(vpath string) (string, bool) {
	rel := filepath.FromSlash(strings.TrimPrefix(path.Clean("/"+vpath), "/"))
	if !filepath.IsLocal(rel) {
		return "", false
	}
	p := filepath.Join(h.assets.Directory(), rel)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

func (h *Handler) tokenMatches(ctx context.Context, vpaths []string, cachebuster string) bool {
	token, err := h.assets.Token(ctx, vpaths...)
	if err != nil {
		h.logger.Debug("cache-buster unavailable", "error", err.Error())
		return false
	}
	return token == cachebuster
}

// statusRecorder captures the response status for the serve span.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
