package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.trai.ch/assetbuilder/internal/adapters/telemetry"
	"go.trai.ch/assetbuilder/internal/adapters/watcher"
	"go.trai.ch/assetbuilder/internal/adapters/web"
	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/engine/registry"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// ServeOptions configuration for the Serve method.
type ServeOptions struct {
	Options
	// Listen is the TCP address to listen on.
	Listen string
	// Ready is called with the bound address once connections are accepted.
	Ready func(addr string)
}

// Serve runs the asset HTTP server until ctx is done, then shuts it down
// gracefully. With watch enabled, dependency directory changes invalidate
// the memoized dependency sets.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	tp := telemetry.Setup(a.logger)
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	ws, err := a.open(opts.Options)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if ws.settings.Watch {
		if err := a.watch(ctx, g, ws.registry); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}

	addr := opts.Listen
	if addr == "" {
		addr = domain.DefaultListenAddr
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		cancel()
		_ = g.Wait()
		return zerr.With(zerr.Wrap(domain.ErrServerFailed, err.Error()), "addr", addr)
	}

	handler := web.NewHandler(ws.registry, ws.signer, a.tracer, a.logger)
	srv := &http.Server{
		Handler:           mount(ws.settings.BaseURL, handler),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return zerr.Wrap(domain.ErrServerFailed, err.Error())
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	a.logger.Info("serving assets",
		"addr", ln.Addr().String(),
		"baseurl", ws.settings.BaseURL,
		"autobuild", ws.settings.Autobuild,
		"assets", len(ws.registry.Assets()))
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	return g.Wait()
}

func (a *App) watch(ctx context.Context, g *errgroup.Group, reg *registry.Registry) error {
	w, err := a.newWatcher()
	if err != nil {
		return err
	}
	if err := w.Start(ctx, reg.DepDirs()...); err != nil {
		_ = w.Stop()
		return err
	}

	d := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		a.logger.Debug("dependency directories changed", "paths", len(paths))
		reg.InvalidateDependencies()
	})

	g.Go(func() error {
		watcher.Forward(ctx, w, d)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return w.Stop()
	})
	return nil
}

// mount serves h under the path of baseURL with that prefix stripped.
func mount(baseURL string, h http.Handler) http.Handler {
	prefix := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		prefix = u.Path
	}
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		return h
	}

	mux := http.NewServeMux()
	mux.Handle(prefix+"/", http.StripPrefix(prefix, h))
	return mux
}
