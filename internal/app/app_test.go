package app_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/assetbuilder/internal/adapters/fs"
	"go.trai.ch/assetbuilder/internal/adapters/shell"
	"go.trai.ch/assetbuilder/internal/adapters/telemetry"
	"go.trai.ch/assetbuilder/internal/app"
	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/assetbuilder/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type harness struct {
	dir     string
	loader  *mocks.MockConfigLoader
	store   *mocks.MockManifestStore
	watcher *mocks.MockWatcher
	app     *app.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any(), gomock.Any()).AnyTimes()

	h := &harness{
		dir:     t.TempDir(),
		loader:  mocks.NewMockConfigLoader(ctrl),
		store:   mocks.NewMockManifestStore(ctrl),
		watcher: mocks.NewMockWatcher(ctrl),
	}
	newWatcher := func() (ports.Watcher, error) { return h.watcher, nil }
	h.app = app.New(
		h.loader,
		log,
		shell.NewRunner(log),
		fs.NewResolver(),
		fs.NewHasher(),
		h.store,
		telemetry.NewNoOpTracer(),
		newWatcher,
	).WithWorkDir(h.dir)
	return h
}

func (h *harness) settings(assets ...domain.AssetSpec) *domain.Settings {
	return &domain.Settings{
		Root:        h.dir,
		BaseURL:     "/",
		Directory:   h.dir,
		DepDirs:     []string{h.dir},
		LockPath:    filepath.Join(h.dir, domain.LockFileName),
		LockTimeout: time.Second,
		Secret:      []byte("test secret"),
		Assets:      assets,
	}
}

func (h *harness) expectLoad(s *domain.Settings) {
	h.loader.EXPECT().Load(h.dir, "").Return(s, nil)
}

func (h *harness) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
}

var jsAssets = domain.AssetSpec{
	Paths:   []string{"app.js"},
	Tags:    []string{"js"},
	Deps:    []string{"src/*.js"},
	Command: &domain.BuildCommand{Command: []string{"cat src/*.js > {abspath}"}, Shell: true, Chdir: true},
}

func TestApp_Build(t *testing.T) {
	h := newHarness(t)
	h.write(t, "src/a.js", "a();\n")
	h.expectLoad(h.settings(jsAssets))

	err := h.app.Build(context.Background(), app.BuildOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(h.dir, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "a();\n", string(data))
}

func TestApp_Build_Manifest(t *testing.T) {
	h := newHarness(t)
	h.write(t, "src/a.js", "a();\n")
	h.write(t, "site.css", "body{}")
	css := domain.AssetSpec{Paths: []string{"site.css"}, Tags: []string{"css"}}
	h.loader.EXPECT().Load(h.dir, "").Return(h.settings(jsAssets, css), nil).Times(2)

	var written domain.Manifest
	h.store.EXPECT().Get(h.dir).Return(nil, nil)
	h.store.EXPECT().Put(h.dir, gomock.Any()).DoAndReturn(func(_ string, m domain.Manifest) error {
		written = m
		return nil
	})

	require.NoError(t, h.app.Build(context.Background(), app.BuildOptions{Manifest: true}))
	assert.Equal(t, "/", written.BaseURL)
	require.Len(t, written.URLs["js"], 1)
	assert.Regexp(t, `^/app\.js\?[0-9a-f]{8}$`, written.URLs["js"][0])
	assert.Regexp(t, `^/site\.css\?[0-9a-f]{8}$`, written.Groups["css"])

	// An identical manifest is not rewritten.
	h.store.EXPECT().Get(h.dir).Return(&written, nil)
	require.NoError(t, h.app.Build(context.Background(), app.BuildOptions{Manifest: true}))
}

func TestApp_Build_Clean(t *testing.T) {
	h := newHarness(t)
	h.write(t, "src/a.js", "new\n")
	h.write(t, "app.js", "stale output")
	h.expectLoad(h.settings(jsAssets))

	require.NoError(t, h.app.Build(context.Background(), app.BuildOptions{Clean: true}))

	data, err := os.ReadFile(filepath.Join(h.dir, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
}

func TestApp_Build_ConfigError(t *testing.T) {
	h := newHarness(t)
	h.loader.EXPECT().Load(h.dir, "custom.yaml").Return(nil, domain.ErrConfigNotFound)

	err := h.app.Build(context.Background(), app.BuildOptions{Options: app.Options{ConfigPath: "custom.yaml"}})
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestApp_Build_DuplicateAsset(t *testing.T) {
	h := newHarness(t)
	h.expectLoad(h.settings(jsAssets, jsAssets))

	err := h.app.Build(context.Background(), app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrAssetAlreadyRegistered)
}

func TestApp_URLs(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.css", "a")
	h.write(t, "b.css", "b")
	css := domain.AssetSpec{Paths: []string{"a.css", "b.css"}, Tags: []string{"css"}}
	h.loader.EXPECT().Load(h.dir, "").Return(h.settings(css), nil).Times(3)
	ctx := context.Background()

	got, err := h.app.URLs(ctx, app.URLOptions{Tags: []string{"css"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Regexp(t, `^/a\.css\?[0-9a-f]{8}$`, got[0])

	got, err = h.app.URLs(ctx, app.URLOptions{Tags: []string{"css"}, Group: true, Separator: "\n"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Regexp(t, `^/@@/[^/]+/[0-9a-f]{8}$`, got[0])

	_, err = h.app.URLs(ctx, app.URLOptions{Tags: []string{"js"}})
	require.ErrorIs(t, err, domain.ErrUnknownTag)
}

func TestApp_Cat(t *testing.T) {
	h := newHarness(t)
	h.write(t, "src/a.js", "a();")
	h.write(t, "src/b.js", "b();")
	s := h.settings(jsAssets)
	s.Autobuild = false
	h.expectLoad(s)

	autobuild := true
	got, err := h.app.Cat(context.Background(), app.CatOptions{
		Options:   app.Options{Autobuild: &autobuild},
		Tags:      []string{"js"},
		Separator: "\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "a();b();", got)
}

func emptyEvents() iter.Seq[ports.WatchEvent] {
	return func(func(ports.WatchEvent) bool) {}
}

func serveInBackground(t *testing.T, h *harness, opts app.ServeOptions) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)

	opts.Listen = "127.0.0.1:0"
	opts.Ready = func(addr string) { ready <- addr }
	go func() { done <- h.app.Serve(ctx, opts) }()

	select {
	case addr := <-ready:
		return addr, cancel, done
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}
	return "", cancel, done
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApp_Serve(t *testing.T) {
	h := newHarness(t)
	h.write(t, "src/a.js", "a();\n")
	s := h.settings(jsAssets)
	s.Autobuild = true
	s.BaseURL = "/static/"
	h.expectLoad(s)

	addr, cancel, done := serveInBackground(t, h, app.ServeOptions{})

	status, body := get(t, "http://"+addr+"/static/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a();\n", body)

	status, _ = get(t, "http://"+addr+"/app.js")
	assert.Equal(t, http.StatusNotFound, status)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestApp_Serve_Watch(t *testing.T) {
	h := newHarness(t)
	s := h.settings()
	s.Watch = true
	h.expectLoad(s)

	h.watcher.EXPECT().Start(gomock.Any(), h.dir).Return(nil)
	h.watcher.EXPECT().Events().Return(emptyEvents())
	h.watcher.EXPECT().Stop().Return(nil)

	_, cancel, done := serveInBackground(t, h, app.ServeOptions{})
	cancel()
	require.NoError(t, <-done)
}

func TestApp_Serve_WatchStartFails(t *testing.T) {
	h := newHarness(t)
	s := h.settings()
	s.Watch = true
	h.expectLoad(s)

	startErr := errors.New("too many open files")
	h.watcher.EXPECT().Start(gomock.Any(), h.dir).Return(startErr)
	h.watcher.EXPECT().Stop().Return(nil)

	err := h.app.Serve(context.Background(), app.ServeOptions{Listen: "127.0.0.1:0"})
	require.ErrorIs(t, err, startErr)
}

func TestApp_Serve_ListenFails(t *testing.T) {
	h := newHarness(t)
	h.expectLoad(h.settings())

	err := h.app.Serve(context.Background(), app.ServeOptions{Listen: "127.0.0.1:-1"})
	require.ErrorIs(t, err, domain.ErrServerFailed)
}
