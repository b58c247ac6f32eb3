package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/assetbuilder/internal/adapters/fs"
	"go.trai.ch/assetbuilder/internal/adapters/lock"
	"go.trai.ch/assetbuilder/internal/adapters/shell"
	"go.trai.ch/assetbuilder/internal/adapters/signer"
	"go.trai.ch/assetbuilder/internal/adapters/telemetry"
	"go.trai.ch/assetbuilder/internal/adapters/web"
	"go.trai.ch/assetbuilder/internal/core/domain"
	"go.trai.ch/assetbuilder/internal/core/ports"
	"go.trai.ch/assetbuilder/internal/core/ports/mocks"
	"go.trai.ch/assetbuilder/internal/engine/registry"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

type countingRunner struct {
	ports.Runner
	calls atomic.Int32
}

func (c *countingRunner) Run(ctx context.Context, cmd *domain.BuildCommand, dir string) (int, error) {
	c.calls.Add(1)
	return c.Runner.Run(ctx, cmd, dir)
}

func quietLogger(t *testing.T) *mocks.MockLogger {
	t.Helper()
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any(), gomock.Any()).AnyTimes()
	return log
}

type server struct {
	dir     string
	reg     *registry.Registry
	runner  *countingRunner
	signer  *signer.Signer
	handler *web.Handler
}

func newServer(t *testing.T, autobuild bool, tracer ports.Tracer) *server {
	t.Helper()
	dir := t.TempDir()
	log := quietLogger(t)
	runner := &countingRunner{Runner: shell.NewRunner(log)}
	reg := registry.New(
		runner,
		fs.NewResolver(),
		fs.NewHasher(),
		lock.NewFileLocker(filepath.Join(dir, domain.LockFileName), 5*time.Second, lock.WithRetryDelay(time.Millisecond)),
		telemetry.NewNoOpTracer(),
		log,
		registry.Options{Directory: dir, Autobuild: autobuild, WorkDir: dir},
	)
	if tracer == nil {
		tracer = telemetry.NewNoOpTracer()
	}
	s := signer.New([]byte("test secret"), nil)
	return &server{
		dir:     dir,
		reg:     reg,
		runner:  runner,
		signer:  s,
		handler: web.NewHandler(reg, s, tracer, log),
	}
}

func (s *server) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (s *server) token(t *testing.T, vpaths ...string) string {
	t.Helper()
	token, err := s.reg.Token(context.Background(), vpaths...)
	require.NoError(t, err)
	return token
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	s := newServer(t, false, nil)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/app.js", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestHandler_SingleAsset(t *testing.T) {
	s := newServer(t, false, nil)
	writeFile(t, s.dir, "css/site.css", "body{}")
	require.NoError(t, s.reg.AddPath([]string{"css"}, "css/site.css", nil, nil))
	token := s.token(t, "css/site.css")

	rec := s.get(t, "/css/site.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Cache-Control"))

	rec = s.get(t, "/css/site.css?"+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ImmutableCacheControl, rec.Header().Get("Cache-Control"))

	rec = s.get(t, "/css/site.css?00000000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestHandler_RegisteredButMissing(t *testing.T) {
	s := newServer(t, false, nil)
	require.NoError(t, s.reg.AddPath(nil, "gone.js", nil, nil))

	rec := s.get(t, "/gone.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Group(t *testing.T) {
	s := newServer(t, false, nil)
	writeFile(t, s.dir, "a.js", "A")
	writeFile(t, s.dir, "b.js", "B")
	require.NoError(t, s.reg.AddPaths([]string{"js"}, []string{"a.js", "b.js"}, nil, nil))

	signed, err := s.signer.Sign(domain.AssetGroup{Paths: []string{"a.js", "b.js"}, Separator: "\n"})
	require.NoError(t, err)
	token := s.token(t, "a.js", "b.js")

	rec := s.get(t, "/"+domain.GroupPrefix+signed+"/"+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A\nB", rec.Body.String())
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, domain.ImmutableCacheControl, rec.Header().Get("Cache-Control"))

	rec = s.get(t, "/"+domain.GroupPrefix+signed+"/stale")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestHandler_GroupWithStaticMember(t *testing.T) {
	s := newServer(t, false, nil)
	writeFile(t, s.dir, "a.js", "A")
	writeFile(t, s.dir, "vendor.js", "V")
	require.NoError(t, s.reg.AddPath(nil, "a.js", nil, nil))

	signed, err := s.signer.Sign(domain.AssetGroup{Paths: []string{"a.js", "vendor.js"}, Separator: ";"})
	require.NoError(t, err)

	rec := s.get(t, "/"+domain.GroupPrefix+signed+"/anything")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A;V", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestHandler_TamperedGroupToken(t *testing.T) {
	s := newServer(t, false, nil)
	writeFile(t, s.dir, "a.js", "A")
	require.NoError(t, s.reg.AddPath(nil, "a.js", nil, nil))

	signed, err := s.signer.Sign(domain.AssetGroup{Paths: []string{"a.js"}, Separator: "\n"})
	require.NoError(t, err)
	tampered := signed[:len(signed)-2] + "xx"

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "tampered", target: "/" + domain.GroupPrefix + tampered + "/abc", status: http.StatusBadRequest},
		{name: "garbage", target: "/" + domain.GroupPrefix + "garbage/abc", status: http.StatusBadRequest},
		{name: "other secret", target: "/" + domain.GroupPrefix + otherSecretToken(t) + "/abc", status: http.StatusBadRequest},
		{name: "no cachebuster", target: "/" + domain.GroupPrefix + signed, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.get(t, tt.target)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func otherSecretToken(t *testing.T) string {
	t.Helper()
	token, err := signer.New([]byte("another secret"), nil).Sign(domain.AssetGroup{Paths: []string{"a.js"}})
	require.NoError(t, err)
	return token
}

func TestHandler_StaticFallthrough(t *testing.T) {
	s := newServer(t, true, nil)
	writeFile(t, s.dir, "robots.txt", "User-agent: *")
	outside := filepath.Join(filepath.Dir(s.dir), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), domain.FilePerm))
	t.Cleanup(func() { _ = os.Remove(outside) })

	rec := s.get(t, "/robots.txt?deadbeef")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User-agent: *", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Cache-Control"))

	for _, target := range []string{"/missing.txt", "/", "/../secret.txt", "/%2e%2e/secret.txt"} {
		rec := s.get(t, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestHandler_Update(t *testing.T) {
	s := newServer(t, true, nil)
	require.NoError(t, s.reg.AddPath(nil, "gen.txt", nil, domain.NewShellCommand("echo generated > {abspath}")))

	rec := s.get(t, "/update")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int32(1), s.runner.calls.Load())

	rec = s.get(t, "/update?clean")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int32(2), s.runner.calls.Load(), "clean removes outputs before rebuilding")
}

func TestHandler_UpdateRequiresAutobuild(t *testing.T) {
	s := newServer(t, false, nil)
	require.NoError(t, s.reg.AddPath(nil, "gen.txt", nil, domain.NewShellCommand("echo generated > {abspath}")))

	rec := s.get(t, "/update")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int32(0), s.runner.calls.Load())
}

// stubAssets fails every rebuild with err.
type stubAssets struct {
	web.Assets
	err error
}

func (s stubAssets) Autobuild() bool { return true }

func (s stubAssets) RebuildAll(context.Context, bool) error { return s.err }

func TestHandler_UpdateFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "lock busy", err: zerr.Wrap(domain.ErrLockTimeout, "build lock busy"), status: http.StatusServiceUnavailable},
		{name: "rebuild all command", err: zerr.Wrap(domain.ErrRebuildAllFailed, ""), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := web.NewHandler(stubAssets{err: tt.err}, signer.New([]byte("s"), nil), telemetry.NewNoOpTracer(), quietLogger(t))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/update", nil))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHandler_ServeSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := newServer(t, false, telemetry.NewOTelTracerWithProvider(tp, "test"))
	s.get(t, "/missing.js")

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "serve", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("path", "/missing.js"))
	assert.Contains(t, ended[0].Attributes(), attribute.Int("status", http.StatusNotFound))
}

// TestHandler_AppScenario walks an asset built by concatenating src/*.js
// through build, self-healing and content change.
func TestHandler_AppScenario(t *testing.T) {
	s := newServer(t, true, nil)
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	srcA := writeFile(t, s.dir, "src/a.js", "a();\n")
	srcB := writeFile(t, s.dir, "src/b.js", "b();\n")
	for _, p := range []string{srcA, srcB} {
		require.NoError(t, os.Chtimes(p, past, past))
	}

	cmd := domain.NewShellCommand("cat src/*.js > {abspath}.tmp && " +
		"if cmp -s {abspath}.tmp {abspath}; then rm {abspath}.tmp; else mv {abspath}.tmp {abspath}; fi")
	cmd.Chdir = true
	require.NoError(t, s.reg.AddPath([]string{"js"}, "app.js", []string{"src/*.js"}, cmd))
	output := filepath.Join(s.dir, "app.js")

	// Initially absent: the request builds it.
	rec := s.get(t, "/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a();\nb();\n", rec.Body.String())
	assert.Equal(t, int32(1), s.runner.calls.Load())
	require.NoError(t, os.Chtimes(output, past.Add(time.Minute), past.Add(time.Minute)))
	t1 := s.token(t, "app.js")

	// Touching a.js without changing it: rebuilt once, output untouched.
	require.NoError(t, os.Chtimes(srcA, past.Add(2*time.Minute), past.Add(2*time.Minute)))
	rec = s.get(t, "/app.js?"+t1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(2), s.runner.calls.Load())
	assert.Equal(t, []string{srcA}, s.reg.NegativeDependencies("app.js"))
	assert.Equal(t, t1, s.token(t, "app.js"))
	assert.Equal(t, domain.ImmutableCacheControl, rec.Header().Get("Cache-Control"))

	// a.js is now a negative dependency; editing b.js changes the output.
	require.NoError(t, os.WriteFile(srcB, []byte("b(2);\n"), domain.FilePerm))
	require.NoError(t, os.Chtimes(srcB, past.Add(3*time.Minute), past.Add(3*time.Minute)))
	rec = s.get(t, "/app.js?"+t1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a();\nb(2);\n", rec.Body.String())
	assert.Equal(t, int32(3), s.runner.calls.Load())
	assert.Empty(t, rec.Header().Get("Cache-Control"), "old token no longer matches")

	t2 := s.token(t, "app.js")
	assert.NotEqual(t, t1, t2)

	rec = s.get(t, "/app.js?"+t2)
	assert.Equal(t, domain.ImmutableCacheControl, rec.Header().Get("Cache-Control"))
	assert.Equal(t, int32(3), s.runner.calls.Load())
}
