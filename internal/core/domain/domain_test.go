package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/assetbuilder/internal/core/domain"
)

func TestBuildCommand_Expand(t *testing.T) {
	vars := map[string]string{
		domain.VarAbsPath: "/srv/static/app.js",
		domain.VarPath:    "static/app.js",
		domain.VarDir:     "/srv/static",
	}

	tests := []struct {
		name string
		cmd  *domain.BuildCommand
		want []string
	}{
		{
			name: "shell string",
			cmd:  domain.NewShellCommand("cat {dir}/src/*.js > {abspath}"),
			want: []string{"cat /srv/static/src/*.js > /srv/static/app.js"},
		},
		{
			name: "argv",
			cmd:  domain.NewArgvCommand("esbuild", "--outfile={path}", "{dir}/main.ts"),
			want: []string{"esbuild", "--outfile=static/app.js", "/srv/static/main.ts"},
		},
		{
			name: "escaped braces",
			cmd:  domain.NewShellCommand("awk '{{print}}' {path}"),
			want: []string{"awk '{print}' static/app.js"},
		},
		{
			name: "unknown placeholder kept",
			cmd:  domain.NewShellCommand("echo {other}"),
			want: []string{"echo {other}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cmd.Expand(vars)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Command)
			assert.Equal(t, tt.cmd.Shell, got.Shell)
		})
	}
}

func TestBuildCommand_ExpandDoesNotMutate(t *testing.T) {
	cmd := &domain.BuildCommand{
		Command: []string{"make {path}"},
		Shell:   true,
		Env:     map[string]string{"A": "1"},
	}

	got := cmd.Expand(map[string]string{domain.VarPath: "out.css"})
	got.Env["A"] = "2"

	assert.Equal(t, []string{"make {path}"}, cmd.Command)
	assert.Equal(t, "1", cmd.Env["A"])
	assert.Equal(t, "make out.css", got.String())
}

func TestBuildCommand_NilExpand(t *testing.T) {
	var cmd *domain.BuildCommand
	assert.Nil(t, cmd.Expand(nil))
	assert.Empty(t, cmd.String())
}

func TestAsset(t *testing.T) {
	a := &domain.Asset{
		VirtualPath: "css/site.css",
		Path:        "/srv/static/css/site.css",
		Tags:        []string{"css", "site"},
	}

	assert.Equal(t, "/srv/static/css", a.Dir())
	assert.True(t, a.HasTag("site"))
	assert.False(t, a.HasTag("js"))
}

func TestCacheBusterKey(t *testing.T) {
	assert.Equal(t, domain.NewCacheBusterKey("a.js"), domain.NewCacheBusterKey("a.js"))
	assert.NotEqual(t, domain.NewCacheBusterKey("a.js", "b.js"), domain.NewCacheBusterKey("b.js", "a.js"))
	assert.NotEqual(t, domain.NewCacheBusterKey("ab", "c"), domain.NewCacheBusterKey("a", "bc"))
}

func TestAssetState_String(t *testing.T) {
	assert.Equal(t, "unbuilt", domain.StateUnbuilt.String())
	assert.Equal(t, "fresh", domain.StateFresh.String())
	assert.Equal(t, "stale", domain.StateStale.String())
	assert.Equal(t, "unbuildable", domain.StateUnbuildable.String())
	assert.Equal(t, "unknown", domain.AssetState(42).String())
}

func TestDefaultManifestPath(t *testing.T) {
	assert.Equal(t, "/srv/.assetbuilder/manifest.json", domain.DefaultManifestPath("/srv"))
}
