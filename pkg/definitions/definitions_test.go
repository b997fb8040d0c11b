package definitions

import (
	"context"
	"strings"
	"testing"

	"github.com/plusconf/plusconf/pkg/engine"
)

type fakeCallable struct{}

func (fakeCallable) Name() string { return "effect" }
func (fakeCallable) Call(ctx context.Context, args ...interface{}) (interface{}, error) {
	return nil, nil
}

func TestBuiltin_Definitions(t *testing.T) {
	r := Builtin()

	tests := []struct {
		name       string
		env        engine.Environment
		cumulative bool
		filePath   bool
		computed   bool
	}{
		{name: "Page", env: engine.EnvServerAndClient, filePath: true},
		{name: "route", env: engine.EnvServerAndClient},
		{name: "passToClient", env: engine.EnvServerOnly, cumulative: true},
		{name: "client", env: engine.EnvClientOnly, filePath: true},
		{name: "meta", env: engine.EnvConfigOnly},
		{name: "filesystemRoutingRoot", env: engine.EnvConfigOnly},
		{name: "isClientSideRenderable", env: engine.EnvServerAndClient, computed: true},
		{name: "onBeforeRenderEnv", env: engine.EnvClientOnly, computed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := r.Get(tt.name)
			if !ok {
				t.Fatalf("built-in %s not found", tt.name)
			}
			if d.Env != tt.env {
				t.Errorf("env = %s, want %s", d.Env, tt.env)
			}
			if d.Cumulative != tt.cumulative {
				t.Errorf("cumulative = %v, want %v", d.Cumulative, tt.cumulative)
			}
			if d.ValueIsFilePath != tt.filePath {
				t.Errorf("valueIsFilePath = %v, want %v", d.ValueIsFilePath, tt.filePath)
			}
			if (d.Computed != nil) != tt.computed {
				t.Errorf("computed = %v, want %v", d.Computed != nil, tt.computed)
			}
		})
	}
}

func TestIsGlobalConfig(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"onBeforeRoute", true},
		{"onPrerenderStart", true},
		{"baseServer", true},
		{"prerender", false},
		{"Page", false},
		{"title", false},
	}

	for _, tt := range tests {
		if got := IsGlobalConfig(tt.name); got != tt.want {
			t.Errorf("IsGlobalConfig(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRegistry_ApplyMeta(t *testing.T) {
	const definedAt = "Config meta defined at /pages/+config.star"

	tests := []struct {
		name      string
		meta      interface{}
		wantErr   string
		checkFunc func(t *testing.T, r *Registry)
	}{
		{
			name: "adds custom definition",
			meta: map[string]interface{}{
				"title": map[string]interface{}{"env": "server-and-client"},
			},
			checkFunc: func(t *testing.T, r *Registry) {
				d, ok := r.Get("title")
				if !ok {
					t.Fatal("title not defined")
				}
				if d.Env != engine.EnvServerAndClient {
					t.Errorf("env = %s", d.Env)
				}
				names := r.Names()
				if names[len(names)-1] != "title" {
					t.Errorf("custom definition should be appended, got order %v", names)
				}
			},
		},
		{
			name: "overrides built-in field and keeps position",
			meta: map[string]interface{}{
				"passToClient": map[string]interface{}{"env": "server-and-client"},
			},
			checkFunc: func(t *testing.T, r *Registry) {
				d := r.MustGet("passToClient")
				if d.Env != engine.EnvServerAndClient {
					t.Errorf("env = %s", d.Env)
				}
				if !d.Cumulative {
					t.Error("shallow merge should keep cumulative")
				}
				if Builtin().MustGet("passToClient").Env != engine.EnvServerOnly {
					t.Error("built-ins must not be mutated")
				}
			},
		},
		{
			name: "effect on config-only",
			meta: map[string]interface{}{
				"mode": map[string]interface{}{"env": "config-only", "effect": fakeCallable{}},
			},
			checkFunc: func(t *testing.T, r *Registry) {
				if r.MustGet("mode").Effect == nil {
					t.Error("effect not set")
				}
			},
		},
		{
			name:    "meta not an object",
			meta:    "nope",
			wantErr: "has an invalid type string: it should be an object instead",
		},
		{
			name:    "entry not an object",
			meta:    map[string]interface{}{"title": true},
			wantErr: "sets meta.title to a value with an invalid type boolean",
		},
		{
			name:    "missing env",
			meta:    map[string]interface{}{"title": map[string]interface{}{}},
			wantErr: "doesn't set meta.title.env but it's required. Set the value of env to 'client-only', 'server-only', 'server-and-client' or 'config-only'.",
		},
		{
			name:    "env wrong type",
			meta:    map[string]interface{}{"title": map[string]interface{}{"env": int64(1)}},
			wantErr: "sets meta.title.env to an invalid type number",
		},
		{
			name:    "env invalid value",
			meta:    map[string]interface{}{"title": map[string]interface{}{"env": "browser"}},
			wantErr: "sets meta.title.env to an invalid value 'browser'",
		},
		{
			name: "effect requires config-only",
			meta: map[string]interface{}{
				"mode": map[string]interface{}{"env": "server-only", "effect": fakeCallable{}},
			},
			wantErr: "sets meta.mode.effect but it's only supported if meta.mode.env is config-only (but it's server-only instead)",
		},
		{
			name: "computed config cannot be cumulative",
			meta: map[string]interface{}{
				"isClientSideRenderable": map[string]interface{}{"env": "server-and-client", "cumulative": true},
			},
			wantErr: "sets meta.isClientSideRenderable.cumulative but isClientSideRenderable is a computed config which cannot be cumulative",
		},
		{
			name: "effect must be a function",
			meta: map[string]interface{}{
				"mode": map[string]interface{}{"env": "config-only", "effect": "fn"},
			},
			wantErr: "sets meta.mode.effect to an invalid type string: it should be a function instead",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Builtin()
			err := r.ApplyMeta(tt.meta, definedAt)

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.wantErr)
				}
				if !engine.IsUsage(err) {
					t.Errorf("expected usage error, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
				}
				if !strings.Contains(err.Error(), definedAt) {
					t.Errorf("error should name where meta is defined: %q", err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, r)
			}
		})
	}
}

func TestComputed_IsClientSideRenderable(t *testing.T) {
	page := func(pageEnv engine.Environment, withClient bool) *engine.PageConfig {
		p := &engine.PageConfig{Sources: engine.ValueSources{
			"Page": {{Env: pageEnv, IsImported: true}},
		}}
		if withClient {
			p.Sources["onRenderClient"] = []*engine.ValueSource{{Env: engine.EnvClientOnly, IsImported: true}}
		}
		return p
	}

	compute := Builtin().MustGet("isClientSideRenderable").Computed

	if v, _ := compute(page(engine.EnvServerAndClient, true)); v != true {
		t.Errorf("expected true, got %v", v)
	}
	if v, _ := compute(page(engine.EnvServerOnly, true)); v != false {
		t.Errorf("server-only Page should not be client-side renderable, got %v", v)
	}
	if v, _ := compute(page(engine.EnvServerAndClient, false)); v != false {
		t.Errorf("missing onRenderClient should yield false, got %v", v)
	}
}

func TestJoinEnglish(t *testing.T) {
	if got := JoinEnglish([]string{"a"}, "or"); got != "a" {
		t.Errorf("got %q", got)
	}
	if got := JoinEnglish([]string{"a", "b", "c"}, "or"); got != "a, b or c" {
		t.Errorf("got %q", got)
	}
}
