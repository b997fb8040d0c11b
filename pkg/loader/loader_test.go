package loader

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/plusconf/plusconf/pkg/engine"
)

func TestStarlarkEvaluator_Evaluate(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name      string
		script    string
		checkFunc func(*testing.T, engine.Exports)
		wantErr   string
	}{
		{
			name: "default dict",
			script: `
default = {"title": "Hello", "count": 2 + 2}
`,
			checkFunc: func(t *testing.T, exports engine.Exports) {
				m, ok := exports["default"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected default to be a mapping, got %T", exports["default"])
				}
				if m["title"] != "Hello" || m["count"] != int64(4) {
					t.Errorf("unexpected default: %v", m)
				}
			},
		},
		{
			name: "private helpers are not exported",
			script: `
def _pages(n):
    return ["/p" + str(i) for i in range(n)]

_base = "x"
default = {"routes": _pages(2)}
`,
			checkFunc: func(t *testing.T, exports engine.Exports) {
				if len(exports) != 1 {
					t.Errorf("expected only default export, got %v", exports)
				}
				routes := exports["default"].(map[string]interface{})["routes"].([]interface{})
				if len(routes) != 2 || routes[1] != "/p1" {
					t.Errorf("unexpected routes: %v", routes)
				}
			},
		},
		{
			name: "sets",
			script: `
default = {"passToClient": set(["user", "user", "locale"])}
`,
			checkFunc: func(t *testing.T, exports engine.Exports) {
				s, ok := exports["default"].(map[string]interface{})["passToClient"].(*engine.Set)
				if !ok {
					t.Fatalf("expected *engine.Set")
				}
				if s.Len() != 2 || !s.Has("user") || !s.Has("locale") {
					t.Errorf("unexpected set: %v", s.Values())
				}
			},
		},
		{
			name: "import_ref",
			script: `
default = {"Page": import_ref("./Page.star"), "guard": import_ref("./guard.star", "guard")}
`,
			checkFunc: func(t *testing.T, exports engine.Exports) {
				m := exports["default"].(map[string]interface{})
				if m["Page"] != "import:./Page.star" {
					t.Errorf("Page = %v", m["Page"])
				}
				if m["guard"] != "import:./guard.star:guard" {
					t.Errorf("guard = %v", m["guard"])
				}
			},
		},
		{
			name: "struct becomes a mapping",
			script: `
default = struct(title = "Hi")
`,
			checkFunc: func(t *testing.T, exports engine.Exports) {
				m, ok := exports["default"].(map[string]interface{})
				if !ok || m["title"] != "Hi" {
					t.Errorf("unexpected default: %v", exports["default"])
				}
			},
		},
		{
			name: "universe builtins",
			script: `
default = {
    "routes": ["%d:%s" % (i, r) for i, r in enumerate(["/a", "/b"])],
    "pairs": [k + "=" + v for k, v in zip(["x", "y"], ["1", "2"])],
    "count": len(range(3)),
}
`,
			checkFunc: func(t *testing.T, exports engine.Exports) {
				m := exports["default"].(map[string]interface{})
				routes := m["routes"].([]interface{})
				pairs := m["pairs"].([]interface{})
				if len(routes) != 2 || routes[1] != "1:/b" {
					t.Errorf("routes = %v", routes)
				}
				if len(pairs) != 2 || pairs[0] != "x=1" {
					t.Errorf("pairs = %v", pairs)
				}
				if m["count"] != int64(3) {
					t.Errorf("count = %v", m["count"])
				}
			},
		},
		{
			name:    "syntax error",
			script:  "default = {",
			wantErr: "+config.star",
		},
		{
			name:    "runtime error",
			script:  `default = 1 / 0`,
			wantErr: "division by zero",
		},
		{
			name:    "non-string dict key",
			script:  `default = {1: "a"}`,
			wantErr: "dict key must be string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exports, err := evaluator.Evaluate(ctx, "/pages/+config.star", []byte(tt.script))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.checkFunc(t, exports)
		})
	}
}

func TestStarlarkEvaluator_Timeout(t *testing.T) {
	evaluator := NewStarlarkEvaluator(50 * time.Millisecond)
	script := `
def _spin():
    n = 0
    for i in range(20000):
        for j in range(20000):
            n += j
    return n

default = {"n": _spin()}
`
	_, err := evaluator.Evaluate(context.Background(), "/+config.star", []byte(script))
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestStarlarkCallable(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	script := `
def _effect(value, defined_at):
    if value:
        return {"meta": {"target": {"env": "client-only"}}}
    return None

default = {"meta": {"flag": {"env": "config-only", "effect": _effect}}}
`
	exports, err := evaluator.Evaluate(context.Background(), "/+config.star", []byte(script))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	meta := exports["default"].(map[string]interface{})["meta"].(map[string]interface{})
	fn, ok := meta["flag"].(map[string]interface{})["effect"].(engine.Callable)
	if !ok {
		t.Fatalf("expected effect to be a Callable")
	}
	if fn.Name() != "_effect" {
		t.Errorf("Name() = %q", fn.Name())
	}

	out, err := fn.Call(context.Background(), true, "Config flag defined at /+config.star")
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	target := out.(map[string]interface{})["meta"].(map[string]interface{})["target"].(map[string]interface{})
	if target["env"] != "client-only" {
		t.Errorf("unexpected effect result: %v", out)
	}

	out, err = fn.Call(context.Background(), false, "")
	if err != nil || out != nil {
		t.Errorf("Call(false) = %v, %v", out, err)
	}

	b, err := json.Marshal(fn)
	if err != nil || string(b) != `"[function _effect]"` {
		t.Errorf("MarshalJSON() = %s, %v", b, err)
	}
}

func TestLoader_Load(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/project/pages/+config.yaml": "title: Hello\npassToClient:\n  $set: [a, b, a]\nport: 8080\n",
		"/project/pages/+config.json": "{\n  // comment\n  \"title\": \"Json\",\n  \"ratio\": 1.5,\n  \"count\": 3,\n}\n",
		"/project/pages/+config.cue":  "title: \"Cue\"\nroutes: [\"/a\", \"/b\"]\n",
		"/project/pages/+title.star":  "default = 'Star'\ndescription = 'side'\n",
		"/project/pages/bad.cue":      "title: 1 & 2\n",
		"/project/pages/bad.yaml":     "title: [unclosed\n",
		"/project/pages/+config.txt":  "nope",
	}
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	l := New(fs, Options{})
	ctx := context.Background()

	load := func(rel string) (engine.Exports, error) {
		return l.Load(ctx, engine.FilePath{Abs: "/project" + rel, Path: rel})
	}

	tests := []struct {
		name      string
		file      string
		checkFunc func(*testing.T, engine.Exports)
		wantErr   string
	}{
		{
			name: "yaml with set",
			file: "/pages/+config.yaml",
			checkFunc: func(t *testing.T, exports engine.Exports) {
				m := exports["default"].(map[string]interface{})
				if m["title"] != "Hello" || m["port"] != int64(8080) {
					t.Errorf("unexpected document: %v", m)
				}
				s, ok := m["passToClient"].(*engine.Set)
				if !ok || s.Len() != 2 {
					t.Errorf("expected a two element set, got %v", m["passToClient"])
				}
			},
		},
		{
			name: "jsonc with comments and trailing comma",
			file: "/pages/+config.json",
			checkFunc: func(t *testing.T, exports engine.Exports) {
				m := exports["default"].(map[string]interface{})
				if m["title"] != "Json" || m["ratio"] != 1.5 || m["count"] != int64(3) {
					t.Errorf("unexpected document: %v", m)
				}
			},
		},
		{
			name: "cue",
			file: "/pages/+config.cue",
			checkFunc: func(t *testing.T, exports engine.Exports) {
				m := exports["default"].(map[string]interface{})
				routes, ok := m["routes"].([]interface{})
				if m["title"] != "Cue" || !ok || len(routes) != 2 {
					t.Errorf("unexpected document: %v", m)
				}
			},
		},
		{
			name: "starlark value file",
			file: "/pages/+title.star",
			checkFunc: func(t *testing.T, exports engine.Exports) {
				if exports["default"] != "Star" || exports["description"] != "side" {
					t.Errorf("unexpected exports: %v", exports)
				}
			},
		},
		{name: "cue conflict", file: "/pages/bad.cue", wantErr: "conflicting values"},
		{name: "yaml syntax", file: "/pages/bad.yaml", wantErr: "bad.yaml"},
		{name: "unsupported extension", file: "/pages/+config.txt", wantErr: "unsupported file extension"},
		{name: "missing file", file: "/pages/+missing.yaml", wantErr: "+missing.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exports, err := load(tt.file)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				if !engine.IsLoad(err) {
					t.Errorf("expected a load error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.checkFunc(t, exports)
		})
	}
}

func TestNormalize_InvalidSet(t *testing.T) {
	_, err := normalize(map[string]interface{}{SetKey: "a"})
	if err == nil || !strings.Contains(err.Error(), "$set must be a list") {
		t.Fatalf("error = %v", err)
	}
}
