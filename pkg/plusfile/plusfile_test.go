package plusfile

import (
	"strings"
	"testing"

	"github.com/plusconf/plusconf/pkg/engine"
)

func TestConfigName(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr string
	}{
		{path: "/pages/+config.star", want: "config"},
		{path: "/pages/about/+Page.yaml", want: "Page"},
		{path: "/pages/+onRenderHtml.server.star", want: "onRenderHtml"},
		{path: "/pages/helpers.star", want: ""},
		{path: "/pages/+dir/+Page.star", wantErr: "remove '+' from the directory name /pages/+dir/"},
		{path: "/pages/+Pa+ge.star", wantErr: "Character '+' is only allowed at the beginning of filenames"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ConfigName(tt.path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				if !engine.IsUsage(err) {
					t.Errorf("expected usage error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ConfigName(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestFromConfigFile(t *testing.T) {
	fp := engine.FilePath{Path: "/pages/+config.star"}

	tests := []struct {
		name      string
		exports   engine.Exports
		wantErr   string
		checkFunc func(t *testing.T, f *InterfaceFile)
	}{
		{
			name: "default mapping",
			exports: engine.Exports{"default": map[string]interface{}{
				"title": "Hello",
				"route": "/hello",
			}},
			checkFunc: func(t *testing.T, f *InterfaceFile) {
				if !f.IsConfigFile || f.IsValueFile() {
					t.Error("expected config file")
				}
				if got := f.ConfigNames(); len(got) != 2 || got[0] != "route" || got[1] != "title" {
					t.Errorf("ConfigNames() = %v", got)
				}
				if f.Configs["title"].Value != "Hello" || !f.Configs["title"].Loaded {
					t.Errorf("title entry = %+v", f.Configs["title"])
				}
			},
		},
		{
			name:    "missing default",
			exports: engine.Exports{},
			wantErr: "doesn't export default",
		},
		{
			name:    "extra export",
			exports: engine.Exports{"default": map[string]interface{}{}, "helper": int64(1)},
			wantErr: "should only export default, remove the export helper",
		},
		{
			name:    "default not a mapping",
			exports: engine.Exports{"default": []interface{}{}},
			wantErr: "should be an object (it's array instead)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := FromConfigFile(&ConfigFile{FilePath: fp, Exports: tt.exports}, false)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.checkFunc(t, f)
		})
	}
}

func TestValueFile_SetValueExports(t *testing.T) {
	fp := engine.FilePath{Path: "/pages/+title.yaml"}

	t.Run("default binds to primary name", func(t *testing.T) {
		f := NewValueFile(fp, "title")
		if f.IsLoaded() {
			t.Fatal("new value file should not be loaded")
		}
		err := f.SetValueExports(engine.Exports{"default": "Hello", "description": "side effect"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.IsLoaded() {
			t.Error("expected loaded")
		}
		if f.Configs["title"].Value != "Hello" {
			t.Errorf("title = %v", f.Configs["title"].Value)
		}
		if f.Configs["description"].Value != "side effect" {
			t.Errorf("description = %v", f.Configs["description"].Value)
		}
	})

	t.Run("named export binds to primary name", func(t *testing.T) {
		f := NewValueFile(fp, "title")
		if err := f.SetValueExports(engine.Exports{"title": "Hello"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Configs["title"].Value != "Hello" {
			t.Errorf("title = %v", f.Configs["title"].Value)
		}
	})

	t.Run("both default and named", func(t *testing.T) {
		f := NewValueFile(fp, "title")
		err := f.SetValueExports(engine.Exports{"title": "a", "default": "b"})
		if err == nil || !strings.Contains(err.Error(), "exports both default and title") {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("no exports", func(t *testing.T) {
		f := NewValueFile(fp, "title")
		if err := f.SetValueExports(engine.Exports{}); err == nil {
			t.Fatal("expected error")
		}
	})
}
