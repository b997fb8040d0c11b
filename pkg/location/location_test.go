package location

import (
	"reflect"
	"testing"
)

func TestID(t *testing.T) {
	tests := map[string]string{
		"/+config.star":               "/",
		"/pages/+config.star":         "/pages",
		"/pages/blog/posts/+Page.cue": "/pages/blog/posts",
	}
	for file, want := range tests {
		if got := ID(file); got != want {
			t.Errorf("ID(%q) = %q, want %q", file, got, want)
		}
	}
}

func TestIsInherited(t *testing.T) {
	tests := []struct {
		ancestor, loc string
		want          bool
	}{
		{"/pages", "/pages", true},
		{"/pages", "/pages/blog", true},
		{"/", "/pages/blog", true},
		{"/pages/blog", "/pages", false},
		{"/pages/blog", "/pages/blogging", false},
		{"/pages/about", "/pages/blog", false},
	}
	for _, tt := range tests {
		if got := IsInherited(tt.ancestor, tt.loc); got != tt.want {
			t.Errorf("IsInherited(%q, %q) = %v, want %v", tt.ancestor, tt.loc, got, tt.want)
		}
	}
}

func TestAncestors_MostSpecificFirst(t *testing.T) {
	all := []string{"/pages", "/pages/blog/posts", "/", "/pages/about", "/pages/blog"}
	got := Ancestors(all, "/pages/blog/posts")
	want := []string{"/pages/blog/posts", "/pages/blog", "/pages", "/"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ancestors() = %v, want %v", got, want)
	}
}

func TestIsGlobal(t *testing.T) {
	all := []string{"/pages", "/pages/about", "/pages/blog"}
	if !IsGlobal("/pages", all) {
		t.Error("/pages should be global")
	}
	if IsGlobal("/pages/about", all) {
		t.Error("/pages/about should not be global")
	}

	withRoot := append(all, "/")
	if IsGlobal("/pages", withRoot) {
		t.Error("/pages is not global once / has plus files")
	}
	if !IsGlobal("/", withRoot) {
		t.Error("/ should be global")
	}
}

func TestRouteString(t *testing.T) {
	tests := map[string]string{
		"/pages":                  "/",
		"/pages/index":            "/",
		"/pages/about":            "/about",
		"/src/pages/blog/index":   "/blog",
		"/pages/(marketing)/team": "/team",
		"/pages/_error":           "/_error",
	}
	for loc, want := range tests {
		if got := RouteString(loc); got != want {
			t.Errorf("RouteString(%q) = %q, want %q", loc, got, want)
		}
	}
}

func TestIsErrorPage(t *testing.T) {
	if !IsErrorPage("/_error") {
		t.Error("expected /_error to be the error page")
	}
	if IsErrorPage("/errors") {
		t.Error("/errors is not the error page")
	}
}

func TestRoutingRoot_Apply(t *testing.T) {
	root := RoutingRoot{Before: "/marketing", After: "/"}
	if got := root.Apply("/marketing/team"); got != "/team" {
		t.Errorf("Apply() = %q, want /team", got)
	}

	root = RoutingRoot{Before: "/", After: "/docs"}
	if got := root.Apply("/intro"); got != "/docs/intro" {
		t.Errorf("Apply() = %q, want /docs/intro", got)
	}

	root = RoutingRoot{Before: "/admin", After: "/dashboard"}
	if got := root.Apply("/admin/users"); got != "/dashboard/users" {
		t.Errorf("Apply() = %q, want /dashboard/users", got)
	}
}
