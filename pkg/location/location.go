// Package location implements the location model of a project tree.
//
// A location is the directory of a plus file, as a root-relative posix path
// ("/", "/pages", "/pages/blog"). Locations form an implicit tree through
// path-prefix containment.
package location

import (
	"path"
	"sort"
	"strings"
)

// ID returns the location of a root-relative file path.
func ID(filePath string) string {
	dir := path.Dir(filePath)
	if dir == "." || dir == "" {
		return "/"
	}
	return dir
}

// IsInherited reports whether a location inherits the plus files of
// ancestor, i.e. ancestor is the location itself or one of its parents.
func IsInherited(ancestor, loc string) bool {
	if ancestor == loc || ancestor == "/" {
		return true
	}
	return strings.HasPrefix(loc, ancestor+"/")
}

// Depth returns the number of segments of a location ("/" has depth 0).
func Depth(loc string) int {
	return len(segments(loc))
}

// Ancestors returns every location of all that loc inherits from, most
// specific first.
func Ancestors(all []string, loc string) []string {
	var out []string
	for _, l := range all {
		if IsInherited(l, loc) {
			out = append(out, l)
		}
	}
	SortMostSpecificFirst(out)
	return out
}

// SortMostSpecificFirst sorts locations by decreasing depth, then lexically.
func SortMostSpecificFirst(locs []string) {
	sort.SliceStable(locs, func(i, j int) bool {
		di, dj := Depth(locs[i]), Depth(locs[j])
		if di != dj {
			return di > dj
		}
		return locs[i] < locs[j]
	})
}

// IsGlobal reports whether every known location inherits from loc.
func IsGlobal(loc string, all []string) bool {
	for _, l := range all {
		if !IsInherited(loc, l) {
			return false
		}
	}
	return true
}

// RouteString derives the filesystem route of a location. The segments
// "pages", "src" and "index" and parenthesized group directories are dropped.
func RouteString(loc string) string {
	var kept []string
	for _, seg := range segments(loc) {
		switch {
		case seg == "pages", seg == "src", seg == "index":
			continue
		case strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")"):
			continue
		}
		kept = append(kept, seg)
	}
	return "/" + strings.Join(kept, "/")
}

// RouteDefinedBy describes the directory a filesystem route comes from.
func RouteDefinedBy(loc string) string {
	if loc == "/" {
		return loc
	}
	return loc + "/"
}

// IsErrorPage reports whether a route belongs to the error page.
func IsErrorPage(route string) bool {
	for _, seg := range segments(route) {
		if seg == "_error" {
			return true
		}
	}
	return false
}

// RoutingRoot rewrites the prefix Before of a route into After.
type RoutingRoot struct {
	Before string
	After  string
}

// Apply rewrites route. route must start with r.Before.
func (r RoutingRoot) Apply(route string) string {
	rewritten := r.After + "/" + strings.TrimPrefix(route, r.Before)
	return "/" + strings.Join(segments(rewritten), "/")
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
