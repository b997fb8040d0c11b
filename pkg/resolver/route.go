package resolver

import (
	"fmt"
	"strings"

	"github.com/plusconf/plusconf/pkg/definitions"
	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/location"
)

// routeFilesystem derives the filesystem route of a page location. It
// reports error pages instead of a route.
func routeFilesystem(loc string, sources engine.ValueSources) (*engine.RouteFilesystem, bool, error) {
	route := location.RouteString(loc)
	if location.IsErrorPage(route) {
		return nil, true, nil
	}
	definedBy := location.RouteDefinedBy(loc)

	if srcs := sources[definitions.ConfigFilesystemRoutingRoot]; len(srcs) > 0 {
		root, definedAt, err := routingRoot(srcs[0])
		if err != nil {
			return nil, false, err
		}
		engine.Assert(strings.HasPrefix(route, root.Before),
			"route %s of %s doesn't start with %s", route, loc, root.Before)
		route = root.Apply(route)
		definedBy = fmt.Sprintf("%s (with %s)", definedBy, definedAt)
	}

	return &engine.RouteFilesystem{RouteString: route, DefinedBy: definedBy}, false, nil
}

func routingRoot(src *engine.ValueSource) (location.RoutingRoot, string, error) {
	name := definitions.ConfigFilesystemRoutingRoot
	engine.Assert(!src.IsComputed && src.HasValue, "%s must be an inline value", name)
	definedAt := src.DefinedAtString(name, true)
	file := src.DefinedAt.ShowToUser()

	value, ok := src.Value.(string)
	if !ok {
		return location.RoutingRoot{}, "", engine.Usagef("%s should be a string", definedAt).
			WithCode(engine.ErrCodeInvalidValue).
			WithFile(file)
	}
	if len(value) == 0 || value[0] != '/' {
		return location.RoutingRoot{}, "", engine.Usagef("%s is %s but it should start with a leading slash /", definedAt, value).
			WithCode(engine.ErrCodeInvalidValue).
			WithFile(file)
	}

	engine.Assert(src.DefinedAt.Path != "", "%s is defined outside the project root", name)
	before := location.RouteString(location.ID(src.DefinedAt.Path))
	return location.RoutingRoot{Before: before, After: value}, definedAt, nil
}
