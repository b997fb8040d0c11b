package resolver

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/plusconf/plusconf/pkg/definitions"
	"github.com/plusconf/plusconf/pkg/engine"
)

// checkConfigExists fails when name is neither one of known nor a global config.
func checkConfigExists(name string, known []string, definedBy string) error {
	all := append(append([]string{}, known...), definitions.GlobalNames()...)
	for _, n := range all {
		if n == name {
			return nil
		}
	}

	msg := fmt.Sprintf("%s defines an unknown config %s", definedBy, name)
	if name == "page" {
		msg += fmt.Sprintf(", did you mean to define %s instead? (The name of the config %s starts with a capital letter P because it usually defines a UI component: a ubiquitous convention is to start the name of UI components with a capital letter.)",
			definitions.ConfigPage, definitions.ConfigPage)
	} else if similar := mostSimilar(name, all); similar != "" {
		msg += fmt.Sprintf(", did you mean to define %s instead?", similar)
	} else {
		msg += fmt.Sprintf(", you need to define the config %s by using meta", name)
	}
	return engine.NewUsageError(msg).
		WithCode(engine.ErrCodeUnknownConfig).
		WithFile(definedBy).
		WithDetail("config", name)
}

// mostSimilar returns the candidate closest to name, or "" if none is close
// enough. A case-insensitive match always qualifies.
func mostSimilar(name string, candidates []string) string {
	maxDistance := len(name) / 3
	if maxDistance < 2 {
		maxDistance = 2
	}

	best, bestDistance := "", maxDistance+1
	for _, c := range candidates {
		if c == name {
			continue
		}
		if strings.EqualFold(c, name) {
			return c
		}
		if d := levenshtein.ComputeDistance(name, c); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}
