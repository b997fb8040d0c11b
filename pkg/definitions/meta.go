package definitions

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/plusconf/plusconf/pkg/engine"
)

var validate = validator.New()

// envTag is the validator rule for meta.<name>.env.
var envTag = "oneof=" + strings.Join(envStrings(), " ")

func envStrings() []string {
	out := make([]string, len(engine.Environments))
	for i, e := range engine.Environments {
		out[i] = string(e)
	}
	return out
}

// envHint lists the allowed env values: 'a', 'b', 'c' or 'd'.
func envHint() string {
	quoted := make([]string, len(engine.Environments))
	for i, e := range engine.Environments {
		quoted[i] = fmt.Sprintf("'%s'", e)
	}
	return fmt.Sprintf("Set the value of env to %s.", JoinEnglish(quoted, "or"))
}

// ValidateMeta checks the value of a meta config. definedAt prefixes every
// error message, e.g. "Config meta defined at /pages/+config.star".
func ValidateMeta(meta interface{}, definedAt string) (map[string]interface{}, error) {
	metaMap, ok := engine.AsMapping(meta)
	if !ok {
		return nil, engine.Usagef("%s has an invalid type %s: it should be an object instead.",
			definedAt, engine.TypeOf(meta)).WithCode(engine.ErrCodeInvalidMeta)
	}

	for _, name := range engine.SortedKeys(metaMap) {
		def, ok := engine.AsMapping(metaMap[name])
		if !ok {
			return nil, engine.Usagef("%s sets meta.%s to a value with an invalid type %s: it should be an object instead.",
				definedAt, name, engine.TypeOf(metaMap[name])).WithCode(engine.ErrCodeInvalidMeta)
		}

		env, hasEnv := def["env"]
		if !hasEnv {
			return nil, engine.Usagef("%s doesn't set meta.%s.env but it's required. %s",
				definedAt, name, envHint()).WithCode(engine.ErrCodeInvalidMeta)
		}
		envStr, ok := env.(string)
		if !ok {
			return nil, engine.Usagef("%s sets meta.%s.env to an invalid type %s. %s",
				definedAt, name, engine.TypeOf(env), envHint()).WithCode(engine.ErrCodeInvalidMeta)
		}
		if err := validate.Var(envStr, envTag); err != nil {
			return nil, engine.Usagef("%s sets meta.%s.env to an invalid value '%s'. %s",
				definedAt, name, envStr, envHint()).WithCode(engine.ErrCodeInvalidMeta)
		}

		if cumulative, has := def["cumulative"]; has {
			if _, ok := cumulative.(bool); !ok {
				return nil, engine.Usagef("%s sets meta.%s.cumulative to an invalid type %s: it should be a boolean instead",
					definedAt, name, engine.TypeOf(cumulative)).WithCode(engine.ErrCodeInvalidMeta)
			}
		}

		if effect, has := def["effect"]; has {
			if _, ok := effect.(engine.Callable); !ok {
				return nil, engine.Usagef("%s sets meta.%s.effect to an invalid type %s: it should be a function instead",
					definedAt, name, engine.TypeOf(effect)).WithCode(engine.ErrCodeInvalidMeta)
			}
			if engine.Environment(envStr) != engine.EnvConfigOnly {
				return nil, engine.Usagef("%s sets meta.%s.effect but it's only supported if meta.%s.env is %s (but it's %s instead)",
					definedAt, name, name, engine.EnvConfigOnly, envStr).WithCode(engine.ErrCodeInvalidEffect)
			}
		}
	}

	return metaMap, nil
}

// ApplyMeta validates meta and shallow-merges each entry over the existing
// definition of the same name. New names are appended in key order.
func (r *Registry) ApplyMeta(meta interface{}, definedAt string) error {
	metaMap, err := ValidateMeta(meta, definedAt)
	if err != nil {
		return err
	}

	for _, name := range engine.SortedKeys(metaMap) {
		fields := metaMap[name].(map[string]interface{})

		var def *Definition
		if existing, ok := r.defs[name]; ok {
			def = existing.clone()
		} else {
			def = &Definition{Name: name}
		}

		def.Env = engine.Environment(fields["env"].(string))
		if cumulative, ok := fields["cumulative"].(bool); ok {
			if cumulative && def.Computed != nil {
				return engine.Usagef("%s sets meta.%s.cumulative but %s is a computed config which cannot be cumulative",
					definedAt, name, name).WithCode(engine.ErrCodeInvalidMeta)
			}
			def.Cumulative = cumulative
		}
		if effect, ok := fields["effect"].(engine.Callable); ok {
			def.Effect = effect
		}
		r.Set(def)
	}

	return nil
}

// JoinEnglish joins items as "a, b or c".
func JoinEnglish(items []string, conjunction string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " " + conjunction + " " + items[len(items)-1]
	}
}
