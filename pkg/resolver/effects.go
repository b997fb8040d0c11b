package resolver

import (
	"context"
	"fmt"

	"github.com/plusconf/plusconf/pkg/definitions"
	"github.com/plusconf/plusconf/pkg/engine"
)

// ConfigModKind tags the mutations an effect may request.
type ConfigModKind string

// ModReassignEnvironment changes the environment of other configs.
const ModReassignEnvironment ConfigModKind = "reassign-environment"

// ConfigMod is a parsed effect result.
type ConfigMod struct {
	Kind ConfigModKind

	// Targets maps config names to their new environment.
	Targets map[string]engine.Environment
}

// applyEffects calls the effect of every definition that has one with the
// winning value of its config and applies the returned mutations.
func (p *pass) applyEffects(ctx context.Context, page *engine.PageConfig, defs *definitions.Registry) error {
	var err error
	defs.Each(func(def *definitions.Definition) {
		if err != nil || def.Effect == nil {
			return
		}
		err = p.applyEffect(ctx, page, def)
	})
	return err
}

func (p *pass) applyEffect(ctx context.Context, page *engine.PageConfig, def *definitions.Definition) error {
	name := def.Name
	if def.Env != engine.EnvConfigOnly {
		p.warner.WarnOnce("", fmt.Sprintf(
			"Adding an effect to %s may not work as expected because %s has an env that is different than %s (its env is %s).",
			name, name, engine.EnvConfigOnly, def.Env))
	}

	sources := page.Sources[name]
	if len(sources) == 0 {
		return nil
	}
	src := sources[0]
	engine.Assert(!src.IsComputed, "effect source of %s is computed", name)

	definedAt := src.DefinedAtString(name, true)
	result, err := def.Effect.Call(ctx, src.Value, definedAt)
	if err != nil {
		return engine.NewLoadError(src.DefinedAt.ShowToUser(), fmt.Errorf("effect of %s: %w", name, err))
	}

	mod, err := parseConfigMod(name, result, definedAt)
	if err != nil {
		return err
	}
	if mod == nil {
		return nil
	}
	engine.Assert(src.HasValue, "effect source of %s has no inline value", name)

	for target, env := range mod.Targets {
		for _, s := range page.Sources[target] {
			s.Env = env
		}
	}
	p.logger.WithLocation(page.LocationID).Debugf("effect of %s reassigned %d environment(s)", name, len(mod.Targets))
	return nil
}

// parseConfigMod validates the result of an effect. A nil result means the
// effect requests nothing.
func parseConfigMod(name string, result interface{}, definedAt string) (*ConfigMod, error) {
	if result == nil {
		return nil, nil
	}
	unsupported := engine.Usagef("%s: meta.%s.effect currently only supports modifying the env of a config", definedAt, name).
		WithCode(engine.ErrCodeInvalidEffect)

	m, ok := engine.AsMapping(result)
	if !ok {
		return nil, unsupported
	}
	for key := range m {
		if key != definitions.ConfigMeta {
			return nil, unsupported
		}
	}

	meta, ok := m[definitions.ConfigMeta]
	if !ok {
		return nil, nil
	}
	targets, err := definitions.ValidateMeta(meta, definedAt+" (effect)")
	if err != nil {
		return nil, err
	}

	mod := &ConfigMod{Kind: ModReassignEnvironment, Targets: make(map[string]engine.Environment, len(targets))}
	for target, raw := range targets {
		fields := raw.(map[string]interface{})
		if len(fields) != 1 {
			return nil, unsupported
		}
		mod.Targets[target] = engine.Environment(fields["env"].(string))
	}
	return mod, nil
}

// applyComputed appends a computed source, with the lowest priority, for
// every definition that computes a value.
func applyComputed(page *engine.PageConfig, defs *definitions.Registry) {
	defs.Each(func(def *definitions.Definition) {
		if def.Computed == nil {
			return
		}
		value, ok := def.Computed(page)
		if !ok {
			return
		}
		page.Sources[def.Name] = append(page.Sources[def.Name], &engine.ValueSource{
			Value:      value,
			HasValue:   true,
			Env:        def.Env,
			IsComputed: true,
		})
	})
}
