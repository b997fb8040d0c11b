package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/telemetry"
)

// StarlarkEvaluator executes Starlark plus files.
type StarlarkEvaluator struct {
	timeout time.Duration
}

// NewStarlarkEvaluator creates a new Starlark evaluator.
func NewStarlarkEvaluator(timeout time.Duration) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &StarlarkEvaluator{
		timeout: timeout,
	}
}

type starlarkResult struct {
	exports engine.Exports
	err     error
}

// Evaluate executes a Starlark file and returns its public globals.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, filename string, src []byte) (engine.Exports, error) {
	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()

	thread := se.newThread(ctx, filename)
	resultCh := make(chan starlarkResult, 1)

	go func() {
		exports, err := se.evaluateSync(thread, filename, src)
		resultCh <- starlarkResult{exports: exports, err: err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel("timeout")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("execution timeout after %v", se.timeout)
	case res := <-resultCh:
		return res.exports, res.err
	}
}

// newThread creates a thread whose print builtin logs at debug level
// through the logger carried by ctx.
func (se *StarlarkEvaluator) newThread(ctx context.Context, name string) *starlark.Thread {
	logger := telemetry.FromContext(ctx).WithFile(name)
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Debug(msg)
		},
	}
}

func (se *StarlarkEvaluator) evaluateSync(thread *starlark.Thread, filename string, src []byte) (engine.Exports, error) {
	predeclared := starlark.StringDict{
		"struct":     starlark.NewBuiltin("struct", starlarkstruct.Make),
		"set":        starlark.NewBuiltin("set", builtinSet),
		"import_ref": starlark.NewBuiltin("import_ref", builtinImportRef),
	}

	globals, err := starlark.ExecFile(thread, filename, src, predeclared)
	if err != nil {
		return nil, err
	}

	exports := make(engine.Exports, len(globals))
	for name, val := range globals {
		// Helpers are private
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		goVal, err := se.fromStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert export %s: %w", name, err)
		}
		exports[name] = goVal
	}
	return exports, nil
}

// starlarkCallable exposes a Starlark function as an engine.Callable.
type starlarkCallable struct {
	fn        *starlark.Function
	evaluator *StarlarkEvaluator
}

func (c *starlarkCallable) Name() string {
	return c.fn.Name()
}

// Call runs the function on a fresh thread, bounded by the evaluator timeout.
func (c *starlarkCallable) Call(ctx context.Context, args ...interface{}) (interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.evaluator.timeout)
	defer cancel()

	sArgs := make(starlark.Tuple, len(args))
	for i, arg := range args {
		v, err := toStarlarkValue(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", c.fn.Name(), i, err)
		}
		sArgs[i] = v
	}

	thread := c.evaluator.newThread(ctx, c.fn.Name())
	resultCh := make(chan starlarkResult, 1)
	var out interface{}
	go func() {
		v, err := starlark.Call(thread, c.fn, sArgs, nil)
		if err == nil {
			out, err = c.evaluator.fromStarlarkValue(v)
		}
		resultCh <- starlarkResult{err: err}
	}()

	select {
	case <-callCtx.Done():
		thread.Cancel("timeout")
		return nil, fmt.Errorf("%s: execution timeout after %v", c.fn.Name(), c.evaluator.timeout)
	case res := <-resultCh:
		return out, res.err
	}
}

// MarshalJSON renders functions by name so that resolved values stay printable.
func (c *starlarkCallable) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// MarshalYAML renders functions by name.
func (c *starlarkCallable) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *starlarkCallable) String() string {
	return fmt.Sprintf("[function %s]", c.fn.Name())
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case *engine.Set:
		set := starlark.NewSet(val.Len())
		for _, item := range val.Values() {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := set.Insert(starlarkItem); err != nil {
				return nil, err
			}
		}
		return set, nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for _, k := range engine.SortedKeys(val) {
			starlarkVal, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case *starlarkCallable:
		return val.fn, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func (se *StarlarkEvaluator) fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		return se.fromIterable(val, val.Len())
	case starlark.Tuple:
		return se.fromIterable(val, val.Len())
	case *starlark.Set:
		items, err := se.fromIterable(val, val.Len())
		if err != nil {
			return nil, err
		}
		return engine.NewSet(items...), nil
	case *starlark.Dict:
		dict := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			value, err := se.fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := se.fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	case *starlark.Function:
		return &starlarkCallable{fn: val, evaluator: se}, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func (se *StarlarkEvaluator) fromIterable(it starlark.Iterable, n int) ([]interface{}, error) {
	iter := it.Iterate()
	defer iter.Done()

	list := make([]interface{}, 0, n)
	var x starlark.Value
	for iter.Next(&x) {
		item, err := se.fromStarlarkValue(x)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, nil
}

// builtinSet implements set([iterable]).
func builtinSet(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable?", &iterable); err != nil {
		return nil, err
	}

	set := starlark.NewSet(0)
	if iterable == nil {
		return set, nil
	}
	iter := iterable.Iterate()
	defer iter.Done()

	var x starlark.Value
	for iter.Next(&x) {
		if err := set.Insert(x); err != nil {
			return nil, fmt.Errorf("set: %w", err)
		}
	}
	return set, nil
}

// builtinImportRef implements import_ref(path, export="default"), which
// builds the string form of an import reference.
func builtinImportRef(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	export := "default"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path, "export?", &export); err != nil {
		return nil, err
	}
	return starlark.String(FormatImport(path, export)), nil
}
