package config

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// SiteGlobal is the global a Starlark manifest must bind.
const SiteGlobal = "site"

// StarlarkEvaluator executes Starlark manifests in a sandbox: no load(),
// a wall-clock timeout and a step budget.
type StarlarkEvaluator struct {
	timeout  time.Duration
	maxSteps uint64
	logger   zerolog.Logger
}

// NewStarlarkEvaluator creates a new Starlark evaluator.
func NewStarlarkEvaluator(timeout time.Duration, logger zerolog.Logger) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &StarlarkEvaluator{
		timeout:  timeout,
		maxSteps: 10_000_000,
		logger:   logger.With().Str("component", "starlark").Logger(),
	}
}

// Evaluate executes a Starlark script with the given input and returns its
// exported globals. Globals starting with an underscore are not exported.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, filename, script string, input map[string]interface{}) (*StarlarkResult, error) {
	startTime := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			se.logger.Debug().Str("file", filename).Msg(msg)
		},
	}
	thread.SetMaxExecutionSteps(se.maxSteps)

	type outcome struct {
		result *StarlarkResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := se.evaluateSync(thread, filename, script, input)
		done <- outcome{result, err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel(evalCtx.Err().Error())
		<-done
		return &StarlarkResult{
			ExecutionTime: time.Since(startTime),
			Error:         fmt.Sprintf("execution timeout after %v", se.timeout),
		}, fmt.Errorf("starlark execution of %s cancelled: %w", filename, evalCtx.Err())
	case out := <-done:
		if out.err != nil {
			return &StarlarkResult{
				ExecutionTime: time.Since(startTime),
				Error:         out.err.Error(),
			}, out.err
		}
		out.result.ExecutionTime = time.Since(startTime)
		return out.result, nil
	}
}

// evaluateSync performs the actual Starlark evaluation synchronously.
func (se *StarlarkEvaluator) evaluateSync(thread *starlark.Thread, filename, script string, input map[string]interface{}) (*StarlarkResult, error) {
	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"group":  starlark.NewBuiltin("group", builtinGroup),
		"item":   starlark.NewBuiltin("item", builtinItem),
		"link":   starlark.NewBuiltin("link", builtinLink),
	}

	for key, val := range input {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}

	globals, err := starlark.ExecFile(thread, filename, script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	output := make(map[string]interface{})
	for name, val := range globals {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		// Helper functions defined by the script are not data.
		if _, ok := val.(starlark.Callable); ok {
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert output %s: %w", name, err)
		}
		output[name] = goVal
	}

	return &StarlarkResult{
		Output: output,
	}, nil
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
	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil
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
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
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
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, elem := range val {
			item, err := fromStarlarkValue(elem)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			value, err := fromStarlarkValue(item[1])
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
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

// Manifest helpers predeclared for Starlark manifests.

// builtinItem implements item(label, slug, badge=None, attrs=None).
func builtinItem(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var label, slug string
	var badge starlark.Value = starlark.None
	var attrs starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "label", &label, "slug", &slug, "badge?", &badge, "attrs?", &attrs); err != nil {
		return nil, err
	}
	return entry(b.Name(), map[string]starlark.Value{
		"label": starlark.String(label),
		"slug":  starlark.String(slug),
		"badge": badge,
		"attrs": attrs,
	})
}

// builtinLink implements link(label, url, badge=None, attrs=None).
func builtinLink(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var label, url string
	var badge starlark.Value = starlark.None
	var attrs starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "label", &label, "url", &url, "badge?", &badge, "attrs?", &attrs); err != nil {
		return nil, err
	}
	return entry(b.Name(), map[string]starlark.Value{
		"label": starlark.String(label),
		"link":  starlark.String(url),
		"badge": badge,
		"attrs": attrs,
	})
}

// builtinGroup implements group(label, items, collapsed=False).
func builtinGroup(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var label string
	var items *starlark.List
	var collapsed bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "label", &label, "items", &items, "collapsed?", &collapsed); err != nil {
		return nil, err
	}
	return entry(b.Name(), map[string]starlark.Value{
		"label":     starlark.String(label),
		"items":     items,
		"collapsed": starlark.Bool(collapsed),
	})
}

// entry builds a sidebar dict, leaving out None and false values.
func entry(fn string, fields map[string]starlark.Value) (*starlark.Dict, error) {
	d := starlark.NewDict(len(fields))
	for k, v := range fields {
		if v == starlark.None || v == starlark.False {
			continue
		}
		if err := d.SetKey(starlark.String(k), v); err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
	}
	return d, nil
}
