// Package lua runs operator-defined correction scripts. Each script
// defines a global rule(message) function returning nil, or a table
// {action = "name", params = {...}} to append to the validated plan.
// Scripts run sandboxed: no io, os, or network, and a hard timeout.
package lua

import (
	"context"
	"fmt"
	"os"
	"time"

	glua "github.com/yuin/gopher-lua"
)

const scriptTimeout = 2 * time.Second

// Extra is an action a script asked to append.
type Extra struct {
	Action string
	Params map[string]any
}

// RunRule executes the script at path against the user message. A nil
// return with nil error means the rule declined to fire.
func RunRule(path, message string) (*Extra, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lua: read script: %w", err)
	}

	L := glua.NewState(glua.Options{SkipOpenLibs: true})
	defer L.Close()

	// Base libraries only. Anything that touches the host stays out.
	for _, lib := range []struct {
		name string
		fn   glua.LGFunction
	}{
		{glua.BaseLibName, glua.OpenBase},
		{glua.StringLibName, glua.OpenString},
		{glua.TabLibName, glua.OpenTable},
		{glua.MathLibName, glua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(glua.LString(lib.name))
		L.Call(1, 0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), scriptTimeout)
	defer cancel()
	L.SetContext(ctx)

	if err := L.DoString(string(src)); err != nil {
		return nil, fmt.Errorf("lua: %s: %w", path, err)
	}

	fn := L.GetGlobal("rule")
	if fn.Type() != glua.LTFunction {
		return nil, fmt.Errorf("lua: %s: no rule() function", path)
	}
	if err := L.CallByParam(glua.P{Fn: fn, NRet: 1, Protect: true}, glua.LString(message)); err != nil {
		return nil, fmt.Errorf("lua: %s: rule(): %w", path, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	if ret == glua.LNil {
		return nil, nil
	}
	tbl, ok := ret.(*glua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua: %s: rule() must return nil or a table", path)
	}

	name := glua.LVAsString(tbl.RawGetString("action"))
	if name == "" {
		return nil, fmt.Errorf("lua: %s: returned table has no action", path)
	}
	extra := &Extra{Action: name, Params: map[string]any{}}
	if params, ok := tbl.RawGetString("params").(*glua.LTable); ok {
		params.ForEach(func(k, v glua.LValue) {
			extra.Params[glua.LVAsString(k)] = fromLua(v)
		})
	}
	return extra, nil
}

func fromLua(v glua.LValue) any {
	switch val := v.(type) {
	case glua.LBool:
		return bool(val)
	case glua.LNumber:
		return float64(val)
	case glua.LString:
		return string(val)
	case *glua.LTable:
		// Arrays become []any, everything else a map.
		if val.MaxN() > 0 {
			var out []any
			for i := 1; i <= val.MaxN(); i++ {
				out = append(out, fromLua(val.RawGetInt(i)))
			}
			return out
		}
		out := map[string]any{}
		val.ForEach(func(k, v glua.LValue) {
			out[glua.LVAsString(k)] = fromLua(v)
		})
		return out
	default:
		return nil
	}
}
