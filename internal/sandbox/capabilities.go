package sandbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/langyo/React-frontback-scaffold/internal/vfs"
)

// CapabilityVersion is exposed to bundles as capabilities.version.
const CapabilityVersion = 1

// inject installs every capability on vm. It must run on the instance loop.
func (inst *Instance) inject(vm *goja.Runtime) error {
	console := vm.NewObject()
	levels := map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"debug": slog.LevelDebug,
	}
	for name, level := range levels {
		if err := console.Set(name, inst.consoleFunc(vm, level)); err != nil {
			return err
		}
	}

	capabilities := vm.NewObject()
	if err := capabilities.Set("version", CapabilityVersion); err != nil {
		return err
	}

	globals := map[string]any{
		"console":       console,
		"capabilities":  capabilities,
		"setTimeout":    inst.setTimer(vm, false),
		"setInterval":   inst.setTimer(vm, true),
		"clearTimeout":  inst.clearTimer,
		"clearInterval": inst.clearTimer,
		"receive":       inst.receiveFunc(vm),
		"send":          inst.sendFunc(vm),
		"onDispose":     inst.onDisposeFunc(vm),
	}
	for name, value := range globals {
		if err := vm.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (inst *Instance) consoleFunc(vm *goja.Runtime, level slog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, formatValue(arg))
		}
		inst.logger.Log(context.Background(), level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// formatValue renders objects as JSON and everything else as its string form.
func formatValue(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if _, isFunc := goja.AssertFunction(obj); !isFunc && obj.ClassName() != "Error" {
			if data, err := obj.MarshalJSON(); err == nil {
				return string(data)
			}
		}
	}
	return v.String()
}

// setTimer wraps the loop timers so exceptions thrown by callbacks are logged.
func (inst *Instance) setTimer(vm *goja.Runtime, repeating bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("timer callback is not a function"))
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}

		kind := "timeout"
		if repeating {
			kind = "interval"
		}
		run := func(*goja.Runtime) {
			if _, err := fn(goja.Undefined(), args...); err != nil {
				inst.callbackFailed(kind, err)
			}
		}

		if repeating {
			return vm.ToValue(inst.loop.SetInterval(run, delay))
		}
		return vm.ToValue(inst.loop.SetTimeout(run, delay))
	}
}

func (inst *Instance) clearTimer(call goja.FunctionCall) goja.Value {
	switch t := call.Argument(0).Export().(type) {
	case *eventloop.Timer:
		inst.loop.ClearTimeout(t)
	case *eventloop.Interval:
		inst.loop.ClearInterval(t)
	}
	return goja.Undefined()
}

func (inst *Instance) receiveFunc(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("receive expects a function"))
		}
		inst.handler = fn
		inst.executor.handlerRegistered(inst)
		return goja.Undefined()
	}
}

// sendFunc looks up the connection when called, so a bundle always sends
// to the most recent one.
func (inst *Instance) sendFunc(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if err := inst.executor.bridge.Send(call.Argument(0).Export()); err != nil {
			inst.logger.Warn("send failed", "error", err)
			return vm.ToValue(false)
		}
		return vm.ToValue(true)
	}
}

func (inst *Instance) onDisposeFunc(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("onDispose expects a function"))
		}
		inst.disposers = append(inst.disposers, fn)
		return goja.Undefined()
	}
}

// scopedLoader reads modules through store and refuses anything outside root.
// Relative paths are taken relative to root.
func scopedLoader(store vfs.Store, root string) require.SourceLoader {
	return func(p string) ([]byte, error) {
		path := filepath.FromSlash(p)
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		path = filepath.Clean(path)

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, require.ModuleFileDoesNotExistError
		}

		data, err := store.Read(path)
		if err != nil {
			return nil, require.ModuleFileDoesNotExistError
		}
		return data, nil
	}
}
