package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/langyo/React-frontback-scaffold/internal/bridge"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
	"github.com/langyo/React-frontback-scaffold/internal/vfs"
)

// ScriptName is the file name server bundles run under. It shows up in stack
// traces.
const ScriptName = "serverEntry.js"

const (
	DefaultInstallTimeout = 10 * time.Second
	DefaultDrainTimeout   = 2 * time.Second
)

// State is the lifecycle state of an Executor.
type State string

const (
	StateNoInstance State = "no-instance"
	StateInstalling State = "installing"
	StateLive       State = "live"
)

// Options configures an Executor.
type Options struct {
	// Root is the directory require() may load modules from.
	Root string

	// InstallTimeout bounds top-level execution of a bundle.
	InstallTimeout time.Duration

	// DrainTimeout bounds how long a replaced instance may take to finish
	// its queued messages and onDispose hooks.
	DrainTimeout time.Duration

	// OnCallbackError is called when a message handler, timer or dispose
	// hook throws.
	OnCallbackError func(error)
}

// Executor installs server bundles and keeps at most one of them live.
type Executor struct {
	bridge  *bridge.Bridge
	store   vfs.Store
	options Options
	logger  *slog.Logger

	// installMu serializes Install and Close.
	installMu  sync.Mutex
	generation int
	installing atomic.Bool

	// bindMu orders bridge rebinding between Install and late receive() calls.
	bindMu sync.Mutex
	live   atomic.Pointer[Instance]
}

// New creates an executor that binds live instances to b and loads modules
// through store.
func New(b *bridge.Bridge, store vfs.Store, options Options) *Executor {
	if options.InstallTimeout <= 0 {
		options.InstallTimeout = DefaultInstallTimeout
	}
	if options.DrainTimeout <= 0 {
		options.DrainTimeout = DefaultDrainTimeout
	}
	return &Executor{
		bridge:  b,
		store:   store,
		options: options,
		logger:  slog.Default().With("component", "sandbox"),
	}
}

// State reports whether an install is running and whether an instance is live.
func (e *Executor) State() State {
	if e.installing.Load() {
		return StateInstalling
	}
	if e.live.Load() != nil {
		return StateLive
	}
	return StateNoInstance
}

// Live returns the live instance, or nil.
func (e *Executor) Live() *Instance {
	return e.live.Load()
}

// Install runs code in a new instance. On success the instance replaces the
// live one. On failure the live instance and the bridge are left as they were.
func (e *Executor) Install(ctx context.Context, code []byte) error {
	e.installMu.Lock()
	defer e.installMu.Unlock()

	e.installing.Store(true)
	defer e.installing.Store(false)

	e.generation++
	inst := newInstance(e, e.generation)

	start := time.Now()
	if err := inst.run(ctx, code); err != nil {
		inst.terminate()
		e.logger.Error("server logic failed to start",
			"generation", inst.generation,
			"code", errors.CodeOf(err),
			"error", err,
		)
		return err
	}

	prev := e.activate(inst)
	e.logger.Info("server logic installed",
		"generation", inst.generation,
		"handler", inst.hasHandler.Load(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if prev != nil {
		prev.dispose(e.options.DrainTimeout)
	}
	return nil
}

// activate makes inst live and points the bridge at it.
func (e *Executor) activate(inst *Instance) *Instance {
	e.bindMu.Lock()
	defer e.bindMu.Unlock()

	prev := e.live.Swap(inst)
	if inst.hasHandler.Load() {
		e.bridge.BindReceiver(inst, inst.deliver)
	} else {
		e.bridge.BindReceiver(inst, nil)
	}
	return prev
}

// handlerRegistered is called on inst's loop whenever it calls receive().
// Registration after top-level code finished takes effect immediately.
func (e *Executor) handlerRegistered(inst *Instance) {
	e.bindMu.Lock()
	defer e.bindMu.Unlock()

	inst.hasHandler.Store(true)
	if e.live.Load() == inst {
		e.bridge.BindReceiver(inst, inst.deliver)
	}
}

// Close disposes the live instance and unbinds it from the bridge.
func (e *Executor) Close() {
	e.installMu.Lock()
	defer e.installMu.Unlock()

	e.bindMu.Lock()
	inst := e.live.Swap(nil)
	if inst != nil {
		e.bridge.ReleaseReceiver(inst)
	}
	e.bindMu.Unlock()

	if inst != nil {
		inst.dispose(e.options.DrainTimeout)
	}
}

// Instance is one execution of a server bundle.
type Instance struct {
	executor   *Executor
	generation int
	loop       *eventloop.EventLoop
	logger     *slog.Logger

	vm        atomic.Pointer[goja.Runtime]
	cancelled atomic.Bool
	disposed  atomic.Bool

	hasHandler atomic.Bool

	// Only touched on the loop.
	handler   goja.Callable
	disposers []goja.Callable
}

func newInstance(e *Executor, generation int) *Instance {
	registry := require.NewRegistry(require.WithLoader(scopedLoader(e.store, e.options.Root)))
	return &Instance{
		executor:   e,
		generation: generation,
		loop: eventloop.NewEventLoop(
			eventloop.WithRegistry(registry),
			eventloop.EnableConsole(false),
		),
		logger: e.logger.With("generation", generation),
	}
}

// Generation is the install counter value this instance was created with.
func (inst *Instance) Generation() int {
	return inst.generation
}

// run starts the loop and executes code on it, waiting at most the install
// timeout.
func (inst *Instance) run(ctx context.Context, code []byte) error {
	inst.loop.Start()

	done := make(chan error, 1)
	inst.loop.RunOnLoop(func(vm *goja.Runtime) {
		inst.vm.Store(vm)
		if inst.cancelled.Load() {
			done <- context.Canceled
			return
		}
		if err := inst.inject(vm); err != nil {
			done <- err
			return
		}
		_, err := vm.RunScript(ScriptName, string(code))
		done <- err
	})

	timeout := inst.executor.options.InstallTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return errors.New("E301").WithDetail(exceptionDetail(err)).Wrap(err)
		}
		return nil
	case <-timer.C:
		inst.interrupt("install timeout")
		inst.awaitUnwind(done)
		return errors.New("E302").WithDetail(fmt.Sprintf("top-level code ran longer than %s", timeout))
	case <-ctx.Done():
		inst.interrupt("install cancelled")
		inst.awaitUnwind(done)
		return errors.New("E301").Wrap(ctx.Err())
	}
}

// awaitUnwind gives interrupted top-level code a moment to return.
func (inst *Instance) awaitUnwind(done <-chan error) {
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func (inst *Instance) interrupt(reason string) {
	inst.cancelled.Store(true)
	if vm := inst.vm.Load(); vm != nil {
		vm.Interrupt(reason)
	}
}

// deliver queues msg for the registered handler.
func (inst *Instance) deliver(msg any) {
	if inst.disposed.Load() {
		inst.logger.Debug("message dropped, instance replaced")
		return
	}
	inst.loop.RunOnLoop(func(vm *goja.Runtime) {
		if inst.handler == nil {
			inst.logger.Debug("message dropped, no handler")
			return
		}
		if _, err := inst.handler(goja.Undefined(), vm.ToValue(msg)); err != nil {
			inst.callbackFailed("receive", err)
		}
	})
}

// dispose lets queued messages finish, runs the onDispose hooks and stops
// the loop.
func (inst *Instance) dispose(timeout time.Duration) {
	if !inst.disposed.CompareAndSwap(false, true) {
		return
	}

	drained := make(chan struct{})
	inst.loop.RunOnLoop(func(*goja.Runtime) {
		defer close(drained)
		for _, fn := range inst.disposers {
			if _, err := fn(goja.Undefined()); err != nil {
				inst.callbackFailed("dispose", err)
			}
		}
	})

	select {
	case <-drained:
	case <-time.After(timeout):
		inst.logger.Warn("replaced instance did not drain in time", "timeout", timeout)
		inst.interrupt("disposed")
	}
	inst.terminate()
	inst.logger.Debug("instance disposed")
}

func (inst *Instance) terminate() {
	inst.disposed.Store(true)
	inst.loop.Terminate()
}

func (inst *Instance) callbackFailed(kind string, err error) {
	devErr := errors.New("E303").WithDetail(kind + ": " + exceptionDetail(err)).Wrap(err)
	inst.logger.Error("server callback failed", "callback", kind, "error", devErr)
	if fn := inst.executor.options.OnCallbackError; fn != nil {
		fn(devErr)
	}
}

// exceptionDetail returns the JavaScript stack when err is a thrown value.
func exceptionDetail(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.String()
	}
	return err.Error()
}
