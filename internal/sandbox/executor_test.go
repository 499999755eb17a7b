package sandbox

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langyo/React-frontback-scaffold/internal/bridge"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
	"github.com/langyo/React-frontback-scaffold/internal/vfs"
)

type fixture struct {
	bridge *bridge.Bridge
	exec   *Executor
	out    chan any
	base   afero.Fs
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	base := afero.NewMemMapFs()
	b := bridge.New()
	out := make(chan any, 64)
	b.BindSender("test-conn", func(msg any) error {
		out <- msg
		return nil
	})
	if opts.Root == "" {
		opts.Root = "/p"
	}
	exec := New(b, vfs.NewWithBase(base), opts)
	t.Cleanup(exec.Close)
	return &fixture{bridge: b, exec: exec, out: out, base: base}
}

func (f *fixture) install(t *testing.T, code string) error {
	t.Helper()
	return f.exec.Install(context.Background(), []byte(code))
}

func (f *fixture) next(t *testing.T) any {
	t.Helper()
	select {
	case msg := <-f.out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message from the sandbox")
		return nil
	}
}

func (f *fixture) assertQuiet(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-f.out:
		t.Fatalf("unexpected message %v", msg)
	case <-time.After(wait):
	}
}

func echoCode(tag string) string {
	return `receive(function (msg) { send("` + tag + `:" + msg.text); });`
}

func TestExecutor_InitialState(t *testing.T) {
	f := newFixture(t, Options{})
	assert.Equal(t, StateNoInstance, f.exec.State())
	assert.Nil(t, f.exec.Live())
	assert.False(t, f.bridge.HasReceiver())
}

func TestExecutor_InstallRoutesMessages(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, echoCode("v1")))
	assert.Equal(t, StateLive, f.exec.State())
	assert.Equal(t, 1, f.exec.Live().Generation())

	f.bridge.Receive(map[string]any{"text": "hello"})
	assert.Equal(t, "v1:hello", f.next(t))
}

func TestExecutor_ReplaceRoutesToNewInstance(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, echoCode("v1")))
	require.NoError(t, f.install(t, echoCode("v2")))

	f.bridge.Receive(map[string]any{"text": "x"})
	assert.Equal(t, "v2:x", f.next(t))
	assert.Equal(t, 2, f.exec.Live().Generation())
}

func TestExecutor_FailedInstallKeepsPrevious(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"throw", `receive(function () { send("broken"); }); throw new Error("boom");`, "E301"},
		{"syntax", `receive(function ( {`, "E301"},
		{"type error", `undefinedFunction();`, "E301"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			require.NoError(t, f.install(t, echoCode("v1")))
			live := f.exec.Live()

			err := f.install(t, tt.code)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.want), "got %v", err)
			assert.Same(t, live, f.exec.Live())

			f.bridge.Receive(map[string]any{"text": "still"})
			assert.Equal(t, "v1:still", f.next(t))
		})
	}
}

func TestExecutor_InstallTimeout(t *testing.T) {
	f := newFixture(t, Options{InstallTimeout: 100 * time.Millisecond})
	require.NoError(t, f.install(t, echoCode("v1")))

	err := f.install(t, `receive(function () {}); while (true) {}`)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E302"), "got %v", err)

	f.bridge.Receive(map[string]any{"text": "alive"})
	assert.Equal(t, "v1:alive", f.next(t))
}

func TestExecutor_FirstInstallFailure(t *testing.T) {
	f := newFixture(t, Options{})
	require.Error(t, f.install(t, `throw "nope";`))
	assert.Equal(t, StateNoInstance, f.exec.State())
	assert.False(t, f.bridge.HasReceiver())
}

func TestExecutor_NoHandlerUnbindsReceiver(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, echoCode("v1")))
	require.NoError(t, f.install(t, `var x = 1;`))

	assert.False(t, f.bridge.HasReceiver())
	assert.False(t, f.bridge.Receive(map[string]any{"text": "lost"}))
	f.assertQuiet(t, 50*time.Millisecond)
}

func TestExecutor_LateHandlerRegistration(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, `setTimeout(function () { `+echoCode("late")+` }, 0);`))

	assert.Eventually(t, f.bridge.HasReceiver, 2*time.Second, 10*time.Millisecond)
	f.bridge.Receive(map[string]any{"text": "m"})
	assert.Equal(t, "late:m", f.next(t))
}

func TestExecutor_QueuedMessagesDrainToOldInstance(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, echoCode("v1")))

	for _, text := range []string{"a", "b", "c"} {
		f.bridge.Receive(map[string]any{"text": text})
	}
	require.NoError(t, f.install(t, echoCode("v2")))

	assert.Equal(t, "v1:a", f.next(t))
	assert.Equal(t, "v1:b", f.next(t))
	assert.Equal(t, "v1:c", f.next(t))

	f.bridge.Receive(map[string]any{"text": "d"})
	assert.Equal(t, "v2:d", f.next(t))
}

func TestExecutor_DisposeHooksRun(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, `onDispose(function () { send("bye v1"); });`))
	f.assertQuiet(t, 20*time.Millisecond)

	require.NoError(t, f.install(t, `var v = 2;`))
	assert.Equal(t, "bye v1", f.next(t))
}

func TestExecutor_ReplacedTimersStop(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, `setInterval(function () { send("tick"); }, 5);`))
	assert.Equal(t, "tick", f.next(t))

	require.NoError(t, f.install(t, `var quiet = true;`))
	for len(f.out) > 0 {
		<-f.out
	}
	f.assertQuiet(t, 100*time.Millisecond)
}

func TestExecutor_ClearTimers(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, `
var t = setTimeout(function () { send("cleared timeout fired"); }, 20);
clearTimeout(t);
var n = 0;
var i = setInterval(function () {
	n++;
	if (n === 3) { clearInterval(i); send("done " + n); }
}, 5);
`))
	assert.Equal(t, "done 3", f.next(t))
	f.assertQuiet(t, 60*time.Millisecond)
}

func TestExecutor_CallbackErrorsAreContained(t *testing.T) {
	var mu sync.Mutex
	var got []error
	f := newFixture(t, Options{OnCallbackError: func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	}})
	require.NoError(t, f.install(t, `
receive(function (msg) {
	if (msg.text === "bad") { throw new Error("handler broke"); }
	send("ok:" + msg.text);
});
setTimeout(function () { throw new Error("timer broke"); }, 0);
`))

	f.bridge.Receive(map[string]any{"text": "bad"})
	f.bridge.Receive(map[string]any{"text": "good"})
	assert.Equal(t, "ok:good", f.next(t))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, err := range got {
		assert.True(t, errors.HasCode(err, "E303"), "got %v", err)
	}
}

func TestExecutor_SendReadsCurrentConnection(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, echoCode("v1")))

	second := make(chan any, 1)
	f.bridge.BindSender("second-conn", func(msg any) error {
		second <- msg
		return nil
	})

	f.bridge.Receive(map[string]any{"text": "x"})
	select {
	case msg := <-second:
		assert.Equal(t, "v1:x", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message did not reach the new connection")
	}
	f.assertQuiet(t, 20*time.Millisecond)
}

func TestExecutor_SendWithoutConnection(t *testing.T) {
	f := newFixture(t, Options{})
	f.bridge.ReleaseSender("test-conn")

	require.NoError(t, f.install(t, `
var sent = send("nobody");
receive(function () {});
if (sent !== false) { throw new Error("send should report failure"); }
`))
}

func TestExecutor_Capabilities(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, `send(String(capabilities.version)); send(typeof process);`))
	assert.Equal(t, "1", f.next(t))
	assert.Equal(t, "undefined", f.next(t))
}

func TestExecutor_RequireScopedToRoot(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, afero.WriteFile(f.base, "/p/lib/twice.js",
		[]byte(`module.exports = function (x) { return x * 2; };`), 0o644))
	require.NoError(t, afero.WriteFile(f.base, "/secret.js",
		[]byte(`module.exports = "secret";`), 0o644))

	require.NoError(t, f.install(t, `var twice = require("./lib/twice.js"); send(String(twice(21)));`))
	assert.Equal(t, "42", f.next(t))

	err := f.install(t, `require("../secret.js");`)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E301"))

	err = f.install(t, `require("/secret.js");`)
	require.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestExecutor_ConsoleLogs(t *testing.T) {
	logs := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, `console.log("hello", 42); console.warn("careful"); console.error({a: 1});`))

	out := logs.String()
	assert.Contains(t, out, "hello 42")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, `\"a\":1`)
	assert.Contains(t, out, "component=sandbox")
}

func TestExecutor_Close(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.install(t, `receive(function () {}); onDispose(function () { send("closed"); });`))

	f.exec.Close()
	assert.Equal(t, "closed", f.next(t))
	assert.Equal(t, StateNoInstance, f.exec.State())
	assert.False(t, f.bridge.HasReceiver())
}

func TestScopedLoader(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/p/a.js", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(base, "/outside.js", []byte("o"), 0o644))
	load := scopedLoader(vfs.NewWithBase(base), "/p")

	data, err := load("a.js")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	data, err = load("/p/a.js")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	_, err = load("../outside.js")
	assert.Error(t, err)
	_, err = load("/outside.js")
	assert.Error(t, err)
	_, err = load("missing.js")
	assert.Error(t, err)
}
