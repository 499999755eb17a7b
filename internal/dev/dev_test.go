package dev

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/langyo/React-frontback-scaffold/internal/config"
)

func startWatcher(t *testing.T, dirs ...string) (*Watcher, chan Change) {
	t.Helper()

	watcher, err := NewWatcher(WatcherConfig{Paths: dirs})
	if err != nil {
		t.Fatal(err)
	}

	changes := make(chan Change, 64)
	watcher.OnChange(func(c Change) {
		changes <- c
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Start(ctx)

	select {
	case <-watcher.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not become ready")
	}
	return watcher, changes
}

func waitForChange(t *testing.T, changes <-chan Change, path string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Path == path {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for change to %s", path)
		}
	}
}

func TestWatcher_Basic(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "main.ts")
	if err := os.WriteFile(testFile, []byte("export {}"), 0644); err != nil {
		t.Fatal(err)
	}

	watcher, changes := startWatcher(t, tmpDir)
	defer watcher.Stop()

	if err := os.WriteFile(testFile, []byte("export const a = 1;"), 0644); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, changes, testFile)
}

func TestWatcher_NewDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	watcher, changes := startWatcher(t, tmpDir)
	defer watcher.Stop()

	subDir := filepath.Join(tmpDir, "components")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, changes, subDir)

	// The new directory is watched once its create event has been handled.
	time.Sleep(50 * time.Millisecond)

	newFile := filepath.Join(subDir, "Button.tsx")
	if err := os.WriteFile(newFile, []byte("export {}"), 0644); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, changes, newFile)
}

func TestWatcher_IgnoredDirectoryIsSilent(t *testing.T) {
	tmpDir := t.TempDir()
	modules := filepath.Join(tmpDir, "node_modules", "lib")
	if err := os.MkdirAll(modules, 0755); err != nil {
		t.Fatal(err)
	}

	watcher, changes := startWatcher(t, tmpDir)
	defer watcher.Stop()

	if err := os.WriteFile(filepath.Join(modules, "index.js"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(tmpDir, "marker.ts")
	if err := os.WriteFile(marker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-changes:
			if strings.Contains(c.Path, "node_modules") {
				t.Fatalf("change inside node_modules reported: %s", c.Path)
			}
			if c.Path == marker {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for marker change")
		}
	}
}

func TestWatcher_Ignore(t *testing.T) {
	tmpDir := t.TempDir()

	watcher, err := NewWatcher(WatcherConfig{
		Paths:  []string{tmpDir},
		Ignore: []string{"*.test.ts", "vendor", "**/generated/*.ts"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !watcher.shouldIgnore(filepath.Join(tmpDir, "foo.test.ts")) {
		t.Error("Should ignore *.test.ts files")
	}
	if !watcher.shouldIgnore(filepath.Join(tmpDir, "vendor", "lib.ts")) {
		t.Error("Should ignore vendor directory")
	}
	if !watcher.shouldIgnore(filepath.Join(tmpDir, "src", "generated", "api.ts")) {
		t.Error("Should ignore generated sources")
	}
	if watcher.shouldIgnore(filepath.Join(tmpDir, "main.ts")) {
		t.Error("Should not ignore main.ts")
	}
}

func TestWatcher_DefaultIgnore(t *testing.T) {
	watcher, err := NewWatcher(WatcherConfig{Paths: []string{"."}})
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		filepath.Join("app", ".git", "HEAD"),
		filepath.Join("app", "node_modules", "react", "index.js"),
		filepath.Join("app", "__client.bundle.js"),
		filepath.Join("app", "main.ts.swp"),
	} {
		if !watcher.shouldIgnore(path) {
			t.Errorf("Should ignore %s", path)
		}
	}
}

func TestWatcher_IgnoreSegments(t *testing.T) {
	watcher, err := NewWatcher(WatcherConfig{
		Paths:  []string{"."},
		Ignore: []string{"tmp", "build/out"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !watcher.shouldIgnore(filepath.Join("foo", "tmp", "bar.ts")) {
		t.Error("Should ignore tmp directory segment")
	}
	if watcher.shouldIgnore(filepath.Join("foo", "attempt.ts")) {
		t.Error("Should not ignore substring match")
	}
	if !watcher.shouldIgnore(filepath.Join("foo", "build", "out", "a.js")) {
		t.Error("Should ignore consecutive segments")
	}
	if watcher.shouldIgnore(filepath.Join("foo", "build", "a.js")) {
		t.Error("Should not ignore partial segment pattern")
	}
}

func TestWatcher_InvalidPattern(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{Ignore: []string{"[unclosed"}})
	if err == nil {
		t.Fatal("expected error for invalid glob")
	}
}

func TestWatcher_IsRunning(t *testing.T) {
	watcher, err := NewWatcher(WatcherConfig{
		Paths: []string{"."},
	})
	if err != nil {
		t.Fatal(err)
	}

	if watcher.IsRunning() {
		t.Error("Watcher should not be running initially")
	}
}

func TestCollectWatchPaths(t *testing.T) {
	cfg := config.New()
	cfg.Root = filepath.Join(string(filepath.Separator), "project")
	cfg.Dev.Watch = []string{"../shared", "/abs/lib", ".", "../shared/"}

	got := CollectWatchPaths(cfg)
	want := []string{
		cfg.Root,
		filepath.Join(string(filepath.Separator), "shared"),
		filepath.Join(string(filepath.Separator), "abs", "lib"),
	}
	if len(got) != len(want) {
		t.Fatalf("CollectWatchPaths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CollectWatchPaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
