package dev

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

// Change represents a detected file change. Only the fact that it happened
// drives a rebuild; the path is informational.
type Change struct {
	Path string
	Op   string
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the directories to watch, recursively.
	Paths []string

	// Ignore patterns to skip. A bare name matches any path segment, a
	// pattern with a slash matches consecutive segments, and a pattern with
	// glob characters is matched as a glob.
	Ignore []string
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".DS_Store",
	"*.tmp",
	"*.swp",
	"*~",
	"__*.bundle.js",
}

type ignoreRule struct {
	pattern string
	glob    glob.Glob
	hasSep  bool
}

// Watcher monitors directory trees for changes.
type Watcher struct {
	config   WatcherConfig
	rules    []ignoreRule
	onChange func(Change)
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
}

// NewWatcher creates a new file watcher. Ignore patterns that are not valid
// globs are reported as E120.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}

	rules := make([]ignoreRule, 0, len(config.Ignore))
	for _, pattern := range config.Ignore {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		rule := ignoreRule{
			pattern: pattern,
			hasSep:  strings.Contains(pattern, "/"),
		}
		if strings.ContainsAny(pattern, "*?[{") {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, errors.New("E120").
					WithDetail("invalid ignore pattern " + pattern).
					Wrap(err)
			}
			rule.glob = g
		}
		rules = append(rules, rule)
	}

	return &Watcher{
		config: config,
		rules:  rules,
		logger: slog.Default().With("component", "watcher"),
		ready:  make(chan struct{}),
	}, nil
}

// OnChange sets the callback for file changes.
func (w *Watcher) OnChange(fn func(Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Ready is closed once the initial directory trees are being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Start watches until ctx is done or Stop is called. It returns an E101
// error only when the watcher could not be created at all.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return errors.New("E101").Wrap(err)
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	defer fsw.Close()

	for _, path := range w.config.Paths {
		w.addRecursive(fsw, path)
	}
	w.readyOnce.Do(func() { close(w.ready) })

	for {
		select {
		case <-ctx.Done():
			w.markStopped()
			return nil
		case <-stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "code", "E101", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || w.shouldIgnore(event.Name) {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addRecursive(fsw, event.Name)
		}
	}

	w.mu.Lock()
	callback := w.onChange
	w.mu.Unlock()

	if callback != nil {
		callback(Change{Path: event.Name, Op: event.Op.String()})
	}
}

// addRecursive watches dir and every directory below it that is not ignored.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) {
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if p != root && w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			w.logger.Warn("watch path could not be added", "code", "E102", "path", p, "error", err)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("watch path could not be walked", "code", "E102", "path", root, "error", err)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

func (w *Watcher) markStopped() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, rule := range w.rules {
		if name == rule.pattern {
			return true
		}

		if rule.glob != nil {
			if rule.hasSep {
				if rule.glob.Match(normalized) {
					return true
				}
			} else if rule.glob.Match(name) {
				return true
			}
			continue
		}

		if rule.hasSep {
			if pathMatchesSegments(normalized, rule.pattern) {
				return true
			}
			continue
		}

		if pathHasSegment(normalized, rule.pattern) {
			return true
		}
	}

	return false
}

func pathHasSegment(path, segment string) bool {
	if segment == "" {
		return false
	}
	for _, part := range splitPathSegments(path) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(path, pattern string) bool {
	pathParts := splitPathSegments(path)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}

	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

func splitPathSegments(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
