package build

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/langyo/React-frontback-scaffold/internal/config"
	"github.com/langyo/React-frontback-scaffold/internal/vfs"
)

// Target names one of the two bundles produced per cycle.
type Target string

const (
	TargetClient Target = "client"
	TargetServer Target = "server"
)

// Targets lists every target in build order.
var Targets = []Target{TargetClient, TargetServer}

// Platform is the execution environment a target is compiled for.
type Platform string

const (
	PlatformBrowser Platform = "browser"
	PlatformHost    Platform = "host"
)

// Platform returns the environment the target runs in.
func (t Target) Platform() Platform {
	if t == TargetServer {
		return PlatformHost
	}
	return PlatformBrowser
}

// EntryName is the file name of the synthetic entry module.
func (t Target) EntryName() string {
	return "__" + string(t) + ".ts"
}

// ArtifactName is the file name of the compiled bundle.
func (t Target) ArtifactName() string {
	return "__" + string(t) + ".bundle.js"
}

// Layout maps targets to paths under a project root.
type Layout struct {
	Root string
}

// Entry returns the absolute path of the target's synthetic entry.
func (l Layout) Entry(t Target) string {
	return filepath.Join(l.Root, t.EntryName())
}

// Artifact returns the absolute path of the target's bundle.
func (l Layout) Artifact(t Target) string {
	return filepath.Join(l.Root, t.ArtifactName())
}

// Job is one compiler invocation.
type Job struct {
	Target   Target
	Entry    string
	Outfile  string
	Platform Platform

	// Mode is config.ModeDevelopment or config.ModeProduction.
	Mode string

	// Sourcemap inlines a source map into the output.
	Sourcemap bool

	// Minify shrinks the output.
	Minify bool

	// ResolveDir is the directory bare imports are resolved from.
	ResolveDir string

	// FS replaces disk I/O for every module the compiler reads.
	FS vfs.Store
}

// NewJob returns the job for target with the settings that target always
// uses. Only the client depends on cfg's mode; the server bundle is always
// a development build.
func NewJob(t Target, layout Layout, cfg *config.Config, store vfs.Store) Job {
	job := Job{
		Target:     t,
		Entry:      layout.Entry(t),
		Outfile:    layout.Artifact(t),
		Platform:   t.Platform(),
		Mode:       config.ModeDevelopment,
		Sourcemap:  true,
		ResolveDir: layout.Root,
		FS:         store,
	}
	if t == TargetClient && !cfg.IsDevelopment() {
		job.Mode = config.ModeProduction
		job.Sourcemap = false
		job.Minify = true
	}
	return job
}

// Message is a single compiler diagnostic.
type Message struct {
	Text     string
	File     string
	Line     int
	Column   int
	LineText string
}

func (m Message) String() string {
	if m.File == "" {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.File, m.Line, m.Column, m.Text)
}

// Result is the outcome of one Job.
type Result struct {
	// Outputs maps output paths to their contents.
	Outputs  map[string][]byte
	Errors   []Message
	Warnings []Message
}

// Compiler turns a Job into a Result. A returned error means the compiler
// itself failed; diagnostics about the source go in Result.Errors.
type Compiler interface {
	Compile(ctx context.Context, job Job) (*Result, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, job Job) (*Result, error)

func (f CompilerFunc) Compile(ctx context.Context, job Job) (*Result, error) {
	return f(ctx, job)
}
