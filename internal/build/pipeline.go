package build

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/langyo/React-frontback-scaffold/internal/config"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
	"github.com/langyo/React-frontback-scaffold/internal/vfs"
)

const tracerName = "pneumatic/build"

// Installer receives the server bundle after a successful cycle.
type Installer interface {
	Install(ctx context.Context, code []byte) error
}

// Publisher mirrors the artifacts of a successful cycle somewhere else.
type Publisher interface {
	Publish(ctx context.Context, artifacts map[Target][]byte) error
}

// Options configures a Pipeline.
type Options struct {
	// Compiler compiles each target. Defaults to esbuild.
	Compiler Compiler

	// Sandbox receives the server bundle. Optional.
	Sandbox Installer

	// Publisher mirrors artifacts after install. Optional.
	Publisher Publisher

	// OnBuildStart is called before a cycle compiles anything.
	OnBuildStart func()

	// OnBuildComplete is called with the report of every cycle.
	OnBuildComplete func(*Report)
}

// Report describes one build cycle.
type Report struct {
	Cycle    int
	Started  time.Time
	Duration time.Duration

	// Errors and Warnings are the diagnostics of both targets.
	Errors   []Message
	Warnings []Message

	// Err is set when nothing was installed.
	Err error

	// SandboxErr is set when the artifacts were installed but the server
	// bundle failed to start. The previous server logic keeps running.
	SandboxErr error
}

// OK reports whether the cycle installed new artifacts.
func (r *Report) OK() bool {
	return r.Err == nil
}

// Pipeline runs build cycles. Cycles never overlap.
type Pipeline struct {
	config  *config.Config
	overlay *vfs.Overlay
	layout  Layout
	options Options
	logger  *slog.Logger
	tracer  trace.Tracer

	mu    sync.Mutex
	cycle int
	last  atomic.Pointer[Report]
}

// NewPipeline registers the synthetic entries for cfg in overlay and returns
// a pipeline that compiles through them.
func NewPipeline(cfg *config.Config, overlay *vfs.Overlay, options Options) (*Pipeline, error) {
	if options.Compiler == nil {
		options.Compiler = NewESBuild()
	}

	layout := Layout{Root: cfg.Root}
	entries := map[Target]string{
		TargetClient: cfg.ClientEntryPath(),
		TargetServer: cfg.ServerEntryPath(),
	}
	for _, t := range Targets {
		if err := overlay.AddForwardingEntry(layout.Entry(t), entries[t]); err != nil {
			return nil, fmt.Errorf("register %s entry: %w", t, err)
		}
	}

	return &Pipeline{
		config:  cfg,
		overlay: overlay,
		layout:  layout,
		options: options,
		logger:  slog.Default().With("component", "build"),
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Layout returns the paths the pipeline compiles from and to.
func (p *Pipeline) Layout() Layout {
	return p.layout
}

// CheckEntries returns an E121 error for the first real entry file that does
// not exist.
func (p *Pipeline) CheckEntries() error {
	for _, path := range []string{p.config.ClientEntryPath(), p.config.ServerEntryPath()} {
		if !p.overlay.Exists(path) {
			return errors.New("E121").
				WithDetail(path).
				WithSuggestion("Create the file or set entries.client / entries.server in pneumatic.json")
		}
	}
	return nil
}

// Artifact returns the installed bundle for t. It reports false until the
// first successful cycle.
func (p *Pipeline) Artifact(t Target) ([]byte, bool) {
	path := p.layout.Artifact(t)
	if !p.overlay.InMemory(path) {
		return nil, false
	}
	data, err := p.overlay.Read(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// LastReport returns the report of the most recent cycle, or nil.
func (p *Pipeline) LastReport() *Report {
	return p.last.Load()
}

// Run performs one build cycle. The returned error is the same as
// Report.Err; a sandbox failure is reported in Report.SandboxErr only.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycle++
	report := &Report{Cycle: p.cycle, Started: time.Now()}

	ctx, span := p.tracer.Start(ctx, "build.cycle",
		trace.WithAttributes(
			attribute.Int("build.cycle", report.Cycle),
			attribute.String("build.mode", p.config.Mode),
		),
	)
	defer span.End()

	if p.options.OnBuildStart != nil {
		p.options.OnBuildStart()
	}

	p.run(ctx, report)

	report.Duration = time.Since(report.Started)
	span.SetAttributes(
		attribute.Int("build.errors", len(report.Errors)),
		attribute.Int("build.warnings", len(report.Warnings)),
	)
	if report.Err != nil {
		span.RecordError(report.Err)
		span.SetStatus(codes.Error, report.Err.Error())
	} else if report.SandboxErr != nil {
		span.RecordError(report.SandboxErr)
		span.SetStatus(codes.Error, "sandbox install failed")
	}

	p.last.Store(report)
	if p.options.OnBuildComplete != nil {
		p.options.OnBuildComplete(report)
	}
	return report, report.Err
}

func (p *Pipeline) run(ctx context.Context, report *Report) {
	results, err := p.compileAll(ctx)
	if err != nil {
		report.Err = err
		p.logger.Error("compiler crashed", "cycle", report.Cycle, "error", err)
		return
	}

	for _, res := range results {
		report.Errors = append(report.Errors, res.Errors...)
	}
	for _, res := range results {
		report.Warnings = append(report.Warnings, res.Warnings...)
	}

	if len(report.Errors) > 0 {
		cerr := compileError(p.layout.Root, report.Errors, report.Warnings)
		report.Err = cerr
		p.logger.Error("build failed",
			"cycle", report.Cycle,
			"errors", len(report.Errors),
			"warnings", len(report.Warnings),
			"error", cerr.FormatCompact(),
			"diagnostics", cerr.Detail,
		)
		return
	}
	for _, w := range report.Warnings {
		p.logger.Warn("build warning", "cycle", report.Cycle, "warning", w.String())
	}

	artifacts := make(map[Target][]byte, len(Targets))
	files := make(map[string][]byte, len(Targets))
	for i, t := range Targets {
		path := p.layout.Artifact(t)
		data, ok := artifactFrom(results[i], path)
		if !ok {
			report.Err = errors.New("E203").WithDetail(string(t))
			p.logger.Error("compiler produced no output", "cycle", report.Cycle, "target", t)
			return
		}
		artifacts[t] = data
		files[path] = data
	}

	if err := p.overlay.Install(files); err != nil {
		report.Err = fmt.Errorf("install artifacts: %w", err)
		p.logger.Error("artifact install failed", "cycle", report.Cycle, "error", err)
		return
	}

	p.logger.Info("build complete",
		"cycle", report.Cycle,
		"client_bytes", len(artifacts[TargetClient]),
		"server_bytes", len(artifacts[TargetServer]),
		"duration", time.Since(report.Started).Round(time.Millisecond),
	)

	if p.options.Sandbox != nil {
		if err := p.options.Sandbox.Install(ctx, artifacts[TargetServer]); err != nil {
			report.SandboxErr = err
			p.logger.Error("server logic not replaced", "cycle", report.Cycle, "error", err)
		}
	}

	if p.options.Publisher != nil {
		if err := p.options.Publisher.Publish(ctx, artifacts); err != nil {
			p.logger.Warn("artifact publish failed", "cycle", report.Cycle, "error", err)
		}
	}
}

// compileAll compiles every target concurrently and returns the results in
// Targets order once all of them are done.
func (p *Pipeline) compileAll(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(Targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range Targets {
		g.Go(func() error {
			res, err := p.compile(gctx, t)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) compile(ctx context.Context, t Target) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.New("E202").WithDetail(fmt.Sprintf("%s target: panic: %v", t, r))
		}
	}()

	job := NewJob(t, p.layout, p.config, p.overlay)
	res, err = p.options.Compiler.Compile(ctx, job)
	if err != nil {
		return nil, errors.New("E202").WithDetail(string(t) + " target").Wrap(err)
	}
	if res == nil {
		return nil, errors.New("E203").WithDetail(string(t) + " target")
	}
	return res, nil
}

// compileError joins every error and then every warning into one E201.
func compileError(root string, errs, warnings []Message) *errors.DevError {
	lines := make([]string, 0, len(errs)+len(warnings))
	for _, m := range errs {
		lines = append(lines, m.String())
	}
	for _, m := range warnings {
		lines = append(lines, "warning: "+m.String())
	}

	err := errors.New("E201").WithDetail(strings.Join(lines, "\n"))
	if first := errs[0]; first.File != "" && first.Line > 0 {
		file := first.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(root, file)
		}
		err = err.WithLocation(file, first.Line, first.Column)
	}
	return err
}

// artifactFrom finds the bundle for path in res. A compiler that reports a
// single output under a different name is accepted.
func artifactFrom(res *Result, path string) ([]byte, bool) {
	if data, ok := res.Outputs[path]; ok {
		return data, true
	}
	if len(res.Outputs) == 1 {
		for name, data := range res.Outputs {
			if strings.HasSuffix(name, ".js") {
				return data, true
			}
		}
	}
	return nil, false
}
