package build

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ESBuild compiles jobs in-process with esbuild.
type ESBuild struct {
	// Target is the language level of the output.
	Target api.Target
}

// NewESBuild returns an esbuild compiler targeting ES2020.
func NewESBuild() *ESBuild {
	return &ESBuild{Target: api.ES2020}
}

// Compile bundles job.Entry into a single IIFE. Output is returned in memory
// and never written to disk.
func (e *ESBuild) Compile(ctx context.Context, job Job) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := api.BuildOptions{
		EntryPoints:   []string{job.Entry},
		Outfile:       job.Outfile,
		AbsWorkingDir: job.ResolveDir,
		Bundle:        true,
		Write:         false,
		Format:        api.FormatIIFE,
		Target:        e.Target,
		JSX:           api.JSXAutomatic,
		LogLevel:      api.LogLevelSilent,
		Define: map[string]string{
			"process.env.NODE_ENV": strconv.Quote(job.Mode),
		},
		Plugins: []api.Plugin{overlayPlugin(job)},
	}

	switch job.Platform {
	case PlatformHost:
		opts.Platform = api.PlatformNode
	default:
		opts.Platform = api.PlatformBrowser
	}
	if job.Sourcemap {
		opts.Sourcemap = api.SourceMapInline
	}
	if job.Minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}

	res := api.Build(opts)

	result := &Result{
		Outputs:  make(map[string][]byte, len(res.OutputFiles)),
		Errors:   convertMessages(res.Errors),
		Warnings: convertMessages(res.Warnings),
	}
	for _, f := range res.OutputFiles {
		result.Outputs[f.Path] = f.Contents
	}
	return result, nil
}

// overlayPlugin routes every file read through job.FS. The synthetic entry
// only exists there, so it must also be resolved by the plugin.
func overlayPlugin(job Job) api.Plugin {
	return api.Plugin{
		Name: "overlay",
		Setup: func(b api.PluginBuild) {
			b.OnResolve(api.OnResolveOptions{Filter: "^" + regexp.QuoteMeta(job.Entry) + "$"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: job.Entry, Namespace: "file"}, nil
				})

			b.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					loader, ok := loaderFor(args.Path)
					if !ok {
						return api.OnLoadResult{}, nil
					}
					data, err := job.FS.Read(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					contents := string(data)
					return api.OnLoadResult{
						Contents:   &contents,
						Loader:     loader,
						ResolveDir: filepath.Dir(args.Path),
					}, nil
				})
		},
	}
}

// loaderFor picks the esbuild loader for a source file. Unknown extensions
// fall back to esbuild's own loading.
func loaderFor(path string) (api.Loader, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS, true
	case ".tsx":
		return api.LoaderTSX, true
	case ".js", ".mjs", ".cjs":
		return api.LoaderJS, true
	case ".jsx":
		return api.LoaderJSX, true
	case ".json":
		return api.LoaderJSON, true
	case ".css":
		return api.LoaderCSS, true
	case ".txt":
		return api.LoaderText, true
	}
	return api.LoaderNone, false
}

func convertMessages(msgs []api.Message) []Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		msg := Message{Text: m.Text}
		if m.Location != nil {
			msg.File = m.Location.File
			msg.Line = m.Location.Line
			msg.Column = m.Location.Column
			msg.LineText = m.Location.LineText
		}
		out = append(out, msg)
	}
	return out
}
