package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/langyo/React-frontback-scaffold/internal/build"
	"github.com/langyo/React-frontback-scaffold/internal/config"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
	"github.com/langyo/React-frontback-scaffold/internal/vfs"
)

func buildCmd() *cobra.Command {
	var (
		mode    string
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Compile both entries once",
		Long: `Compile the client and server entries once and report diagnostics.

The bundles are kept in memory; nothing is written next to the sources.
With --publish they are uploaded to the configured S3 bucket.

Examples:
  pneumatic build
  pneumatic build ./app --mode=production --publish`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if mode != "" {
				v.Set("mode", mode)
			}
			return runBuild(cmd.Context(), v, projectDir(args), publish)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Build mode (development or production)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Upload the bundles to the configured bucket")

	return cmd
}

func runBuild(ctx context.Context, v *viper.Viper, dir string, publish bool) error {
	cfg, err := config.Load(v, dir)
	if err != nil {
		errors.PrintError(err)
		return err
	}

	printBanner("build")

	opts := build.Options{}
	if publish {
		if !cfg.HasPublish() {
			err := errors.New("E120").WithDetail("--publish needs publish.bucket to be set")
			errors.PrintError(err)
			return err
		}
		p, err := build.NewS3PublisherFromConfig(ctx, cfg)
		if err != nil {
			errors.PrintError(err)
			return err
		}
		opts.Publisher = p
	}

	pipeline, err := build.NewPipeline(cfg, vfs.New(), opts)
	if err != nil {
		return err
	}
	if err := pipeline.CheckEntries(); err != nil {
		errors.PrintError(err)
		return err
	}

	start := time.Now()
	report, err := pipeline.Run(ctx)
	for _, w := range report.Warnings {
		warn("%s", w.String())
	}
	if err != nil {
		errors.PrintError(err)
		failed := errors.New("E140").
			WithDetail(cfg.Root).
			Wrap(err)
		return failed
	}

	for _, t := range build.Targets {
		data, _ := pipeline.Artifact(t)
		info("%-7s %d bytes", t, len(data))
	}
	success("Built in %s (%s)", time.Since(start).Round(time.Millisecond), cfg.Mode)
	return nil
}
