package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/langyo/React-frontback-scaffold/internal/build"
	"github.com/langyo/React-frontback-scaffold/internal/config"
	"github.com/langyo/React-frontback-scaffold/internal/dev"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

func devCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev [dir]",
		Short: "Start the development server",
		Long: `Start the development server with hot reload.

The dev server watches the project, rebuilds both entries after changes
settle, serves the client bundle at /entry and swaps the running server
logic without dropping the browser connection.

Examples:
  pneumatic dev
  pneumatic dev ./app --port=3000
  PORT=8080 NODE_ENV=development pneumatic`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			return runDev(cmd.Context(), v, projectDir(args))
		},
	}

	addConfigFlags(cmd.Flags())
	return cmd
}

// addConfigFlags declares the flags that override configuration keys.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.IntP("port", "p", config.DefaultPort, "Port to listen on")
	flags.StringP("host", "H", config.DefaultHost, "Host to bind to")
	flags.String("mode", "", "Build mode (development or production)")
	flags.Duration("debounce", config.DefaultDebounce, "Quiet period before a rebuild")
	flags.String("proxy", "", "Upstream URL for requests the dev server does not handle")
}

var flagKeys = map[string]string{
	"port":     "dev.port",
	"host":     "dev.host",
	"mode":     "mode",
	"debounce": "dev.debounce",
	"proxy":    "dev.proxy",
}

// bindFlags binds the changed flags in flags to their configuration keys.
// Unchanged flags leave file and environment values alone.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

func projectDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func runDev(ctx context.Context, v *viper.Viper, dir string) error {
	cfg, err := config.Load(v, dir)
	if err != nil {
		errors.PrintError(err)
		return err
	}

	printBanner("dev")

	var publisher build.Publisher
	if cfg.HasPublish() {
		p, err := build.NewS3PublisherFromConfig(ctx, cfg)
		if err != nil {
			warn("Publishing disabled: %v", err)
		} else {
			publisher = p
			info("Publishing artifacts to s3://%s/%s", cfg.Publish.Bucket, cfg.Publish.Prefix)
		}
	}

	server, err := dev.NewServer(dev.ServerOptions{
		Config:    cfg,
		Publisher: publisher,
		OnBuildComplete: func(report *build.Report) {
			switch {
			case report.Err != nil:
				errorMsg("Build #%d failed", report.Cycle)
				errors.PrintError(report.Err)
			case report.SandboxErr != nil:
				warn("Build #%d compiled, server logic not replaced", report.Cycle)
				errors.PrintError(report.SandboxErr)
			default:
				success("Built #%d in %s", report.Cycle, report.Duration.Round(time.Millisecond))
			}
		},
	})
	if err != nil {
		errors.PrintError(err)
		return err
	}

	if cfg.Path() != "" {
		info("Config:  %s", cfg.Path())
	}
	info("Root:    %s", cfg.Root)
	info("Mode:    %s", cfg.Mode)
	info("Local:   %s", cfg.DevURL())
	if cfg.Dev.Proxy != "" {
		info("Proxy:   %s", cfg.Dev.Proxy)
	}
	info("")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.Start(ctx)
	if ctx.Err() != nil {
		info("")
		info("Shut down")
	}
	if err != nil {
		errors.PrintError(err)
		return err
	}
	return nil
}
