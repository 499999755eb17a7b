package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	if err := setupLogging("debug"); err != nil {
		t.Fatalf("setupLogging(debug) error = %v", err)
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}

	if err := setupLogging("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSetupColor(t *testing.T) {
	defer setupColor(false)

	setupColor(true)
	if out := errors.New("E201").Format(); strings.Contains(out, "\033[") {
		t.Errorf("colors disabled but output has escapes: %q", out)
	}

	setupColor(false)
	if out := errors.New("E201").Format(); !strings.Contains(out, "\033[") {
		t.Errorf("colors enabled but output is plain: %q", out)
	}
}

func TestRootCommand_NoColorFlag(t *testing.T) {
	if newRootCmd().PersistentFlags().Lookup("no-color") == nil {
		t.Error("root command should define --no-color")
	}
}

func TestBindFlags_OnlyChanged(t *testing.T) {
	cmd := devCmd()
	if err := cmd.Flags().Parse([]string{"--port=3000", "--debounce=250ms"}); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.SetDefault("dev.host", "from-default")
	if err := bindFlags(v, cmd.Flags()); err != nil {
		t.Fatal(err)
	}

	if got := v.GetInt("dev.port"); got != 3000 {
		t.Errorf("dev.port = %d, want 3000", got)
	}
	if got := v.GetDuration("dev.debounce"); got != 250*time.Millisecond {
		t.Errorf("dev.debounce = %v, want 250ms", got)
	}
	if got := v.GetString("dev.host"); got != "from-default" {
		t.Errorf("dev.host = %q, unchanged flag should not override", got)
	}
}

func TestProjectDir(t *testing.T) {
	if got := projectDir(nil); got != "." {
		t.Errorf("projectDir(nil) = %q", got)
	}
	if got := projectDir([]string{"app"}); got != "app" {
		t.Errorf("projectDir(app) = %q", got)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"dev", "build", "init", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("missing subcommand %s", name)
		}
	}
	if root.Flags().Lookup("port") == nil {
		t.Error("root command should accept dev flags")
	}
}

func TestRunInit(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := filepath.Join(t.TempDir(), "demo")

	if err := runInit(fs, dir, "minimal", "", 0); err != nil {
		t.Fatalf("runInit() error = %v", err)
	}
	if ok, _ := afero.Exists(fs, filepath.Join(dir, "src", "serverEntry.ts")); !ok {
		t.Error("server entry not created")
	}

	if err := runInit(fs, dir, "minimal", "", 0); err == nil {
		t.Error("expected error for non-empty directory")
	}
	if err := runInit(fs, filepath.Join(dir, "other"), "nope", "", 0); err == nil {
		t.Error("expected error for unknown template")
	}
}
