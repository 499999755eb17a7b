package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		noColor  bool
	)

	rootCmd := &cobra.Command{
		Use:   "pneumatic",
		Short: "Development server for a browser UI and its server logic",
		Long: `Pneumatic compiles a client entry and a server entry, serves the client
to the browser and runs the server logic in-process, wired to the page over
a WebSocket. Source changes are picked up without restarting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupColor(noColor || os.Getenv("NO_COLOR") != "")
			return setupLogging(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored error output")

	dev := devCmd()
	rootCmd.AddCommand(
		dev,
		buildCmd(),
		initCmd(),
		versionCmd(),
	)

	// Running without a subcommand starts the dev server.
	rootCmd.Flags().AddFlagSet(dev.Flags())
	rootCmd.RunE = dev.RunE

	return rootCmd
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))
	return nil
}

// setupColor switches ANSI colors in formatted errors on or off.
func setupColor(disabled bool) {
	if disabled {
		errors.DisableColors()
	} else {
		errors.EnableColors()
	}
}

// printBanner prints the CLI name and the subcommand.
func printBanner(sub string) {
	fmt.Println()
	fmt.Printf("  %s %s\n", titleStyle.Render("pneumatic"), mutedStyle.Render(sub))
	fmt.Println()
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("%s %s\n", successStyle.Render("✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("%s %s\n", warnStyle.Render("⚠"), fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("✗"), fmt.Sprintf(format, args...))
}
