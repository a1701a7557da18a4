package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/app"
	"github.com/roach88/chronicle/internal/config"
	"github.com/roach88/chronicle/internal/identity"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	// As names the issuing principal. Empty is the console.
	As string
	// At is the issuer's position as world:x,y,z.
	At string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the chronicle CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chronicle",
		Short: "chronicle - world change log",
		Long: `Record block changes in a world, look them up, and roll them back.

Commands take lookup parameters such as a:block-break, p:Steve, r:10 or
s:2h, and flags such as -no-group or -overwrite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (defaults to $"+config.EnvPath+")")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "issue commands as this player")
	cmd.PersistentFlags().StringVar(&opts.At, "at", "", "issuer position as world:x,y,z")

	for _, c := range queryCommands {
		cmd.AddCommand(newQueryCommand(opts, c))
	}
	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewKindsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported once, on stderr for text output and stdout for JSON.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	f := &OutputFormatter{Format: "text", Writer: stderr}
	if format, _ := cmd.PersistentFlags().GetString("format"); format == "json" {
		f.Format = format
		f.Writer = stdout
	}
	_ = f.Failure(err)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig reads the configuration and installs the logger it asks for.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	setupLogging(cmd.ErrOrStderr(), cfg.Log, o.Verbose)
	return cfg, nil
}

// openApp loads the configuration, opens storage and resolves the issuer.
// The caller closes the App.
func (o *RootOptions) openApp(cmd *cobra.Command) (*app.App, identity.Principal, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, identity.Principal{}, err
	}

	a, err := app.New(cmd.Context(), app.Options{Config: cfg})
	if err != nil {
		return nil, identity.Principal{}, WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	p, err := a.Principal(cmd.Context(), o.As, o.At)
	if err != nil {
		_ = a.Close()
		return nil, identity.Principal{}, WrapExitError(ExitFailure, "invalid issuer", err)
	}
	return a, p, nil
}

func setupLogging(w io.Writer, cfg config.LogConfig, verbose bool) {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}
