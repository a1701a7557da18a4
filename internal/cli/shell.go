package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/app"
	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/param"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/world"
)

const shellHelp = `commands:
  lookup|l, explain, rollback|rb, restore|rs, undo, purge  [parameters...]
  place <world:x,y,z> <block>                  set a block without recording
  capture <event> <cause> <world:x,y,z> <block> set a block and record it
  as [name] [world:x,y,z]                       change the issuer
  flush                                         write queued records
  help
  quit`

// NewShellCommand creates the shell command.
func NewShellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session against one world",
		Long: `Start an interactive session with one in-memory world and one storage
connection. Undo history and placed blocks last until the session ends.

Reads commands from stdin, one per line:
` + shellHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, p, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sh := &shell{app: a, issuer: p, out: opts.formatter(cmd)}
			return sh.run(cmd, cmd.InOrStdin())
		},
	}
}

type shell struct {
	app    *app.App
	issuer identity.Principal
	out    *OutputFormatter
}

func (s *shell) run(cmd *cobra.Command, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	prompt := func() {
		if s.out.Format != "json" {
			fmt.Fprint(s.out.Writer, "chronicle> ")
		}
	}

	prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			prompt()
			continue
		}
		quit, err := s.exec(cmd, line)
		if err != nil {
			_ = s.out.Failure(err)
		}
		if quit {
			return nil
		}
		prompt()
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}
	return nil
}

// exec runs one line and reports whether the session should end.
func (s *shell) exec(cmd *cobra.Command, line string) (bool, error) {
	ctx := cmd.Context()
	fields := param.Tokenize(line)

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Fprintln(s.out.Writer, shellHelp)
		return false, nil

	case "flush":
		n, err := s.app.Flush(ctx)
		if err != nil {
			return false, err
		}
		return false, s.out.Success(fmt.Sprintf("flushed %d record(s)", n))

	case "as":
		name, at := "", ""
		for _, f := range fields[1:] {
			if strings.Contains(f, ":") {
				at = f
			} else {
				name = f
			}
		}
		p, err := s.app.Principal(ctx, name, at)
		if err != nil {
			return false, err
		}
		s.issuer = p
		return false, s.out.Success(fmt.Sprintf("issuer %s", describe(p)))

	case "place":
		if len(fields) != 3 {
			return false, fmt.Errorf("usage: place <world:x,y,z> <block>")
		}
		loc, err := record.ParseLocation(fields[1])
		if err != nil {
			return false, err
		}
		return false, s.app.Place(ctx, loc, world.Block(fields[2]))

	case "capture":
		if len(fields) != 5 {
			return false, fmt.Errorf("usage: capture <event> <cause> <world:x,y,z> <block>")
		}
		if _, ok := record.LookupKind(fields[1]); !ok {
			return false, fmt.Errorf("unknown event %q", fields[1])
		}
		loc, err := record.ParseLocation(fields[3])
		if err != nil {
			return false, err
		}
		return false, s.app.Capture(ctx, fields[1], fields[2], loc, world.Block(fields[4]))
	}

	// Commands see everything captured so far.
	if _, err := s.app.Flush(ctx); err != nil {
		return false, err
	}
	out, err := s.app.Dispatch(ctx, s.issuer, line)
	if err != nil {
		return false, err
	}
	return false, s.out.Outcome(out)
}

func describe(p identity.Principal) string {
	if p.Located() {
		return fmt.Sprintf("%s at %s", p.Name, p.Location)
	}
	return p.Name
}
