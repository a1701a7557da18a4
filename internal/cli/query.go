package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type queryCommand struct {
	name    string
	aliases []string
	short   string
	long    string
}

var queryCommands = []queryCommand{
	{
		name:    "lookup",
		aliases: []string{"l"},
		short:   "Search recorded changes",
		long: `Search recorded changes.

Results are grouped by actor, event and target unless -no-group is given.
A player issuing a lookup from a position gets the default radius and time
window unless r: or t: say otherwise.

Examples:
  chronicle lookup a:block-break r:10
  chronicle lookup p:Steve s:2h -no-group
  chronicle --as Alex --at overworld:10,64,10 lookup a:block-explode`,
	},
	{
		name:  "explain",
		short: "Show the backend query a lookup would run",
		long: `Show the backend query a lookup would run, with its arguments.

Example:
  chronicle explain a:block-break r:5`,
	},
	{
		name:    "rollback",
		aliases: []string{"rb"},
		short:   "Revert matching changes",
		long: `Write back the state each matching change replaced, newest first.

Positions that changed since are skipped unless -overwrite is given.
At least one parameter is required.

Examples:
  chronicle rollback a:block-explode s:1h
  chronicle --as Alex --at overworld:0,64,0 rollback p:Griefer r:20 -drain-liquids`,
	},
	{
		name:    "restore",
		aliases: []string{"rs"},
		short:   "Re-apply matching changes",
		long: `Write the state each matching change produced, oldest first.

At least one parameter is required.

Example:
  chronicle restore a:block-place p:Steve s:30m`,
	},
	{
		name:  "undo",
		short: "Revert the issuer's last rollback or restore",
		long: `Revert the issuer's last rollback or restore.

Only flags are accepted. Undo history lives in memory, so it only spans
commands issued within one shell session.

Example:
  chronicle undo -overwrite`,
	},
	{
		name:  "purge",
		short: "Delete matching records",
		long: `Delete matching records from storage.

At least one parameter is required.

Example:
  chronicle purge before:30d`,
	},
}

// newQueryCommand builds a command that passes its arguments to the
// dispatcher under the command's name.
func newQueryCommand(opts *RootOptions, qc queryCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:     qc.name + " [parameters...]",
		Aliases: qc.aliases,
		Short:   qc.short,
		Long:    qc.long,
		// Flags such as -no-group belong to the query, not to cobra.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, qc.name, args, cmd)
		},
	}
	return cmd
}

func runQuery(opts *RootOptions, name string, args []string, cmd *cobra.Command) error {
	tokens, help, err := splitGlobalFlags(cmd, args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	if help {
		return cmd.Help()
	}
	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}

	a, p, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := opts.formatter(cmd)
	line := strings.TrimSpace(name + " " + strings.Join(tokens, " "))
	f.VerboseLog("issuer %s: %s", p.Name, line)

	out, err := a.Dispatch(cmd.Context(), p, line)
	if err != nil {
		return WrapExitError(ExitFailure, name+" failed", err)
	}
	return f.Outcome(out)
}

// splitGlobalFlags applies the root's persistent flags found in args and
// returns the remaining query tokens. Query flags use a single dash
// (-no-group), so only --name and registered one-letter shorthands are taken.
func splitGlobalFlags(cmd *cobra.Command, args []string) ([]string, bool, error) {
	flags := cmd.InheritedFlags()
	var tokens []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--help" || arg == "-h" {
			return nil, true, nil
		}

		var flag *pflag.Flag
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch {
		case strings.HasPrefix(arg, "--"):
			flag = flags.Lookup(name)
			if flag == nil {
				return nil, false, fmt.Errorf("unknown flag: %s", arg)
			}
		case len(name) == 1 && strings.HasPrefix(arg, "-"):
			flag = flags.ShorthandLookup(name)
		}
		if flag == nil {
			tokens = append(tokens, arg)
			continue
		}

		if !hasValue {
			if flag.NoOptDefVal != "" {
				value = flag.NoOptDefVal
			} else {
				if i+1 >= len(args) {
					return nil, false, fmt.Errorf("flag needs an argument: %s", arg)
				}
				i++
				value = args[i]
			}
		}
		if err := flags.Set(flag.Name, value); err != nil {
			return nil, false, fmt.Errorf("flag %s: %w", arg, err)
		}
	}
	return tokens, false, nil
}
