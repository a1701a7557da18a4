package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/world"
)

// CaptureOptions holds flags for the capture command.
type CaptureOptions struct {
	*RootOptions
	Before string
	After  string
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "capture <event> <cause> <world:x,y,z>",
		Aliases: []string{"record"},
		Short:   "Record one world change",
		Long: `Record one world change, the way a host listener would.

The cause is a player UUID or a free-text cause such as tnt or creeper.

Examples:
  chronicle capture block-break 123e4567-e89b-12d3-a456-426614174000 overworld:10,64,10 --before stone
  chronicle capture block-explode creeper overworld:11,64,10 --before dirt --after air`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Before, "before", world.Air, "block at the position before the change")
	cmd.Flags().StringVar(&opts.After, "after", world.Air, "block at the position after the change")

	return cmd
}

func runCapture(opts *CaptureOptions, args []string, cmd *cobra.Command) error {
	event, cause := args[0], args[1]
	if _, ok := record.LookupKind(event); !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("unknown event %q", event))
	}
	loc, err := record.ParseLocation(args[2])
	if err != nil {
		return WrapExitError(ExitFailure, "invalid location", err)
	}

	a, _, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Recorder().Notify(event, cause, loc, world.Block(opts.Before), world.Block(opts.After)); err != nil {
		return WrapExitError(ExitCommandError, "failed to queue record", err)
	}
	n, err := a.Flush(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to write record", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(map[string]int{"recorded": n})
	}
	return f.Success(fmt.Sprintf("recorded %d change(s)", n))
}
