package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/record"
)

// NewKindsCommand creates the kinds command.
func NewKindsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List event kinds and whether they can be rolled back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := record.Kinds()
			f := opts.formatter(cmd)
			if f.Format == "json" {
				return f.Success(kinds)
			}

			tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EVENT\tACTIONABLE")
			for _, k := range kinds {
				fmt.Fprintf(tw, "%s\t%t\n", k.Name, k.Actionable)
			}
			return tw.Flush()
		},
	}
}
