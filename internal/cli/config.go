package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Load the configuration the way every other command does, check it
against the schema, and print the result with defaults filled in.

Examples:
  chronicle config
  chronicle --config ./chronicle.yaml config --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			f := opts.formatter(cmd)
			if f.Format == "json" {
				return f.Success(cfg)
			}
			enc := yaml.NewEncoder(f.Writer)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return WrapExitError(ExitCommandError, "failed to encode config", err)
			}
			return enc.Close()
		},
	}
}
