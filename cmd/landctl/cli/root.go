// Package cli implements landctl, the offline toolbox for sealing and
// checking portal artifacts without a running server.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds the global flags
type RootOptions struct {
	Format string // "text" | "json"
}

// ValidFormats are the accepted --format values
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the landctl root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "landctl",
		Short:         "Offline tools for land records artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(NewSealCommand(opts))
	cmd.AddCommand(NewVerifyDocCommand(opts))
	cmd.AddCommand(NewVerifyDrawCommand(opts))
	cmd.AddCommand(NewNextStatesCommand(opts))

	return cmd
}
