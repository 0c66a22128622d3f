package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFormatsCommand(g *globalFlags) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the statement formats and their line processors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load(cmd, ".")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range e.registry.Names() {
				imp := e.registry.Get(name)
				fmt.Fprintln(out, imp.Name())
				for i, p := range imp.Processors() {
					if verbose {
						fmt.Fprintf(out, "  %d. %s  %s\n", i+1, p.Name(), p.Pattern())
					} else {
						fmt.Fprintf(out, "  %d. %s\n", i+1, p.Name())
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show each processor's pattern")
	return cmd
}
