package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyellow/messenger-bot-go/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of messenger-profile",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Summary())
		},
	}
}
