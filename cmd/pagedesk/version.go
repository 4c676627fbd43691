package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kpauljoseph/pagedesk/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), version.GetDetailedVersionInfo())
			return nil
		},
	}
}
