package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/kpauljoseph/pagedesk/internal/tui"
)

var errNotTerminal = errors.New("edit needs an interactive terminal, use serve instead")

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <file.pdf>",
		Short: "Edit a document in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(os.Stdin.Fd()) || !term.IsTerminal(os.Stdout.Fd()) {
				return errNotTerminal
			}

			sess, cleanup, err := a.openSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			runErr := tui.Run(sess)
			snap, _ := sess.State()
			cleanup()
			if runErr != nil {
				return fmt.Errorf("terminal editor failed: %w", runErr)
			}

			if snap.CurrentPath != "" && snap.CurrentPath != snap.SourcePath {
				fmt.Fprintf(cmd.OutOrStdout(), "Edited document: %s\n", snap.CurrentPath)
			}
			return nil
		},
	}
}
