package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.pdf>",
		Short: "Print document metadata and page dimensions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			backend, err := a.backend(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Engine.Timeout)
			defer cancel()
			info, err := backend.GetDocumentInfo(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:    %s\n", path)
			fmt.Fprintf(out, "Title:   %s\n", info.Title)
			if info.Author != "" {
				fmt.Fprintf(out, "Author:  %s\n", info.Author)
			}
			if !info.CreatedAt.IsZero() {
				fmt.Fprintf(out, "Created: %s\n", info.CreatedAt.Format(time.DateOnly))
			}
			fmt.Fprintf(out, "Pages:   %d\n", info.PageCount)

			dims, err := api.PageDimsFile(path)
			if err != nil {
				a.log.Warn("Could not read page dimensions: %v", err)
				return nil
			}
			for i, dim := range dims {
				fmt.Fprintf(out, "Page %d: %.3f x %.3f points\n", i+1, dim.Width, dim.Height)
			}
			return nil
		},
	}
}
