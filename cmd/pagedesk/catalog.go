package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kpauljoseph/pagedesk/internal/scanner"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the catalog of known documents",
	}
	cmd.AddCommand(
		newCatalogListCmd(a),
		newCatalogImportCmd(a),
		newCatalogDeleteCmd(a),
		newCatalogStatsCmd(a),
	)
	return cmd
}

func newCatalogListCmd(a *app) *cobra.Command {
	var filter models.DocumentFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued documents, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.catalog()
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tPAGES\tTYPE\tPATH")
			for _, rec := range recs {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", rec.ID, rec.Title, rec.PageCount, rec.DocumentType, rec.FilePath)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Search, "search", "", "match title, file name or tags")
	cmd.Flags().StringVar(&filter.DocumentType, "type", "", "only documents of this type")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum number of documents")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "skip this many documents")
	return cmd
}

func newCatalogImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Add every PDF under a directory to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.catalog()
			if err != nil {
				return err
			}
			defer store.Close()

			backend, err := a.backend(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := scanner.New(a.log.Named("scanner")).Import(cmd.Context(), args[0], backend, store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d PDF(s): %d imported, %d failed\n",
				stats.PDFCount, stats.Imported, stats.Failed)
			return nil
		},
	}
}

func newCatalogDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a document from the catalog; the file is left alone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			store, err := a.catalog()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %d\n", id)
			return nil
		},
	}
}

func newCatalogStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.catalog()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Documents: %d\n", stats.TotalDocuments)
			fmt.Fprintf(out, "Pages:     %d\n", stats.TotalPages)
			fmt.Fprintf(out, "Size:      %d bytes\n", stats.TotalSize)
			return nil
		},
	}
}
