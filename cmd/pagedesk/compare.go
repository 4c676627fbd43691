package main

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/spf13/cobra"

	"github.com/kpauljoseph/pagedesk/pkg/utils"
)

func newCompareCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "compare <a.pdf> <b.pdf>",
		Short: "Compare two documents page by page: dimensions, text and rendered pixels",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc1, err := fitz.New(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer doc1.Close()

			doc2, err := fitz.New(args[1])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[1], err)
			}
			defer doc2.Close()

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pages: %d vs %d\n", doc1.NumPage(), doc2.NumPage())

			pages := min(doc1.NumPage(), doc2.NumPage())
			differing := 0
			for n := 0; n < pages; n++ {
				same, err := comparePage(out, doc1, doc2, n, outDir)
				if err != nil {
					a.log.Warn("Page %d: %v", n+1, err)
					differing++
					continue
				}
				if !same {
					differing++
				}
			}

			switch {
			case differing == 0 && doc1.NumPage() == doc2.NumPage():
				fmt.Fprintln(out, "Documents render identically")
			default:
				fmt.Fprintf(out, "%d of %d compared page(s) differ\n", differing, pages)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "save rendered pages to this directory")
	return cmd
}

func comparePage(out io.Writer, doc1, doc2 *fitz.Document, n int, outDir string) (bool, error) {
	bounds1, err := doc1.Bound(n)
	if err != nil {
		return false, err
	}
	bounds2, err := doc2.Bound(n)
	if err != nil {
		return false, err
	}
	text1, _ := doc1.Text(n)
	text2, _ := doc2.Text(n)

	img1, err := doc1.Image(n)
	if err != nil {
		return false, fmt.Errorf("render first document: %w", err)
	}
	img2, err := doc2.Image(n)
	if err != nil {
		return false, fmt.Errorf("render second document: %w", err)
	}
	hash1, err := utils.GenerateImageHash(img1)
	if err != nil {
		return false, err
	}
	hash2, err := utils.GenerateImageHash(img2)
	if err != nil {
		return false, err
	}

	sameSize := bounds1.Dx() == bounds2.Dx() && bounds1.Dy() == bounds2.Dy()
	sameText := text1 == text2
	samePixels := hash1 == hash2

	fmt.Fprintf(out, "\nPage %d:\n", n+1)
	fmt.Fprintf(out, "  dimensions: %dx%d vs %dx%d\n", bounds1.Dx(), bounds1.Dy(), bounds2.Dx(), bounds2.Dy())
	fmt.Fprintf(out, "  text identical: %v\n", sameText)
	fmt.Fprintf(out, "  pixels identical: %v\n", samePixels)

	if outDir != "" {
		if err := savePNG(filepath.Join(outDir, fmt.Sprintf("page%d_a.png", n+1)), img1); err != nil {
			return false, err
		}
		if err := savePNG(filepath.Join(outDir, fmt.Sprintf("page%d_b.png", n+1)), img2); err != nil {
			return false, err
		}
	}
	return sameSize && sameText && samePixels, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
