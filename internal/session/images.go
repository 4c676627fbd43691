package session

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/kpauljoseph/pagedesk/pkg/models"
)

type PageImage struct {
	Page  int
	Image image.Image
	Err   error
}

// PageImages renders the given pages of the current file at scale. Distinct
// pages are fetched concurrently, at most ImageConcurrency at a time, and
// results come back in completion order. A page that fails carries its error
// in Err; the returned error is only set when the session is closed or ctx
// ends.
func (s *Session) PageImages(ctx context.Context, numbers []int, scale float64) ([]PageImage, error) {
	type job struct {
		number   int
		position int
	}

	var (
		path string
		jobs []job
	)
	err := s.do(func() error {
		path = s.doc.CurrentPath
		seen := map[int]bool{}
		for _, n := range numbers {
			if seen[n] {
				continue
			}
			seen[n] = true
			jobs = append(jobs, job{number: n, position: s.pages.Position(n)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, s.opts.ImageConcurrency)
	results := make(chan PageImage, len(jobs))

	var wg sync.WaitGroup
	for _, j := range jobs {
		if j.position == 0 {
			results <- PageImage{Page: j.number, Err: fmt.Errorf("page %d: %w", j.number, models.ErrInvalidSelection)}
			continue
		}
		wg.Add(1)
		go func(j job) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- PageImage{Page: j.number, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			img, err := s.backend.GetPageImage(ctx, path, j.position, scale)
			if err != nil {
				err = fmt.Errorf("failed to render page %d: %w", j.number, err)
			}
			results <- PageImage{Page: j.number, Image: img, Err: err}
		}(j)
	}
	wg.Wait()
	close(results)

	out := make([]PageImage, 0, len(jobs))
	for r := range results {
		out = append(out, r)
	}
	return out, ctx.Err()
}
