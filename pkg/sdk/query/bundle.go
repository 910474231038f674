package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"golang.org/x/sync/errgroup"
)

// BundleResult merges the sub-results of a bundle by name. A failed
// sub-request is reported in Errors and leaves its Data slot empty.
type BundleResult struct {
	Data   map[string]any
	Errors map[string]error
}

// Err returns the error of one sub-request, or nil.
func (r *BundleResult) Err(name string) error {
	return r.Errors[name]
}

// BundleValue returns the typed value of one sub-request.
func BundleValue[T any](r *BundleResult, name string) (T, bool) {
	v, ok := r.Data[name].(T)
	return v, ok
}

// FetchBundle runs every fetcher concurrently and joins them. The first
// sub-request failing with *sdk.AuthError cancels the rest and is returned
// at once; any other failure is kept per name so that the healthy parts
// still render.
func FetchBundle(ctx context.Context, fetchers map[string]Fetcher) (*BundleResult, error) {
	result := &BundleResult{
		Data:   make(map[string]any, len(fetchers)),
		Errors: make(map[string]error),
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	authLost := make(chan error, 1)

	for name, fetch := range fetchers {
		g.Go(func() error {
			data, err := fetch(gctx)
			if err != nil {
				if sdk.IsAuthError(err) {
					select {
					case authLost <- err:
					default:
					}
					return err
				}
				mu.Lock()
				result.Errors[name] = err
				mu.Unlock()
				return nil
			}
			mu.Lock()
			result.Data[name] = data
			mu.Unlock()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-authLost:
		return nil, err
	case err := <-done:
		if err != nil {
			return nil, err
		}
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("bundle: %w", sdk.ErrAborted)
	}
	return result, nil
}
