// Package extraction holds the adapters for the two external AI collaborators
// the pipeline depends on: generative recomposition and background removal.
// Both surface failures as classified domain.StageError values so the
// orchestrator never parses error text.
package extraction

import "context"

// Recomposer redraws the printed design from a garment photo as a large
// high-resolution graphic on a contrasting solid background. The source may be
// a local filesystem path or a fetchable http(s) URL.
type Recomposer interface {
	Recompose(ctx context.Context, source string) ([]byte, error)
}

// BackgroundRemover strips the background from an image, returning the same
// subject with alpha transparency.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, image []byte) ([]byte, error)
}
