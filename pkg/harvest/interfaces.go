package harvest

import (
	"context"
	"io"
	"time"

	"imgharvest/pkg/extract"
	"imgharvest/pkg/fetcher"
)

// ImageRecord is one (title, image URL) pair taken from the listing page
type ImageRecord = extract.ImageRecord

// Fetcher defines the HTTP operations the pipeline needs
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchStream(ctx context.Context, url string) (*fetcher.Stream, error)
}

// Extractor turns listing markup into records
type Extractor interface {
	Extract(html string) ([]ImageRecord, error)
}

// Store persists one image body and returns its path
type Store interface {
	Save(r io.Reader, dir, ext string) (string, error)
}

// Throttle delays the next download by a random amount below max
type Throttle interface {
	Wait(ctx context.Context, max time.Duration) error
}
