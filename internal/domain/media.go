package domain

import "context"

// MediaFetcher retrieves attachment bytes from a transport media URL.
// Returns the data and the content type reported by the source.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// PhotoStore writes fetched media somewhere durable and returns the stored
// location for the photo record.
type PhotoStore interface {
	Store(ctx context.Context, data []byte, ownerPhone string, listingID int64, contentType string) (path string, err error)
}
