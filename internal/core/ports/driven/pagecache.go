package driven

import "context"

// PageCache stores fetched pages so repeat scrapes skip the network.
type PageCache interface {
	// Get returns the cached page and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a page under key.
	Put(ctx context.Context, key string, page []byte) error
}
