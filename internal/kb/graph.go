package kb

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrGraphUnavailable indicates the knowledge graph backend could not be
// reached after all retry attempts.
var ErrGraphUnavailable = errors.New("knowledge graph unavailable")

// Graph is the knowledge graph backend used by the Service for free-text
// query and insertion. Two implementations exist: the LightRAG HTTP client
// and the Neo4j-backed graphiti store.
type Graph interface {
	// Query answers a natural-language question against the graph.
	Query(ctx context.Context, query, mode string) (QueryResponse, error)

	// Insert stores a block of text in the graph for later retrieval.
	Insert(ctx context.Context, text string) (InsertResponse, error)
}

// Retry settings for transient backend failures. Attempts are spaced by a
// fixed delay rather than backoff: the backends are local services where a
// short fixed wait covers restarts.
const retryAttempts = 3

// retryDelay is a variable so tests can shorten it.
var retryDelay = 2 * time.Second

// withRetry runs fn up to retryAttempts times, sleeping retryDelay between
// attempts. Context cancellation stops the loop immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == retryAttempts {
			break
		}
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrGraphUnavailable, retryAttempts, err)
}
