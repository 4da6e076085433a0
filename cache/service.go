package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-entity-cache/internal/cacheinfra"
)

var (
	// ErrNotFound is returned by a fetch function, and by GetOrFetch, when
	// the source of truth holds no record for the key.
	ErrNotFound = cacheinfra.ErrNotFound

	// ErrInvalidResultType is returned by GetOrFetch when the cached value
	// is not of the requested type.
	ErrInvalidResultType = errors.New("cache: invalid result type")
)

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn loads a value from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the read-through cache in front of point lookups.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is the type-safe form of CacheService.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T

	result, err := service.GetOrFetch(ctx, key, fetchFn)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %s holds %T, want %T", ErrInvalidResultType, key, result, zero)
	}
	return typed, nil
}

// IsNotFound reports whether err marks an absent record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
