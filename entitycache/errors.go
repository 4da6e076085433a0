package entitycache

import "errors"

var (
	// ErrInvalidID is reported for lookups and removals of ids <= 0. Those
	// calls are skipped without touching the store.
	ErrInvalidID = errors.New("entitycache: id must be positive")

	// ErrSentinel is returned when the not-found sentinel is modified or saved.
	ErrSentinel = errors.New("entitycache: sentinel entity is immutable")

	// ErrForeignEntity is returned when an entity is handed to a table
	// runtime other than the one that created it.
	ErrForeignEntity = errors.New("entitycache: entity belongs to another table")

	// ErrImmutableKey is returned when the key of a saved entity is changed.
	ErrImmutableKey = errors.New("entitycache: key of a saved entity cannot change")
)
