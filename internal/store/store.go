// Package store defines the capability contract the engine requires from the
// external datastore and ships two implementations: Redis for production and
// an in-memory store for dry runs and tests.
package store

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
)

// ErrNotFound reports an absent hash field. It is distinct from transport
// errors so callers can treat it as an engine/store inconsistency rather
// than a transient failure.
var ErrNotFound = errors.New("store: not found")

// ScoredMember is one member of a range-ordered set together with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Tx batches mutations that must be observed as a unit by other workers.
// Operations are applied in order; a Tx never reads.
type Tx interface {
	HSet(key, field, value string)
	HDel(key string, fields ...string)
	ZAdd(key, member string, score float64)
	ZRem(key string, members ...string)
	RPush(key string, values ...string)
}

// Store is the consumed store contract: blocking queue pops, hash maps,
// range-ordered sets, set membership and atomic multi-operation execution.
// Range bounds are inclusive and accept "-inf"/"+inf".
type Store interface {
	BLPop(ctx context.Context, key string) (string, error)
	RPush(ctx context.Context, key string, values ...string) error

	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key string, fields ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HScanMatch(ctx context.Context, key, pattern string) ([]string, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRangeByScore(ctx context.Context, key, min, max string) ([]ScoredMember, error)
	ZScanMatch(ctx context.Context, key, pattern string) ([]string, error)

	SMembers(ctx context.Context, key string) ([]string, error)

	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Score formats a float64 as an inclusive range bound.
func Score(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
