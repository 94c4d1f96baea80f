package service

import (
	"context"

	"github.com/rs/zerolog"
)

// DiscardResult is the outcome of one rollback deletion.
type DiscardResult struct {
	Key string
	Err error
}

// Discard best-effort deletes every key uploaded by a failed request and
// returns per-key outcomes. It never fails: a rollback error must not mask
// the failure that triggered it, so each one is logged and carried in the
// result instead.
func Discard(ctx context.Context, store ObjectStore, keys []string) []DiscardResult {
	results := make([]DiscardResult, 0, len(keys))
	for _, key := range keys {
		err := store.Remove(ctx, key)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("object_key", key).Msg("failed to delete object during rollback")
		} else {
			zerolog.Ctx(ctx).Info().Str("object_key", key).Msg("rolled back uploaded object")
		}
		results = append(results, DiscardResult{Key: key, Err: err})
	}
	return results
}
