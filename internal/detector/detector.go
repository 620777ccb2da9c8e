// Package detector implements the two background jobs the worker pool
// drains: duplicate detection (pairwise cosine similarity across live
// memories) and conflict detection (more than one live memory occupying
// the same scope/slot from different owning agents). Both run as
// post-commit background work rather than inline with the write that
// triggered them, so a hot Put never pays an O(n) or O(n^2) scan cost.
package detector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/embedding"
	"github.com/thrr87/hoard/internal/log"
	"github.com/thrr87/hoard/internal/store"
)

// DetectDuplicates scans every live memory carrying an embedding and
// records a memory_duplicate row for any pair whose cosine similarity
// meets or exceeds threshold. Reads run against the reader pool; each
// newly-found pairing is recorded through sub so it lands in the same
// single-writer path as everything else.
func DetectDuplicates(ctx context.Context, reader *sql.DB, sub coordinator.Submitter, threshold float64) (int, error) {
	logger := log.Component("detector")

	memories, err := store.ListAllWithEmbeddings(ctx, reader)
	if err != nil {
		return 0, fmt.Errorf("detect duplicates: list: %w", err)
	}

	found := 0
	for i := 0; i < len(memories); i++ {
		for j := i + 1; j < len(memories); j++ {
			a, b := memories[i], memories[j]
			sim := embedding.CosineSimilarity(a.Embedding, b.Embedding)
			if sim < threshold {
				continue
			}

			id := uuid.NewString()
			_, err := sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
				return nil, store.RecordDuplicate(ctx, tx, id, a.ID, b.ID, sim)
			})
			if err != nil {
				return found, fmt.Errorf("detect duplicates: record %s/%s: %w", a.ID, b.ID, err)
			}
			found++
			logger.Debug().Str("memory_a", a.ID).Str("memory_b", b.ID).Float64("similarity", sim).Msg("duplicate recorded")
		}
	}

	return found, nil
}

// DetectConflicts groups live memories by scope/slot and opens a
// memory_conflict for any group with more than one distinct owning agent.
// A scope/slot normally has exactly one live memory (Supersede replaces
// the prior one); a second live row from a different agent means two
// agents wrote the same slot without coordinating through Supersede.
func DetectConflicts(ctx context.Context, reader *sql.DB, sub coordinator.Submitter) (int, error) {
	logger := log.Component("detector")

	type slotKey struct{ scope, slot string }
	groups := make(map[slotKey][]store.Memory)

	scopes, err := listDistinctScopes(ctx, reader)
	if err != nil {
		return 0, fmt.Errorf("detect conflicts: list scopes: %w", err)
	}
	for _, scope := range scopes {
		memories, err := store.ListLiveByScope(ctx, reader, scope)
		if err != nil {
			return 0, fmt.Errorf("detect conflicts: list scope %s: %w", scope, err)
		}
		for _, m := range memories {
			key := slotKey{scope: m.Scope, slot: m.Slot}
			groups[key] = append(groups[key], m)
		}
	}

	opened := 0
	for key, members := range groups {
		if !hasDistinctOwners(members) {
			continue
		}
		already, err := store.HasOpenConflict(ctx, reader, key.scope, key.slot)
		if err != nil {
			return opened, fmt.Errorf("detect conflicts: check existing %s/%s: %w", key.scope, key.slot, err)
		}
		if already {
			continue
		}

		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.ID
		}

		id := uuid.NewString()
		_, err := sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
			return nil, store.OpenConflict(ctx, tx, id, key.scope, key.slot, ids)
		})
		if err != nil {
			return opened, fmt.Errorf("detect conflicts: open %s/%s: %w", key.scope, key.slot, err)
		}
		opened++
		logger.Info().Str("scope", key.scope).Str("slot", key.slot).Int("members", len(ids)).Msg("conflict opened")
	}

	return opened, nil
}

func hasDistinctOwners(members []store.Memory) bool {
	if len(members) < 2 {
		return false
	}
	owner := members[0].OwnerAgent
	for _, m := range members[1:] {
		if m.OwnerAgent != owner {
			return true
		}
	}
	return false
}

func listDistinctScopes(ctx context.Context, reader *sql.DB) ([]string, error) {
	rows, err := reader.QueryContext(ctx, `SELECT DISTINCT scope FROM memory WHERE status = 'live'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}
