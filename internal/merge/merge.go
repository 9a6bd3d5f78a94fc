// Package merge reconciles a decoded snapshot against the live ledger.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
)

// Policy selects how a snapshot is applied to the target store.
type Policy string

const (
	// PolicyMerge unions the snapshot into the target, deduplicating
	// transactions by content identity. Merging the same snapshot twice is
	// a no-op the second time.
	PolicyMerge Policy = "merge"
	// PolicyReplace discards the target's user data and rebuilds it from
	// the snapshot. System categories are retained and matched by name.
	PolicyReplace Policy = "replace"
)

// ParsePolicy converts a user-supplied policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyMerge:
		return PolicyMerge, nil
	case PolicyReplace:
		return PolicyReplace, nil
	default:
		return "", fmt.Errorf("%w: unknown merge policy %q", common.ErrInvalidConfig, s)
	}
}

// Result reports what a merge changed.
type Result struct {
	CategoriesAdded   int
	TagsAdded         int
	TransactionsAdded int
	DuplicatesSkipped int
}

// Apply reconciles source into store under the given policy. The whole
// operation runs inside a single storage transaction: either every
// reconciled record lands, or the target is left exactly as it was before
// the call and a MergeError is returned.
func Apply(ctx context.Context, store service.Storage, source *model.Snapshot, policy Policy) (*Result, error) {
	if source == nil {
		return nil, &common.MergeError{Reason: "source snapshot is nil"}
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return nil, &common.MergeError{Reason: "failed to begin transaction", Err: err}
	}

	var result *Result
	switch policy {
	case PolicyReplace:
		result, err = replace(ctx, tx, source)
	case PolicyMerge:
		result, err = reconcile(ctx, tx, source)
	default:
		err = fmt.Errorf("unknown merge policy %q", policy)
	}

	if err != nil {
		_ = tx.Rollback()
		if _, ok := err.(*common.MergeError); ok {
			return nil, err
		}
		return nil, &common.MergeError{Reason: "reconciliation aborted, target rolled back", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &common.MergeError{Reason: "failed to commit", Err: err}
	}

	slog.Info("merge applied",
		"policy", policy,
		"categories_added", result.CategoriesAdded,
		"tags_added", result.TagsAdded,
		"transactions_added", result.TransactionsAdded,
		"duplicates_skipped", result.DuplicatesSkipped)

	return result, nil
}

// reconcile implements the Merge policy: categories matched by (name, kind),
// tags by name, transactions by content identity tuple.
func reconcile(ctx context.Context, tx service.Tx, source *model.Snapshot) (*Result, error) {
	result := &Result{}

	catMap, srcKeyByID, err := reconcileCategories(ctx, tx, source, result)
	if err != nil {
		return nil, err
	}

	if err := reconcileTags(ctx, tx, source, result); err != nil {
		return nil, err
	}

	// Existing target transactions, keyed by identity tuple.
	targetCats, err := tx.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	targetKeyByID := make(map[int64]model.CategoryKey, len(targetCats))
	for _, cat := range targetCats {
		targetKeyByID[cat.ID] = cat.Key()
	}

	existing, err := tx.ListTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		key, ok := targetKeyByID[existing[i].CategoryID]
		if !ok {
			return nil, fmt.Errorf("target transaction %d references missing category %d",
				existing[i].ID, existing[i].CategoryID)
		}
		seen[existing[i].IdentityKey(key)] = true
	}

	// Earlier created_at wins among source transactions that duplicate each
	// other; insertion order makes the earlier one canonical and the rest
	// fall into the duplicate branch.
	ordered := make([]model.Transaction, len(source.Transactions))
	copy(ordered, source.Transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	for i := range ordered {
		src := ordered[i]

		srcKey, ok := srcKeyByID[src.CategoryID]
		if !ok {
			return nil, fmt.Errorf("source transaction %d references missing category %d", src.ID, src.CategoryID)
		}

		identity := src.IdentityKey(srcKey)
		if seen[identity] {
			result.DuplicatesSkipped++
			continue
		}

		insert := src
		insert.ID = 0
		insert.CategoryID = catMap[src.CategoryID]
		if _, err := tx.InsertTransaction(ctx, &insert); err != nil {
			return nil, err
		}

		seen[identity] = true
		result.TransactionsAdded++
	}

	return result, nil
}

// reconcileCategories matches source categories into the target by (name,
// kind) and creates the ones that are missing, preserving origin. It returns
// the source-id to target-id translation map and each source category's key.
func reconcileCategories(ctx context.Context, tx service.Tx, source *model.Snapshot, result *Result) (map[int64]int64, map[int64]model.CategoryKey, error) {
	targetCats, err := tx.GetCategories(ctx)
	if err != nil {
		return nil, nil, err
	}
	targetByKey := make(map[model.CategoryKey]int64, len(targetCats))
	for _, cat := range targetCats {
		targetByKey[cat.Key()] = cat.ID
	}

	catMap := make(map[int64]int64, len(source.Categories))
	srcKeyByID := make(map[int64]model.CategoryKey, len(source.Categories))

	for _, src := range source.Categories {
		key := src.Key()
		srcKeyByID[src.ID] = key

		if targetID, ok := targetByKey[key]; ok {
			// Same logical category; System collisions match here too,
			// never duplicate.
			catMap[src.ID] = targetID
			continue
		}

		created, err := tx.CreateCategory(ctx, src.Name, src.Kind, src.Origin)
		if err != nil {
			return nil, nil, err
		}
		catMap[src.ID] = created.ID
		targetByKey[key] = created.ID
		result.CategoriesAdded++
	}

	return catMap, srcKeyByID, nil
}

// reconcileTags creates source tags missing from the target. Matching is by
// exact, case-sensitive name, so no id translation is needed downstream
// because transactions carry tag names.
func reconcileTags(ctx context.Context, tx service.Tx, source *model.Snapshot, result *Result) error {
	targetTags, err := tx.GetTags(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(targetTags))
	for _, tag := range targetTags {
		have[tag.Name] = true
	}

	for _, tag := range source.Tags {
		if have[tag.Name] {
			continue
		}
		if _, err := tx.EnsureTag(ctx, tag.Name); err != nil {
			return err
		}
		have[tag.Name] = true
		result.TagsAdded++
	}

	return nil
}

// replace implements the Replace policy: the target's user data is discarded
// and rebuilt from the snapshot. Fresh target-scoped ids are assigned
// (retained system categories already own theirs) but content lands
// verbatim, including duplicate tuples if the source holds any.
func replace(ctx context.Context, tx service.Tx, source *model.Snapshot) (*Result, error) {
	if err := tx.RemoveUserData(ctx); err != nil {
		return nil, err
	}

	result := &Result{}

	catMap, srcKeyByID, err := reconcileCategories(ctx, tx, source, result)
	if err != nil {
		return nil, err
	}

	if err := reconcileTags(ctx, tx, source, result); err != nil {
		return nil, err
	}

	for i := range source.Transactions {
		src := source.Transactions[i]
		if _, ok := srcKeyByID[src.CategoryID]; !ok {
			return nil, fmt.Errorf("source transaction %d references missing category %d", src.ID, src.CategoryID)
		}

		insert := src
		insert.ID = 0
		insert.CategoryID = catMap[src.CategoryID]
		if _, err := tx.InsertTransaction(ctx, &insert); err != nil {
			return nil, err
		}
		result.TransactionsAdded++
	}

	return result, nil
}
