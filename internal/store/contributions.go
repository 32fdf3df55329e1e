// Package store holds typed repositories over the document store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"koon/internal/docstore"
	"koon/internal/utils"
	"koon/pkg/types"
)

const contributionsCollection = "quizContributions"

// ContributionRepository covers the admin review flow for student-submitted
// study files: list, moderate, delete. Submissions themselves come from the
// public site.
type ContributionRepository struct {
	store docstore.Store
}

func NewContributionRepository(store docstore.Store) *ContributionRepository {
	return &ContributionRepository{store: store}
}

func (r *ContributionRepository) Contributions(ctx context.Context) ([]*types.Contribution, error) {
	docs, err := r.store.List(ctx, contributionsCollection)
	if err != nil {
		return nil, utils.WrapError(err, "failed to list contributions")
	}

	out := make([]*types.Contribution, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeContribution(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *ContributionRepository) Contribution(ctx context.Context, id string) (*types.Contribution, error) {
	doc, err := r.store.Get(ctx, contributionsCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, types.ErrContributionNotFound
	}
	if err != nil {
		return nil, utils.WrapErrorf(err, "failed to get contribution %s", id)
	}

	return decodeContribution(doc)
}

// UpdateStatus moderates a contribution. Approval stamps approvedAt.
func (r *ContributionRepository) UpdateStatus(ctx context.Context, id string, status types.ContributionStatus) (*types.Contribution, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid contribution status %q", status)
	}

	c, err := r.Contribution(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"status": status}
	if status == types.ContributionStatusApproved {
		now := time.Now()
		fields["approvedAt"] = now
		c.ApprovedAt = &now
	}

	if err := r.store.Upsert(ctx, contributionsCollection, id, fields, true); err != nil {
		return nil, utils.WrapErrorf(err, "failed to update contribution %s", id)
	}

	c.Status = status
	return c, nil
}

func (r *ContributionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.Contribution(ctx, id); err != nil {
		return err
	}

	return utils.ErrorWrapOrNil(
		r.store.Delete(ctx, contributionsCollection, id),
		"failed to delete contribution",
	)
}

func decodeContribution(doc *docstore.Document) (*types.Contribution, error) {
	var c types.Contribution
	if err := json.Unmarshal(doc.Data, &c); err != nil {
		return nil, fmt.Errorf("decode contribution %s: %w", doc.ID, err)
	}

	c.ID = doc.ID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = doc.CreatedAt
	}
	if !c.Status.Valid() {
		c.Status = types.ContributionStatusPending
	}

	return &c, nil
}
