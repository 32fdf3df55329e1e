package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemstoreGetMissing(t *testing.T) {
	s := NewMemstore()

	_, err := s.Get(context.Background(), "things", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemstoreUpsertReplaceAndMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemstore()

	require.NoError(t, s.Upsert(ctx, "things", "a", map[string]any{"x": 1, "y": 2}, false))
	require.NoError(t, s.Upsert(ctx, "things", "a", map[string]any{"y": 3}, true))

	doc, err := s.Get(ctx, "things", "a")
	require.NoError(t, err)

	var got map[string]float64
	require.NoError(t, json.Unmarshal(doc.Data, &got))
	assert.Equal(t, map[string]float64{"x": 1, "y": 3}, got)

	// Replace drops unmentioned fields.
	require.NoError(t, s.Upsert(ctx, "things", "a", map[string]any{"z": 9}, false))
	doc, err = s.Get(ctx, "things", "a")
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(doc.Data, &got))
	assert.Equal(t, map[string]float64{"z": 9}, got)
}

func TestMemstoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemstore()

	base := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, s.Upsert(ctx, "things", "old", map[string]any{}, false))
	require.NoError(t, s.Upsert(ctx, "things", "new", map[string]any{}, false))

	docs, err := s.List(ctx, "things")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new", docs[0].ID)
	assert.Equal(t, "old", docs[1].ID)
}

func TestMemstoreTransactionAppliesWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemstore()

	require.NoError(t, s.Upsert(ctx, "things", "a", map[string]any{"n": 1}, false))

	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.Get(ctx, "things", "a")
		if err != nil {
			return err
		}
		if err := tx.Put(ctx, "things", "a", doc.Data); err != nil {
			return err
		}
		return tx.Put(ctx, "things", "b", []byte(`{"n":2}`))
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, "things", "b")
	assert.NoError(t, err)
}

func TestMemstoreTransactionErrorDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemstore()

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Put(ctx, "things", "a", []byte(`{}`)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, "things", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemstoreTransactionSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemstore()

	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Put(ctx, "things", "a", []byte(`{"n":1}`)); err != nil {
			return err
		}
		doc, err := tx.Get(ctx, "things", "a")
		if err != nil {
			return err
		}
		assert.JSONEq(t, `{"n":1}`, string(doc.Data))

		if err := tx.Delete(ctx, "things", "a"); err != nil {
			return err
		}
		_, err = tx.Get(ctx, "things", "a")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, "things", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}
