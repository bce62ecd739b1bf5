package repository

import (
	"testing"

	"skillmint/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareAndSet_StaleVersionConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db)
	repo := NewWalletRepository(db)

	w, err := repo.GetOrCreate(u.ID, "INR")
	require.NoError(t, err)
	next := *w
	next.BalanceCents = 10
	require.NoError(t, repo.compareAndSet(w, &next))

	// w still carries the old version
	again := *w
	again.BalanceCents = 20
	assert.ErrorIs(t, repo.compareAndSet(w, &again), ErrVersionConflict)

	got, err := repo.GetByUserID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.BalanceCents)
	assert.Equal(t, int64(1), got.Version)
}
