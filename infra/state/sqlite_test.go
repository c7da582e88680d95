package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/homebattery/core/state"
)

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1740837600, 0) }

	_, err = s.Get(ctx, state.KeyChargeMode)
	assert.ErrorIs(t, err, state.ErrNotFound)

	require.NoError(t, s.Set(ctx, state.KeyChargeMode, "Charge"))
	require.NoError(t, s.Set(ctx, state.KeyChargeMode, "Discharge"))
	require.NoError(t, s.Set(ctx, state.KeySocAtStartOfHour, "1520"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, err := s.Get(ctx, state.KeyChargeMode)
	require.NoError(t, err)
	assert.Equal(t, "Discharge", v)
	v, err = s.Get(ctx, state.KeySocAtStartOfHour)
	require.NoError(t, err)
	assert.Equal(t, "1520", v)

	at, err := s.UpdatedAt(ctx, state.KeyChargeMode)
	require.NoError(t, err)
	assert.Equal(t, int64(1740837600), at.Unix())
}

func TestSQLiteStoreImplementsStore(t *testing.T) {
	var _ state.Store = (*SQLiteStore)(nil)
}
