package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/channeltime/ctw/internal/domain"
	"github.com/channeltime/ctw/internal/store"
)

func TestSetRejectsBadShape(t *testing.T) {
	ctx := context.Background()
	h := New(store.NewMemStore())

	for _, token := range []string{"", "aaa", "aaa.bbb", "a..c", "a.b.c.d"} {
		err := h.Set(ctx, token)
		require.ErrorIs(t, err, domain.ErrBadCredential, "token %q", token)
	}
	require.False(t, h.Held())
}

func TestSetPersistsAndHolds(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	h := New(st)

	require.NoError(t, h.Set(ctx, "aaa.bbb.ccc"))

	token, held := h.Token()
	require.True(t, held)
	require.Equal(t, "aaa.bbb.ccc", token)

	// Restart: a fresh holder restores what was persisted.
	h2 := New(st)
	require.NoError(t, h2.Restore(ctx))
	token, held = h2.Token()
	require.True(t, held)
	require.Equal(t, "aaa.bbb.ccc", token)
}

func TestClearPersistsRemoval(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	h := New(st)

	require.NoError(t, h.Set(ctx, "aaa.bbb.ccc"))
	require.NoError(t, h.Clear(ctx))
	require.False(t, h.Held())

	h2 := New(st)
	require.NoError(t, h2.Restore(ctx))
	require.False(t, h2.Held())
}

func TestRestoreWithNothingPersisted(t *testing.T) {
	h := New(store.NewMemStore())
	require.NoError(t, h.Restore(context.Background()))
	require.False(t, h.Held())
}
