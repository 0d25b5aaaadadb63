package localstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/treat_shop/pkg/db"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	gdb, err := db.Open(context.Background(), "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	s, err := New(context.Background(), gdb)
	require.NoError(t, err)
	return s
}

func TestGormStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.Load(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Save(ctx, "cart", []byte(`[{"id":"prod_1"}]`)))
	require.NoError(t, s.Save(ctx, "cart", []byte(`[{"id":"prod_2"}]`)))

	got, err = s.Load(ctx, "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"prod_2"}]`, string(got))

	var count int64
	require.NoError(t, s.DB.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, s.Delete(ctx, "cart"))
	got, err = s.Load(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)
}
