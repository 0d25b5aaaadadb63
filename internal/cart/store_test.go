package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{data: map[string][]byte{}} }

func (m *memStorage) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memStorage) Save(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type stubChecker struct {
	mu          sync.Mutex
	unavailable map[string]bool
	gate        chan struct{}
	entered     chan struct{}
}

func (c *stubChecker) CheckAvailable(ctx context.Context, productID string) error {
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable[productID] {
		return errors.New("404")
	}
	return nil
}

func biscuit() Item {
	return Item{ID: "prod_biscuit", Name: "Biscuit", PriceID: "price_biscuit", Price: decimal.RequireFromString("4.50"), Currency: "cad"}
}

func jerky() Item {
	return Item{ID: "prod_jerky", Name: "Jerky", PriceID: "price_jerky", Price: decimal.RequireFromString("9.00"), Currency: "cad"}
}

func TestStore_AddItemIncrementsExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newMemStorage()
	s, err := Open(ctx, st, &stubChecker{})
	require.NoError(t, err)

	require.NoError(t, s.AddItem(ctx, biscuit()))
	require.NoError(t, s.AddItem(ctx, biscuit()))
	require.NoError(t, s.AddItem(ctx, jerky()))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].Quantity)
	assert.Equal(t, int64(1), items[1].Quantity)
	assert.Equal(t, int64(3), s.TotalItems())
	assert.True(t, decimal.RequireFromString("18.00").Equal(s.TotalPrice()))

	reopened, err := Open(ctx, st, &stubChecker{})
	require.NoError(t, err)
	again := reopened.Items()
	require.Len(t, again, 2)
	for i := range items {
		assert.Equal(t, items[i].ID, again[i].ID)
		assert.Equal(t, items[i].Quantity, again[i].Quantity)
		assert.True(t, items[i].Price.Equal(again[i].Price))
	}
}

func TestStore_AddItemRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var notices []Notice
	checker := &stubChecker{unavailable: map[string]bool{"prod_jerky": true}}
	s, err := Open(ctx, newMemStorage(), checker, WithNotify(func(n Notice) { notices = append(notices, n) }))
	require.NoError(t, err)

	free := biscuit()
	free.Price = decimal.Zero
	assert.ErrorIs(t, s.AddItem(ctx, free), ErrInvalidItem)

	assert.ErrorIs(t, s.AddItem(ctx, jerky()), ErrUnavailable)
	assert.Empty(t, s.Items())
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeUnavailable, notices[0].Kind)
}

func TestStore_AddItemSuppressesDuplicateInFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	checker := &stubChecker{}
	s, err := Open(ctx, newMemStorage(), checker)
	require.NoError(t, err)

	checker.gate = make(chan struct{})
	checker.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- s.AddItem(ctx, biscuit()) }()
	<-checker.entered

	assert.ErrorIs(t, s.AddItem(ctx, biscuit()), ErrAddInFlight)

	close(checker.gate)
	require.NoError(t, <-done)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].Quantity)
}

func TestStore_UpdateQuantityZeroRemoves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Open(ctx, newMemStorage(), &stubChecker{})
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, biscuit()))
	require.NoError(t, s.AddItem(ctx, jerky()))

	require.NoError(t, s.UpdateQuantity(ctx, "prod_jerky", 4))
	assert.Equal(t, int64(5), s.TotalItems())

	require.NoError(t, s.UpdateQuantity(ctx, "prod_jerky", 0))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "prod_biscuit", items[0].ID)

	require.NoError(t, s.RemoveItem(ctx, "prod_missing"))
	assert.Len(t, s.Items(), 1)
}

func TestStore_OpenDropsUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newMemStorage()
	st.data[StorageKey] = []byte(`[
		{"id":"prod_biscuit","name":"Biscuit","priceId":"price_biscuit","price":4.5,"currency":"cad","quantity":2},
		{"id":"prod_jerky","name":"Jerky","priceId":"price_jerky","price":"9.00","currency":"cad","quantity":1}
	]`)

	var dropped []string
	checker := &stubChecker{unavailable: map[string]bool{"prod_jerky": true}}
	s, err := Open(ctx, st, checker, WithNotify(func(n Notice) {
		if n.Kind == NoticeDropped {
			dropped = append(dropped, n.ItemName)
		}
	}))
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "prod_biscuit", items[0].ID)
	assert.Equal(t, []string{"Jerky"}, dropped)
	assert.NotContains(t, string(st.data[StorageKey]), "prod_jerky")
}

func TestStore_OpenToleratesMalformedData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newMemStorage()
	st.data[StorageKey] = []byte(`{not json`)

	s, err := Open(ctx, st, &stubChecker{})
	require.NoError(t, err)
	assert.Empty(t, s.Items())
}

func TestStore_OpenDiscardsMalformedEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newMemStorage()
	st.data[StorageKey] = []byte(`[
		{"id":"prod_biscuit","name":"Biscuit","priceId":"price_biscuit","price":"4.50","currency":"cad","quantity":2},
		{"id":"prod_zero","name":"Zero","priceId":"price_zero","price":"3.00","currency":"cad","quantity":0},
		{"id":"prod_negative","name":"Negative","priceId":"price_negative","price":"3.00","currency":"cad","quantity":-4},
		{"id":"","name":"Nameless","priceId":"price_x","price":"3.00","currency":"cad","quantity":1},
		{"id":"prod_free","name":"Free","priceId":"price_free","price":"0","currency":"cad","quantity":1}
	]`)

	checker := &stubChecker{}
	s, err := Open(ctx, st, checker)
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "prod_biscuit", items[0].ID)
	assert.Equal(t, int64(2), s.TotalItems())
	assert.True(t, s.TotalPrice().Equal(decimal.RequireFromString("9.00")))
	assert.NotContains(t, string(st.data[StorageKey]), "prod_zero")
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newMemStorage()
	s, err := Open(ctx, st, &stubChecker{})
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, biscuit()))

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Items())
	assert.True(t, s.TotalPrice().IsZero())
	_, stored := st.data[StorageKey]
	assert.False(t, stored)
}
