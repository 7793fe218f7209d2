//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-ledger/internal/domain/cart"
)

func TestCartStore(t *testing.T) {
	store := NewCartStore(startPostgres(t), time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)

	err = store.Update(ctx, id, func(l *cart.Ledger) error {
		l.Add("2", 1, decimal.RequireFromString("10"))
		l.Add("1", 3, decimal.RequireFromString("19.99"))
		l.ApplyFreebie("2", "1", 1)
		l.ApplyDiscount("TEN", cart.DiscountPercentage, decimal.NewFromInt(10))
		return nil
	})
	require.NoError(t, err)

	err = store.Update(ctx, id, func(l *cart.Ledger) error {
		lines := l.Lines()
		require.Len(t, lines, 2)
		assert.Equal(t, cart.ProductID("2"), lines[0].ProductID)
		assert.Equal(t, cart.ProductID("1"), lines[1].ProductID)
		assert.Equal(t, 1, lines[1].FreebieCount)
		assert.True(t, decimal.RequireFromString("49.98").Equal(l.Subtotal()), l.Subtotal().String())

		v, ok := l.Discount("TEN")
		require.True(t, ok)
		assert.True(t, decimal.RequireFromString("5").Equal(v), v.String())
		return nil
	})
	require.NoError(t, err)
}

func TestCartStore_FailedUpdateIsDiscarded(t *testing.T) {
	store := NewCartStore(startPostgres(t), time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = store.Update(ctx, id, func(l *cart.Ledger) error {
		l.Add("1", 1, decimal.NewFromInt(1))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	require.NoError(t, store.Update(ctx, id, func(l *cart.Ledger) error {
		assert.True(t, l.IsEmpty())
		return nil
	}))
}

func TestCartStore_NotFound(t *testing.T) {
	store := NewCartStore(startPostgres(t), time.Hour)
	ctx := context.Background()
	noop := func(*cart.Ledger) error { return nil }

	assert.ErrorIs(t, store.Update(ctx, "not-a-uuid", noop), cart.ErrCartNotFound)
	assert.ErrorIs(t, store.Update(ctx, "6f1d6c0e-4a57-4c38-9d0a-2f3f3c1f0b11", noop), cart.ErrCartNotFound)
}

func TestCartStore_ConcurrentUpdates(t *testing.T) {
	store := NewCartStore(startPostgres(t), time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			assert.NoError(t, store.Update(ctx, id, func(l *cart.Ledger) error {
				l.Add("1", 1, decimal.NewFromInt(1))
				return nil
			}))
		})
	}
	wg.Wait()

	require.NoError(t, store.Update(ctx, id, func(l *cart.Ledger) error {
		assert.Equal(t, workers, l.TotalQuantity())
		return nil
	}))
}

func TestCartStore_Evict(t *testing.T) {
	store := NewCartStore(startPostgres(t), time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx)
	require.NoError(t, err)

	n, err := store.Evict(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Evict(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	err = store.Update(ctx, id, func(*cart.Ledger) error { return nil })
	assert.ErrorIs(t, err, cart.ErrCartNotFound)
}
