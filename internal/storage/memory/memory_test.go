package memory

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
	"github.com/xenking/kart-ledger/internal/domain/profile"
)

func TestProfileStore(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore()

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, profile.ErrNotFound)

	p := profile.Default()
	require.NoError(t, s.Put(ctx, p))

	p.Email = "mutated@example.com"
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.Default().Email, got.Email, "store keeps its own copy")

	got.Name = "changed"
	again, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.Default().Name, again.Name)

	require.NoError(t, s.Delete(ctx))
	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, profile.ErrNotFound)
	assert.NoError(t, s.Ping(ctx))
}

func TestCartStore_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewCartStore(time.Hour)

	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, s.Len())

	err = s.Update(ctx, id, func(l *cart.Ledger) error {
		l.Add("p1", 2, decimal.NewFromInt(10))
		return nil
	})
	require.NoError(t, err)

	var subtotal decimal.Decimal
	require.NoError(t, s.Update(ctx, id, func(l *cart.Ledger) error {
		subtotal = l.Subtotal()
		return nil
	}))
	assert.True(t, decimal.NewFromInt(20).Equal(subtotal))
}

func TestCartStore_UnknownCart(t *testing.T) {
	s := NewCartStore(time.Hour)

	called := false
	err := s.Update(context.Background(), "missing", func(*cart.Ledger) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, cart.ErrCartNotFound)
	assert.False(t, called)
}

func TestCartStore_PropagatesError(t *testing.T) {
	ctx := context.Background()
	s := NewCartStore(time.Hour)
	id, err := s.Create(ctx)
	require.NoError(t, err)

	err = s.Update(ctx, id, func(l *cart.Ledger) error {
		return l.Remove("nope")
	})
	assert.ErrorIs(t, err, cart.ErrNotFound)

	sentinel := errors.New("boom")
	err = s.Update(ctx, id, func(*cart.Ledger) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestCartStore_SerializesAccess(t *testing.T) {
	ctx := context.Background()
	s := NewCartStore(time.Hour)
	id, err := s.Create(ctx)
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, id, func(l *cart.Ledger) error {
				l.Add("p1", 1, decimal.NewFromInt(1))
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, s.Update(ctx, id, func(l *cart.Ledger) error {
		assert.Equal(t, workers, l.TotalQuantity())
		return nil
	}))
}

func TestCartStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s := NewCartStore(time.Minute)
	s.now = func() time.Time { return now }

	stale, err := s.Create(ctx)
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	fresh, err := s.Create(ctx)
	require.NoError(t, err)

	removed := s.cleanup(now.Add(30 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())

	assert.ErrorIs(t, s.Update(ctx, stale, func(*cart.Ledger) error { return nil }), cart.ErrCartNotFound)
	assert.NoError(t, s.Update(ctx, fresh, func(*cart.Ledger) error { return nil }))
}

func TestCartStore_EvictedWhileWaiting(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s := NewCartStore(time.Minute)
	s.now = func() time.Time { return now }

	id, err := s.Create(ctx)
	require.NoError(t, err)

	s.mu.RLock()
	sess := s.sessions[id]
	s.mu.RUnlock()
	require.NotNil(t, sess)

	require.Equal(t, 1, s.cleanup(now.Add(2*time.Minute)))

	called := false
	err = s.run(sess, func(*cart.Ledger) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, cart.ErrCartNotFound)
	assert.False(t, called)
}
