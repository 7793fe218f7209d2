package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-ledger/internal/domain/cart"
)

const (
	insertCart = `INSERT INTO carts (id) VALUES ($1)`

	lockCart = `SELECT id FROM carts WHERE id = $1 FOR UPDATE`

	selectCartItems = `SELECT product_id, quantity, price, freebie_count
FROM cart_items WHERE cart_id = $1 ORDER BY position`

	selectCartDiscounts = `SELECT name, amount FROM cart_discounts WHERE cart_id = $1`

	deleteCartItems     = `DELETE FROM cart_items WHERE cart_id = $1`
	deleteCartDiscounts = `DELETE FROM cart_discounts WHERE cart_id = $1`

	insertCartItem = `INSERT INTO cart_items (cart_id, position, product_id, quantity, price, freebie_count)
VALUES ($1, $2, $3, $4, $5, $6)`

	insertCartDiscount = `INSERT INTO cart_discounts (cart_id, name, amount) VALUES ($1, $2, $3)`

	touchCart = `UPDATE carts SET updated_at = now() WHERE id = $1`

	evictCarts = `DELETE FROM carts WHERE updated_at < $1`
)

// CartStore keeps storefront carts in PostgreSQL. Each Update loads the
// ledger inside a transaction holding a row lock on the cart and writes the
// result back, so concurrent requests for one cart are serialized.
type CartStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewCartStore returns a CartStore. Carts not updated for ttl are removed by
// StartCleanup; a zero ttl keeps them forever.
func NewCartStore(pool *pgxpool.Pool, ttl time.Duration) *CartStore {
	return &CartStore{pool: pool, ttl: ttl}
}

// Create inserts an empty cart and returns its id.
func (s *CartStore) Create(ctx context.Context) (string, error) {
	id := uuid.New()
	if _, err := s.pool.Exec(ctx, insertCart, id); err != nil {
		return "", errors.Wrap(err, "insert cart")
	}
	return id.String(), nil
}

// Update runs fn against the stored ledger and persists the result when fn
// succeeds. It returns cart.ErrCartNotFound for an unknown or malformed id.
func (s *CartStore) Update(ctx context.Context, id string, fn func(l *cart.Ledger) error) error {
	cartID, err := uuid.Parse(id)
	if err != nil {
		return cart.ErrCartNotFound
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, lockCart, cartID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrCartNotFound
			}
			return errors.Wrap(err, "lock cart")
		}

		l, err := loadLedger(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
		return saveLedger(ctx, tx, cartID, l)
	})
}

func loadLedger(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (*cart.Ledger, error) {
	rows, err := tx.Query(ctx, selectCartItems, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "select cart items")
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.LineItem, error) {
		var item cart.LineItem
		err := row.Scan(&item.ProductID, &item.Quantity, &item.Price, &item.FreebieCount)
		return item, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan cart items")
	}

	rows, err = tx.Query(ctx, selectCartDiscounts, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "select cart discounts")
	}
	discounts := make(map[string]decimal.Decimal)
	var (
		name   string
		amount decimal.Decimal
	)
	if _, err := pgx.ForEachRow(rows, []any{&name, &amount}, func() error {
		discounts[name] = amount
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "scan cart discounts")
	}

	return cart.RestoreLedger(lines, discounts), nil
}

func saveLedger(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, l *cart.Ledger) error {
	batch := &pgx.Batch{}
	batch.Queue(deleteCartItems, cartID)
	batch.Queue(deleteCartDiscounts, cartID)
	for i, item := range l.Lines() {
		batch.Queue(insertCartItem, cartID, i, string(item.ProductID), item.Quantity, item.Price, item.FreebieCount)
	}
	for name, amount := range l.Discounts() {
		batch.Queue(insertCartDiscount, cartID, name, amount)
	}
	batch.Queue(touchCart, cartID)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

// Evict removes carts last updated before cutoff and returns how many were
// removed.
func (s *CartStore) Evict(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, evictCarts, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "evict carts")
	}
	return tag.RowsAffected(), nil
}

// StartCleanup launches a background goroutine that evicts idle carts every
// ttl/2. It stops when ctx is cancelled.
func (s *CartStore) StartCleanup(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	lg := zctx.From(ctx)
	go func() {
		ticker := time.NewTicker(s.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := s.Evict(ctx, now.Add(-s.ttl))
				if err != nil {
					if ctx.Err() == nil {
						lg.Warn("Cart eviction failed", zap.Error(err))
					}
					continue
				}
				if n > 0 {
					lg.Debug("Evicted idle carts", zap.Int64("count", n))
				}
			}
		}
	}()
}
