package cart

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "expected %s, got %s", want, got)
}

func TestLedger_Add(t *testing.T) {
	l := NewLedger()
	l.Add("1", 3, d("100"))

	items := l.Items()
	require.Contains(t, items, ProductID("1"))
	assert.Equal(t, 3, items["1"].Quantity)
	assertDecimal(t, "100", items["1"].Price)
	assert.Equal(t, 0, items["1"].FreebieCount)
}

func TestLedger_AddAccumulatesQuantityAndKeepsPrice(t *testing.T) {
	l := NewLedger()
	l.Add("1", 2, d("100"))
	l.ApplyFreebie("1", "1", 1)
	l.Add("1", 3, d("999"))

	item := l.Items()["1"]
	assert.Equal(t, 5, item.Quantity)
	assertDecimal(t, "100", item.Price)
	assert.Equal(t, 1, item.FreebieCount)
	assert.Equal(t, 1, l.UniqueItems())
}

func TestLedger_AddIsPermissive(t *testing.T) {
	l := NewLedger()
	l.Add("neg", -2, d("-10"))

	assert.Equal(t, -2, l.TotalQuantity())
	assertDecimal(t, "0", l.Subtotal())
}

func TestLedger_Update(t *testing.T) {
	l := NewLedger()
	l.Add("1", 3, d("100"))
	l.ApplyFreebie("1", "1", 2)

	require.NoError(t, l.Update("1", 5, d("150")))

	item := l.Items()["1"]
	assert.Equal(t, 5, item.Quantity)
	assertDecimal(t, "150", item.Price)
	assert.Equal(t, 2, item.FreebieCount, "freebies survive an update")
}

func TestLedger_UpdateMissing(t *testing.T) {
	l := NewLedger()
	l.Add("1", 3, d("100"))

	err := l.Update("999", 5, d("150"))

	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, ProductID("999"), nfErr.ProductID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, l.UniqueItems())
	assert.False(t, l.Exists("999"))
	assertDecimal(t, "300", l.Subtotal())
}

func TestLedger_Remove(t *testing.T) {
	l := NewLedger()
	l.Add("1", 3, d("100"))
	l.Add("2", 1, d("5"))

	require.NoError(t, l.Remove("1"))
	assert.False(t, l.Exists("1"))
	require.Len(t, l.Lines(), 1)
	assert.Equal(t, ProductID("2"), l.Lines()[0].ProductID)

	err := l.Remove("1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_Destroy(t *testing.T) {
	l := NewLedger()
	l.Add("1", 3, d("100"))
	l.ApplyDiscount("TestDiscount", DiscountFixed, d("50"))

	l.Destroy()

	assert.True(t, l.IsEmpty())
	assert.Equal(t, 0, l.UniqueItems())
	assert.Empty(t, l.Items())
	assert.Empty(t, l.Lines())
	assert.Empty(t, l.Discounts())
	assertDecimal(t, "0", l.Total())
}

func TestLedger_IsEmpty(t *testing.T) {
	l := NewLedger()
	assert.True(t, l.IsEmpty())

	l.Add("1", 3, d("100"))
	assert.False(t, l.IsEmpty())
	assert.True(t, l.Exists("1"))
}

func TestLedger_ItemsIsACopy(t *testing.T) {
	l := NewLedger()
	l.Add("1", 3, d("100"))

	items := l.Items()
	item := items["1"]
	item.Quantity = 42
	items["1"] = item
	delete(items, "1")

	assert.Equal(t, 3, l.Items()["1"].Quantity)
	assert.True(t, l.Exists("1"))

	l.Add("1", 1, d("100"))
	assert.Equal(t, 4, l.Items()["1"].Quantity, "a fresh view reflects current state")
}

func TestLedger_LinesKeepInsertionOrder(t *testing.T) {
	l := NewLedger()
	for _, id := range []ProductID{"c", "a", "b"} {
		l.Add(id, 1, d("1"))
	}
	l.Add("a", 1, d("1"))

	var ids []ProductID
	for _, line := range l.Lines() {
		ids = append(ids, line.ProductID)
	}
	assert.Equal(t, []ProductID{"c", "a", "b"}, ids)
}

func TestLedger_Counts(t *testing.T) {
	l := NewLedger()
	l.Add("1", 3, d("100"))
	l.Add("2", 2, d("50"))
	l.ApplyFreebie("1", "2", 1)

	assert.Equal(t, 2, l.UniqueItems())
	assert.Equal(t, 5, l.TotalQuantity(), "freebies are still counted")
}

func TestLedger_Subtotal(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(l *Ledger)
		subtotal string
	}{
		{
			name:     "empty cart",
			setup:    func(*Ledger) {},
			subtotal: "0",
		},
		{
			name: "several lines",
			setup: func(l *Ledger) {
				l.Add("1", 3, d("100"))
				l.Add("2", 2, d("50"))
			},
			subtotal: "400",
		},
		{
			name: "freebies excluded",
			setup: func(l *Ledger) {
				l.Add("1", 5, d("100"))
				l.ApplyFreebie("1", "1", 2)
			},
			subtotal: "300",
		},
		{
			name: "freebies above quantity clamp to zero",
			setup: func(l *Ledger) {
				l.Add("1", 2, d("100"))
				l.Add("2", 1, d("9.99"))
				l.ApplyFreebie("2", "1", 7)
			},
			subtotal: "9.99",
		},
		{
			name: "cents",
			setup: func(l *Ledger) {
				l.Add("1", 3, d("9.99"))
			},
			subtotal: "29.97",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			tt.setup(l)
			assertDecimal(t, tt.subtotal, l.Subtotal())
		})
	}
}

func TestLedger_ApplyDiscount(t *testing.T) {
	tests := []struct {
		name   string
		kind   DiscountKind
		amount string
		opts   []DiscountOption
		want   string
	}{
		{name: "fixed", kind: DiscountFixed, amount: "100", want: "100"},
		{name: "fixed capped at subtotal", kind: DiscountFixed, amount: "600", want: "500"},
		{name: "percentage", kind: DiscountPercentage, amount: "10", want: "50"},
		{name: "percentage under max", kind: DiscountPercentage, amount: "10", opts: []DiscountOption{WithMaxAmount(d("100"))}, want: "50"},
		{name: "percentage capped by max", kind: DiscountPercentage, amount: "50", opts: []DiscountOption{WithMaxAmount(d("30"))}, want: "30"},
		{name: "percentage capped at subtotal", kind: DiscountPercentage, amount: "150", want: "500"},
		{name: "max ignored for fixed", kind: DiscountFixed, amount: "80", opts: []DiscountOption{WithMaxAmount(d("10"))}, want: "80"},
		{name: "unknown kind resolves to zero", kind: DiscountKind("bogus"), amount: "10", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			l.Add("1", 5, d("100"))

			got := l.ApplyDiscount("D", tt.kind, d(tt.amount), tt.opts...)
			assertDecimal(t, tt.want, got)

			stored, ok := l.Discount("D")
			require.True(t, ok)
			assertDecimal(t, tt.want, stored)
		})
	}
}

func TestLedger_ApplyDiscountRoundsPercentage(t *testing.T) {
	l := NewLedger()
	l.Add("1", 1, d("10.01"))

	// 10.01 * 33.33 / 100 = 3.336333
	got := l.ApplyDiscount("PCT", DiscountPercentage, d("33.33"))
	assertDecimal(t, "3.34", got)
}

func TestLedger_ApplyDiscountUsesRawSubtotal(t *testing.T) {
	l := NewLedger()
	l.Add("1", 5, d("100"))

	l.ApplyDiscount("Disc1", DiscountFixed, d("100"))
	l.ApplyDiscount("Disc2", DiscountPercentage, d("10"))

	assertDecimal(t, "50", l.Discounts()["Disc2"])
	assertDecimal(t, "150", l.DiscountTotal())
	assertDecimal(t, "350", l.Total())
}

func TestLedger_ApplyDiscountOverwritesByName(t *testing.T) {
	l := NewLedger()
	l.Add("1", 5, d("100"))

	l.ApplyDiscount("SALE", DiscountFixed, d("100"))
	l.ApplyDiscount("SALE", DiscountPercentage, d("10"))

	assert.Len(t, l.Discounts(), 1)
	assertDecimal(t, "50", l.DiscountTotal())
}

func TestLedger_RemoveDiscount(t *testing.T) {
	l := NewLedger()
	l.Add("1", 5, d("100"))
	l.ApplyDiscount("SALE", DiscountFixed, d("100"))

	l.RemoveDiscount("SALE")
	l.RemoveDiscount("SALE")
	l.RemoveDiscount("NEVER")

	_, ok := l.Discount("SALE")
	assert.False(t, ok)
	assertDecimal(t, "0", l.DiscountTotal())
	assertDecimal(t, "500", l.Total())
}

func TestLedger_TotalFlooredAtZero(t *testing.T) {
	l := NewLedger()
	l.Add("1", 5, d("100"))
	l.ApplyDiscount("A", DiscountFixed, d("400"))
	l.ApplyDiscount("B", DiscountFixed, d("400"))

	assertDecimal(t, "800", l.DiscountTotal())
	assertDecimal(t, "0", l.Total())
}

func TestLedger_DiscountsAreStaleAfterCartChanges(t *testing.T) {
	l := NewLedger()
	l.Add("1", 5, d("100"))
	l.ApplyDiscount("PCT", DiscountPercentage, d("10"))

	l.Add("1", 5, d("100"))

	assertDecimal(t, "50", l.DiscountTotal())
	assertDecimal(t, "950", l.Total())
}

func TestLedger_ApplyFreebie(t *testing.T) {
	t.Run("accumulates", func(t *testing.T) {
		l := NewLedger()
		l.Add("1", 5, d("100"))

		l.ApplyFreebie("1", "1", 2)
		assert.Equal(t, 2, l.Items()["1"].FreebieCount)

		l.ApplyFreebie("1", "1", 1)
		assert.Equal(t, 3, l.Items()["1"].FreebieCount)
	})

	t.Run("defaults to one", func(t *testing.T) {
		l := NewLedger()
		l.Add("1", 1, d("10"))
		l.Add("2", 2, d("20"))

		l.ApplyFreebie("1", "2")
		assert.Equal(t, 1, l.Items()["2"].FreebieCount)
		assertDecimal(t, "30", l.Subtotal())
	})

	t.Run("missing condition is a no-op", func(t *testing.T) {
		l := NewLedger()
		l.Add("1", 5, d("100"))
		before := l.Items()

		l.ApplyFreebie("2", "1", 2)
		assert.Equal(t, before, l.Items())
	})

	t.Run("missing target is a no-op", func(t *testing.T) {
		l := NewLedger()
		l.Add("1", 5, d("100"))
		before := l.Items()

		l.ApplyFreebie("1", "99", 2)
		assert.Equal(t, before, l.Items())
		assert.False(t, l.Exists("99"))
	})
}

func TestLedger_FreebiesWithDiscounts(t *testing.T) {
	t.Run("fixed", func(t *testing.T) {
		l := NewLedger()
		l.Add("1", 5, d("100"))
		l.ApplyFreebie("1", "1", 2)
		assertDecimal(t, "300", l.Subtotal())

		l.ApplyDiscount("FIXED", DiscountFixed, d("50"))
		assertDecimal(t, "50", l.DiscountTotal())
		assertDecimal(t, "250", l.Total())
	})

	t.Run("percentage", func(t *testing.T) {
		l := NewLedger()
		l.Add("1", 5, d("100"))
		l.ApplyFreebie("1", "1", 2)

		l.ApplyDiscount("PERCENT", DiscountPercentage, d("10"))
		v, _ := l.Discount("PERCENT")
		assertDecimal(t, "30", v)
		assertDecimal(t, "270", l.Total())
	})
}

func TestNotFoundError(t *testing.T) {
	err := error(&NotFoundError{ProductID: "42"})
	assert.Equal(t, "product 42 not found in cart", err.Error())

	wrapped := errors.Wrap(err, "update")
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestRestoreLedger(t *testing.T) {
	src := NewLedger()
	src.Add("b", 2, d("10"))
	src.Add("a", 3, d("5.5"))
	src.ApplyFreebie("b", "a", 1)
	src.ApplyDiscount("FIXED", DiscountFixed, d("4"))
	require.NoError(t, src.Remove("b"))

	l := RestoreLedger(src.Lines(), src.Discounts())
	assert.Equal(t, src.Lines(), l.Lines())
	assert.Equal(t, src.Discounts(), l.Discounts())
	assertDecimal(t, "11", l.Subtotal())
	assertDecimal(t, "4", l.DiscountTotal())
	assertDecimal(t, "7", l.Total())

	l.Add("c", 1, d("1"))
	assert.Len(t, src.Lines(), 1, "restored ledger does not share state")
}

func TestRestoreLedger_DuplicateLine(t *testing.T) {
	l := RestoreLedger([]LineItem{
		{ProductID: "1", Quantity: 1, Price: d("10")},
		{ProductID: "1", Quantity: 9, Price: d("99")},
	}, nil)
	require.Equal(t, 1, l.UniqueItems())
	assert.Equal(t, 1, l.TotalQuantity())
}
