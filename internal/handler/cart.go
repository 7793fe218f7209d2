package handler

import (
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-ledger/internal/domain/cart"
)

// CreateCart starts an empty cart session.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	id, err := h.carts.Create(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	h.metrics.carts.Add(r.Context(), 1)

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(id) })
		})
	})
}

// GetCart returns the cart summary.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "", http.StatusOK, func(*cart.Ledger) error { return nil })
}

// DestroyCart empties the cart's items and discounts.
func (h *Handler) DestroyCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "destroy", http.StatusOK, func(l *cart.Ledger) error {
		l.Destroy()
		return nil
	})
}

// AddItem adds units of a product.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var (
		id       string
		quantity int
		price    decimal.Decimal
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			return decodeText(d, &id)
		case "quantity":
			return decodeInt(d, key, &quantity)
		case "price":
			return decodeDecimal(d, key, &price)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	h.mutate(w, r, "add", http.StatusOK, func(l *cart.Ledger) error {
		l.Add(cart.ProductID(id), quantity, price)
		return nil
	})
}

// UpdateItem replaces quantity and price of a product line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var (
		quantity int
		price    decimal.Decimal
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "quantity":
			return decodeInt(d, key, &quantity)
		case "price":
			return decodeDecimal(d, key, &price)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := cart.ProductID(chi.URLParam(r, "productID"))
	h.mutate(w, r, "update", http.StatusOK, func(l *cart.Ledger) error {
		return l.Update(id, quantity, price)
	})
}

// RemoveItem deletes a product line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := cart.ProductID(chi.URLParam(r, "productID"))
	h.mutate(w, r, "remove", http.StatusOK, func(l *cart.Ledger) error {
		return l.Remove(id)
	})
}

// ApplyDiscount stores a named discount resolved against the current subtotal.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var (
		name, kind string
		amount     decimal.Decimal
		maxAmount  decimal.NullDecimal
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			return decodeText(d, &name)
		case "kind":
			return decodeText(d, &kind)
		case "amount":
			return decodeDecimal(d, key, &amount)
		case "maxAmount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			maxAmount.Valid = true
			return decodeDecimal(d, key, &maxAmount.Decimal)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	var opts []cart.DiscountOption
	if maxAmount.Valid {
		opts = append(opts, cart.WithMaxAmount(maxAmount.Decimal))
	}
	h.mutate(w, r, "apply_discount", http.StatusOK, func(l *cart.Ledger) error {
		l.ApplyDiscount(name, cart.DiscountKind(kind), amount, opts...)
		return nil
	})
}

// RemoveDiscount deletes a named discount; absent names are ignored.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.mutate(w, r, "remove_discount", http.StatusOK, func(l *cart.Ledger) error {
		l.RemoveDiscount(name)
		return nil
	})
}

// ApplyFreebie grants free units of the target product.
func (h *Handler) ApplyFreebie(w http.ResponseWriter, r *http.Request) {
	var (
		condition, target string
		amount            = 1
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "conditionProductId":
			return decodeText(d, &condition)
		case "targetProductId":
			return decodeText(d, &target)
		case "amount":
			return decodeInt(d, key, &amount)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mutate(w, r, "apply_freebie", http.StatusOK, func(l *cart.Ledger) error {
		l.ApplyFreebie(cart.ProductID(condition), cart.ProductID(target), amount)
		return nil
	})
}

// mutate runs fn on the cart named in the URL and writes the resulting
// summary. An empty op skips the mutation counter.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op string, status int, fn func(l *cart.Ledger) error) {
	cartID := chi.URLParam(r, "cartID")

	var summary cartSummary
	err := h.carts.Update(r.Context(), cartID, func(l *cart.Ledger) error {
		if err := fn(l); err != nil {
			return err
		}
		summary = summarize(cartID, l)
		return nil
	})
	if op != "" && !errors.Is(err, cart.ErrCartNotFound) {
		h.metrics.mutation(r.Context(), op, err)
	}

	var nfErr *cart.NotFoundError
	switch {
	case err == nil:
		writeJSON(w, status, summary.encode)
	case errors.Is(err, cart.ErrCartNotFound):
		writeError(w, http.StatusNotFound, "Cart not found")
	case errors.As(err, &nfErr):
		writeError(w, http.StatusNotFound, "Product not found in cart")
	default:
		writeInternal(w, r, err)
	}
}

// cartSummary is a point-in-time copy of a ledger taken under the cart lock.
type cartSummary struct {
	id            string
	lines         []cart.LineItem
	discounts     map[string]decimal.Decimal
	uniqueItems   int
	totalQuantity int
	subtotal      decimal.Decimal
	discountTotal decimal.Decimal
	total         decimal.Decimal
}

func summarize(id string, l *cart.Ledger) cartSummary {
	return cartSummary{
		id:            id,
		lines:         l.Lines(),
		discounts:     l.Discounts(),
		uniqueItems:   l.UniqueItems(),
		totalQuantity: l.TotalQuantity(),
		subtotal:      l.Subtotal(),
		discountTotal: l.DiscountTotal(),
		total:         l.Total(),
	}
}

func (s cartSummary) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(s.id) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, line := range s.lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(string(line.ProductID)) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(line.Quantity) })
						e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, line.Price) })
						e.Field("freebieCount", func(e *jx.Encoder) { e.Int(line.FreebieCount) })
						e.Field("amount", func(e *jx.Encoder) { encodeDecimal(e, line.Amount()) })
					})
				}
			})
		})
		e.Field("discounts", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range slices.Sorted(maps.Keys(s.discounts)) {
					e.Field(name, func(e *jx.Encoder) { encodeDecimal(e, s.discounts[name]) })
				}
			})
		})
		e.Field("uniqueItems", func(e *jx.Encoder) { e.Int(s.uniqueItems) })
		e.Field("totalQuantity", func(e *jx.Encoder) { e.Int(s.totalQuantity) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, s.subtotal) })
		e.Field("discountTotal", func(e *jx.Encoder) { encodeDecimal(e, s.discountTotal) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, s.total) })
	})
}
