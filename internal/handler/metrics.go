package handler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	mutations metric.Int64Counter
	carts     metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	mutations, err := meter.Int64Counter("kart.cart.mutations",
		metric.WithDescription("Cart ledger mutations by operation and outcome"),
	)
	if err != nil {
		return nil, err
	}
	carts, err := meter.Int64Counter("kart.cart.created",
		metric.WithDescription("Storefront carts created"),
	)
	if err != nil {
		return nil, err
	}
	return &metrics{mutations: mutations, carts: carts}, nil
}

func (m *metrics) mutation(ctx context.Context, op string, err error) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("ok", err == nil),
	))
}
