package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/topup-store/internal/domain/ledger"
	"github.com/xenking/topup-store/internal/domain/order"
	"github.com/xenking/topup-store/internal/notify"
)

// domainMetrics counts business events. The counters ride on the same
// notification hooks the dispatcher uses, so the domain services stay
// unaware of telemetry.
type domainMetrics struct {
	orders metric.Int64Counter
	topups metric.Int64Counter
}

func newDomainMetrics(mp metric.MeterProvider) (*domainMetrics, error) {
	meter := mp.Meter("github.com/xenking/topup-store")

	orders, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders accepted by checkout"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	topups, err := meter.Int64Counter("wallet.topups.requested",
		metric.WithDescription("Wallet topup requests awaiting review"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "topups counter")
	}
	return &domainMetrics{orders: orders, topups: topups}, nil
}

// orderEvents forwards order notifications to the dispatcher and counts them.
type orderEvents struct {
	next *notify.Dispatcher
	m    *domainMetrics
}

func (e *orderEvents) OrderCreated(o *order.Order) {
	e.m.orders.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("payment_method", string(o.PaymentMethod)),
		attribute.String("platform", o.Platform),
	))
	e.next.OrderCreated(o)
}

// walletEvents forwards topup notifications to the dispatcher and counts them.
type walletEvents struct {
	next *notify.Dispatcher
	m    *domainMetrics
}

func (e *walletEvents) TopupRequested(entry *ledger.Entry) {
	e.m.topups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("payment_method", entry.PaymentMethod),
	))
	e.next.TopupRequested(entry)
}
