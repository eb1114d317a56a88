// Package notify delivers best-effort admin alerts about orders and topup
// requests. Delivery runs detached from the request path with a bounded
// timeout: a slow or failing channel can never delay or fail a checkout.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xenking/topup-store/internal/domain/ledger"
	"github.com/xenking/topup-store/internal/domain/order"
)

// Message is one alert to deliver.
type Message struct {
	Subject string
	Body    string
}

// Target is a single delivery channel (Telegram chat, email inbox).
type Target interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans a message out to all configured targets. Errors are logged
// and dropped.
type Dispatcher struct {
	lg      *zap.Logger
	timeout time.Duration
	targets []Target
}

// NewDispatcher creates a Dispatcher. A zero timeout defaults to 5s.
func NewDispatcher(lg *zap.Logger, timeout time.Duration, targets ...Target) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{lg: lg, timeout: timeout, targets: targets}
}

// OrderCreated alerts administrators about a freshly created order.
func (d *Dispatcher) OrderCreated(o *order.Order) {
	d.dispatch(Message{
		Subject: "New order " + o.ID,
		Body: fmt.Sprintf(
			"Order %s: user %s bought %d × %s (%s/%s) for %s (discount %s), paid via %s, status %s",
			o.ID, o.UserID, o.Quantity, o.ProductID, o.Platform, o.ProductType,
			o.FinalPrice, o.DiscountAmount, o.PaymentMethod, o.Status,
		),
	})
}

// TopupRequested alerts administrators about a pending wallet topup.
func (d *Dispatcher) TopupRequested(e *ledger.Entry) {
	d.dispatch(Message{
		Subject: "Topup request " + e.ID,
		Body: fmt.Sprintf(
			"Topup %s: user %s requested %s via %s, awaiting review",
			e.ID, e.UserID, e.Amount, e.PaymentMethod,
		),
	})
}

// dispatch sends msg to every target in its own goroutine. The context is
// detached on purpose: the originating request may complete (or fail) before
// delivery finishes.
func (d *Dispatcher) dispatch(msg Message) {
	for _, t := range d.targets {
		go func(t Target) {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := t.Send(ctx, msg); err != nil {
				d.lg.Warn("notification delivery failed",
					zap.String("target", t.Name()),
					zap.String("subject", msg.Subject),
					zap.Error(err),
				)
			}
		}(t)
	}
}
