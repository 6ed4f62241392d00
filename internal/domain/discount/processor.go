package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-group-discount/internal/domain/cart"
	"github.com/xenking/kart-group-discount/internal/domain/customer"
)

var _ cart.Processor = (*Processor)(nil)

// Processor is the cart recalculation step for the discount.
type Processor struct {
	applicator *Applicator
	reconciler *Reconciler

	tracer  trace.Tracer
	applied metric.Int64Counter
	removed metric.Int64Counter
}

// NewProcessor creates a Processor instrumented with the given providers.
func NewProcessor(
	applicator *Applicator,
	reconciler *Reconciler,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Processor, error) {
	meter := mp.Meter("kart/discount")

	applied, err := meter.Int64Counter("internal_discount.applied",
		metric.WithDescription("Carts that received the internal discount"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applied counter")
	}
	removed, err := meter.Int64Counter("internal_discount.reconciled",
		metric.WithDescription("Stale discount order lines deleted on order edit"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create reconciled counter")
	}

	return &Processor{
		applicator: applicator,
		reconciler: reconciler,
		tracer:     tp.Tracer("kart/discount"),
		applied:    applied,
		removed:    removed,
	}, nil
}

// Process recalculates the discount of c. Carts opened from a placed order
// first have the order's persisted discount lines deleted. Previously
// computed discount lines are dropped before the discount is applied again.
func (p *Processor) Process(ctx context.Context, c cart.Cart, cust *customer.Customer) (cart.Cart, error) {
	ctx, span := p.tracer.Start(ctx, "discount.Process",
		trace.WithAttributes(attribute.String("cart.token", c.Token)),
	)
	defer span.End()

	if c.OriginalOrderID != "" {
		n, err := p.reconciler.Reconcile(ctx, c.OriginalOrderID)
		if err != nil {
			span.RecordError(err)
			return c, errors.Wrap(err, "reconcile order")
		}
		if n > 0 {
			p.removed.Add(ctx, int64(n))
			zctx.From(ctx).Debug("Deleted stale discount order lines",
				zap.String("order_id", c.OriginalOrderID),
				zap.Int("count", n),
			)
		}
	}

	out, err := p.applicator.Apply(ctx, c.Without(LineItemType), cust)
	if err != nil {
		span.RecordError(err)
		return c, err
	}

	if li, ok := out.Get(Identifier); ok && isDiscount(li) {
		p.applied.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("discount.applied", true))
	}
	return out, nil
}
