package discount

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-group-discount/internal/domain/order"
)

// Reconciler removes discount lines persisted with an order so that editing
// the order does not accumulate them.
type Reconciler struct {
	lines order.LineRepository
}

// NewReconciler creates a Reconciler over the order line repository.
func NewReconciler(lines order.LineRepository) *Reconciler {
	return &Reconciler{lines: lines}
}

// Reconcile deletes every line of orderID whose identifier is Identifier and
// returns the number of deleted lines.
//
// The lookup and the deletes are separate statements; concurrent
// reconciliation of the same order is not guarded against.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string) (int, error) {
	lines, err := r.lines.FindByOrder(ctx, orderID)
	if err != nil {
		return 0, errors.Wrap(err, "find order lines")
	}

	deleted := 0
	for _, l := range lines {
		if l.Identifier != Identifier {
			continue
		}
		if err := r.lines.DeleteByID(ctx, l.ID); err != nil {
			return deleted, errors.Wrapf(err, "delete order line %s", l.ID)
		}
		deleted++
	}
	return deleted, nil
}
