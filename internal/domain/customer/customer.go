package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is a shop customer. GroupID is empty when the customer is not
// assigned to a group.
type Customer struct {
	ID      string
	GroupID string
}

// InGroup reports whether the customer is assigned to one of groups. The scan
// stops at the first match. A nil customer is in no group.
func (c *Customer) InGroup(groups []string) bool {
	if c == nil || c.GroupID == "" {
		return false
	}
	for _, g := range groups {
		if g == c.GroupID {
			return true
		}
	}
	return false
}

// Repository provides customer lookups and group assignment.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Customer, error)
	Upsert(ctx context.Context, c Customer) error
}
