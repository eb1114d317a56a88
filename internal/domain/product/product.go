package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a purchasable top-up item: game currency, a subscription tier,
// a boost package. Price is the trusted unit price in whole currency units;
// checkout never accepts prices from the client.
type Product struct {
	ID       string
	Name     string
	Platform string
	Type     string
	Price    decimal.Decimal
	Active   bool
}

// Repository defines read operations for the catalog. Catalog management
// happens out of band.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
