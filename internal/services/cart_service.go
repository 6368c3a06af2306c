package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/repositories"
)

var (
	// ErrUnknownProduct indicates the requested product or barcode matched nothing.
	ErrUnknownProduct = errors.New("cart: unknown product")
	// ErrInactiveProduct indicates the product exists but is not sellable.
	ErrInactiveProduct = errors.New("cart: product is inactive")
	// ErrEmptyCartInput indicates no items were supplied.
	ErrEmptyCartInput = errors.New("cart: at least one item is required")
)

// CartServiceDeps bundles constructor inputs for the cart service.
type CartServiceDeps struct {
	Products repositories.ProductRepository
}

type cartService struct {
	products repositories.ProductRepository
}

var _ CartService = (*cartService)(nil)

// NewCartService creates a cart builder backed by the catalog repository.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	return &cartService{products: deps.Products}, nil
}

// BuildCart resolves each requested item and merges it into a fresh cart.
// Duplicate products collapse into one line with the summed quantity.
func (s *cartService) BuildCart(ctx context.Context, items []CartItemInput) (*domain.Cart, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCartInput
	}

	cart := domain.NewCart()
	for _, item := range items {
		line, err := s.ResolveProduct(ctx, item)
		if err != nil {
			return nil, err
		}
		if err := cart.AddOrIncrement(line); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

// ResolveProduct looks up the catalog entry and prices a line for it. The
// stock snapshot captured here is advisory display data.
func (s *cartService) ResolveProduct(ctx context.Context, input CartItemInput) (domain.LineItem, error) {
	if input.Quantity <= 0 {
		return domain.LineItem{}, fmt.Errorf("%w: quantity %d", domain.ErrInvalidQuantity, input.Quantity)
	}

	product, err := s.lookup(ctx, input)
	if err != nil {
		return domain.LineItem{}, err
	}
	if !product.Active {
		return domain.LineItem{}, fmt.Errorf("%w: %s", ErrInactiveProduct, product.ID)
	}

	return domain.LineItem{
		ProductID:     product.ID,
		Barcode:       product.Barcode,
		Name:          product.Name,
		UnitPrice:     product.Price,
		Quantity:      input.Quantity,
		StockSnapshot: product.Stock,
	}, nil
}

func (s *cartService) lookup(ctx context.Context, input CartItemInput) (domain.Product, error) {
	productID := strings.TrimSpace(input.ProductID)
	barcode := strings.TrimSpace(input.Barcode)

	switch {
	case productID != "":
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return domain.Product{}, mapLookupError(err, productID)
		}
		return product, nil
	case barcode != "":
		product, err := s.products.FindByBarcode(ctx, barcode)
		if err != nil {
			return domain.Product{}, mapLookupError(err, barcode)
		}
		return product, nil
	default:
		return domain.Product{}, fmt.Errorf("%w: product id or barcode is required", ErrUnknownProduct)
	}
}

func mapLookupError(err error, ref string) error {
	var productErr *repositories.ProductError
	if errors.As(err, &productErr) && productErr.Code == repositories.ProductErrorNotFound {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, ref)
	}
	return err
}
