package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/kiosko/pos/internal/domain"
	pfirestore "github.com/kiosko/pos/internal/platform/firestore"
	"github.com/kiosko/pos/internal/repositories"
)

const (
	productsCollection  = "products"
	defaultSearchLimit  = 25
	prefixSearchCeiling = "\uf8ff"
)

type productDocument struct {
	Barcode   string    `firestore:"barcode"`
	Name      string    `firestore:"name"`
	Price     string    `firestore:"price"`
	Stock     int64     `firestore:"stock"`
	Active    bool      `firestore:"active"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// ProductRepository implements repositories.ProductRepository backed by Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{
		provider: provider,
		products: base,
	}, nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// FindByID returns the product stored under productID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, repositories.NewProductError(repositories.ProductErrorInvalidInput, "product id is required", nil)
	}

	doc, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, classifyProductError("products.get", err)
	}
	return productFromDocument(doc.ID, doc.Data)
}

// FindByBarcode returns the product whose barcode matches exactly.
func (r *ProductRepository) FindByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	code := strings.TrimSpace(barcode)
	if code == "" {
		return domain.Product{}, repositories.NewProductError(repositories.ProductErrorInvalidInput, "barcode is required", nil)
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("barcode", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Product{}, classifyProductError("products.barcode", err)
	}
	if len(docs) == 0 {
		return domain.Product{}, repositories.NewProductError(repositories.ProductErrorNotFound, "product not found for barcode "+code, nil)
	}
	return productFromDocument(docs[0].ID, docs[0].Data)
}

// Search matches the term against barcodes exactly and against names by
// prefix, merging both result sets.
func (r *ProductRepository) Search(ctx context.Context, filter repositories.ProductSearchFilter) ([]domain.Product, error) {
	term := strings.TrimSpace(filter.Term)
	if term == "" {
		return nil, repositories.NewProductError(repositories.ProductErrorInvalidInput, "search term is required", nil)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	seen := make(map[string]struct{})
	var results []domain.Product

	barcodeDocs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("barcode", "==", term).Limit(limit)
	})
	if err != nil {
		return nil, classifyProductError("products.search", err)
	}

	nameDocs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("name", ">=", term).
			Where("name", "<", term+prefixSearchCeiling).
			OrderBy("name", firestore.Asc).
			Limit(limit)
	})
	if err != nil {
		return nil, classifyProductError("products.search", err)
	}

	for _, doc := range append(barcodeDocs, nameDocs...) {
		if _, ok := seen[doc.ID]; ok {
			continue
		}
		product, err := productFromDocument(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		if filter.ActiveOnly && !product.Active {
			continue
		}
		seen[doc.ID] = struct{}{}
		results = append(results, product)
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}

// List returns catalog products ordered by name. The filter term is ignored.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductSearchFilter) ([]domain.Product, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("name", firestore.Asc).Limit(limit)
	})
	if err != nil {
		return nil, classifyProductError("products.list", err)
	}

	results := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product, err := productFromDocument(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		results = append(results, product)
	}
	return results, nil
}

// StockLevels reads current stock for the requested products outside any
// transaction. Values are advisory; the commit transaction re-reads them.
func (r *ProductRepository) StockLevels(ctx context.Context, productIDs []string) ([]repositories.StockLevel, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	levels := make([]repositories.StockLevel, 0, len(productIDs))
	for _, productID := range productIDs {
		id := strings.TrimSpace(productID)
		if id == "" {
			return nil, repositories.NewProductError(repositories.ProductErrorInvalidInput, "product id is required", nil)
		}
		doc, err := r.products.Get(ctx, id)
		if err != nil {
			return nil, classifyProductError("products.stock", err)
		}
		levels = append(levels, repositories.StockLevel{
			ProductID: doc.ID,
			Name:      doc.Data.Name,
			Stock:     int(doc.Data.Stock),
		})
	}
	return levels, nil
}

// Upsert writes the product document, replacing any existing content.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) error {
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return repositories.NewProductError(repositories.ProductErrorInvalidInput, "product id is required", nil)
	}
	if strings.TrimSpace(product.Name) == "" {
		return repositories.NewProductError(repositories.ProductErrorInvalidInput, "product name is required", nil)
	}

	doc := productDocument{
		Barcode:   strings.TrimSpace(product.Barcode),
		Name:      product.Name,
		Price:     product.Price.String(),
		Stock:     int64(product.Stock),
		Active:    product.Active,
		UpdatedAt: product.UpdatedAt.UTC(),
	}
	if _, err := r.products.Set(ctx, id, doc); err != nil {
		return classifyProductError("products.upsert", err)
	}
	return nil
}

func productFromDocument(id string, doc productDocument) (domain.Product, error) {
	price, err := domain.ParseMoney(doc.Price)
	if err != nil {
		return domain.Product{}, repositories.NewProductError(repositories.ProductErrorUnknown, "invalid price for product "+id, err)
	}
	return domain.Product{
		ID:        id,
		Barcode:   doc.Barcode,
		Name:      doc.Name,
		Price:     price,
		Stock:     int(doc.Stock),
		Active:    doc.Active,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func classifyProductError(op string, err error) error {
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return &repositories.ProductError{Op: op, Code: repositories.ProductErrorNotFound, Message: "product not found", Err: err}
		case repoErr.IsUnavailable():
			return &repositories.ProductError{Op: op, Code: repositories.ProductErrorUnavailable, Message: "catalog temporarily unavailable", Err: err}
		}
	}
	return &repositories.ProductError{Op: op, Code: repositories.ProductErrorUnknown, Message: "catalog read failed", Err: err}
}
