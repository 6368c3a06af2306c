package firestore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kiosko/pos/internal/domain"
	pfirestore "github.com/kiosko/pos/internal/platform/firestore"
	"github.com/kiosko/pos/internal/repositories"
)

const (
	salesCollection     = "sales"
	saleLinesCollection = "lines"
	movementsCollection = "stockMovements"
	countersCollection  = "counters"
	saleCounterDocID    = "sales"

	defaultSaleListLimit = 50
)

type saleDocument struct {
	Number          int64     `firestore:"number"`
	Timestamp       time.Time `firestore:"timestamp"`
	Total           string    `firestore:"total"`
	DiscountPercent float64   `firestore:"discountPercent"`
	Method          string    `firestore:"method"`
	PointOfSaleID   string    `firestore:"pointOfSaleId"`
	LineCount       int64     `firestore:"lineCount"`
}

type saleLineDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Quantity  int64  `firestore:"quantity"`
	UnitPrice string `firestore:"unitPrice"`
	Subtotal  string `firestore:"subtotal"`
	Position  int64  `firestore:"position"`
}

type movementDocument struct {
	ProductID   string    `firestore:"productId"`
	Type        string    `firestore:"type"`
	Quantity    int64     `firestore:"quantity"`
	StockBefore int64     `firestore:"stockBefore"`
	StockAfter  int64     `firestore:"stockAfter"`
	SaleID      string    `firestore:"saleId"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type saleCounterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// SaleRepositoryOption customises the repository, primarily for tests.
type SaleRepositoryOption func(*SaleRepository)

// WithSaleClock injects a custom time source.
func WithSaleClock(clock func() time.Time) SaleRepositoryOption {
	return func(r *SaleRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithSaleTxOptions overrides the transaction retry and timeout settings.
func WithSaleTxOptions(opts ...pfirestore.TxOption) SaleRepositoryOption {
	return func(r *SaleRepository) {
		r.txOpts = opts
	}
}

// SaleRepository implements repositories.SaleRepository backed by Firestore.
// Each commit also advances the monotonic receipt counter inside the same
// transaction so sale numbers never repeat or skip on contention.
type SaleRepository struct {
	provider *pfirestore.Provider
	sales    *pfirestore.BaseRepository[saleDocument]
	now      func() time.Time
	txOpts   []pfirestore.TxOption

	entropyMu sync.Mutex
	entropy   *rand.Rand
}

// NewSaleRepository constructs a Firestore-backed sale repository.
func NewSaleRepository(provider *pfirestore.Provider, opts ...SaleRepositoryOption) (*SaleRepository, error) {
	if provider == nil {
		return nil, errors.New("sale repository requires firestore provider")
	}
	repo := &SaleRepository{
		provider: provider,
		sales:    pfirestore.NewBaseRepository[saleDocument](provider, salesCollection, nil, nil),
		now:      time.Now,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

var _ repositories.SaleRepository = (*SaleRepository)(nil)

// Commit persists the sale header, its lines, the stock decrements and the
// audit movements atomically. Firestore requires every read to precede the
// first write, so the counter and all product documents are read up front.
func (r *SaleRepository) Commit(ctx context.Context, commit repositories.SaleCommit) (repositories.CommittedSale, error) {
	if err := validateCommit(commit); err != nil {
		return repositories.CommittedSale{}, err
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return repositories.CommittedSale{}, classifySaleError("sales.commit", err)
	}

	timestamp := commit.Timestamp
	if timestamp.IsZero() {
		timestamp = r.now()
	}
	timestamp = timestamp.UTC()

	saleID := r.newID(timestamp)
	saleRef := client.Collection(salesCollection).Doc(saleID)
	counterRef := client.Collection(countersCollection).Doc(saleCounterDocID)

	var result repositories.CommittedSale

	txErr := pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		counterSnap, err := tx.Get(counterRef)
		nextNumber := int64(1)
		if err == nil {
			var counter saleCounterDocument
			if err := counterSnap.DataTo(&counter); err != nil {
				return fmt.Errorf("decode sale counter: %w", err)
			}
			nextNumber = counter.CurrentValue + 1
		} else if !isNotFound(err) {
			return err
		}

		type productState struct {
			ref   *firestore.DocumentRef
			doc   productDocument
			after int64
		}
		states := make([]productState, 0, len(commit.Lines))
		var shortfalls []repositories.SaleShortfall

		for _, line := range commit.Lines {
			ref := client.Collection(productsCollection).Doc(line.ProductID)
			snap, err := tx.Get(ref)
			if err != nil {
				if isNotFound(err) {
					return &repositories.SaleError{
						Op:      "sales.commit",
						Code:    repositories.SaleErrorProductNotFound,
						Message: "product " + line.ProductID + " no longer exists",
					}
				}
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", line.ProductID, err)
			}

			after := doc.Stock - int64(line.Quantity)
			if after < 0 {
				shortfalls = append(shortfalls, repositories.SaleShortfall{
					ProductID: line.ProductID,
					Name:      doc.Name,
					Requested: line.Quantity,
					Available: int(doc.Stock),
				})
				// Stock never goes negative. With an operator override the
				// decrement clamps at zero; the movement still records the
				// true before and after values.
				after = 0
			}
			states = append(states, productState{ref: ref, doc: doc, after: after})
		}

		if len(shortfalls) > 0 && !commit.AllowShortfall {
			return &repositories.SaleError{
				Op:         "sales.commit",
				Code:       repositories.SaleErrorInsufficientStock,
				Message:    "insufficient stock for one or more lines",
				Shortfalls: shortfalls,
			}
		}

		// All reads done; writes start here.
		if err := tx.Set(counterRef, saleCounterDocument{
			CurrentValue: nextNumber,
			UpdatedAt:    timestamp,
		}); err != nil {
			return err
		}

		if err := tx.Create(saleRef, saleDocument{
			Number:          nextNumber,
			Timestamp:       timestamp,
			Total:           commit.Total.String(),
			DiscountPercent: commit.DiscountPercent,
			Method:          string(commit.Method),
			PointOfSaleID:   commit.PointOfSaleID,
			LineCount:       int64(len(commit.Lines)),
		}); err != nil {
			return err
		}

		lines := make([]domain.SaleLine, 0, len(commit.Lines))
		for i, line := range commit.Lines {
			lineRef := saleRef.Collection(saleLinesCollection).Doc(fmt.Sprintf("%04d", i+1))
			if err := tx.Create(lineRef, saleLineDocument{
				ProductID: line.ProductID,
				Name:      line.Name,
				Quantity:  int64(line.Quantity),
				UnitPrice: line.UnitPrice.String(),
				Subtotal:  line.Subtotal.String(),
				Position:  int64(i + 1),
			}); err != nil {
				return err
			}
			persisted := line
			persisted.SaleID = saleID
			lines = append(lines, persisted)
		}

		movements := make([]domain.StockMovement, 0, len(states))
		for i, state := range states {
			if err := tx.Update(state.ref, []firestore.Update{
				{Path: "stock", Value: state.after},
				{Path: "updatedAt", Value: timestamp},
			}); err != nil {
				return err
			}

			movementID := r.newID(timestamp)
			movementRef := client.Collection(movementsCollection).Doc(movementID)
			movement := movementDocument{
				ProductID:   commit.Lines[i].ProductID,
				Type:        domain.MovementSale,
				Quantity:    int64(commit.Lines[i].Quantity),
				StockBefore: state.doc.Stock,
				StockAfter:  state.after,
				SaleID:      saleID,
				CreatedAt:   timestamp,
			}
			if err := tx.Create(movementRef, movement); err != nil {
				return err
			}
			movements = append(movements, domain.StockMovement{
				ID:          movementID,
				ProductID:   movement.ProductID,
				Type:        movement.Type,
				Quantity:    int(movement.Quantity),
				StockBefore: int(movement.StockBefore),
				StockAfter:  int(movement.StockAfter),
				SaleID:      saleID,
				CreatedAt:   timestamp,
			})
		}

		result = repositories.CommittedSale{
			Sale: domain.Sale{
				ID:              saleID,
				Number:          nextNumber,
				Timestamp:       timestamp,
				Total:           commit.Total,
				DiscountPercent: commit.DiscountPercent,
				Method:          commit.Method,
				PointOfSaleID:   commit.PointOfSaleID,
			},
			Lines:     lines,
			Movements: movements,
		}
		return nil
	}, r.txOpts...)

	if txErr != nil {
		var saleErr *repositories.SaleError
		if errors.As(txErr, &saleErr) {
			return repositories.CommittedSale{}, saleErr
		}
		return repositories.CommittedSale{}, classifySaleError("sales.commit", txErr)
	}

	return result, nil
}

// FindByID loads the sale header together with its ordered lines.
func (r *SaleRepository) FindByID(ctx context.Context, saleID string) (domain.Sale, []domain.SaleLine, error) {
	id := strings.TrimSpace(saleID)
	if id == "" {
		return domain.Sale{}, nil, repositories.NewSaleError(repositories.SaleErrorInvalidInput, "sale id is required", nil)
	}

	doc, err := r.sales.Get(ctx, id)
	if err != nil {
		return domain.Sale{}, nil, classifySaleError("sales.get", err)
	}
	sale, err := saleFromDocument(doc.ID, doc.Data)
	if err != nil {
		return domain.Sale{}, nil, err
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Sale{}, nil, classifySaleError("sales.get", err)
	}

	snaps, err := client.Collection(salesCollection).Doc(id).
		Collection(saleLinesCollection).
		OrderBy("position", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return domain.Sale{}, nil, classifySaleError("sales.lines", pfirestore.WrapError("sales.lines", err))
	}

	lines := make([]domain.SaleLine, 0, len(snaps))
	for _, snap := range snaps {
		var lineDoc saleLineDocument
		if err := snap.DataTo(&lineDoc); err != nil {
			return domain.Sale{}, nil, repositories.NewSaleError(repositories.SaleErrorUnknown, "invalid sale line "+snap.Ref.ID, err)
		}
		line, err := saleLineFromDocument(id, lineDoc)
		if err != nil {
			return domain.Sale{}, nil, err
		}
		lines = append(lines, line)
	}

	return sale, lines, nil
}

// ListRecent returns sale headers ordered by timestamp descending.
func (r *SaleRepository) ListRecent(ctx context.Context, filter repositories.SaleListFilter) ([]domain.Sale, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSaleListLimit
	}

	docs, err := r.sales.Query(ctx, func(q firestore.Query) firestore.Query {
		query := q
		if !filter.From.IsZero() {
			query = query.Where("timestamp", ">=", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			query = query.Where("timestamp", "<", filter.To.UTC())
		}
		return query.OrderBy("timestamp", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, classifySaleError("sales.list", err)
	}

	sales := make([]domain.Sale, 0, len(docs))
	for _, doc := range docs {
		sale, err := saleFromDocument(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (r *SaleRepository) newID(t time.Time) string {
	r.entropyMu.Lock()
	defer r.entropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(t), r.entropy).String())
}

func validateCommit(commit repositories.SaleCommit) error {
	if len(commit.Lines) == 0 {
		return repositories.NewSaleError(repositories.SaleErrorInvalidInput, "sale requires at least one line", nil)
	}
	for _, line := range commit.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return repositories.NewSaleError(repositories.SaleErrorInvalidInput, "sale line is missing a product id", nil)
		}
		if line.Quantity <= 0 {
			return repositories.NewSaleError(repositories.SaleErrorInvalidInput, fmt.Sprintf("sale line for %s has non-positive quantity", line.ProductID), nil)
		}
	}
	if commit.DiscountPercent < 0 || commit.DiscountPercent > 100 {
		return repositories.NewSaleError(repositories.SaleErrorInvalidInput, "discount percent must be between 0 and 100", nil)
	}
	if commit.Method == "" {
		return repositories.NewSaleError(repositories.SaleErrorInvalidInput, "payment method is required", nil)
	}
	return nil
}

func saleFromDocument(id string, doc saleDocument) (domain.Sale, error) {
	total, err := domain.ParseMoney(doc.Total)
	if err != nil {
		return domain.Sale{}, repositories.NewSaleError(repositories.SaleErrorUnknown, "invalid total for sale "+id, err)
	}
	return domain.Sale{
		ID:              id,
		Number:          doc.Number,
		Timestamp:       doc.Timestamp,
		Total:           total,
		DiscountPercent: doc.DiscountPercent,
		Method:          domain.PaymentMethod(doc.Method),
		PointOfSaleID:   doc.PointOfSaleID,
	}, nil
}

func saleLineFromDocument(saleID string, doc saleLineDocument) (domain.SaleLine, error) {
	unitPrice, err := domain.ParseMoney(doc.UnitPrice)
	if err != nil {
		return domain.SaleLine{}, repositories.NewSaleError(repositories.SaleErrorUnknown, "invalid unit price for product "+doc.ProductID, err)
	}
	subtotal, err := domain.ParseMoney(doc.Subtotal)
	if err != nil {
		return domain.SaleLine{}, repositories.NewSaleError(repositories.SaleErrorUnknown, "invalid subtotal for product "+doc.ProductID, err)
	}
	return domain.SaleLine{
		SaleID:    saleID,
		ProductID: doc.ProductID,
		Name:      doc.Name,
		Quantity:  int(doc.Quantity),
		UnitPrice: unitPrice,
		Subtotal:  subtotal,
	}, nil
}

func isNotFound(err error) bool {
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return status.Code(err) == codes.NotFound
}

func classifySaleError(op string, err error) error {
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return &repositories.SaleError{Op: op, Code: repositories.SaleErrorNotFound, Message: "sale not found", Err: err}
		case repoErr.IsConflict():
			return &repositories.SaleError{Op: op, Code: repositories.SaleErrorConflict, Message: "sale commit lost a write race", Err: err}
		case repoErr.IsUnavailable():
			return &repositories.SaleError{Op: op, Code: repositories.SaleErrorUnavailable, Message: "sales store temporarily unavailable", Err: err}
		}
	}
	return &repositories.SaleError{Op: op, Code: repositories.SaleErrorUnknown, Message: "sale persistence failed", Err: err}
}
