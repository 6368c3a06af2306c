package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/services"
)

// Config shapes one simulation run.
type Config struct {
	// Registers is the number of concurrent register sessions.
	Registers int
	// SalesPerRegister is how many sales each session attempts.
	SalesPerRegister int
	// MaxLinesPerSale caps the distinct products in one cart.
	MaxLinesPerSale int
	// MaxQuantity caps the quantity per line.
	MaxQuantity int
	// DiscountChance is the probability a sale carries a 5-20% discount.
	DiscountChance float64
	// OverrideChance is the probability an operator forces a sale through a
	// reported shortfall.
	OverrideChance float64
	// ThinkTime pauses between sales on one register.
	ThinkTime time.Duration
	// Seed makes runs reproducible. Zero seeds from the clock.
	Seed int64
}

func (c *Config) applyDefaults() {
	if c.Registers <= 0 {
		c.Registers = 4
	}
	if c.SalesPerRegister <= 0 {
		c.SalesPerRegister = 25
	}
	if c.MaxLinesPerSale <= 0 {
		c.MaxLinesPerSale = 4
	}
	if c.MaxQuantity <= 0 {
		c.MaxQuantity = 3
	}
	if c.DiscountChance < 0 || c.DiscountChance > 1 {
		c.DiscountChance = 0.2
	}
	if c.OverrideChance < 0 || c.OverrideChance > 1 {
		c.OverrideChance = 0.1
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Report aggregates the outcome of a run.
type Report struct {
	Attempts            int
	Committed           int
	ShortfallRejections int
	Failures            int
	Revenue             domain.Money
	Duration            time.Duration
	MinLatency          time.Duration
	MaxLatency          time.Duration
	AvgLatency          time.Duration
}

// Deps bundles the services a simulation drives.
type Deps struct {
	Carts     services.CartService
	Checkout  services.CheckoutService
	Inventory services.InventoryService
	Catalog   []domain.Product
	Logger    *zap.Logger
}

// Simulator drives concurrent register sessions against the sale engine to
// exercise the commit path under contention.
type Simulator struct {
	carts     services.CartService
	checkout  services.CheckoutService
	inventory services.InventoryService
	catalog   []domain.Product
	logger    *zap.Logger
}

// New validates dependencies and constructs a simulator.
func New(deps Deps) (*Simulator, error) {
	if deps.Carts == nil {
		return nil, errors.New("simulator: cart service is required")
	}
	if deps.Checkout == nil {
		return nil, errors.New("simulator: checkout service is required")
	}
	if len(deps.Catalog) == 0 {
		return nil, errors.New("simulator: catalog must not be empty")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		carts:     deps.Carts,
		checkout:  deps.Checkout,
		inventory: deps.Inventory,
		catalog:   deps.Catalog,
		logger:    logger,
	}, nil
}

type tally struct {
	mu                  sync.Mutex
	attempts            int
	committed           int
	shortfallRejections int
	failures            int
	revenue             domain.Money
	totalLatency        time.Duration
	minLatency          time.Duration
	maxLatency          time.Duration
}

func (t *tally) record(latency time.Duration) {
	t.totalLatency += latency
	if t.minLatency == 0 || latency < t.minLatency {
		t.minLatency = latency
	}
	if latency > t.maxLatency {
		t.maxLatency = latency
	}
}

// Run executes the configured sessions and blocks until they finish or the
// context is cancelled.
func (s *Simulator) Run(ctx context.Context, cfg Config) (Report, error) {
	if ctx == nil {
		return Report{}, errors.New("simulator: context is required")
	}
	cfg.applyDefaults()

	started := time.Now()
	stats := &tally{}

	var wg sync.WaitGroup
	for register := 1; register <= cfg.Registers; register++ {
		wg.Add(1)
		go func(register int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(cfg.Seed + int64(register)))
			s.runRegister(ctx, cfg, register, rng, stats)
		}(register)
	}
	wg.Wait()

	stats.mu.Lock()
	defer stats.mu.Unlock()

	report := Report{
		Attempts:            stats.attempts,
		Committed:           stats.committed,
		ShortfallRejections: stats.shortfallRejections,
		Failures:            stats.failures,
		Revenue:             stats.revenue,
		Duration:            time.Since(started),
		MinLatency:          stats.minLatency,
		MaxLatency:          stats.maxLatency,
	}
	if stats.committed > 0 {
		report.AvgLatency = stats.totalLatency / time.Duration(stats.committed)
	}

	s.logger.Info("simulation finished",
		zap.Int("registers", cfg.Registers),
		zap.Int("attempts", report.Attempts),
		zap.Int("committed", report.Committed),
		zap.Int("shortfall_rejections", report.ShortfallRejections),
		zap.Int("failures", report.Failures),
		zap.String("revenue", report.Revenue.String()),
		zap.Duration("duration", report.Duration),
	)

	return report, ctx.Err()
}

func (s *Simulator) runRegister(ctx context.Context, cfg Config, register int, rng *rand.Rand, stats *tally) {
	pointOfSale := fmt.Sprintf("pos-%d", register)
	logger := s.logger.With(zap.String("register", pointOfSale))

	for attempt := 0; attempt < cfg.SalesPerRegister; attempt++ {
		if ctx.Err() != nil {
			return
		}
		if cfg.ThinkTime > 0 && attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.ThinkTime):
			}
		}

		s.attemptSale(ctx, cfg, pointOfSale, rng, stats, logger)
	}
}

func (s *Simulator) attemptSale(ctx context.Context, cfg Config, pointOfSale string, rng *rand.Rand, stats *tally, logger *zap.Logger) {
	stats.mu.Lock()
	stats.attempts++
	stats.mu.Unlock()

	inputs := s.randomItems(cfg, rng)
	cart, err := s.carts.BuildCart(ctx, inputs)
	if err != nil {
		stats.mu.Lock()
		stats.failures++
		stats.mu.Unlock()
		logger.Debug("cart build failed", zap.Error(err))
		return
	}

	allowShortfall := false
	if s.inventory != nil {
		findings, err := s.inventory.CheckAvailability(ctx, cart)
		if err == nil && hasShortfall(findings) {
			if rng.Float64() >= cfg.OverrideChance {
				stats.mu.Lock()
				stats.shortfallRejections++
				stats.mu.Unlock()
				return
			}
			allowShortfall = true
		}
	}

	discount := 0.0
	if rng.Float64() < cfg.DiscountChance {
		discount = float64(5 + rng.Intn(16))
	}

	method, tendered := s.randomPayment(rng, cart.Total().Discount(discount))

	began := time.Now()
	result, err := s.checkout.Commit(ctx, services.CheckoutRequest{
		Cart:            cart,
		DiscountPercent: discount,
		Method:          method,
		Tendered:        tendered,
		PointOfSaleID:   pointOfSale,
		AllowShortfall:  allowShortfall,
	})
	latency := time.Since(began)

	stats.mu.Lock()
	defer stats.mu.Unlock()

	switch {
	case err == nil:
		stats.committed++
		stats.revenue = stats.revenue.Add(result.Sale.Total)
		stats.record(latency)
	case errors.Is(err, services.ErrInsufficientStock):
		// The advisory check missed a concurrent decrement; the store caught it.
		stats.shortfallRejections++
	default:
		stats.failures++
		logger.Debug("commit failed", zap.Error(err))
	}
}

func (s *Simulator) randomItems(cfg Config, rng *rand.Rand) []services.CartItemInput {
	count := 1 + rng.Intn(cfg.MaxLinesPerSale)
	if count > len(s.catalog) {
		count = len(s.catalog)
	}

	picked := rng.Perm(len(s.catalog))[:count]
	inputs := make([]services.CartItemInput, 0, count)
	for _, idx := range picked {
		inputs = append(inputs, services.CartItemInput{
			ProductID: s.catalog[idx].ID,
			Quantity:  1 + rng.Intn(cfg.MaxQuantity),
		})
	}
	return inputs
}

// randomPayment mirrors a typical register mix: mostly cash, with cards and
// transfers making up the rest. Cash tenders round up to the next whole bill.
func (s *Simulator) randomPayment(rng *rand.Rand, total domain.Money) (domain.PaymentMethod, domain.Money) {
	roll := rng.Float64()
	switch {
	case roll < 0.55:
		tendered := domain.MoneyFromCents(((total.Cents() / 500) + 1) * 500)
		return domain.PaymentCash, tendered
	case roll < 0.75:
		return domain.PaymentDebitCard, domain.Money{}
	case roll < 0.9:
		return domain.PaymentCreditCard, domain.Money{}
	default:
		return domain.PaymentTransfer, domain.Money{}
	}
}

func hasShortfall(findings []services.AvailabilityFinding) bool {
	for _, finding := range findings {
		if !finding.Covered {
			return true
		}
	}
	return false
}
