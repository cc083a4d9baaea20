// Package brain is the domain facade the resolvers talk to. It joins the CRM
// gateway and the relational store, owns the answer-level caches, and reports
// where every piece of data came from: cache hit or miss, and whether a value
// is stale because a circuit is open.
package brain

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/cleanbrain/brain/address"
	"github.com/hrygo/cleanbrain/brain/bitrix"
	"github.com/hrygo/cleanbrain/brain/breaker"
	"github.com/hrygo/cleanbrain/brain/cache"
	"github.com/hrygo/cleanbrain/brain/logging"
	"github.com/hrygo/cleanbrain/brain/metrics"
	"github.com/hrygo/cleanbrain/store"
)

// Default answer-cache TTLs; the profile can override each.
const (
	DefaultHousesTTL  = 180 * time.Second
	DefaultElderTTL   = 300 * time.Second
	DefaultFinanceTTL = 180 * time.Second
)

// SourceMeta tells the caller how a data area was served.
type SourceMeta struct {
	Cache string `json:"cache"` // "hit" | "miss"
	Stale bool   `json:"stale,omitempty"`
	Area  string `json:"area"`
}

func hitMeta(area string) SourceMeta   { return SourceMeta{Cache: "hit", Area: area} }
func missMeta(area string) SourceMeta  { return SourceMeta{Cache: "miss", Area: area} }
func staleMeta(area string) SourceMeta { return SourceMeta{Cache: "hit", Stale: true, Area: area} }

// FinanceAggregate is the windowed view over financial_transactions.
type FinanceAggregate struct {
	Transactions []*store.Transaction
	Income       float64
	Expense      float64
}

// Profit is income minus expense.
func (f FinanceAggregate) Profit() float64 {
	return f.Income - f.Expense
}

// Config carries the tunables the profile decides.
type Config struct {
	HousesTTL  time.Duration
	ElderTTL   time.Duration
	FinanceTTL time.Duration

	BreakerThreshold int
	BreakerOpenFor   time.Duration
}

// DefaultConfig returns the defaults used when the profile stays silent.
func DefaultConfig() Config {
	return Config{
		HousesTTL:  DefaultHousesTTL,
		ElderTTL:   DefaultElderTTL,
		FinanceTTL: DefaultFinanceTTL,

		BreakerThreshold: breaker.DefaultThreshold,
		BreakerOpenFor:   breaker.DefaultOpenWindow,
	}
}

// Brain answers domain questions for the resolvers.
type Brain struct {
	gateway *bitrix.Gateway
	store   *store.Store
	breaker *breaker.Breaker
	metrics *metrics.Collector
	logger  *logging.Logger

	housesCache  *cache.TTL[[]bitrix.House]
	elderCache   *cache.TTL[elderResult]
	financeCache *cache.TTL[FinanceAggregate]
	flights      *cache.KeyMutex
}

type elderResult struct {
	Contact bitrix.ElderContact
	House   bitrix.House
}

// New creates a Brain. The store may be nil when the deployment runs without
// a local database; store-backed methods then return an error.
func New(gateway *bitrix.Gateway, st *store.Store, cfg Config) *Brain {
	if cfg.HousesTTL <= 0 {
		cfg.HousesTTL = DefaultHousesTTL
	}
	if cfg.ElderTTL <= 0 {
		cfg.ElderTTL = DefaultElderTTL
	}
	if cfg.FinanceTTL <= 0 {
		cfg.FinanceTTL = DefaultFinanceTTL
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = breaker.DefaultThreshold
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = breaker.DefaultOpenWindow
	}
	return &Brain{
		gateway:      gateway,
		store:        st,
		breaker:      breaker.New(cfg.BreakerThreshold, cfg.BreakerOpenFor),
		logger:       logging.FromContext(context.Background()).WithField("component", "brain"),
		housesCache:  cache.New[[]bitrix.House](cfg.HousesTTL),
		elderCache:   cache.New[elderResult](cfg.ElderTTL),
		financeCache: cache.New[FinanceAggregate](cfg.FinanceTTL),
		flights:      cache.NewKeyMutex(),
	}
}

// SetMetrics attaches a metrics collector to the brain and the gateway.
func (b *Brain) SetMetrics(m *metrics.Collector) {
	b.metrics = m
	if b.gateway != nil {
		b.gateway.SetMetrics(m)
	}
}

// Store exposes the relational store for resolvers that query it directly.
func (b *Brain) Store() *store.Store {
	return b.store
}

// Breaker exposes circuit state for health reporting.
func (b *Brain) Breaker() *breaker.Breaker {
	return b.breaker
}

func (b *Brain) recordCache(area string, hit bool) {
	if b.metrics != nil {
		b.metrics.RecordCache(area, hit)
	}
}

// HousesByAddress returns houses matching the address, best match first,
// truncated to limit when limit > 0.
func (b *Brain) HousesByAddress(ctx context.Context, addr string, limit int) ([]bitrix.House, SourceMeta, error) {
	area := breaker.AreaHouses
	key := "houses:" + address.Normalize(addr)

	if houses, ok := b.housesCache.Get(key); ok {
		b.recordCache(string(area), true)
		return truncateHouses(houses, limit), hitMeta(string(area)), nil
	}

	unlock := b.flights.Lock(key)
	defer unlock()
	if houses, ok := b.housesCache.Get(key); ok {
		b.recordCache(string(area), true)
		return truncateHouses(houses, limit), hitMeta(string(area)), nil
	}
	b.recordCache(string(area), false)

	if b.breaker.IsOpen(area) {
		if last, ok := b.breaker.LastGood(area); ok {
			if houses, ok := last.([]bitrix.House); ok {
				return truncateHouses(houses, limit), staleMeta(string(area)), nil
			}
		}
		return nil, missMeta(string(area)), errors.New("crm circuit open and no cached houses")
	}

	houses, err := b.gateway.ListHouses(ctx, bitrix.ListFilter{Address: addr})
	if err != nil {
		b.breaker.RecordFailure(area)
		if last, ok := b.breaker.LastGood(area); ok {
			if stale, ok := last.([]bitrix.House); ok {
				b.logger.Warn("serving stale houses", "address", addr, "error", err.Error())
				return truncateHouses(stale, limit), staleMeta(string(area)), nil
			}
		}
		return nil, missMeta(string(area)), errors.Wrap(err, "list houses")
	}
	b.breaker.RecordSuccess(area, houses)
	b.housesCache.Set(key, houses)
	return truncateHouses(houses, limit), missMeta(string(area)), nil
}

func truncateHouses(houses []bitrix.House, limit int) []bitrix.House {
	if limit > 0 && len(houses) > limit {
		return houses[:limit]
	}
	return houses
}

// ElderContactByAddress resolves the building's elder contact. The top-ranked
// house's embedded contact wins; an empty one falls back to a detail fetch
// and finally to the management company's phones and emails. An all-empty
// result is reported through ElderContact.IsEmpty, not as an error.
func (b *Brain) ElderContactByAddress(ctx context.Context, addr string) (bitrix.ElderContact, bitrix.House, SourceMeta, error) {
	area := breaker.AreaElder
	key := "elder:" + address.Normalize(addr)

	if res, ok := b.elderCache.Get(key); ok {
		b.recordCache(string(area), true)
		return res.Contact, res.House, hitMeta(string(area)), nil
	}

	unlock := b.flights.Lock(key)
	defer unlock()
	if res, ok := b.elderCache.Get(key); ok {
		b.recordCache(string(area), true)
		return res.Contact, res.House, hitMeta(string(area)), nil
	}
	b.recordCache(string(area), false)

	if b.breaker.IsOpen(area) {
		if last, ok := b.breaker.LastGood(area); ok {
			if res, ok := last.(elderResult); ok {
				return res.Contact, res.House, staleMeta(string(area)), nil
			}
		}
		return bitrix.ElderContact{}, bitrix.House{}, missMeta(string(area)), errors.New("crm circuit open and no cached elder contact")
	}

	res, err := b.fetchElder(ctx, addr)
	if err != nil {
		b.breaker.RecordFailure(area)
		if last, ok := b.breaker.LastGood(area); ok {
			if stale, ok := last.(elderResult); ok {
				b.logger.Warn("serving stale elder contact", "address", addr, "error", err.Error())
				return stale.Contact, stale.House, staleMeta(string(area)), nil
			}
		}
		return bitrix.ElderContact{}, bitrix.House{}, missMeta(string(area)), err
	}
	b.breaker.RecordSuccess(area, res)
	b.elderCache.Set(key, res)
	return res.Contact, res.House, missMeta(string(area)), nil
}

func (b *Brain) fetchElder(ctx context.Context, addr string) (elderResult, error) {
	houses, err := b.gateway.ListHouses(ctx, bitrix.ListFilter{Address: addr})
	if err != nil {
		return elderResult{}, errors.Wrap(err, "list houses for elder")
	}
	if len(houses) == 0 {
		return elderResult{}, nil
	}
	top := houses[0]
	if !top.Elder.IsEmpty() {
		return elderResult{Contact: top.Elder, House: top}, nil
	}

	detail, err := b.gateway.GetDealDetails(ctx, top.ID)
	if err != nil {
		return elderResult{}, errors.Wrap(err, "deal details for elder")
	}
	contact := detail.Elder
	if contact.IsEmpty() {
		// Last resort: the management company's own contact channels.
		contact = bitrix.ElderContact{
			Name:   detail.Company.Title,
			Phones: detail.Company.Phones,
			Emails: detail.Company.Emails,
		}
		if len(contact.Phones) == 0 && len(contact.Emails) == 0 {
			contact = bitrix.ElderContact{}
		}
	}
	return elderResult{Contact: contact, House: top}, nil
}

// CleaningByAddress returns the top-matching house with its full cleaning
// schedule. The caller slices out the month it needs.
func (b *Brain) CleaningByAddress(ctx context.Context, addr string) (*bitrix.House, SourceMeta, error) {
	houses, meta, err := b.HousesByAddress(ctx, addr, 1)
	if err != nil {
		return nil, meta, err
	}
	if len(houses) == 0 {
		return nil, meta, nil
	}
	return &houses[0], meta, nil
}

// FinanceAggregateWindow aggregates transactions over [from, to].
func (b *Brain) FinanceAggregateWindow(ctx context.Context, from, to time.Time) (FinanceAggregate, SourceMeta, error) {
	area := breaker.AreaFinance
	if b.store == nil {
		return FinanceAggregate{}, missMeta(string(area)), errors.New("no database configured")
	}
	key := "finance:" + from.Format("2006-01-02") + ":" + to.Format("2006-01-02")

	if agg, ok := b.financeCache.Get(key); ok {
		b.recordCache(string(area), true)
		return agg, hitMeta(string(area)), nil
	}

	unlock := b.flights.Lock(key)
	defer unlock()
	if agg, ok := b.financeCache.Get(key); ok {
		b.recordCache(string(area), true)
		return agg, hitMeta(string(area)), nil
	}
	b.recordCache(string(area), false)

	if b.breaker.IsOpen(area) {
		if last, ok := b.breaker.LastGood(area); ok {
			if agg, ok := last.(FinanceAggregate); ok {
				return agg, staleMeta(string(area)), nil
			}
		}
		return FinanceAggregate{}, missMeta(string(area)), errors.New("finance circuit open and no cached aggregate")
	}

	transactions, err := b.store.FinanceTransactions(ctx, from, to)
	if err != nil {
		b.breaker.RecordFailure(area)
		if last, ok := b.breaker.LastGood(area); ok {
			if stale, ok := last.(FinanceAggregate); ok {
				b.logger.Warn("serving stale finance aggregate", "error", err.Error())
				return stale, staleMeta(string(area)), nil
			}
		}
		return FinanceAggregate{}, missMeta(string(area)), errors.Wrap(err, "finance transactions")
	}

	agg := FinanceAggregate{Transactions: transactions}
	for _, tx := range transactions {
		if tx.IsIncome() {
			agg.Income += tx.Amount
		} else {
			agg.Expense += tx.Amount
		}
	}
	b.breaker.RecordSuccess(area, agg)
	b.financeCache.Set(key, agg)
	return agg, missMeta(string(area)), nil
}
