package brain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cleanbrain/brain/bitrix"
	"github.com/hrygo/cleanbrain/internal/profile"
	"github.com/hrygo/cleanbrain/store"
	"github.com/hrygo/cleanbrain/store/db/sqlite"
)

// crmStub is a minimal portal: one deal, togglable hard failure.
type crmStub struct {
	failing       atomic.Bool
	dealListCalls atomic.Int32

	companyPhones []string
	contactRows   []any
}

func (s *crmStub) handler() http.Handler {
	write := func(w http.ResponseWriter, result any) {
		json.NewEncoder(w).Encode(map[string]any{"result": result, "total": 1})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		deal := map[string]any{
			"ID":               "101",
			"TITLE":            "ул. Ленина, д. 10",
			"COMPANY_ID":       "7",
			"ASSIGNED_BY_NAME": "1 бригада",
		}
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case "crm.deal.list":
			s.dealListCalls.Add(1)
			write(w, []any{deal})
		case "crm.deal.get":
			write(w, deal)
		case "crm.company.get":
			phones := make([]any, 0, len(s.companyPhones))
			for _, p := range s.companyPhones {
				phones = append(phones, map[string]any{"VALUE": p})
			}
			write(w, map[string]any{"ID": "7", "TITLE": "УК Чистый город", "PHONE": phones})
		case "crm.deal.contact.items.get":
			write(w, s.contactRows)
		case "crm.contact.get":
			write(w, map[string]any{"NAME": "Мария", "LAST_NAME": "Иванова",
				"PHONE": []any{map[string]any{"VALUE": "+7 911 555-66-77"}}})
		case "crm.deal.userfield.list":
			write(w, []any{})
		case "user.get":
			write(w, []any{})
		default:
			http.Error(w, "unknown method", http.StatusNotFound)
		}
	})
}

func newTestBrain(t *testing.T, stub *crmStub, cfg Config, st *store.Store) *Brain {
	t.Helper()
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)
	client := bitrix.NewClient(server.URL, 5*time.Second)
	client.SetRequestGap(time.Microsecond)
	client.SetSleepFunc(func(ctx context.Context, d time.Duration) error { return nil })
	gateway := bitrix.NewGateway(client, "34", bitrix.DefaultFieldMap())
	// Caching behaviour under test is the brain's own, not the gateway's.
	gateway.SetDealsCacheTTL(time.Millisecond)
	return New(gateway, st, cfg)
}

func TestHousesByAddressCacheMeta(t *testing.T) {
	b := newTestBrain(t, &crmStub{}, DefaultConfig(), nil)

	houses, meta, err := b.HousesByAddress(context.Background(), "Ленина 10", 0)
	require.NoError(t, err)
	require.Len(t, houses, 1)
	assert.Equal(t, SourceMeta{Cache: "miss", Area: "houses"}, meta)

	_, meta, err = b.HousesByAddress(context.Background(), "Ленина 10", 0)
	require.NoError(t, err)
	assert.Equal(t, SourceMeta{Cache: "hit", Area: "houses"}, meta)
}

func TestHousesByAddressCoalescesConcurrentMisses(t *testing.T) {
	stub := &crmStub{}
	b := newTestBrain(t, stub, DefaultConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := b.HousesByAddress(context.Background(), "Ленина 10", 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), stub.dealListCalls.Load(), "one flight must serve all concurrent callers")
}

func TestHousesByAddressStaleFallback(t *testing.T) {
	stub := &crmStub{}
	// Tiny TTL so each call is a real refetch attempt.
	cfg := DefaultConfig()
	cfg.HousesTTL = time.Millisecond
	b := newTestBrain(t, stub, cfg, nil)

	houses, _, err := b.HousesByAddress(context.Background(), "Ленина 10", 0)
	require.NoError(t, err)
	require.Len(t, houses, 1)

	stub.failing.Store(true)
	time.Sleep(5 * time.Millisecond)

	// Failures serve the last good value, marked stale.
	for i := 0; i < 4; i++ {
		time.Sleep(2 * time.Millisecond)
		houses, meta, err := b.HousesByAddress(context.Background(), "Ленина 10", 0)
		require.NoError(t, err)
		require.Len(t, houses, 1)
		assert.True(t, meta.Stale, "attempt %d must be stale", i)
	}

	// After three failures the circuit is open: no live calls go out.
	calls := stub.dealListCalls.Load()
	time.Sleep(2 * time.Millisecond)
	_, meta, err := b.HousesByAddress(context.Background(), "Ленина 10", 0)
	require.NoError(t, err)
	assert.True(t, meta.Stale)
	assert.Equal(t, calls, stub.dealListCalls.Load(), "open circuit must not fetch")

	// Recovery: the portal is healthy again and the window has passed.
	b.Breaker().SetNowFunc(func() time.Time { return time.Now().Add(time.Minute) })
	stub.failing.Store(false)
	_, meta, err = b.HousesByAddress(context.Background(), "Ленина 10", 0)
	require.NoError(t, err)
	assert.False(t, meta.Stale)
}

func TestElderContactFallsBackToCompany(t *testing.T) {
	// No contact rows anywhere: the company's phone is the last resort.
	stub := &crmStub{companyPhones: []string{"+7 900 111-22-33"}}
	b := newTestBrain(t, stub, DefaultConfig(), nil)

	contact, house, meta, err := b.ElderContactByAddress(context.Background(), "Ленина 10")
	require.NoError(t, err)
	assert.Equal(t, "ул. Ленина, д. 10", house.Title)
	assert.Equal(t, "УК Чистый город", contact.Name)
	assert.Equal(t, []string{"+7 900 111-22-33"}, contact.Phones)
	assert.Equal(t, "elder", meta.Area)
}

func TestElderContactPrefersDealContact(t *testing.T) {
	stub := &crmStub{
		companyPhones: []string{"+7 900 111-22-33"},
		contactRows:   []any{map[string]any{"CONTACT_ID": "77"}},
	}
	b := newTestBrain(t, stub, DefaultConfig(), nil)

	contact, _, _, err := b.ElderContactByAddress(context.Background(), "Ленина 10")
	require.NoError(t, err)
	assert.Equal(t, "Мария Иванова", contact.Name)
	assert.Equal(t, []string{"+7 911 555-66-77"}, contact.Phones)
}

func TestElderContactUnknownAddress(t *testing.T) {
	b := newTestBrain(t, &crmStub{}, DefaultConfig(), nil)

	contact, house, _, err := b.ElderContactByAddress(context.Background(), "Гагарина 99")
	require.NoError(t, err)
	assert.True(t, contact.IsEmpty())
	assert.Empty(t, house.ID)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	prof := &profile.Profile{DSN: filepath.Join(t.TempDir(), "test.db")}
	driver, err := sqlite.NewDB(prof)
	require.NoError(t, err)
	st := store.New(driver, prof)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestFinanceAggregateWindow(t *testing.T) {
	st := newTestStore(t)
	db := st.GetDriver().GetDB()
	for _, row := range []struct {
		date   string
		typ    string
		amount float64
	}{
		{"2025-10-01", store.TransactionIncome, 50000},
		{"2025-10-05", store.TransactionExpense, 12000},
		{"2025-10-20", store.TransactionIncome, 30000},
	} {
		date, err := time.Parse("2006-01-02", row.date)
		require.NoError(t, err)
		_, err = db.Exec(
			`INSERT INTO financial_transactions (date, type, amount, category) VALUES (?, ?, ?, ?)`,
			date, row.typ, row.amount, "Уборка",
		)
		require.NoError(t, err)
	}

	b := newTestBrain(t, &crmStub{}, DefaultConfig(), st)

	from := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 10, 31, 23, 59, 59, 0, time.UTC)
	agg, meta, err := b.FinanceAggregateWindow(context.Background(), from, to)
	require.NoError(t, err)

	assert.Len(t, agg.Transactions, 3)
	assert.Equal(t, 80000.0, agg.Income)
	assert.Equal(t, 12000.0, agg.Expense)
	assert.Equal(t, 68000.0, agg.Profit())
	assert.Equal(t, SourceMeta{Cache: "miss", Area: "finance"}, meta)

	_, meta, err = b.FinanceAggregateWindow(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, "hit", meta.Cache)
}

func TestFinanceAggregateWithoutDatabase(t *testing.T) {
	b := newTestBrain(t, &crmStub{}, DefaultConfig(), nil)

	_, _, err := b.FinanceAggregateWindow(context.Background(), time.Now().AddDate(0, 0, -30), time.Now())
	assert.Error(t, err)
}
