package bitrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// portalFixture is an in-memory CRM portal good enough for the gateway.
type portalFixture struct {
	deals     []map[string]any
	companies map[string]map[string]any
	users     map[string]map[string]any
	contacts  map[string]map[string]any
	dealLinks map[string][]map[string]any // deal id -> contact association rows

	dealListCalls int32
}

func (p *portalFixture) handler(t *testing.T) http.Handler {
	t.Helper()
	write := func(w http.ResponseWriter, result any, next *int, total int) {
		env := map[string]any{"result": result, "total": total}
		if next != nil {
			env["next"] = *next
		}
		require.NoError(t, json.NewEncoder(w).Encode(env))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/")
		q := r.URL.Query()
		switch method {
		case "crm.deal.list":
			atomic.AddInt32(&p.dealListCalls, 1)
			start, _ := json.Number(q.Get("start")).Int64()
			// Pages of one keep the pagination loop honest.
			if int(start) >= len(p.deals) {
				write(w, []any{}, nil, len(p.deals))
				return
			}
			var next *int
			if int(start)+1 < len(p.deals) {
				n := int(start) + 1
				next = &n
			}
			write(w, []any{p.deals[start]}, next, len(p.deals))
		case "crm.deal.get":
			for _, d := range p.deals {
				if d["ID"] == q.Get("id") {
					write(w, d, nil, 1)
					return
				}
			}
			http.Error(w, "not found", http.StatusBadRequest)
		case "crm.company.get":
			if c, ok := p.companies[q.Get("id")]; ok {
				write(w, c, nil, 1)
				return
			}
			http.Error(w, "not found", http.StatusBadRequest)
		case "user.get":
			if u, ok := p.users[q.Get("ID")]; ok {
				write(w, []any{u}, nil, 1)
				return
			}
			write(w, []any{}, nil, 0)
		case "crm.contact.get":
			if c, ok := p.contacts[q.Get("id")]; ok {
				write(w, c, nil, 1)
				return
			}
			http.Error(w, "not found", http.StatusBadRequest)
		case "crm.deal.contact.items.get":
			write(w, p.dealLinks[q.Get("id")], nil, len(p.dealLinks[q.Get("id")]))
		case "crm.deal.userfield.list":
			write(w, []any{
				map[string]any{
					"FIELD_NAME": "UF_CRM_1727868391",
					"LIST": []any{
						map[string]any{"ID": "501", "VALUE": "Влажная уборка лестничных площадок всех этажей"},
						map[string]any{"ID": "502", "VALUE": "Подметание лестничных площадок"},
					},
				},
			}, nil, 1)
		default:
			t.Errorf("unexpected CRM method %q", method)
			http.Error(w, "unknown method", http.StatusNotFound)
		}
	})
}

func newTestGateway(t *testing.T, p *portalFixture) *Gateway {
	t.Helper()
	server := httptest.NewServer(p.handler(t))
	t.Cleanup(server.Close)
	client := NewClient(server.URL, 5*time.Second)
	client.SetRequestGap(time.Microsecond)
	return NewGateway(client, "34", DefaultFieldMap())
}

func defaultFixture() *portalFixture {
	fields := DefaultFieldMap()
	return &portalFixture{
		deals: []map[string]any{
			{
				"ID":               "101",
				"TITLE":            "ул. Ленина, д. 10",
				"STAGE_ID":         "C34:WORK",
				"COMPANY_ID":       "7",
				"ASSIGNED_BY_ID":   "9",
				"ASSIGNED_BY_NAME": "1 бригада",
				"CONTACT_ID":       "0",
				fields.Address:     "ул. Ленина, д. 10",
				fields.Apartments:  "120",
				fields.Entrances:   "4",
				fields.Floors:      "9",
				fields.Periods["october_1"].Dates: []any{"2025-10-03T03:00:00+03:00", "2025-10-17T03:00:00+03:00"},
				fields.Periods["october_1"].Type:  "501",
			},
			{
				"ID":               "102",
				"TITLE":            "ул. Ленина, д. 15",
				"STAGE_ID":         "C34:WORK",
				"COMPANY_ID":       "7",
				"ASSIGNED_BY_ID":   "10",
				"ASSIGNED_BY_NAME": "Петров Пётр",
				fields.Address:     "ул. Ленина, д. 15",
			},
			{
				"ID":               "103",
				"TITLE":            "пр-кт Мира, д. 2, к. 1",
				"STAGE_ID":         "C34:NEW",
				"COMPANY_ID":       "8",
				"ASSIGNED_BY_ID":   "9",
				"ASSIGNED_BY_NAME": "1 бригада",
				fields.Address:     "пр-кт Мира, д. 2, к. 1",
			},
		},
		companies: map[string]map[string]any{
			"7": {
				"ID":    "7",
				"TITLE": "УК Чистый город",
				"PHONE": []any{map[string]any{"VALUE": "+7 900 111-22-33"}},
				"EMAIL": []any{map[string]any{"VALUE": "office@chisty.ru"}},
			},
			"8": {"ID": "8", "TITLE": "УК Мир"},
		},
		users: map[string]map[string]any{
			"9":  {"ID": "9", "NAME": "1 ", "LAST_NAME": "бригада"},
			"10": {"ID": "10", "NAME": "Пётр", "LAST_NAME": "Петров"},
		},
		contacts: map[string]map[string]any{
			"77": {
				"ID":        "77",
				"NAME":      "Мария",
				"LAST_NAME": "Иванова",
				"PHONE":     []any{map[string]any{"VALUE": "+7 911 555-66-77"}},
			},
		},
		dealLinks: map[string][]map[string]any{
			"101": {{"CONTACT_ID": "77"}},
		},
	}
}

func TestListHousesAddressFilterDiscriminatesNumbers(t *testing.T) {
	g := newTestGateway(t, defaultFixture())

	houses, err := g.ListHouses(context.Background(), ListFilter{Address: "Ленина 10"})
	require.NoError(t, err)

	// "Ленина 15" shares the street but not the number, so it never makes
	// the cut.
	require.Len(t, houses, 1)
	assert.Equal(t, "101", houses[0].ID)
	assert.Equal(t, 100, houses[0].MatchScore)
}

func TestListHousesWalksAllPages(t *testing.T) {
	p := defaultFixture()
	g := newTestGateway(t, p)

	houses, err := g.ListHouses(context.Background(), ListFilter{})
	require.NoError(t, err)

	assert.Len(t, houses, 3)
	// One request per single-deal page.
	assert.Equal(t, int32(3), atomic.LoadInt32(&p.dealListCalls))
	// No address filter: newest deal id first.
	assert.Equal(t, []string{"103", "102", "101"},
		[]string{houses[0].ID, houses[1].ID, houses[2].ID})
}

func TestListHousesEnrichment(t *testing.T) {
	g := newTestGateway(t, defaultFixture())

	houses, err := g.ListHouses(context.Background(), ListFilter{Address: "Ленина 10"})
	require.NoError(t, err)
	require.Len(t, houses, 1)
	h := houses[0]

	assert.Equal(t, "УК Чистый город", h.CompanyTitle)
	assert.Equal(t, "1 бригада", h.Brigade)
	assert.Equal(t, "1", h.BrigadeNumber)
	require.NotNil(t, h.Apartments)
	assert.Equal(t, 120, *h.Apartments)

	period, ok := h.CleaningDates["october_1"]
	require.True(t, ok)
	assert.Equal(t, []string{"2025-10-03", "2025-10-17"}, period.Dates)
	assert.Equal(t, "Влажная уборка лестничных площадок всех этажей", period.Type)
	assert.Equal(t, "2 раза", h.Periodicity)
}

func TestListHousesBrigadeFallsBackToAssignedName(t *testing.T) {
	g := newTestGateway(t, defaultFixture())

	houses, err := g.ListHouses(context.Background(), ListFilter{Address: "Ленина 15"})
	require.NoError(t, err)
	require.Len(t, houses, 1)

	// User "Пётр Петров" is not a brigade account and ASSIGNED_BY_NAME has
	// no brigade stem either.
	assert.Equal(t, NoBrigadeLabel, houses[0].Brigade)
	assert.Equal(t, "", houses[0].BrigadeNumber)
}

func TestListHousesBrigadeAndStatusFilters(t *testing.T) {
	g := newTestGateway(t, defaultFixture())

	houses, err := g.ListHouses(context.Background(), ListFilter{Brigade: "1"})
	require.NoError(t, err)
	assert.Len(t, houses, 2)

	houses, err = g.ListHouses(context.Background(), ListFilter{Brigade: "1", StatusPrefix: "C34:NEW"})
	require.NoError(t, err)
	require.Len(t, houses, 1)
	assert.Equal(t, "103", houses[0].ID)

	houses, err = g.ListHouses(context.Background(), ListFilter{Company: "чистый"})
	require.NoError(t, err)
	assert.Len(t, houses, 2)
}

func TestListHousesCachesFilterCombination(t *testing.T) {
	p := defaultFixture()
	g := newTestGateway(t, p)

	_, err := g.ListHouses(context.Background(), ListFilter{Address: "Ленина 10"})
	require.NoError(t, err)
	calls := atomic.LoadInt32(&p.dealListCalls)

	_, err = g.ListHouses(context.Background(), ListFilter{Address: "Ленина 10"})
	require.NoError(t, err)
	assert.Equal(t, calls, atomic.LoadInt32(&p.dealListCalls), "second identical call must be served from cache")

	_, err = g.ListHouses(context.Background(), ListFilter{Address: "Мира 2"})
	require.NoError(t, err)
	assert.Greater(t, atomic.LoadInt32(&p.dealListCalls), calls, "different filter is a different cache entry")
}

func TestListHousesPaging(t *testing.T) {
	g := newTestGateway(t, defaultFixture())

	page, err := g.ListHouses(context.Background(), ListFilter{Page: 0, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = g.ListHouses(context.Background(), ListFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	page, err = g.ListHouses(context.Background(), ListFilter{Page: 5, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestGetDealDetailsContactChain(t *testing.T) {
	g := newTestGateway(t, defaultFixture())

	// CONTACT_ID is "0", so the association endpoint supplies the contact.
	house, err := g.GetDealDetails(context.Background(), "101")
	require.NoError(t, err)

	assert.Equal(t, "Мария Иванова", house.Elder.Name)
	assert.Equal(t, []string{"+7 911 555-66-77"}, house.Elder.Phones)
	assert.Equal(t, "УК Чистый город", house.Company.Title)
	assert.Equal(t, []string{"+7 900 111-22-33"}, house.Company.Phones)
}

func TestGetDealDetailsNoContactIsNotAnError(t *testing.T) {
	g := newTestGateway(t, defaultFixture())

	house, err := g.GetDealDetails(context.Background(), "103")
	require.NoError(t, err)
	assert.True(t, house.Elder.IsEmpty())
}

func TestListFilterCacheKeyIgnoresPaging(t *testing.T) {
	a := ListFilter{Address: "ул. Ленина, дом 10"}
	b := ListFilter{Address: "УЛ. ЛЕНИНА, ДОМ 10", Page: 3, PageSize: 20}
	assert.Equal(t, a.cacheKey(), b.cacheKey(), "paging and letter case must not split the cache")

	c := ListFilter{Address: "ул. Ленина, дом 10", Brigade: "2"}
	assert.NotEqual(t, a.cacheKey(), c.cacheKey())
}
