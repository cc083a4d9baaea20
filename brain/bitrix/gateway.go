package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/cleanbrain/brain/address"
	"github.com/hrygo/cleanbrain/brain/cache"
	"github.com/hrygo/cleanbrain/brain/logging"
	"github.com/hrygo/cleanbrain/brain/metrics"
)

// Cache TTLs for gateway-internal lookups.
const (
	companyCacheTTL = 30 * time.Minute
	userCacheTTL    = 10 * time.Minute
	enumCacheTTL    = time.Hour
	dealsCacheTTL   = 2 * time.Minute

	pageSize = 50
)

// ListFilter selects deals from the managed-houses category.
// Zero values mean "no constraint".
type ListFilter struct {
	Brigade       string     // parsed brigade number
	StatusPrefix  string     // STAGE_ID prefix
	Company       string     // management-company substring
	Address       string     // address substring, normalised before scoring
	CleaningDate  *time.Time // exact cleaning-date equality
	DateFrom      *time.Time // cleaning-date range
	DateTo        *time.Time
	Page     int
	PageSize int
}

// cacheKey identifies the full filter combination, page excluded: the whole
// filtered list is cached once and sliced per page.
func (f ListFilter) cacheKey() string {
	fmtTime := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format("2006-01-02")
	}
	return strings.Join([]string{
		"deals",
		f.Brigade,
		f.StatusPrefix,
		strings.ToLower(f.Company),
		address.Normalize(f.Address),
		fmtTime(f.CleaningDate),
		fmtTime(f.DateFrom),
		fmtTime(f.DateTo),
	}, "|")
}

type userRecord struct {
	Name     string
	LastName string
}

// Gateway translates raw CRM deals into house DTOs.
type Gateway struct {
	client     *Client
	fields     FieldMap
	categoryID string
	logger     *logging.Logger
	metrics    *metrics.Collector

	companyCache *cache.TTL[CompanyInfo]
	userCache    *cache.TTL[userRecord]
	enumCache    *cache.TTL[map[string]map[string]string]
	dealsCache   *cache.TTL[[]House]
	flights      *cache.KeyMutex
}

// NewGateway creates a gateway over the given client.
func NewGateway(client *Client, categoryID string, fields FieldMap) *Gateway {
	return &Gateway{
		client:       client,
		fields:       fields,
		categoryID:   categoryID,
		logger:       logging.FromContext(context.Background()).WithField("component", "bitrix_gateway"),
		companyCache: cache.New[CompanyInfo](companyCacheTTL),
		userCache:    cache.New[userRecord](userCacheTTL),
		enumCache:    cache.New[map[string]map[string]string](enumCacheTTL),
		dealsCache:   cache.New[[]House](dealsCacheTTL),
		flights:      cache.NewKeyMutex(),
	}
}

// SetDealsCacheTTL replaces the deals-list cache with one of the given TTL.
// Test hook.
func (g *Gateway) SetDealsCacheTTL(ttl time.Duration) {
	g.dealsCache = cache.New[[]House](ttl)
}

// SetMetrics attaches a metrics collector to the gateway and its client.
func (g *Gateway) SetMetrics(m *metrics.Collector) {
	g.metrics = m
	g.client.SetMetrics(m)
}

func (g *Gateway) recordCache(area string, hit bool) {
	if g.metrics != nil {
		g.metrics.RecordCache(area, hit)
	}
}

// ListHouses returns the requested page of houses matching the filter.
// The full filtered list is cached per filter combination; concurrent cold
// requests for the same combination collapse into one CRM walk.
func (g *Gateway) ListHouses(ctx context.Context, f ListFilter) ([]House, error) {
	key := f.cacheKey()
	if houses, ok := g.dealsCache.Get(key); ok {
		g.recordCache("deals", true)
		return slicePage(houses, f), nil
	}

	unlock := g.flights.Lock(key)
	defer unlock()
	// Another flight may have warmed the cache while we waited.
	if houses, ok := g.dealsCache.Get(key); ok {
		g.recordCache("deals", true)
		return slicePage(houses, f), nil
	}
	g.recordCache("deals", false)

	houses, err := g.fetchHouses(ctx, f)
	if err != nil {
		return nil, err
	}
	g.dealsCache.Set(key, houses)
	return slicePage(houses, f), nil
}

func slicePage(houses []House, f ListFilter) []House {
	size := f.PageSize
	if size <= 0 {
		return houses
	}
	start := f.Page * size
	if start >= len(houses) {
		return nil
	}
	end := start + size
	if end > len(houses) {
		end = len(houses)
	}
	return houses[start:end]
}

// fetchHouses walks the paginated deal listing, scoring and enriching as it
// goes, then applies the remaining filters and the ordering contract.
func (g *Gateway) fetchHouses(ctx context.Context, f ListFilter) ([]House, error) {
	var houses []House
	start := 0
	for {
		params := url.Values{}
		params.Set("filter[CATEGORY_ID]", g.categoryID)
		for _, field := range g.fields.selectFields() {
			params.Add("select[]", field)
		}
		params.Set("start", strconv.Itoa(start))

		res := g.client.Call(ctx, "crm.deal.list", params)
		if !res.OK {
			return nil, errors.New("deal listing failed after retries")
		}

		var deals []map[string]any
		if err := json.Unmarshal(res.Result, &deals); err != nil {
			// A malformed page is logged and treated as end-of-pages; earlier
			// pages are still served.
			g.logger.Warn("unexpected deal list shape", "error", err.Error())
			break
		}

		for _, raw := range deals {
			score := 0
			if f.Address != "" {
				// Score before enrichment so non-matches cost nothing.
				score = g.scoreDeal(f.Address, raw)
				if score < address.MatchThreshold {
					continue
				}
			}
			house := g.buildHouse(ctx, raw)
			house.MatchScore = score
			houses = append(houses, house)
		}

		if res.Next == nil {
			break
		}
		start = *res.Next
	}

	houses = applyFilters(houses, f)

	if f.Address != "" {
		sort.SliceStable(houses, func(i, j int) bool {
			return houses[i].MatchScore > houses[j].MatchScore
		})
	} else {
		sort.SliceStable(houses, func(i, j int) bool {
			return dealIDNum(houses[i].ID) > dealIDNum(houses[j].ID)
		})
	}
	return houses, nil
}

func dealIDNum(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}

// scoreDeal computes the best address score against the raw title and the
// address custom field.
func (g *Gateway) scoreDeal(query string, raw map[string]any) int {
	score := address.Score(query, getString(raw, "TITLE"))
	if s := address.Score(query, getString(raw, g.fields.Address)); s > score {
		score = s
	}
	return score
}

func applyFilters(houses []House, f ListFilter) []House {
	kept := houses[:0]
	for _, h := range houses {
		if f.Brigade != "" && h.BrigadeNumber != f.Brigade {
			continue
		}
		if f.StatusPrefix != "" && !strings.HasPrefix(h.Status, f.StatusPrefix) {
			continue
		}
		if f.Company != "" && !strings.Contains(strings.ToLower(h.CompanyTitle), strings.ToLower(f.Company)) {
			continue
		}
		if f.CleaningDate != nil && !h.CleaningDates.hasDateBetween(*f.CleaningDate, *f.CleaningDate) {
			continue
		}
		if f.DateFrom != nil && f.DateTo != nil && !h.CleaningDates.hasDateBetween(*f.DateFrom, *f.DateTo) {
			continue
		}
		kept = append(kept, h)
	}
	return kept
}

func (c CleaningDates) hasDateBetween(from, to time.Time) bool {
	fromStr := from.Format("2006-01-02")
	toStr := to.Format("2006-01-02")
	for _, p := range c {
		for _, d := range p.Dates {
			if d >= fromStr && d <= toStr {
				return true
			}
		}
	}
	return false
}

// buildHouse enriches one raw deal into a House DTO. Missing or malformed
// fields degrade to empty values, never abort the page.
func (g *Gateway) buildHouse(ctx context.Context, raw map[string]any) House {
	id := getString(raw, "ID")
	title := getString(raw, "TITLE")
	addr := getString(raw, g.fields.Address)
	if addr == "" {
		addr = title
	}

	h := House{
		ID:             id,
		Title:          title,
		Address:        address.Normalize(addr),
		AssignedByID:   getString(raw, "ASSIGNED_BY_ID"),
		AssignedByName: getString(raw, "ASSIGNED_BY_NAME"),
		CompanyID:      getString(raw, "COMPANY_ID"),
		Status:         getString(raw, "STAGE_ID"),
		Apartments:     getOptionalInt(raw, g.fields.Apartments),
		Entrances:      getOptionalInt(raw, g.fields.Entrances),
		Floors:         getOptionalInt(raw, g.fields.Floors),
		BitrixURL:      g.client.PortalURL(id),
	}

	if h.CompanyID != "" && h.CompanyID != "0" {
		if company, ok := g.resolveCompany(ctx, h.CompanyID); ok {
			h.CompanyTitle = company.Title
			h.Company = company
		}
	}

	h.CleaningDates = g.cleaningDates(ctx, raw)
	h.Periodicity = DerivePeriodicity(h.CleaningDates)

	var user userRecord
	if h.AssignedByID != "" && h.AssignedByID != "0" {
		user, _ = g.resolveUser(ctx, h.AssignedByID)
	}
	h.Brigade = DeriveBrigadeLabel(user.Name, user.LastName, h.AssignedByName)
	h.BrigadeNumber = ParseBrigadeNumber(h.Brigade)

	return h
}

// cleaningDates collects the six half-month slots, translating type enums.
func (g *Gateway) cleaningDates(ctx context.Context, raw map[string]any) CleaningDates {
	cd := make(CleaningDates)
	for _, key := range PeriodKeys {
		pf := g.fields.Periods[key]
		dates := getStringList(raw, pf.Dates)
		if len(dates) == 0 {
			continue
		}
		normalized := make([]string, 0, len(dates))
		for _, d := range dates {
			if len(d) >= 10 {
				normalized = append(normalized, d[:10])
			}
		}
		sort.Strings(normalized)
		cd[key] = CleaningPeriod{
			Dates: normalized,
			Type:  g.translateEnum(ctx, pf.Type, getString(raw, pf.Type)),
		}
	}
	if len(cd) == 0 {
		return nil
	}
	return cd
}

// translateEnum resolves an enum id to its human label. Values that are not
// numeric ids pass through unchanged; an unknown id is returned verbatim so
// a failed dictionary fetch degrades visibly instead of silently dropping
// the type.
func (g *Gateway) translateEnum(ctx context.Context, field, value string) string {
	if value == "" {
		return ""
	}
	if _, err := strconv.Atoi(value); err != nil {
		return value
	}
	labels := g.enumLabels(ctx)
	if byID, ok := labels[field]; ok {
		if label, ok := byID[value]; ok {
			return label
		}
	}
	return value
}

// enumLabels fetches the deal userfield dictionaries once and caches them.
// Empty results are never cached so a transient failure cannot poison the
// dictionary for a full TTL.
func (g *Gateway) enumLabels(ctx context.Context) map[string]map[string]string {
	const key = "deal_userfields"
	if labels, ok := g.enumCache.Get(key); ok {
		g.recordCache("enum", true)
		return labels
	}

	unlock := g.flights.Lock("enum:" + key)
	defer unlock()
	if labels, ok := g.enumCache.Get(key); ok {
		g.recordCache("enum", true)
		return labels
	}
	g.recordCache("enum", false)

	res := g.client.Call(ctx, "crm.deal.userfield.list", url.Values{})
	if !res.OK {
		return nil
	}
	var fields []struct {
		FieldName string `json:"FIELD_NAME"`
		List      []struct {
			ID    json.Number `json:"ID"`
			Value string      `json:"VALUE"`
		} `json:"LIST"`
	}
	if err := json.Unmarshal(res.Result, &fields); err != nil {
		g.logger.Warn("unexpected userfield list shape", "error", err.Error())
		return nil
	}

	labels := make(map[string]map[string]string)
	for _, f := range fields {
		if len(f.List) == 0 {
			continue
		}
		byID := make(map[string]string, len(f.List))
		for _, item := range f.List {
			byID[item.ID.String()] = item.Value
		}
		labels[f.FieldName] = byID
	}
	if len(labels) > 0 {
		g.enumCache.Set(key, labels)
	}
	return labels
}

// resolveCompany fetches company info by id with caching.
func (g *Gateway) resolveCompany(ctx context.Context, id string) (CompanyInfo, bool) {
	if company, ok := g.companyCache.Get(id); ok {
		g.recordCache("company", true)
		return company, true
	}

	unlock := g.flights.Lock("company:" + id)
	defer unlock()
	if company, ok := g.companyCache.Get(id); ok {
		g.recordCache("company", true)
		return company, true
	}
	g.recordCache("company", false)

	params := url.Values{}
	params.Set("id", id)
	res := g.client.Call(ctx, "crm.company.get", params)
	if !res.OK {
		return CompanyInfo{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal(res.Result, &raw); err != nil {
		g.logger.Warn("unexpected company shape", "company_id", id, "error", err.Error())
		return CompanyInfo{}, false
	}
	company := CompanyInfo{
		ID:     getString(raw, "ID"),
		Title:  getString(raw, "TITLE"),
		Phones: getMultiFieldValues(raw, "PHONE"),
		Emails: getMultiFieldValues(raw, "EMAIL"),
	}
	if company.Title == "" && len(company.Phones) == 0 && len(company.Emails) == 0 {
		return CompanyInfo{}, false
	}
	g.companyCache.Set(id, company)
	return company, true
}

// resolveUser fetches a user record by id with caching.
func (g *Gateway) resolveUser(ctx context.Context, id string) (userRecord, bool) {
	if user, ok := g.userCache.Get(id); ok {
		g.recordCache("user", true)
		return user, true
	}

	unlock := g.flights.Lock("user:" + id)
	defer unlock()
	if user, ok := g.userCache.Get(id); ok {
		g.recordCache("user", true)
		return user, true
	}
	g.recordCache("user", false)

	params := url.Values{}
	params.Set("ID", id)
	res := g.client.Call(ctx, "user.get", params)
	if !res.OK {
		return userRecord{}, false
	}
	var users []map[string]any
	if err := json.Unmarshal(res.Result, &users); err != nil || len(users) == 0 {
		return userRecord{}, false
	}
	user := userRecord{
		Name:     getString(users[0], "NAME"),
		LastName: getString(users[0], "LAST_NAME"),
	}
	g.userCache.Set(id, user)
	return user, true
}

// GetDealDetails fetches one deal and follows the contact association chain
// to populate the elder contact: CONTACT_ID, then CONTACT_IDS[0], then the
// deal.contact.items association. An unreachable contact yields an empty
// ElderContact, not an error.
func (g *Gateway) GetDealDetails(ctx context.Context, dealID string) (*House, error) {
	params := url.Values{}
	params.Set("id", dealID)
	res := g.client.Call(ctx, "crm.deal.get", params)
	if !res.OK {
		return nil, errors.Errorf("deal %s fetch failed after retries", dealID)
	}
	var raw map[string]any
	if err := json.Unmarshal(res.Result, &raw); err != nil {
		return nil, errors.Wrapf(err, "unexpected deal %s shape", dealID)
	}

	house := g.buildHouse(ctx, raw)

	contactID := getString(raw, "CONTACT_ID")
	if contactID == "" || contactID == "0" {
		if ids := getStringList(raw, "CONTACT_IDS"); len(ids) > 0 {
			contactID = ids[0]
		}
	}
	if contactID == "" || contactID == "0" {
		contactID = g.contactFromAssociation(ctx, dealID)
	}
	if contactID != "" && contactID != "0" {
		house.Elder = g.fetchContact(ctx, contactID)
	}

	return &house, nil
}

func (g *Gateway) contactFromAssociation(ctx context.Context, dealID string) string {
	params := url.Values{}
	params.Set("id", dealID)
	res := g.client.Call(ctx, "crm.deal.contact.items.get", params)
	if !res.OK {
		return ""
	}
	var items []map[string]any
	if err := json.Unmarshal(res.Result, &items); err != nil || len(items) == 0 {
		return ""
	}
	return getString(items[0], "CONTACT_ID")
}

func (g *Gateway) fetchContact(ctx context.Context, contactID string) ElderContact {
	params := url.Values{}
	params.Set("id", contactID)
	res := g.client.Call(ctx, "crm.contact.get", params)
	if !res.OK {
		return ElderContact{}
	}
	var raw map[string]any
	if err := json.Unmarshal(res.Result, &raw); err != nil {
		g.logger.Warn("unexpected contact shape", "contact_id", contactID, "error", err.Error())
		return ElderContact{}
	}
	name := strings.TrimSpace(getString(raw, "NAME") + " " + getString(raw, "LAST_NAME"))
	return ElderContact{
		Name:   name,
		Phones: getMultiFieldValues(raw, "PHONE"),
		Emails: getMultiFieldValues(raw, "EMAIL"),
	}
}

// Raw-map helpers. CRM responses mix strings, numbers and lists freely, so
// every read tolerates every shape.

func getString(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func getStringList(raw map[string]any, key string) []string {
	switch v := raw[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := anyToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

func getOptionalInt(raw map[string]any, key string) *int {
	s := getString(raw, key)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// getMultiFieldValues reads a CRM multi-field ([{VALUE: "..."}]) into a
// plain string slice.
func getMultiFieldValues(raw map[string]any, key string) []string {
	items, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if v := anyToString(m["VALUE"]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
