// Package bitrix is the single outbound point for CRM deal data.
//
// Every call goes through one Client, which caps concurrency at two
// in-flight requests, keeps a minimum 0.5s gap between consecutive sends,
// and retries rate-limit responses with exponential back-off. The Gateway on
// top of it speaks the domain language: houses, schedules, elders, brigades.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hrygo/cleanbrain/brain/logging"
	"github.com/hrygo/cleanbrain/brain/metrics"
)

const (
	// maxConcurrentCalls caps in-flight outbound requests.
	maxConcurrentCalls = 2
	// minRequestGap is the enforced spacing between consecutive sends.
	minRequestGap = 500 * time.Millisecond
	// maxAttempts bounds retries for 503 and transport errors.
	maxAttempts = 3
	// maxBackoff caps the exponential back-off wait.
	maxBackoff = 10 * time.Second
)

// CallResult is the parsed CRM response envelope.
type CallResult struct {
	OK     bool
	Result json.RawMessage
	Next   *int // pagination offset to pass as "start"; nil at end-of-pages
	Total  int
}

type restEnvelope struct {
	Result json.RawMessage `json:"result"`
	Next   *int            `json:"next"`
	Total  int             `json:"total"`
}

// Client issues raw REST calls against a webhook-style base URL.
type Client struct {
	baseURL string
	http    *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	metrics *metrics.Collector
	logger  *logging.Logger

	// sleep is replaceable in tests so back-off does not slow them down.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. deadline bounds one call end to end,
// back-off waits included.
func NewClient(baseURL string, deadline time.Duration) *Client {
	if deadline <= 0 {
		deadline = 35 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: deadline},
		sem:     semaphore.NewWeighted(maxConcurrentCalls),
		limiter: rate.NewLimiter(rate.Every(minRequestGap), 1),
		logger:  logging.FromContext(context.Background()).WithField("component", "bitrix"),
		sleep:   sleepCtx,
	}
}

// SetMetrics attaches a metrics collector.
func (c *Client) SetMetrics(m *metrics.Collector) {
	c.metrics = m
}

// SetRequestGap overrides the inter-request spacing. Test hook.
func (c *Client) SetRequestGap(gap time.Duration) {
	c.limiter = rate.NewLimiter(rate.Every(gap), 1)
}

// SetSleepFunc overrides the back-off sleeper. Test hook.
func (c *Client) SetSleepFunc(sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PortalURL returns the CRM UI link for a deal id, derived from the webhook
// host.
func (c *Client) PortalURL(dealID string) string {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/crm/deal/details/" + dealID + "/"
}

// Call invokes one REST method. Transport errors and 503 responses are
// retried up to maxAttempts with exponential back-off; after exhaustion the
// result is {OK: false, Result: []} and the caller decides how to degrade.
func (c *Client) Call(ctx context.Context, method string, params url.Values) CallResult {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt)
			c.logger.Warn("crm retry", "method", method, "attempt", attempt, "wait", wait.String())
			if c.metrics != nil {
				c.metrics.RecordCRMRetry()
			}
			if err := c.sleep(ctx, wait); err != nil {
				break
			}
		}

		res, retryable, err := c.callOnce(ctx, method, params)
		if err == nil {
			return res
		}
		if !retryable {
			c.logger.Error("crm call failed", "method", method, "error", err.Error())
			break
		}
		c.logger.Warn("crm call retryable failure", "method", method, "error", err.Error())
	}
	return CallResult{OK: false, Result: json.RawMessage("[]")}
}

// backoffDelay is min(2^attempt, 10) seconds.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// callOnce performs one GET attempt with POST fallback, respecting the
// semaphore and the inter-request gap.
func (c *Client) callOnce(ctx context.Context, method string, params url.Values) (CallResult, bool, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return CallResult{}, false, errors.Wrap(err, "acquire outbound slot")
	}
	defer c.sem.Release(1)

	start := time.Now()
	res, retryable, err := c.doRequest(ctx, method, params)
	if c.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordCRMCall(method, status, time.Since(start))
	}
	return res, retryable, err
}

func (c *Client) doRequest(ctx context.Context, method string, params url.Values) (CallResult, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return CallResult{}, false, errors.Wrap(err, "rate limiter wait")
	}

	// GET with query params first.
	getURL := c.baseURL + "/" + method + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return CallResult{}, false, errors.Wrap(err, "build GET request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return CallResult{}, true, errors.Wrap(err, "GET transport")
	}
	body, status, err := drainBody(resp)
	if err != nil {
		return CallResult{}, true, err
	}
	switch {
	case status == http.StatusOK:
		return parseEnvelope(body)
	case status == http.StatusServiceUnavailable:
		return CallResult{}, true, errors.New("rate limited (503)")
	}

	// Any other non-200: fall back to POST with a JSON body of the same
	// parameters.
	if err := c.limiter.Wait(ctx); err != nil {
		return CallResult{}, false, errors.Wrap(err, "rate limiter wait")
	}
	payload := make(map[string]string, len(params))
	for k := range params {
		payload[k] = params.Get(k)
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return CallResult{}, false, errors.Wrap(err, "marshal POST body")
	}
	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(jsonBody))
	if err != nil {
		return CallResult{}, false, errors.Wrap(err, "build POST request")
	}
	postReq.Header.Set("Content-Type", "application/json")
	postResp, err := c.http.Do(postReq)
	if err != nil {
		return CallResult{}, true, errors.Wrap(err, "POST transport")
	}
	postBody, postStatus, err := drainBody(postResp)
	if err != nil {
		return CallResult{}, true, err
	}
	switch {
	case postStatus == http.StatusOK:
		return parseEnvelope(postBody)
	case postStatus == http.StatusServiceUnavailable:
		return CallResult{}, true, errors.New("rate limited (503)")
	}
	return CallResult{}, true, errors.Errorf("unexpected status %d (GET %d)", postStatus, status)
}

func drainBody(resp *http.Response) ([]byte, int, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "read response body")
	}
	return body, resp.StatusCode, nil
}

func parseEnvelope(body []byte) (CallResult, bool, error) {
	var env restEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Parse errors are not retryable: the service answered, just not in
		// the shape we expect.
		return CallResult{}, false, errors.Wrap(err, "parse response envelope")
	}
	return CallResult{OK: true, Result: env.Result, Next: env.Next, Total: env.Total}, false, nil
}
