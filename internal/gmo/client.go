package gmo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultPublicBase  = "https://forex-api.coin.z.com/public"
	defaultPrivateBase = "https://forex-api.coin.z.com/private"

	defaultCallTimeout = 10 * time.Second

	maxRetries     = 3
	maxRetryDelay  = 5 * time.Second
	baseRetryDelay = 200 * time.Millisecond
)

// ClientConfig configures the REST client.
type ClientConfig struct {
	PublicBase  string // default: broker public base URL
	PrivateBase string // default: broker private base URL
	Timeout     time.Duration

	// TradingEnabled gates every order-mutating operation. Off by default:
	// the gateway is read-only market data + account state.
	TradingEnabled bool
}

// Client is the typed REST surface of the gateway. Every call flows through
// the shared Limiter; private calls are signed by the Signer.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *Limiter
	signer  *Signer

	// OnRequest is called after each completed attempt (optional, metrics).
	OnRequest func(path string, status int, d time.Duration)
}

// NewClient builds a client around a shared limiter and signer.
func NewClient(cfg ClientConfig, limiter *Limiter, signer *Signer) *Client {
	if cfg.PublicBase == "" {
		cfg.PublicBase = defaultPublicBase
	}
	if cfg.PrivateBase == "" {
		cfg.PrivateBase = defaultPrivateBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultCallTimeout
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		signer:  signer,
	}
}

// Signer exposes the signer for WS token handling.
func (c *Client) Signer() *Signer { return c.signer }

// ── Request plumbing ──

// do performs one request with limiter, signing, envelope decoding and
// category mapping. body must be nil for reads. retryable marks calls that
// may be re-sent on transient failure; writes are only retryable when they
// carry a client order id (idempotency on the broker side).
func (c *Client) do(ctx context.Context, class MethodClass, method, path string, query url.Values, body any, out any, retryable bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &APIError{Category: CatInternal, Err: err}
		}
	}

	var lastErr error
	delay := baseRetryDelay
	var spent time.Duration

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if !retryable || spent >= maxRetryDelay {
				break
			}
			// Decorrelated jitter: sleep U(base, delay*3), capped.
			d := baseRetryDelay + time.Duration(rand.Int63n(int64(delay*3-baseRetryDelay)+1))
			if spent+d > maxRetryDelay {
				d = maxRetryDelay - spent
			}
			spent += d
			delay = d
			select {
			case <-ctx.Done():
				return &APIError{Category: CatCancelled, Err: ctx.Err()}
			case <-time.After(d):
			}
		}

		err := c.attempt(ctx, class, method, path, query, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		var ae *APIError
		if !asAPIError(err, &ae) || !ae.Category.Transient() {
			return err
		}
	}
	return lastErr
}

func asAPIError(err error, out **APIError) bool {
	ae, ok := err.(*APIError)
	if ok {
		*out = ae
	}
	return ok
}

// attempt performs exactly one HTTP round trip.
func (c *Client) attempt(ctx context.Context, class MethodClass, method, path string, query url.Values, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx, class); err != nil {
		return err
	}

	private := class == ClassPrivateGet || class == ClassPrivatePost
	base := c.cfg.PublicBase
	if private {
		base = c.cfg.PrivateBase
	}
	reqURL := base + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, rd)
	if err != nil {
		return &APIError{Category: CatInternal, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if private {
		// The /private prefix is stripped before signing: sign /v1/... only.
		headers, err := c.signer.Headers(method, path, payload)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &APIError{Category: CatCancelled, Err: ctx.Err()}
		}
		return transportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if c.OnRequest != nil {
		c.OnRequest(path, resp.StatusCode, time.Since(start))
	}
	if err != nil {
		return transportErr(err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &APIError{Category: CatRateLimited, Status: resp.StatusCode, Message: "http 429"}
	}
	if resp.StatusCode >= 500 {
		return &APIError{Category: CatTransport, Status: resp.StatusCode, Message: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return transportErr(fmt.Errorf("decode envelope: %w", err))
	}
	c.signer.ObserveServerTime(env.ResponseTime)

	if env.Status != 0 {
		if len(env.Messages) > 0 {
			m := env.Messages[0]
			ae := newCodeError(m.Code, m.String, resp.StatusCode)
			ae.Status = resp.StatusCode
			return ae
		}
		return &APIError{Category: CatInternal, Status: resp.StatusCode,
			Message: fmt.Sprintf("broker status %d with no messages", env.Status)}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return transportErr(fmt.Errorf("decode data: %w", err))
		}
	}
	return nil
}

// requireTrading guards order-mutating operations behind the enable flag.
func (c *Client) requireTrading() error {
	if !c.cfg.TradingEnabled {
		return &APIError{Category: CatConfig, Message: "trading is disabled (trading.enabled=false)"}
	}
	return nil
}

// ── Public read ──

// Status fetches the market status.
func (c *Client) Status(ctx context.Context) (StatusData, error) {
	var out StatusData
	err := c.do(ctx, ClassPublicGet, http.MethodGet, "/v1/status", nil, nil, &out, true)
	return out, err
}

// Ticker fetches latest rates; symbol empty means all pairs.
func (c *Client) Ticker(ctx context.Context, symbol string) ([]TickerEntry, error) {
	var out []TickerEntry
	err := c.do(ctx, ClassPublicGet, http.MethodGet, "/v1/ticker", nil, nil, &out, true)
	if err != nil || symbol == "" {
		return out, err
	}
	filtered := out[:0]
	for _, t := range out {
		if t.Symbol == symbol {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// Klines fetches OHLC bars. date is YYYYMMDD for intraday intervals and
// YYYY for 4hour and longer.
func (c *Client) Klines(ctx context.Context, symbol, priceType, interval, date string) ([]Kline, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("priceType", priceType)
	q.Set("interval", interval)
	q.Set("date", date)
	var out []Kline
	err := c.do(ctx, ClassPublicGet, http.MethodGet, "/v1/klines", q, nil, &out, true)
	return out, err
}

// Symbols fetches the trading rules for all pairs.
func (c *Client) Symbols(ctx context.Context) ([]SymbolRule, error) {
	var out []SymbolRule
	err := c.do(ctx, ClassPublicGet, http.MethodGet, "/v1/symbols", nil, nil, &out, true)
	return out, err
}

// ── Private read ──

// Assets fetches account balances.
func (c *Client) Assets(ctx context.Context) ([]Asset, error) {
	var out []Asset
	err := c.do(ctx, ClassPrivateGet, http.MethodGet, "/v1/account/assets", nil, nil, &out, true)
	return out, err
}

// OpenPositions lists open position lots.
func (c *Client) OpenPositions(ctx context.Context, symbol string) ([]Position, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out struct {
		List []Position `json:"list"`
	}
	err := c.do(ctx, ClassPrivateGet, http.MethodGet, "/v1/openPositions", q, nil, &out, true)
	return out.List, err
}

// PositionSummary fetches per-symbol position aggregates.
func (c *Client) PositionSummary(ctx context.Context, symbol string) ([]PositionSummary, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out struct {
		List []PositionSummary `json:"list"`
	}
	err := c.do(ctx, ClassPrivateGet, http.MethodGet, "/v1/positionSummary", q, nil, &out, true)
	return out.List, err
}

// ActiveOrders lists working orders.
func (c *Client) ActiveOrders(ctx context.Context, symbol string) ([]Order, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out struct {
		List []Order `json:"list"`
	}
	err := c.do(ctx, ClassPrivateGet, http.MethodGet, "/v1/activeOrders", q, nil, &out, true)
	return out.List, err
}

// Executions fetches fills by order id.
func (c *Client) Executions(ctx context.Context, orderID int64) ([]Execution, error) {
	q := url.Values{}
	q.Set("orderId", strconv.FormatInt(orderID, 10))
	var out struct {
		List []Execution `json:"list"`
	}
	err := c.do(ctx, ClassPrivateGet, http.MethodGet, "/v1/executions", q, nil, &out, true)
	return out.List, err
}

// LatestExecutions fetches the most recent fills for a symbol.
func (c *Client) LatestExecutions(ctx context.Context, symbol string, count int) ([]Execution, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("count", strconv.Itoa(count))
	var out struct {
		List []Execution `json:"list"`
	}
	err := c.do(ctx, ClassPrivateGet, http.MethodGet, "/v1/latestExecutions", q, nil, &out, true)
	return out.List, err
}

// ── Private write ──
// Writes are retried only when the request carries a ClientOrderID; a
// resend without one could double-fill.

// SpeedOrder places an immediate market order.
func (c *Client) SpeedOrder(ctx context.Context, req SpeedOrderRequest) ([]Order, error) {
	if err := c.requireTrading(); err != nil {
		return nil, err
	}
	var out []Order
	err := c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/speedOrder", nil, req, &out, req.ClientOrderID != "")
	return out, err
}

// PlaceOrder places a normal order.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) ([]Order, error) {
	if err := c.requireTrading(); err != nil {
		return nil, err
	}
	var out []Order
	err := c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/order", nil, req, &out, req.ClientOrderID != "")
	return out, err
}

// PlaceIFDOrder places an if-done composite.
func (c *Client) PlaceIFDOrder(ctx context.Context, req IFDOrderRequest) ([]Order, error) {
	if err := c.requireTrading(); err != nil {
		return nil, err
	}
	var out []Order
	err := c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/ifdOrder", nil, req, &out, req.ClientOrderID != "")
	return out, err
}

// PlaceIFOOrder places an if-done-one-cancels-other composite. This is the
// shape the TFQE post-entry contract maps onto when trading is enabled.
func (c *Client) PlaceIFOOrder(ctx context.Context, req IFOOrderRequest) ([]Order, error) {
	if err := c.requireTrading(); err != nil {
		return nil, err
	}
	var out []Order
	err := c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/ifoOrder", nil, req, &out, req.ClientOrderID != "")
	return out, err
}

// ChangeOrder amends a working order's price.
func (c *Client) ChangeOrder(ctx context.Context, req ChangeOrderRequest) error {
	if err := c.requireTrading(); err != nil {
		return err
	}
	return c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/changeOrder", nil, req, nil, req.ClientOrderID != "")
}

// CancelOrders cancels orders by root id.
func (c *Client) CancelOrders(ctx context.Context, req CancelOrdersRequest) error {
	if err := c.requireTrading(); err != nil {
		return err
	}
	// Cancels are naturally idempotent on the broker side.
	return c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/cancelOrders", nil, req, nil, true)
}

// CancelBulkOrder cancels all working orders matching the filter.
func (c *Client) CancelBulkOrder(ctx context.Context, req CancelBulkOrderRequest) error {
	if err := c.requireTrading(); err != nil {
		return err
	}
	return c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/cancelBulkOrder", nil, req, nil, true)
}

// CloseOrder closes positions.
func (c *Client) CloseOrder(ctx context.Context, req CloseOrderRequest) ([]Order, error) {
	if err := c.requireTrading(); err != nil {
		return nil, err
	}
	var out []Order
	err := c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/closeOrder", nil, req, &out, req.ClientOrderID != "")
	return out, err
}

// ── ws-auth token lifecycle ──

// CreateWSToken issues a private-stream access token (60 minute lifetime,
// at most 5 live tokens per account).
func (c *Client) CreateWSToken(ctx context.Context) (string, error) {
	var out wsAuthData
	err := c.do(ctx, ClassPrivatePost, http.MethodPost, "/v1/ws-auth", nil, struct{}{}, &out, false)
	return string(out), err
}

// ExtendWSToken renews a token before its 60-minute expiry.
func (c *Client) ExtendWSToken(ctx context.Context, token string) error {
	body := map[string]string{"token": token}
	return c.do(ctx, ClassPrivatePost, http.MethodPut, "/v1/ws-auth", nil, body, nil, false)
}

// DeleteWSToken revokes a token on graceful shutdown.
func (c *Client) DeleteWSToken(ctx context.Context, token string) error {
	body := map[string]string{"token": token}
	return c.do(ctx, ClassPrivatePost, http.MethodDelete, "/v1/ws-auth", nil, body, nil, true)
}
