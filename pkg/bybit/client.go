// Package bybit implements the subset of the Bybit v5 API the trading core
// needs: linear instrument metadata, leverage, orders, trading stops,
// positions and the private order stream.
package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Category for all derivatives calls in this system.
const CategoryLinear = "linear"

// Leverage-not-modified is not a failure: the symbol already has the
// requested leverage. Callers treat it as success.
var ErrLeverageNotModified = errors.New("bybit: leverage not modified")

const retCodeLeverageNotModified = 110043

// Config holds Bybit API credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Demo       bool
	RecvWindow int64 // ms
}

// Client handles signed REST calls against the Bybit v5 API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a REST client. Demo accounts are routed to the demo host.
func NewClient(cfg Config) *Client {
	base := "https://api.bybit.com"
	if cfg.Demo {
		base = "https://api-demo.bybit.com"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 10), // 10 req/s per API key
	}
}

type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// APIError is a non-zero retCode from the exchange.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit: retCode %d: %s", e.Code, e.Message)
}

func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, signed bool) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	query := params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		c.signRequest(req, query)
	}
	return c.send(req)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.signRequest(req, string(payload))
	return c.send(req)
}

func (c *Client) send(req *http.Request) (json.RawMessage, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("bybit: %s %s status %d: %s", req.Method, req.URL.Path, res.StatusCode, string(raw))
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("bybit: decode response: %w", err)
	}
	if out.RetCode != 0 {
		if out.RetCode == retCodeLeverageNotModified {
			return nil, ErrLeverageNotModified
		}
		return nil, &APIError{Code: out.RetCode, Message: out.RetMsg}
	}
	return out.Result, nil
}

// signRequest adds the v5 auth headers. The signature covers
// timestamp + apiKey + recvWindow + payload (query string or JSON body).
func (c *Client) signRequest(req *http.Request, payload string) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	recv := strconv.FormatInt(c.cfg.RecvWindow, 10)
	req.Header.Set("X-BAPI-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recv)
	req.Header.Set("X-BAPI-SIGN", sign(ts+c.cfg.APIKey+recv+payload, c.cfg.APISecret))
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func toFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
