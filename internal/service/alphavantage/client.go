package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"RiskCast/internal/domain/models"
	drepo "RiskCast/internal/domain/repository"
	xhttp "RiskCast/pkg/http"
	applogger "RiskCast/pkg/logger"
	"RiskCast/pkg/util"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var _ drepo.BarFetcher = (*Client)(nil)

var (
	// ErrRateLimited is returned for "Note" and "Information" payloads.
	ErrRateLimited = errors.New("alphavantage: rate limited")
	// ErrRejected is returned for "Error Message" payloads, typically an unknown symbol.
	ErrRejected = fmt.Errorf("alphavantage: request rejected: %w", models.ErrNotFound)
	// ErrMalformed marks a payload without a daily series.
	ErrMalformed = errors.New("alphavantage: malformed response")
)

// APIError carries the provider's message for a rejected request.
type APIError struct {
	Field   string
	Message string
	kind    error
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.kind, e.Message) }
func (e *APIError) Unwrap() error { return e.kind }

const seriesKey = "Time Series (Daily)"

// Client fetches TIME_SERIES_DAILY bars.
type Client struct {
	apiKey     string
	baseURL    string
	outputSize string
	timeout    time.Duration
	retries    int
	backoff    time.Duration
	http       *xhttp.Client
	limiter    *rate.Limiter
	l          *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRequestsPerMinute throttles outgoing calls. Zero or less disables throttling.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithOutputSize sets "compact" (about 100 days) or "full".
func WithOutputSize(s string) Option {
	return func(c *Client) { c.outputSize = s }
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetries repeats throttled or 5xx responses n more times.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    "https://www.alphavantage.co",
		outputSize: "compact",
		timeout:    30 * time.Second,
		retries:    2,
		backoff:    2 * time.Second,
		limiter:    rate.NewLimiter(rate.Every(12*time.Second), 1),
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = xhttp.NewClient(xhttp.WithTimeout(c.timeout), xhttp.WithRetries(c.retries, c.backoff))
	return c
}

// FetchDaily returns the daily bars for ticker in ascending date order.
func (c *Client) FetchDaily(ctx context.Context, ticker string) ([]models.Bar, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", models.ErrInvalidInput)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait: %w", err)
	}

	start := time.Now()
	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/query",
		QueryParams: url.Values{
			"function":   {"TIME_SERIES_DAILY"},
			"symbol":     {ticker},
			"outputsize": {c.outputSize},
			"apikey":     {c.apiKey},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", ticker, err)
	}

	bars, err := parseDaily(ticker, body)
	if err != nil {
		return nil, err
	}
	c.l.Info("alphavantage fetched",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)))
	return bars, nil
}

type dailyPoint struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func parseDaily(ticker string, body []byte) ([]models.Bar, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for _, f := range []struct {
		key  string
		kind error
	}{
		{"Error Message", ErrRejected},
		{"Note", ErrRateLimited},
		{"Information", ErrRateLimited},
	} {
		if msg, ok := raw[f.key]; ok {
			var s string
			_ = json.Unmarshal(msg, &s)
			return nil, &APIError{Field: f.key, Message: s, kind: f.kind}
		}
	}

	series, ok := raw[seriesKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformed, seriesKey)
	}
	var points map[string]dailyPoint
	if err := json.Unmarshal(series, &points); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	bars := make([]models.Bar, 0, len(points))
	for day, p := range points {
		date, err := util.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		vals, err := parseDecimals(p.Open, p.High, p.Low, p.Close, p.Volume)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrMalformed, ticker, day, err)
		}
		bars = append(bars, models.Bar{
			Ticker: ticker,
			Date:   date,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	models.SortBars(bars)
	return bars, nil
}

func parseDecimals(in ...string) ([]float64, error) {
	out := make([]float64, len(in))
	for i, s := range in {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out[i] = d.InexactFloat64()
	}
	return out, nil
}
