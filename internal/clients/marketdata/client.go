// Package marketdata provides a client for the EODHD end-of-day API
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	// minBars is the floor below which a daily series is useless to every
	// downstream indicator and is discarded as if the ticker had no data.
	minBars = 20
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// Client fetches daily bars and fundamentals over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new market data client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market data API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Market data API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

// GetDailyBars retrieves daily bars for a ticker in ascending date order.
// Returns nil (no error) when the series is shorter than the minimum any
// indicator can use.
func (c *Client) GetDailyBars(ctx context.Context, ticker string, from, to time.Time) (*models.DailySeries, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a") // ascending, oldest first
	if !from.IsZero() {
		params.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("to", to.Format("2006-01-02"))
	}

	path := fmt.Sprintf("/eod/%s", url.PathEscape(ticker))

	var bars []eodBarResponse
	if err := c.get(ctx, path, params, &bars); err != nil {
		return nil, err
	}

	series := &models.DailySeries{
		Ticker: ticker,
		Bars:   make([]models.Bar, 0, len(bars)),
	}
	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			continue
		}
		series.Bars = append(series.Bars, models.Bar{
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	if len(series.Bars) < minBars {
		c.logger.Debug().Str("ticker", ticker).Int("bars", len(series.Bars)).Msg("Series too short, discarding")
		return nil, nil
	}
	return series, nil
}

// fundamentalsResponse represents the API response structure
type fundamentalsResponse struct {
	General struct {
		Code     string `json:"Code"`
		Name     string `json:"Name"`
		Sector   string `json:"Sector"`
		Industry string `json:"Industry"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization    float64     `json:"MarketCapitalization"`
		QuarterlyRevenueGrowth  flexFloat64 `json:"QuarterlyRevenueGrowthYOY"`
		QuarterlyEarningsGrowth flexFloat64 `json:"QuarterlyEarningsGrowthYOY"`
		ProfitMargin            flexFloat64 `json:"ProfitMargin"`
		MostRecentQuarter       string      `json:"MostRecentQuarter"`
	} `json:"Highlights"`
	Valuation struct {
		ForwardPE  flexFloat64 `json:"ForwardPE"`
		TrailingPE flexFloat64 `json:"TrailingPE"`
	} `json:"Valuation"`
	Calendar struct {
		Earnings string `json:"Earnings"`
	} `json:"Calendar"`
}

// GetFundamentals retrieves fundamental data for a ticker. Metrics the
// source does not report come back as nil pointers.
func (c *Client) GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	path := fmt.Sprintf("/fundamentals/%s", url.PathEscape(ticker))

	var resp fundamentalsResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	fund := &models.Fundamentals{
		Ticker:    ticker,
		Sector:    orUnknown(resp.General.Sector),
		Industry:  orUnknown(resp.General.Industry),
		MarketCap: resp.Highlights.MarketCapitalization,
	}

	fund.RevenueGrowth = nonZeroPtr(float64(resp.Highlights.QuarterlyRevenueGrowth))
	fund.EarningsGrowth = nonZeroPtr(float64(resp.Highlights.QuarterlyEarningsGrowth))
	fund.ProfitMargin = nonZeroPtr(float64(resp.Highlights.ProfitMargin))
	fund.ForwardPE = nonZeroPtr(float64(resp.Valuation.ForwardPE))
	fund.TrailingPE = nonZeroPtr(float64(resp.Valuation.TrailingPE))

	if resp.Calendar.Earnings != "" {
		if d, err := time.Parse("2006-01-02", resp.Calendar.Earnings); err == nil {
			fund.NextEarningsDate = &d
		}
	}

	return fund, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// nonZeroPtr maps the API's zero-value placeholder to nil. The source emits
// 0 for metrics it has no data for, which downstream must read as unknown.
func nonZeroPtr(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// constituentsResponse is the shape of an index fundamentals document.
type constituentsResponse struct {
	Components map[string]struct {
		Code     string `json:"Code"`
		Exchange string `json:"Exchange"`
	} `json:"Components"`
}

// GetIndexConstituents retrieves the member tickers of an index, e.g.
// "GSPC.INDX" for the S&P 500 or "NDX.INDX" for the NASDAQ-100.
func (c *Client) GetIndexConstituents(ctx context.Context, index string) ([]string, error) {
	path := fmt.Sprintf("/fundamentals/%s", url.PathEscape(index))

	var resp constituentsResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(resp.Components))
	for _, comp := range resp.Components {
		if comp.Code != "" {
			tickers = append(tickers, comp.Code)
		}
	}

	c.logger.Debug().Str("index", index).Int("tickers", len(tickers)).Msg("Index constituents fetched")
	return tickers, nil
}
