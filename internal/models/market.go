// Package models defines data structures for Keel
package models

import (
	"time"
)

// Bar represents a single day's price data
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// DailySeries holds the ordered daily bars for a single ticker.
// Bars are ascending by date with no duplicate dates. A series is owned by
// the pipeline run that fetched it and is never mutated afterwards.
type DailySeries struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars in the series.
func (s *DailySeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes returns the closing prices in date order.
func (s *DailySeries) Closes() []float64 {
	if s == nil {
		return nil
	}
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// LastClose returns the most recent closing price.
// Returns false when the series is empty.
func (s *DailySeries) LastClose() (float64, bool) {
	if s == nil || len(s.Bars) == 0 {
		return 0, false
	}
	return s.Bars[len(s.Bars)-1].Close, true
}

// Fundamentals contains fundamental data for a single ticker.
// Growth, margin and valuation fields are pointers: nil means the upstream
// source did not report the value, which every consumer must treat as
// "unknown" rather than zero.
type Fundamentals struct {
	Ticker           string     `json:"ticker"`
	Sector           string     `json:"sector"`
	Industry         string     `json:"industry"`
	MarketCap        float64    `json:"market_cap"`
	RevenueGrowth    *float64   `json:"revenue_growth,omitempty"`
	EarningsGrowth   *float64   `json:"earnings_growth,omitempty"`
	ProfitMargin     *float64   `json:"profit_margin,omitempty"`
	ForwardPE        *float64   `json:"forward_pe,omitempty"`
	TrailingPE       *float64   `json:"trailing_pe,omitempty"`
	NextEarningsDate *time.Time `json:"next_earnings_date,omitempty"`
}

// MarketSnapshot bundles everything the decision engines consume for one run.
// It is fully materialized before the pipeline starts; the engines never
// trigger further I/O.
type MarketSnapshot struct {
	Daily        map[string]*DailySeries  `json:"daily"`
	Fundamentals map[string]*Fundamentals `json:"fundamentals"`
	CoveragePct  float64                  `json:"coverage_pct"`
}

// Series returns the daily series for a ticker, or nil when missing.
func (m *MarketSnapshot) Series(ticker string) *DailySeries {
	if m == nil {
		return nil
	}
	return m.Daily[ticker]
}

// Fundamental returns the fundamentals for a ticker, or nil when missing.
func (m *MarketSnapshot) Fundamental(ticker string) *Fundamentals {
	if m == nil {
		return nil
	}
	return m.Fundamentals[ticker]
}
