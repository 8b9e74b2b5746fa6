package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/keel/internal/models"
	"github.com/bobmcallan/keel/internal/signals"
)

// RenderBenchmarkChart renders a PNG line chart of the benchmark close with
// its 200-day moving average overlaid. Returns raw PNG bytes.
func RenderBenchmarkChart(series *models.DailySeries, maPeriod int) ([]byte, error) {
	if series.Len() < maPeriod+2 {
		return nil, fmt.Errorf("need at least %d bars, got %d", maPeriod+2, series.Len())
	}

	closes := series.Closes()

	// One MA point per bar from the first index where it is defined
	n := len(closes) - maPeriod + 1
	xValues := make([]time.Time, n)
	closeY := make([]float64, n)
	maY := make([]float64, n)

	for i := 0; i < n; i++ {
		bar := series.Bars[maPeriod-1+i]
		xValues[i] = bar.Date
		closeY[i] = bar.Close
		ma, _ := signals.SMA(closes[:maPeriod+i], maPeriod)
		maY[i] = ma
	}

	closeSeries := chart.TimeSeries{
		Name: series.Ticker,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: closeY,
	}

	maSeries := chart.TimeSeries{
		Name: fmt.Sprintf("%d-day MA", maPeriod),
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: maY,
	}

	graph := chart.Chart{
		Title:  "Benchmark Trend",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			closeSeries,
			maSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
