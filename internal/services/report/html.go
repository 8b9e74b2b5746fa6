// Package report renders the daily decision report as HTML and plain text
// and delivers it over SMTP.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
)

const (
	colorGreen = "#16a34a"
	colorAmber = "#ca8a04"
	colorRed   = "#dc2626"
	colorBlue  = "#2563eb"
	colorGray  = "#64748b"
)

// Service renders and sends the daily report
type Service struct {
	email  common.EmailConfig
	logger *common.Logger
}

// NewService creates a new report service
func NewService(email common.EmailConfig, logger *common.Logger) *Service {
	return &Service{email: email, logger: logger}
}

func regimeColor(class models.RegimeClass) string {
	switch class {
	case models.RegimeRiskOn:
		return colorGreen
	case models.RegimeRiskOff:
		return colorRed
	default:
		return colorAmber
	}
}

func decisionColor(d models.HealthDecision) string {
	switch d {
	case models.DecisionStrongHold:
		return colorGreen
	case models.DecisionHold:
		return colorBlue
	case models.DecisionTrim25:
		return colorAmber
	default:
		return colorRed
	}
}

func actionColor(a models.PlanAction) string {
	switch a {
	case models.ActionExit:
		return colorRed
	case models.ActionTrim:
		return colorAmber
	default:
		return colorGreen
	}
}

func pnlColor(v float64) string {
	if v >= 0 {
		return "green"
	}
	return "red"
}

func scoreColor(v float64) string {
	if v >= 60 {
		return colorGreen
	}
	return colorAmber
}

var tmplFuncs = template.FuncMap{
	"money":         func(v float64) string { return humanMoney(v) },
	"price":         func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"pct1":          func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"signedPct":     func(v float64) string { return fmt.Sprintf("%+.1f%%", v) },
	"score0":        func(v float64) string { return fmt.Sprintf("%.0f", v) },
	"regimeColor":   regimeColor,
	"decisionColor": decisionColor,
	"actionColor":   actionColor,
	"pnlColor":      pnlColor,
	"scoreColor":    scoreColor,
	"add1":          func(i int) int { return i + 1 },
	"isBuy":         func(a models.PlanAction) bool { return a == models.ActionBuy },
}

// humanMoney formats a dollar amount with thousands separators, no cents.
func humanMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String()
	if neg {
		out = "-" + out
	}
	return out
}

// reportData is the template context. Sectors are pre-sorted because maps
// iterate in random order.
type reportData struct {
	*models.DecisionReport
	DateLong string
	Sectors  []sectorPct
	AllPlans []models.AllocationPlan
	HasChart bool
	ChartCID string
}

type sectorPct struct {
	Sector string
	Pct    float64
}

// RenderHTML builds the full HTML report. When chartCID is non-empty the
// benchmark chart image is referenced inline by that content ID.
func (s *Service) RenderHTML(report *models.DecisionReport, chartCID string) (string, error) {
	data := reportData{
		DecisionReport: report,
		DateLong:       report.GeneratedAt.Format("January 2, 2006"),
		Sectors:        sortedSectorPcts(report.Allocation.SectorConcentration),
		HasChart:       chartCID != "",
		ChartCID:       chartCID,
	}
	data.AllPlans = append(data.AllPlans, report.Allocation.TrimExitPlans...)
	data.AllPlans = append(data.AllPlans, report.Allocation.BuyPlans...)

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// RenderText builds the short plain-text alternative.
func (s *Service) RenderText(report *models.DecisionReport) string {
	return fmt.Sprintf(
		"Keel Daily Report - %s\n\n"+
			"Regime: %s (%.1fx)\n"+
			"Holdings: %d\n"+
			"External holdings: %d\n"+
			"Actions: %d\n"+
			"Opportunities: %d\n",
		report.GeneratedAt.Format("Jan 2, 2006"),
		report.Regime.Classification,
		report.Regime.Multiplier,
		len(report.Health.Holdings),
		len(report.ExternalHoldings),
		len(report.Allocation.TrimExitPlans)+len(report.Allocation.BuyPlans),
		len(report.Screen.Candidates),
	)
}

func sortedSectorPcts(concentration map[string]float64) []sectorPct {
	out := make([]sectorPct, 0, len(concentration))
	for sector, pct := range concentration {
		out = append(out, sectorPct{Sector: sector, Pct: pct})
	}
	// Descending by share, ties alphabetical
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pct != out[j].Pct {
			return out[i].Pct > out[j].Pct
		}
		return out[i].Sector < out[j].Sector
	})
	if len(out) > 8 {
		out = out[:8]
	}
	return out
}

var reportTemplate = template.Must(template.New("report").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 0 auto; padding: 16px; background: #f8fafc; color: #1e293b;">

  <div style="background: linear-gradient(135deg, #0f172a, #1e3a5f); color: white; padding: 28px 32px; border-radius: 12px 12px 0 0;">
    <h1 style="margin: 0 0 4px 0; font-size: 22px; letter-spacing: -0.5px;">Keel Daily Portfolio Intelligence</h1>
    <p style="margin: 0; opacity: 0.8; font-size: 13px;">{{.DateLong}} &bull; After-market analysis</p>
  </div>

  <div style="background: white; padding: 28px 32px; border-radius: 0 0 12px 12px; box-shadow: 0 1px 3px rgba(0,0,0,0.08);">

    <h2 style="color: #0f172a; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px; margin-top: 0;">1. Market Regime</h2>
    <div style="margin-bottom: 12px;">
      <span style="background: {{regimeColor .Regime.Classification}}; color: white; padding: 6px 16px; border-radius: 6px; font-weight: bold; font-size: 14px;">{{.Regime.Classification}}</span>
      <span style="color: #64748b; font-size: 13px;">Position size multiplier: <b>{{.Regime.Multiplier}}x</b></span>
    </div>
    <p style="font-size: 13px; line-height: 1.6; color: #334155;">{{.Regime.Explanation}}</p>
    <table style="width: 100%; font-size: 12px; border-collapse: collapse; margin-bottom: 8px;">
      <tr style="background: #f8fafc;">
        <td style="padding: 6px 10px;"><b>Benchmark</b></td>
        <td style="padding: 6px 10px;">{{price .Regime.BenchmarkPrice}}</td>
        <td style="padding: 6px 10px;">200 MA: {{price .Regime.Benchmark200MA}}</td>
        <td style="padding: 6px 10px;">50 MA: {{price .Regime.Benchmark50MA}}</td>
      </tr>
      <tr>
        <td style="padding: 6px 10px;"><b>Vol Index</b></td>
        <td style="padding: 6px 10px;">{{printf "%.1f" .Regime.VolIndexLevel}}</td>
        <td style="padding: 6px 10px;"><b>10Y Yield</b></td>
        <td style="padding: 6px 10px;">{{printf "%.2f" .Regime.RateYield}}%</td>
      </tr>
    </table>
    {{if .HasChart}}<p style="margin: 12px 0;"><img src="cid:{{.ChartCID}}" alt="Benchmark trend" style="width: 100%; max-width: 760px;"></p>{{end}}

    <h2 style="color: #0f172a; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px;">2. Portfolio Health</h2>
    {{if not .Health.Holdings}}
    <p style="font-size: 13px; color: #64748b;">No holdings configured.</p>
    {{else}}
    <p style="font-size: 13px; color: #334155;">
      Invested: <b>{{money .Health.TotalCurrentValue}}</b> &bull;
      P&amp;L: <b style="color: {{pnlColor .Health.TotalPnLPct}};">{{signedPct .Health.TotalPnLPct}}</b>
    </p>
    <table style="width: 100%; border-collapse: collapse; font-size: 12px;">
      <thead>
        <tr style="background: #f1f5f9; text-align: left;">
          <th style="padding: 8px;">Ticker</th><th style="padding: 8px;">Price</th><th style="padding: 8px;">P&amp;L</th>
          <th style="padding: 8px; text-align: center;">Trend</th><th style="padding: 8px; text-align: center;">Fund</th>
          <th style="padding: 8px; text-align: center;">RS</th><th style="padding: 8px; text-align: center;">Macro</th>
          <th style="padding: 8px; text-align: center;">Total</th><th style="padding: 8px;">Decision</th><th style="padding: 8px;">Stop</th>
        </tr>
      </thead>
      <tbody>
      {{range .Health.Holdings}}
        <tr style="border-bottom: 1px solid #f1f5f9;">
          <td style="padding: 8px; font-weight: bold;">{{.Ticker}}</td>
          <td style="padding: 8px;">{{price .CurrentPrice}}</td>
          <td style="padding: 8px; color: {{pnlColor .UnrealizedPnLPct}};">{{signedPct .UnrealizedPnLPct}}</td>
          <td style="padding: 8px; text-align: center;">{{.TrendScore}}</td>
          <td style="padding: 8px; text-align: center;">{{.FundamentalScore}}</td>
          <td style="padding: 8px; text-align: center;">{{.RelativeStrengthScore}}</td>
          <td style="padding: 8px; text-align: center;">{{.MacroAlignmentScore}}</td>
          <td style="padding: 8px; text-align: center; font-weight: bold;">{{.TotalScore}}</td>
          <td style="padding: 8px;"><span style="color: {{decisionColor .Decision}}; font-weight: bold;">{{.Decision}}</span></td>
          <td style="padding: 8px;">{{price .SuggestedStop}}</td>
        </tr>
      {{end}}
      </tbody>
    </table>
    {{end}}

    {{if .ExternalHoldings}}
    <h2 style="color: #0f172a; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px;">3. External Holdings (Notes)</h2>
    <table style="width: 100%; border-collapse: collapse; font-size: 12px; margin-bottom: 8px;">
      <thead>
        <tr style="background: #f1f5f9; text-align: left;">
          <th style="padding: 8px;">Asset</th><th style="padding: 8px;">Quantity</th><th style="padding: 8px;">Avg Cost</th><th style="padding: 8px;">Notes</th>
        </tr>
      </thead>
      <tbody>
      {{range .ExternalHoldings}}
        <tr style="border-bottom: 1px solid #f1f5f9;">
          <td style="padding: 8px; font-weight: bold;">{{.Name}}</td>
          <td style="padding: 8px;">{{.Quantity}}</td>
          <td style="padding: 8px;">{{price .AvgCost}}</td>
          <td style="padding: 8px;">Notes-only (no analytics){{if .Notes}}<br><span style="color: #64748b; font-size: 11px;">{{.Notes}}</span>{{end}}</td>
        </tr>
      {{end}}
      </tbody>
    </table>
    {{end}}

    <h2 style="color: #0f172a; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px;">4. Actions Required</h2>
    {{if not .AllPlans}}
    <p style="font-size: 13px; color: #64748b;">No actions required today. Maintain current positions.</p>
    {{else}}
    <ul style="font-size: 13px; line-height: 1.6; padding-left: 20px;">
      {{range .AllPlans}}
      <li style="margin-bottom: 8px;">
        <span style="color: {{actionColor .Action}}; font-weight: bold;">{{.Action}}</span>
        <b>{{.Ticker}}</b> ({{.Shares}} shares)
        {{if isBuy .Action}}&mdash; Stop: {{price .StopPrice}} &mdash; Capital: {{money .CapitalRequired}}{{end}}
        <br><span style="color: #64748b; font-size: 11px;">{{.Rationale}}</span>
      </li>
      {{end}}
    </ul>
    {{end}}

    <h2 style="color: #0f172a; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px;">5. New Opportunities</h2>
    {{if not .Screen.Candidates}}
    <p style="font-size: 13px; color: #64748b;">No candidates meet all criteria today. Scanned {{.Screen.UniverseScanned}} stocks.</p>
    {{else}}
    <p style="font-size: 12px; color: #64748b;">
      {{.Screen.UniverseScanned}} stocks scanned &bull; {{.Screen.PassedFilter}} passed filters &bull; Top {{len .Screen.Candidates}} shown
    </p>
    <table style="width: 100%; border-collapse: collapse; font-size: 12px;">
      <thead>
        <tr style="background: #f1f5f9; text-align: left;">
          <th style="padding: 8px;">#</th><th style="padding: 8px;">Ticker</th><th style="padding: 8px;">Sector</th>
          <th style="padding: 8px;">Price</th><th style="padding: 8px;">Score</th><th style="padding: 8px;">Entry Zone</th>
          <th style="padding: 8px;">Stop</th><th style="padding: 8px;">Shares</th><th style="padding: 8px;">Capital</th>
        </tr>
      </thead>
      <tbody>
      {{range $i, $c := .Screen.Candidates}}
        <tr style="border-bottom: 1px solid #f1f5f9;">
          <td style="padding: 8px; font-weight: bold;">{{add1 $i}}</td>
          <td style="padding: 8px; font-weight: bold;">{{$c.Ticker}}</td>
          <td style="padding: 8px;">{{$c.Sector}}</td>
          <td style="padding: 8px;">{{price $c.CurrentPrice}}</td>
          <td style="padding: 8px; font-weight: bold; color: {{scoreColor $c.CompositeScore}};">{{score0 $c.CompositeScore}}</td>
          <td style="padding: 8px;">{{price $c.EntryZoneLow}} - {{price $c.EntryZoneHigh}}</td>
          <td style="padding: 8px;">{{price $c.SuggestedStop}}</td>
          <td style="padding: 8px;">{{$c.PositionSizeShares}}</td>
          <td style="padding: 8px;">{{money $c.CapitalRequired}}</td>
        </tr>
      {{end}}
      </tbody>
    </table>
    {{end}}

    <h2 style="color: #0f172a; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px;">6. Capital Deployment</h2>
    <table style="font-size: 13px; border-collapse: collapse; margin-bottom: 12px;">
      <tr><td style="padding: 4px 16px 4px 0;"><b>Portfolio Value</b></td><td>{{money .Allocation.TotalPortfolioValue}}</td></tr>
      <tr><td style="padding: 4px 16px 4px 0;"><b>Invested</b></td><td>{{money .Allocation.InvestedValue}} ({{pct1 .Allocation.TotalExposurePct}})</td></tr>
      <tr><td style="padding: 4px 16px 4px 0;"><b>Cash</b></td><td>{{money .Allocation.CashValue}} ({{pct1 .Allocation.CashPct}})</td></tr>
      <tr><td style="padding: 4px 16px 4px 0;"><b>Positions</b></td><td>{{.Allocation.PositionCount}} / {{.Allocation.MaxPositions}}</td></tr>
    </table>
    <p style="font-size: 12px; color: #64748b;"><b>Sector Concentration:</b></p>
    <table style="font-size: 12px; border-collapse: collapse; margin-bottom: 12px;">
      {{range .Sectors}}<tr><td style="padding: 4px 8px;">{{.Sector}}</td><td style="padding: 4px 8px;">{{pct1 .Pct}}</td></tr>{{end}}
    </table>
    <div style="background: #f1f5f9; padding: 12px 16px; border-radius: 8px; font-size: 13px; line-height: 1.6;">
      <b>Weekly Plan:</b> {{.Allocation.WeeklyDeploymentPlan}}
    </div>

    <h2 style="color: #0f172a; border-bottom: 2px solid #e2e8f0; padding-bottom: 8px;">7. Risk Notes</h2>
    <ul style="font-size: 13px; line-height: 1.6; color: #475569; padding-left: 20px;">
      {{range .Allocation.RiskNotes}}<li>{{.}}</li>{{end}}
    </ul>

    <p style="margin-top: 32px; font-size: 10px; color: #94a3b8; text-align: center; border-top: 1px solid #e2e8f0; padding-top: 16px;">
      This report is for informational purposes only and does not constitute financial advice.
      Past performance does not guarantee future results. All investing involves risk of loss.
    </p>
  </div>
</body></html>`))
