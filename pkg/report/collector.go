package report

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mahdiidarabi/rsa-timing/pkg/trace"
)

// ErrNoRounds is returned when rendering a collector that saw no rounds.
var ErrNoRounds = errors.New("no rounds to render")

// Collector accumulates trace events and renders them as an HTML page with
// one set of charts per run. It is safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	events    []trace.Event
	threshold float64
	tolerance float64
	secret    *big.Int
	title     string
}

// NewCollector creates a collector drawing the classifier thresholds as
// reference lines.
func NewCollector(threshold, tolerance float64) *Collector {
	return &Collector{
		threshold: threshold,
		tolerance: tolerance,
		title:     "RSA timing attack",
	}
}

// WithTrueExponent enables the recovered-prefix accuracy chart.
func (c *Collector) WithTrueExponent(d *big.Int) *Collector {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d != nil {
		c.secret = new(big.Int).Set(d)
	}
	return c
}

// WithTitle sets the page title.
func (c *Collector) WithTitle(title string) *Collector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
	return c
}

// Log records an event.
func (c *Collector) Log(event trace.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Rounds returns the number of round events collected.
func (c *Collector) Rounds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Round != nil {
			n++
		}
	}
	return n
}

// Render writes the HTML page to w.
func (c *Collector) Render(w io.Writer) error {
	c.mu.Lock()
	events := append([]trace.Event(nil), c.events...)
	c.mu.Unlock()

	page := components.NewPage()
	page.SetPageTitle(c.title)

	rendered := 0
	for _, run := range trace.Summarize(events) {
		rounds := roundsOf(events, run.RunID)
		if len(rounds) == 0 {
			continue
		}
		page.AddCharts(c.separationChart(run, rounds), c.prefixChart(run, rounds))
		if c.secret != nil {
			page.AddCharts(c.accuracyChart(run, rounds))
		}
		rendered++
	}
	if rendered == 0 {
		return ErrNoRounds
	}

	return page.Render(w)
}

// RenderFile writes the HTML page to path.
func (c *Collector) RenderFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := c.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render report: %w", err)
	}
	return f.Close()
}

func roundsOf(events []trace.Event, runID string) []*trace.RoundData {
	var rounds []*trace.RoundData
	for _, e := range events {
		if e.RunID == runID && e.Round != nil {
			rounds = append(rounds, e.Round)
		}
	}
	return rounds
}

func roundLabels(rounds []*trace.RoundData) []string {
	labels := make([]string, len(rounds))
	for i, r := range rounds {
		labels[i] = fmt.Sprintf("%d", r.Round)
	}
	return labels
}

func subtitle(run *trace.RunStats) string {
	return fmt.Sprintf("run %s: %s after %d rounds, %d backtracks, %d queries",
		shortID(run.RunID), run.Status, run.Rounds, run.Backtracks, run.Queries)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (c *Collector) separationChart(run *trace.RunStats, rounds []*trace.RoundData) *charts.Line {
	sep0 := make([]opts.LineData, len(rounds))
	sep1 := make([]opts.LineData, len(rounds))
	for i, r := range rounds {
		sep0[i] = opts.LineData{Value: r.Separation(0)}
		sep1[i] = opts.LineData{Value: r.Separation(1)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Class separation per round", Subtitle: subtitle(run)}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.title, Width: "1200px", Height: "500px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "round"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mean(extra) - mean(no extra)"}),
	)
	line.SetXAxis(roundLabels(rounds)).
		AddSeries("bit 0 hypothesis", sep0,
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "significance", YAxis: c.threshold},
				opts.MarkLineNameYAxisItem{Name: "tolerance", YAxis: c.tolerance},
				opts.MarkLineNameYAxisItem{Name: "-tolerance", YAxis: -c.tolerance},
			)).
		AddSeries("bit 1 hypothesis", sep1)
	return line
}

func (c *Collector) prefixChart(run *trace.RunStats, rounds []*trace.RoundData) *charts.Bar {
	lengths := make([]opts.BarData, len(rounds))
	for i, r := range rounds {
		bits := 0
		if r.Candidate != nil {
			bits = r.Candidate.BitLen()
		}
		lengths[i] = opts.BarData{Name: r.Decision.String(), Value: bits}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Recovered prefix length", Subtitle: subtitle(run)}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.title, Width: "1200px", Height: "400px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "round"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bits"}),
	)
	bar.SetXAxis(roundLabels(rounds)).
		AddSeries("prefix bits", lengths).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return bar
}

func (c *Collector) accuracyChart(run *trace.RunStats, rounds []*trace.RoundData) *charts.Line {
	matching := make([]opts.LineData, len(rounds))
	for i, r := range rounds {
		matching[i] = opts.LineData{Value: MatchingPrefix(r.Candidate, c.secret)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Correct leading bits", Subtitle: fmt.Sprintf("exponent has %d bits", c.secret.BitLen())}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.title, Width: "1200px", Height: "400px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "round"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bits", Max: c.secret.BitLen()}),
	)
	line.SetXAxis(roundLabels(rounds)).
		AddSeries("matching bits", matching,
			charts.WithLineChartOpts(opts.LineChart{Step: true}),
		)
	return line
}

// Compile-time interface satisfaction check.
var _ trace.Logger = (*Collector)(nil)
