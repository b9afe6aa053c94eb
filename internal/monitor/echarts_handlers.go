package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dovechaser/internal/anglemap"
	"github.com/banshee-data/dovechaser/internal/httputil"
)

// handleAngleMapChart renders the forward curve and the inverse candidates
// of the angle map as two line charts on one page.
func handleAngleMapChart(w http.ResponseWriter, m *anglemap.Map) {
	page := components.NewPage()
	page.AddCharts(forwardChart(m), inverseChart(m))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func forwardChart(m *anglemap.Map) *charts.Line {
	table := m.Table()
	x := make([]string, 0, len(table))
	y := make([]opts.LineData, 0, len(table))
	for _, e := range table {
		x = append(x, fmt.Sprint(e.Alpha))
		y = append(y, opts.LineData{Value: e.Beta})
	}

	g := m.Geometry()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Direct -> mechanical",
			Subtitle: fmt.Sprintf("limit=%d calibration=%d", g.Limit, g.Calibration),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "alpha (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "beta (deg)", NameLocation: "middle", NameGap: 35}),
	)
	line.SetXAxis(x).AddSeries("beta", y)
	return line
}

func inverseChart(m *anglemap.Map) *charts.Line {
	inv := m.InverseTable()
	x := make([]string, 0, len(inv))
	solved := make([]opts.LineData, 0, len(inv))
	interp := make([]opts.LineData, 0, len(inv))
	for _, e := range inv {
		x = append(x, fmt.Sprint(e.Beta))
		minAlpha, _ := m.MinAlpha(e.Beta)
		// "-" leaves a gap in the series.
		if e.Interpolated {
			solved = append(solved, opts.LineData{Value: "-"})
			interp = append(interp, opts.LineData{Value: minAlpha})
		} else {
			solved = append(solved, opts.LineData{Value: minAlpha})
			interp = append(interp, opts.LineData{Value: "-"})
		}
	}

	lo, hi := m.BetaRange()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Mechanical -> smallest direct candidate",
			Subtitle: fmt.Sprintf("beta in [%d, %d]", lo, hi),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "beta (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "alpha (deg)", NameLocation: "middle", NameGap: 35}),
	)
	line.SetXAxis(x).
		AddSeries("solved", solved, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)})).
		AddSeries("interpolated", interp, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	return line
}
