package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/stairclimb/internal/sim"
	"github.com/banshee-data/stairclimb/internal/structure"
)

// Timeline writes an HTML page charting the duration of every instruction of
// plan and the elapsed time after it. c must have counted exactly plan.
func Timeline(w io.Writer, title string, plan []structure.Instruction, c *sim.Counter) error {
	if c.Iterations() != len(plan) {
		return fmt.Errorf("timeline: counter has %d instructions, plan has %d", c.Iterations(), len(plan))
	}
	per := c.Durations(false)
	cum := c.Durations(true)

	x := make([]string, len(plan))
	bars := make([]opts.BarData, len(plan))
	line := make([]opts.LineData, len(plan))
	for i, in := range plan {
		x[i] = strconv.Itoa(i + 1)
		bars[i] = opts.BarData{Name: in.String(), Value: per[i]}
		line[i] = opts.LineData{Name: in.String(), Value: cum[i]}
	}

	subtitle := fmt.Sprintf("%d instructions, %.2f s", c.Iterations(), c.Elapsed())

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Instruction duration", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "instruction", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "s"}),
	)
	bar.SetXAxis(x).AddSeries("duration", bars)

	elapsed := charts.NewLine()
	elapsed.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Elapsed time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "instruction", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "s"}),
	)
	elapsed.SetXAxis(x).AddSeries("elapsed", line)

	page := components.NewPage()
	page.AddCharts(bar, elapsed)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("timeline: render: %w", err)
	}
	return nil
}
