package report

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
)

// trendChart renders trends oldest first as a PNG bar chart.
func trendChart(trends []MonthTrend) ([]byte, error) {
	if len(trends) == 0 {
		return nil, fmt.Errorf("no trend data")
	}

	bars := make([]chart.Value, 0, len(trends))
	for i := len(trends) - 1; i >= 0; i-- {
		amount, _ := trends[i].Amount.Float64()
		bars = append(bars, chart.Value{Value: amount, Label: trends[i].Month})
	}

	graph := chart.BarChart{
		Title:    "Monthly Contributions (KES)",
		Height:   400,
		Width:    800,
		BarWidth: 60,
		Bars:     bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
