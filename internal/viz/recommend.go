// Package viz recommends a chart for a pipeline result. The output is a
// renderer-agnostic spec; the front end maps it onto its charting library.
package viz

import "github.com/cortexai/analytics/internal/analytics"

const (
	ChartBar       = "bar"
	ChartLine      = "line"
	ChartPie       = "pie"
	ChartIndicator = "indicator"

	OrientationVertical   = "v"
	OrientationHorizontal = "h"

	BarmodeGroup = "group"
	BarmodeStack = "stack"

	ModeLines        = "lines"
	ModeLinesMarkers = "lines+markers"
	ModeNumber       = "number"

	SeriesSingle = "single"
	SeriesMulti  = "multi"
)

const (
	manyTimePoints     = 5
	maxGroupedEntities = 5
	maxPieEntities     = 8
)

// RecommendInput is the shape of the data to display
type RecommendInput struct {
	Intent         analytics.Intent
	BankCount      int
	TimePointCount int
	IsRanking      bool
	IsComparison   bool
	IsDistribution bool
}

// Axis holds the axis options the recommender cares about
type Axis struct {
	Title     string `json:"title,omitempty"`
	AutoRange string `json:"autorange,omitempty"`
}

// Margin is in pixels
type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// Legend placement
type Legend struct {
	Orientation string  `json:"orientation,omitempty"`
	Y           float64 `json:"y,omitempty"`
}

// Layout is the subset of chart layout the pipeline controls
type Layout struct {
	Height     int     `json:"height,omitempty"`
	Margin     Margin  `json:"margin"`
	ShowLegend bool    `json:"showlegend"`
	Legend     *Legend `json:"legend,omitempty"`
	XAxis      Axis    `json:"xaxis"`
	YAxis      Axis    `json:"yaxis"`
}

// ChartSpec is handed to the renderer
type ChartSpec struct {
	ChartType   string `json:"chart_type"`
	Orientation string `json:"orientation,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Barmode     string `json:"barmode,omitempty"`
	Series      string `json:"series"`
	Reason      string `json:"reason"`
	Layout      Layout `json:"layout"`
}

// Recommend picks a chart. Rules are tried in order and the first match wins.
func Recommend(in RecommendInput) ChartSpec {
	series := SeriesSingle
	if in.BankCount > 1 {
		series = SeriesMulti
	}

	switch {
	case in.IsRanking || in.Intent == analytics.IntentRanking:
		return ChartSpec{
			ChartType:   ChartBar,
			Orientation: OrientationHorizontal,
			Series:      SeriesSingle,
			Reason:      "ranking",
			Layout:      Layout{YAxis: Axis{AutoRange: "reversed"}},
		}

	case in.Intent == analytics.IntentEvolution || in.TimePointCount > manyTimePoints:
		return ChartSpec{
			ChartType: ChartLine,
			Mode:      ModeLinesMarkers,
			Series:    series,
			Reason:    "time series",
			Layout:    Layout{XAxis: Axis{Title: "fecha"}},
		}

	case in.IsComparison || in.Intent == analytics.IntentComparison:
		if in.BankCount <= maxGroupedEntities {
			return ChartSpec{
				ChartType:   ChartBar,
				Orientation: OrientationVertical,
				Barmode:     BarmodeGroup,
				Series:      series,
				Reason:      "comparison",
			}
		}
		return ChartSpec{
			ChartType:   ChartBar,
			Orientation: OrientationHorizontal,
			Barmode:     BarmodeGroup,
			Series:      series,
			Reason:      "comparison of many entities",
		}

	case in.IsDistribution:
		switch {
		case in.BankCount <= 1 && in.TimePointCount > 1:
			return ChartSpec{ChartType: ChartLine, Mode: ModeLines, Series: SeriesSingle, Reason: "share over time"}
		case in.BankCount <= maxPieEntities:
			return ChartSpec{ChartType: ChartPie, Series: series, Reason: "distribution"}
		default:
			return ChartSpec{
				ChartType:   ChartBar,
				Orientation: OrientationVertical,
				Barmode:     BarmodeStack,
				Series:      series,
				Reason:      "distribution of many entities",
			}
		}

	case in.TimePointCount <= 1 && in.BankCount <= 1:
		return ChartSpec{ChartType: ChartIndicator, Mode: ModeNumber, Series: SeriesSingle, Reason: "single value"}
	}

	return ChartSpec{
		ChartType:   ChartBar,
		Orientation: OrientationVertical,
		Barmode:     BarmodeGroup,
		Series:      series,
		Reason:      "default",
	}
}
