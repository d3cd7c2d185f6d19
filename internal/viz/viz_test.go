package viz_test

import (
	"testing"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/viz"
)

func TestRecommend(t *testing.T) {
	tests := []struct {
		name        string
		in          viz.RecommendInput
		chart       string
		orientation string
		barmode     string
		series      string
	}{
		{"ranking intent", viz.RecommendInput{Intent: analytics.IntentRanking, BankCount: 10, TimePointCount: 1}, viz.ChartBar, viz.OrientationHorizontal, "", viz.SeriesSingle},
		{"ranking flag beats evolution", viz.RecommendInput{Intent: analytics.IntentEvolution, IsRanking: true, TimePointCount: 24}, viz.ChartBar, viz.OrientationHorizontal, "", viz.SeriesSingle},
		{"evolution one bank", viz.RecommendInput{Intent: analytics.IntentEvolution, BankCount: 1, TimePointCount: 3}, viz.ChartLine, "", "", viz.SeriesSingle},
		{"many points multi bank", viz.RecommendInput{Intent: analytics.IntentComparison, BankCount: 2, TimePointCount: 12, IsComparison: true}, viz.ChartLine, "", "", viz.SeriesMulti},
		{"comparison few banks", viz.RecommendInput{Intent: analytics.IntentComparison, BankCount: 3, TimePointCount: 1, IsComparison: true}, viz.ChartBar, viz.OrientationVertical, viz.BarmodeGroup, viz.SeriesMulti},
		{"comparison many banks", viz.RecommendInput{IsComparison: true, BankCount: 9, TimePointCount: 2}, viz.ChartBar, viz.OrientationHorizontal, viz.BarmodeGroup, viz.SeriesMulti},
		{"share single entity", viz.RecommendInput{IsDistribution: true, BankCount: 1, TimePointCount: 4}, viz.ChartLine, "", "", viz.SeriesSingle},
		{"share few entities", viz.RecommendInput{IsDistribution: true, BankCount: 8, TimePointCount: 1}, viz.ChartPie, "", "", viz.SeriesMulti},
		{"share many entities", viz.RecommendInput{IsDistribution: true, BankCount: 12, TimePointCount: 1}, viz.ChartBar, viz.OrientationVertical, viz.BarmodeStack, viz.SeriesMulti},
		{"point value", viz.RecommendInput{Intent: analytics.IntentPointValue, BankCount: 1, TimePointCount: 1}, viz.ChartIndicator, "", "", viz.SeriesSingle},
		{"fallback", viz.RecommendInput{Intent: analytics.IntentPointValue, BankCount: 3, TimePointCount: 1}, viz.ChartBar, viz.OrientationVertical, viz.BarmodeGroup, viz.SeriesMulti},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := viz.Recommend(tt.in)
			if got.ChartType != tt.chart || got.Orientation != tt.orientation || got.Barmode != tt.barmode || got.Series != tt.series {
				t.Errorf("got %s/%s/%s/%s, want %s/%s/%s/%s",
					got.ChartType, got.Orientation, got.Barmode, got.Series,
					tt.chart, tt.orientation, tt.barmode, tt.series)
			}
		})
	}
}

func TestRankingIsAlwaysHorizontalAndReversed(t *testing.T) {
	for banks := 0; banks <= 20; banks++ {
		for points := 0; points <= 24; points += 6 {
			got := viz.Recommend(viz.RecommendInput{Intent: analytics.IntentRanking, BankCount: banks, TimePointCount: points, IsComparison: true, IsDistribution: true})
			if got.Orientation != viz.OrientationHorizontal {
				t.Fatalf("banks=%d points=%d: orientation %q", banks, points, got.Orientation)
			}
			if got.Layout.YAxis.AutoRange != "reversed" {
				t.Fatalf("banks=%d points=%d: y axis not reversed", banks, points)
			}
		}
	}
}

func TestEnhanceLayoutHorizontalBarScales(t *testing.T) {
	spec := viz.Recommend(viz.RecommendInput{Intent: analytics.IntentRanking})

	small := viz.EnhanceLayout(spec, 3, "INVEX", "BBVA", "HSBC")
	large := viz.EnhanceLayout(spec, 30, "SCOTIABANK INVERLAT SA INSTITUCION DE BANCA MULTIPLE")

	if large.Layout.Height <= small.Layout.Height {
		t.Errorf("height should grow with entities: %d vs %d", large.Layout.Height, small.Layout.Height)
	}
	if large.Layout.Margin.L <= small.Layout.Margin.L {
		t.Errorf("left margin should grow with label length: %d vs %d", large.Layout.Margin.L, small.Layout.Margin.L)
	}
	if large.Layout.Height > 1200 {
		t.Errorf("height %d exceeds cap", large.Layout.Height)
	}
	if small.Layout.YAxis.AutoRange != "reversed" {
		t.Error("EnhanceLayout dropped the reversed axis")
	}
}

func TestEnhanceLayoutLegend(t *testing.T) {
	line := viz.Recommend(viz.RecommendInput{Intent: analytics.IntentEvolution, BankCount: 3})
	if got := viz.EnhanceLayout(line, 3); !got.Layout.ShowLegend || got.Layout.Legend == nil || got.Layout.Legend.Orientation != "h" {
		t.Errorf("multi-series line legend = %+v", got.Layout)
	}
	if got := viz.EnhanceLayout(line, 1); got.Layout.ShowLegend {
		t.Error("single series should hide the legend")
	}

	kpi := viz.Recommend(viz.RecommendInput{BankCount: 1, TimePointCount: 1})
	if got := viz.EnhanceLayout(kpi, 1); got.Layout.Height >= 420 || got.Layout.ShowLegend {
		t.Errorf("indicator layout = %+v", got.Layout)
	}
}

func TestEnhanceLayoutDoesNotMutateInput(t *testing.T) {
	spec := viz.Recommend(viz.RecommendInput{IsDistribution: true, BankCount: 4})
	before := spec.Layout
	_ = viz.EnhanceLayout(spec, 4)
	if spec.Layout != before {
		t.Error("input spec changed")
	}
}
