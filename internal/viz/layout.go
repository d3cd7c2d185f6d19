package viz

const (
	baseHeight     = 420
	barRowHeight   = 32
	maxHeight      = 1200
	labelMarginMin = 120
	labelCharWidth = 7
)

// EnhanceLayout fills in margins, legend and height for spec. labels are the
// category names shown on the axis (banks for bar charts); only their count
// and length matter.
func EnhanceLayout(spec ChartSpec, entityCount int, labels ...string) ChartSpec {
	out := spec
	l := spec.Layout
	if l.Legend != nil {
		legend := *l.Legend
		l.Legend = &legend
	}
	l.Margin = Margin{L: 60, R: 30, T: 40, B: 60}
	l.Height = baseHeight
	l.ShowLegend = entityCount > 1

	switch {
	case spec.ChartType == ChartBar && spec.Orientation == OrientationHorizontal:
		// one row per entity, room for the longest label on the left
		l.Height = clamp(entityCount*barRowHeight+120, baseHeight, maxHeight)
		longest := 0
		for _, s := range labels {
			longest = max(longest, len([]rune(s)))
		}
		l.Margin.L = max(labelMarginMin, longest*labelCharWidth+20)
		l.ShowLegend = spec.Series == SeriesMulti

	case spec.ChartType == ChartBar:
		if entityCount > maxGroupedEntities {
			l.Margin.B = 100
		}
		if l.ShowLegend {
			l.Legend = &Legend{Orientation: "h", Y: -0.2}
		}

	case spec.ChartType == ChartLine:
		if l.ShowLegend {
			l.Legend = &Legend{Orientation: "h", Y: -0.2}
			l.Margin.B = 90
		}

	case spec.ChartType == ChartPie:
		l.ShowLegend = true
		l.Legend = &Legend{Orientation: "v"}
		l.Margin = Margin{L: 20, R: 20, T: 40, B: 20}

	case spec.ChartType == ChartIndicator:
		l.Height = 220
		l.ShowLegend = false
		l.Margin = Margin{L: 20, R: 20, T: 40, B: 20}
	}

	out.Layout = l
	return out
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
