// Package viz renders an analysis report as a standalone HTML dashboard.
package viz

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/repograde/internal/report"
)

const (
	chartWidth  = "900px"
	chartHeight = "420px"
	// maxAuthors bounds the contributor chart.
	maxAuthors = 20
)

// scoreOrder fixes the scorecard bar order.
var scoreOrder = []string{
	"Originality", "Quality", "Security", "Effort",
	"Implementation", "Engineering", "Organization", "Documentation",
}

// RenderDashboard writes the report dashboard as a single HTML page.
func RenderDashboard(w io.Writer, rep *report.Report) error {
	page := components.NewPage()
	page.PageTitle = "repograde: " + rep.RepoURL

	page.AddCharts(
		buildScoreBar(rep),
		buildLanguagePie(rep),
		buildContributorBar(rep),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}

	return nil
}

func buildScoreBar(rep *report.Report) *charts.Bar {
	values := map[string]float64{
		"Originality":    rep.Scores.Originality,
		"Quality":        rep.Scores.Quality,
		"Security":       rep.Scores.Security,
		"Effort":         rep.Scores.Effort,
		"Implementation": rep.Scores.Implementation,
		"Engineering":    rep.Scores.Engineering,
		"Organization":   rep.Scores.Organization,
		"Documentation":  rep.Scores.Documentation,
	}

	data := make([]opts.BarData, len(scoreOrder))
	for i, name := range scoreOrder {
		data[i] = opts.BarData{Value: values[name]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Scorecard",
			Subtitle: fmt.Sprintf("Total: %.2f / 100 (%s)", rep.Scores.Total, rep.Judge.Verdict),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	bar.SetXAxis(scoreOrder)
	bar.AddSeries("Score", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	return bar
}

func buildLanguagePie(rep *report.Report) *charts.Pie {
	data := make([]opts.PieData, 0, len(rep.Stack.Languages))
	for _, lang := range rep.Stack.Languages {
		data = append(data, opts.PieData{Name: lang.Name, Value: lang.Percent})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Languages"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	pie.AddSeries("Languages", data).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{
			Show:      opts.Bool(true),
			Formatter: "{b}: {d}%",
		}))

	return pie
}

// authorCommits is one contributor row for the chart.
type authorCommits struct {
	name    string
	commits int
}

func buildContributorBar(rep *report.Report) *charts.Bar {
	authors := make([]authorCommits, 0, len(rep.Forensics.AuthorStats))
	for name, stats := range rep.Forensics.AuthorStats {
		authors = append(authors, authorCommits{name: name, commits: stats.Commits})
	}

	sort.Slice(authors, func(i, j int) bool {
		if authors[i].commits != authors[j].commits {
			return authors[i].commits > authors[j].commits
		}

		return authors[i].name < authors[j].name
	})

	if len(authors) > maxAuthors {
		authors = authors[:maxAuthors]
	}

	labels := make([]string, len(authors))
	data := make([]opts.BarData, len(authors))

	for i, a := range authors {
		labels[i] = a.name
		data[i] = opts.BarData{Value: a.commits}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Contributors",
			Subtitle: fmt.Sprintf("%d commits total", rep.Forensics.TotalCommits),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	bar.SetXAxis(labels)
	bar.AddSeries("Commits", data)

	return bar
}
