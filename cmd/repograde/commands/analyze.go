package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repograde/internal/config"
	"github.com/Sumatoshi-tech/repograde/internal/judge"
	"github.com/Sumatoshi-tech/repograde/internal/observability"
	"github.com/Sumatoshi-tech/repograde/internal/pipeline"
	"github.com/Sumatoshi-tech/repograde/internal/report"
	"github.com/Sumatoshi-tech/repograde/internal/viz"
)

// analyzeOptions holds the analyze command flags.
type analyzeOptions struct {
	configPath string
	teamName   string
	htmlPath   string
	jsonOut    bool
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <repo-url>",
		Short: "Analyze a single repository and print the scorecard",
		Long: `Clone a repository, run the full detector pipeline locally and
print the weighted scorecard. No server or database is involved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&opts.teamName, "team", "t", "", "team name recorded in the report")
	cmd.Flags().StringVar(&opts.htmlPath, "html", "", "write an HTML dashboard to this file")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the full report as JSON")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions, repoURL string) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	pipe, pipeErr := buildPipeline(cmd.Context(), cfg, logger)
	if pipeErr != nil {
		return pipeErr
	}

	// Progress goes to stderr so --json output stays parseable.
	progressOut := cmd.OutOrStdout()
	if opts.jsonOut {
		progressOut = cmd.ErrOrStderr()
	}

	rep, runErr := pipe.Run(cmd.Context(), repoURL, opts.teamName, func(p pipeline.Progress) {
		fmt.Fprintf(progressOut, "[%3d%%] %s\n", p.Percent, p.Stage)
	})
	if runErr != nil {
		return fmt.Errorf("analyze %s: %w", repoURL, runErr)
	}

	if opts.htmlPath != "" {
		if htmlErr := writeDashboard(opts.htmlPath, rep); htmlErr != nil {
			return htmlErr
		}

		fmt.Fprintf(progressOut, "dashboard written to %s\n", opts.htmlPath)
	}

	if opts.jsonOut {
		data, marshalErr := json.MarshalIndent(rep, "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("marshal report: %w", marshalErr)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))

		return nil
	}

	printReport(cmd.OutOrStdout(), rep)

	return nil
}

func writeDashboard(path string, rep *report.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dashboard file: %w", err)
	}
	defer file.Close()

	if renderErr := viz.RenderDashboard(file, rep); renderErr != nil {
		return renderErr
	}

	return nil
}

// printReport renders the scorecard table, the risk table and a short
// summary of the detector outputs.
func printReport(out io.Writer, rep *report.Report) {
	fmt.Fprintf(out, "\nRepository: %s\n", rep.RepoURL)

	if rep.TeamName != "" {
		fmt.Fprintf(out, "Team:       %s\n", rep.TeamName)
	}

	fmt.Fprintf(out, "Language:   %s\n", rep.Stack.PrimaryLanguage)
	fmt.Fprintf(out, "Commits:    %s across %d branches\n",
		humanize.Comma(int64(rep.Forensics.TotalCommits)), rep.Forensics.BranchCount)
	fmt.Fprintf(out, "Leaks:      %d\n\n", rep.Security.LeakCount)

	scoreTable := table.NewWriter()
	scoreTable.SetOutputMirror(out)
	scoreTable.SetStyle(table.StyleLight)
	scoreTable.AppendHeader(table.Row{"Category", "Score", "Weight"})
	scoreTable.AppendRow(table.Row{"Originality", scoreCell(rep.Scores.Originality), weightCell(report.WeightOriginality)})
	scoreTable.AppendRow(table.Row{"Quality", scoreCell(rep.Scores.Quality), weightCell(report.WeightQuality)})
	scoreTable.AppendRow(table.Row{"Security", scoreCell(rep.Scores.Security), weightCell(report.WeightSecurity)})
	scoreTable.AppendRow(table.Row{"Effort", scoreCell(rep.Scores.Effort), weightCell(report.WeightEffort)})
	scoreTable.AppendRow(table.Row{"Implementation", scoreCell(rep.Scores.Implementation), weightCell(report.WeightImplementation)})
	scoreTable.AppendRow(table.Row{"Engineering", scoreCell(rep.Scores.Engineering), weightCell(report.WeightEngineering)})
	scoreTable.AppendRow(table.Row{"Organization", scoreCell(rep.Scores.Organization), weightCell(report.WeightOrganization)})
	scoreTable.AppendRow(table.Row{"Documentation", scoreCell(rep.Scores.Documentation), weightCell(report.WeightDocumentation)})
	scoreTable.AppendFooter(table.Row{"Total", scoreCell(rep.Scores.Total), ""})
	scoreTable.Render()

	fmt.Fprintf(out, "\nVerdict: %s\n", coloredVerdict(rep.Judge))

	if rep.Judge.Description != "" {
		fmt.Fprintf(out, "%s\n", rep.Judge.Description)
	}

	printRiskTable(out, rep.RiskTable)
}

func printRiskTable(out io.Writer, rows []report.RiskRow) {
	if len(rows) == 0 {
		return
	}

	fmt.Fprintf(out, "\nFlagged files:\n")

	riskTable := table.NewWriter()
	riskTable.SetOutputMirror(out)
	riskTable.SetStyle(table.StyleLight)
	riskTable.AppendHeader(table.Row{"File", "AI %", "Plagiarism %", "Matched", "Risk"})

	for _, row := range rows {
		riskTable.AppendRow(table.Row{
			row.Path,
			fmt.Sprintf("%.1f", row.AIProbability),
			fmt.Sprintf("%.1f", row.PlagiarismScore),
			row.MatchedFile,
			fmt.Sprintf("%.1f", row.Risk),
		})
	}

	riskTable.Render()
}

func scoreCell(v float64) string {
	return fmt.Sprintf("%6.2f", v)
}

func weightCell(w float64) string {
	return fmt.Sprintf("%.0f%%", w*100)
}

func coloredVerdict(v judge.Verdict) string {
	if v.Skipped {
		return color.New(color.Faint).Sprint("skipped (no API key)")
	}

	switch v.Verdict {
	case judge.VerdictProductionReady:
		return color.New(color.FgGreen, color.Bold).Sprint(v.Verdict)
	case judge.VerdictPrototype:
		return color.New(color.FgYellow, color.Bold).Sprint(v.Verdict)
	case judge.VerdictBroken:
		return color.New(color.FgRed, color.Bold).Sprint(v.Verdict)
	default:
		return v.Verdict
	}
}
