// Package report aggregates detector outputs into the final scorecard:
// a weighted total, a per-file risk table and the persisted report blob.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/clones"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/forensics"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/maturity"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/origin"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/quality"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/security"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/stack"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/structure"
	"github.com/Sumatoshi-tech/repograde/internal/judge"
)

// Score weights. They sum to 1.0.
const (
	WeightOriginality    = 0.20
	WeightQuality        = 0.15
	WeightSecurity       = 0.10
	WeightEffort         = 0.10
	WeightImplementation = 0.25
	WeightEngineering    = 0.10
	WeightOrganization   = 0.05
	WeightDocumentation  = 0.05
)

// Risk table bounds.
const (
	// riskThreshold drops low-risk rows from the table.
	riskThreshold = 15.0
	// riskTableCap bounds the table size.
	riskTableCap = 30
	// aiRiskWeight scales the AI share of per-file risk.
	aiRiskWeight = 0.6
	// plagRiskWeight scales the plagiarism share of per-file risk.
	plagRiskWeight = 0.4
	// maxEffortCommits is the commit count worth full effort marks.
	maxEffortCommits = 100
)

// Scores is the weighted scorecard.
type Scores struct {
	Originality    float64 `json:"originality_score"`
	Quality        float64 `json:"quality_score"`
	Security       float64 `json:"security_score"`
	Effort         float64 `json:"effort_score"`
	Implementation float64 `json:"implementation_score"`
	Engineering    float64 `json:"engineering_score"`
	Organization   float64 `json:"organization_score"`
	Documentation  float64 `json:"documentation_score"`
	Total          float64 `json:"total_score"`
}

// RiskRow flags one file whose AI or plagiarism signal stands out.
type RiskRow struct {
	Path            string  `json:"path"`
	AIProbability   float64 `json:"ai_probability"`
	PlagiarismScore float64 `json:"plagiarism_score"`
	MatchedFile     string  `json:"matched_file,omitempty"`
	Risk            float64 `json:"risk"`
}

// Report is the full analysis output persisted as the project blob.
type Report struct {
	RepoURL    string    `json:"repo_url"`
	TeamName   string    `json:"team_name,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	Stack     stack.Result     `json:"tech_stack"`
	Structure structure.Result `json:"structure"`
	Maturity  maturity.Result  `json:"maturity"`
	Forensics forensics.Result `json:"forensics"`
	Origin    origin.Result    `json:"ai_origin"`
	Clones    clones.Result    `json:"plagiarism"`
	Quality   quality.Result   `json:"quality"`
	Security  security.Result  `json:"security"`
	Judge     judge.Verdict    `json:"judge"`

	Scores    Scores    `json:"scores"`
	RiskTable []RiskRow `json:"risk_table"`
}

// Aggregate computes the scorecard and risk table from detector outputs
// already stored on the report.
func (r *Report) Aggregate() {
	r.RiskTable = buildRiskTable(r.Origin, r.Clones)

	maxAIPct := r.Origin.Max * 100

	r.Scores = Scores{
		Originality:    math.Max(0, 100-maxAIPct),
		Quality:        r.Quality.MaintainabilityIndex,
		Security:       float64(r.Security.Score),
		Effort:         math.Min(maxEffortCommits, float64(r.Forensics.TotalCommits)),
		Implementation: r.Judge.ImplementationScore,
		Engineering:    float64(r.Maturity.Score),
		Organization:   float64(r.Structure.Score),
		Documentation:  r.Quality.DocumentationScore,
	}

	total := WeightOriginality*r.Scores.Originality +
		WeightQuality*r.Scores.Quality +
		WeightSecurity*r.Scores.Security +
		WeightEffort*r.Scores.Effort +
		WeightImplementation*r.Scores.Implementation +
		WeightEngineering*r.Scores.Engineering +
		WeightOrganization*r.Scores.Organization +
		WeightDocumentation*r.Scores.Documentation

	r.Scores.Total = round2(total)
}

// buildRiskTable joins per-file AI and plagiarism signals, keeps rows
// above the threshold and caps the table.
func buildRiskTable(ai origin.Result, plag clones.Result) []RiskRow {
	plagByPath := make(map[string]clones.FileMatch, len(plag.Files))
	for _, m := range plag.Files {
		plagByPath[m.Path] = m
	}

	seen := make(map[string]struct{})

	var rows []RiskRow

	add := func(path string, aiScore float64, match clones.FileMatch) {
		if _, ok := seen[path]; ok {
			return
		}

		seen[path] = struct{}{}

		risk := (aiRiskWeight*aiScore + plagRiskWeight*match.Score) * 100
		if risk <= riskThreshold {
			return
		}

		rows = append(rows, RiskRow{
			Path:            path,
			AIProbability:   round2(aiScore * 100),
			PlagiarismScore: round2(match.Score * 100),
			MatchedFile:     match.BestMatch,
			Risk:            round2(risk),
		})
	}

	for _, f := range ai.Files {
		add(f.Path, f.Score, plagByPath[f.Path])
	}

	for _, m := range plag.Files {
		add(m.Path, 0, m)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Risk > rows[j].Risk })

	if len(rows) > riskTableCap {
		rows = rows[:riskTableCap]
	}

	return rows
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
