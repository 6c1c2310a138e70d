package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/Sumatoshi-tech/repograde/internal/report"
)

// Column truncation limits.
const (
	verdictMaxLen  = 255
	feedbackMaxLen = 5000
)

// Issue derivation thresholds.
const (
	aiIssuePct         = 50.0
	aiHighSeverityPct  = 80.0
	plagIssuePct       = 50.0
	qualityIssueMI     = 50.0
	qualityHighMI      = 20.0
	percentMultiplier  = 100.0
	contributionDigits = 100.0
)

// Issue types.
const (
	IssueSecurity    = "security"
	IssueAIGenerated = "ai_generated"
	IssueSimilarCode = "similar_code"
	IssueQuality     = "quality"
)

// Issue severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// SaveResult writes the finished report onto the project row and its
// child tables. The blob write is retried once without the blob; child
// table writes are best effort.
func (s *Store) SaveResult(ctx context.Context, projectID string, rep *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, marshalErr := json.Marshal(rep)
	if marshalErr != nil {
		s.logger.Warn("report blob marshal failed", "project", projectID, "error", marshalErr)

		blob = nil
	}

	now := time.Now().UTC().Unix()

	analyzedAt := rep.AnalyzedAt.UTC().Unix()
	if rep.AnalyzedAt.IsZero() {
		analyzedAt = now
	}

	update := func(reportJSON []byte) error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE projects SET status = ?, total_score = ?,
				originality_score = ?, quality_score = ?, security_score = ?, effort_score = ?,
				implementation_score = ?, engineering_score = ?, organization_score = ?, documentation_score = ?,
				total_commits = ?, verdict = ?, description = ?,
				positive_feedback = ?, constructive_feedback = ?, report_json = ?,
				analyzed_at = ?, updated_at = ?
			 WHERE id = ?`,
			ProjectCompleted, rep.Scores.Total,
			rep.Scores.Originality, rep.Scores.Quality, rep.Scores.Security, rep.Scores.Effort,
			rep.Scores.Implementation, rep.Scores.Engineering, rep.Scores.Organization, rep.Scores.Documentation,
			rep.Forensics.TotalCommits,
			truncate(rep.Judge.Verdict, verdictMaxLen),
			truncate(rep.Judge.Description, feedbackMaxLen),
			truncate(rep.Judge.PositiveFeedback, feedbackMaxLen),
			truncate(rep.Judge.ConstructiveFeedback, feedbackMaxLen),
			reportJSON, analyzedAt, now, projectID,
		)
		if err != nil {
			return fmt.Errorf("update project result: %w", err)
		}

		return requireRow(res)
	}

	if err := update(blob); err != nil {
		if blob == nil {
			return err
		}

		s.logger.Warn("result write failed, retrying without blob", "project", projectID, "error", err)

		if retryErr := update(nil); retryErr != nil {
			return retryErr
		}
	}

	s.replaceChildren(ctx, projectID, rep)

	return nil
}

// replaceChildren rewrites the tech stack, issue and team member rows.
// Failures are logged, not raised.
func (s *Store) replaceChildren(ctx context.Context, projectID string, rep *report.Report) {
	for _, table := range []string{"tech_stack", "issues", "team_members"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE project_id = ?`, projectID); err != nil {
			s.logger.Warn("child table clear failed", "table", table, "project", projectID, "error", err)
		}
	}

	for _, e := range rep.Stack.Entries {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO tech_stack (project_id, name, category) VALUES (?, ?, ?)`,
			projectID, e.Technology, e.Category,
		)
		if err != nil {
			s.logger.Warn("tech stack write failed", "project", projectID, "error", err)
		}
	}

	for _, issue := range DeriveIssues(rep) {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO issues (project_id, type, severity, description, file, ai_probability, plagiarism_score)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			projectID, issue.Type, issue.Severity, issue.Description, issue.File,
			issue.AIProbability, issue.PlagiarismScore,
		)
		if err != nil {
			s.logger.Warn("issue write failed", "project", projectID, "error", err)
		}
	}

	for _, m := range DeriveTeamMembers(rep) {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO team_members (project_id, name, commits, contribution_pct) VALUES (?, ?, ?, ?)`,
			projectID, m.Name, m.Commits, m.ContributionPct,
		)
		if err != nil {
			s.logger.Warn("team member write failed", "project", projectID, "error", err)
		}
	}
}

// DeriveIssues converts detector findings into persisted issue rows.
func DeriveIssues(rep *report.Report) []Issue {
	var issues []Issue

	for _, leak := range rep.Security.Leaks {
		issues = append(issues, Issue{
			Type:        IssueSecurity,
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("%s leaked: %s", leak.Type, leak.Snippet),
			File:        leak.Path,
		})
	}

	for _, row := range rep.RiskTable {
		if row.AIProbability > aiIssuePct {
			severity := SeverityMedium
			if row.AIProbability > aiHighSeverityPct {
				severity = SeverityHigh
			}

			prob := row.AIProbability
			issues = append(issues, Issue{
				Type:          IssueAIGenerated,
				Severity:      severity,
				Description:   fmt.Sprintf("AI generation probability %.0f%%", row.AIProbability),
				File:          row.Path,
				AIProbability: &prob,
			})
		}

		if row.PlagiarismScore > plagIssuePct {
			score := row.PlagiarismScore
			issues = append(issues, Issue{
				Type:            IssueSimilarCode,
				Severity:        SeverityMedium,
				Description:     fmt.Sprintf("%.0f%% similar to %s", row.PlagiarismScore, row.MatchedFile),
				File:            row.Path,
				PlagiarismScore: &score,
			})
		}
	}

	if mi := rep.Quality.MaintainabilityIndex; rep.Quality.AnalyzedFiles > 0 && mi < qualityIssueMI {
		severity := SeverityMedium
		if mi < qualityHighMI {
			severity = SeverityHigh
		}

		issues = append(issues, Issue{
			Type:        IssueQuality,
			Severity:    severity,
			Description: fmt.Sprintf("Maintainability index %.1f", mi),
		})
	}

	return issues
}

// DeriveTeamMembers converts author statistics into member rows with
// their commit share.
func DeriveTeamMembers(rep *report.Report) []TeamMember {
	total := rep.Forensics.TotalCommits
	if total == 0 {
		return nil
	}

	members := make([]TeamMember, 0, len(rep.Forensics.AuthorStats))

	for name, stats := range rep.Forensics.AuthorStats {
		pct := float64(stats.Commits) / float64(total) * percentMultiplier
		members = append(members, TeamMember{
			Name:            name,
			Commits:         stats.Commits,
			ContributionPct: math.Round(pct*contributionDigits) / contributionDigits,
		})
	}

	return members
}

// GetResult decodes the stored report blob.
func (s *Store) GetResult(ctx context.Context, projectID string) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT report_json FROM projects WHERE id = ?`, projectID,
	).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("load report: %w", mapNoRows(err))
	}

	if len(blob) == 0 {
		return nil, ErrNotFound
	}

	var rep report.Report
	if unmarshalErr := json.Unmarshal(blob, &rep); unmarshalErr != nil {
		return nil, fmt.Errorf("decode report: %w", unmarshalErr)
	}

	return &rep, nil
}

// ProjectTech lists the stored technologies of a project.
func (s *Store) ProjectTech(ctx context.Context, projectID string) ([]TechEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, category FROM tech_stack WHERE project_id = ? ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project tech: %w", err)
	}

	defer rows.Close()

	var entries []TechEntry

	for rows.Next() {
		var e TechEntry
		if scanErr := rows.Scan(&e.Name, &e.Category); scanErr != nil {
			return nil, fmt.Errorf("scan tech entry: %w", scanErr)
		}

		entries = append(entries, e)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate tech entries: %w", rowsErr)
	}

	return entries, nil
}

// ProjectIssues lists the stored issues of a project.
func (s *Store) ProjectIssues(ctx context.Context, projectID string) ([]Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, severity, description, file, ai_probability, plagiarism_score
		 FROM issues WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project issues: %w", err)
	}

	defer rows.Close()

	var issues []Issue

	for rows.Next() {
		var (
			i          Issue
			prob, plag sql.NullFloat64
		)

		if scanErr := rows.Scan(&i.Type, &i.Severity, &i.Description, &i.File, &prob, &plag); scanErr != nil {
			return nil, fmt.Errorf("scan issue: %w", scanErr)
		}

		if prob.Valid {
			i.AIProbability = &prob.Float64
		}

		if plag.Valid {
			i.PlagiarismScore = &plag.Float64
		}

		issues = append(issues, i)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate issues: %w", rowsErr)
	}

	return issues, nil
}

// ProjectMembers lists the stored contributors of a project.
func (s *Store) ProjectMembers(ctx context.Context, projectID string) ([]TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, commits, contribution_pct FROM team_members
		 WHERE project_id = ? ORDER BY commits DESC, name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}

	defer rows.Close()

	var members []TeamMember

	for rows.Next() {
		var m TeamMember
		if scanErr := rows.Scan(&m.Name, &m.Commits, &m.ContributionPct); scanErr != nil {
			return nil, fmt.Errorf("scan team member: %w", scanErr)
		}

		members = append(members, m)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate team members: %w", rowsErr)
	}

	return members, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
