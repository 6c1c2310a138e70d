package store

import (
	"context"
	"fmt"
	"strings"
)

// Sort orders for ListProjects.
const (
	SortRecent = "recent"
	SortScore  = "score"
)

// defaultLeaderboardLimit bounds leaderboard queries without an explicit limit.
const defaultLeaderboardLimit = 100

// Filter narrows a project listing.
type Filter struct {
	Status string
	Tech   string
	Search string
	Sort   string
}

// Stats is the aggregate view over all projects.
type Stats struct {
	TotalProjects      int            `json:"totalProjects"`
	CompletedProjects  int            `json:"completedProjects"`
	InProgressProjects int            `json:"inProgressProjects"`
	FailedProjects     int            `json:"failedProjects"`
	AverageScore       float64        `json:"averageScore"`
	Verdicts           map[string]int `json:"verdicts"`
}

// TechCount is one technology with its adoption count.
type TechCount struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ListProjects returns projects matching the filter.
func (s *Store) ListProjects(ctx context.Context, f Filter) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		clauses []string
		args    []any
	)

	query := projectColumns

	if f.Tech != "" {
		query = `SELECT DISTINCT p.id, p.repo_url, p.team_name, p.status, p.total_score,
			p.originality_score, p.quality_score, p.security_score, p.effort_score,
			p.implementation_score, p.engineering_score, p.organization_score, p.documentation_score,
			p.total_commits, p.verdict, p.description, p.positive_feedback, p.constructive_feedback,
			p.analyzed_at, p.created_at, p.updated_at
			FROM projects p JOIN tech_stack t ON t.project_id = p.id`

		clauses = append(clauses, "LOWER(t.name) = LOWER(?)")
		args = append(args, f.Tech)
	}

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}

	if f.Search != "" {
		clauses = append(clauses, "(repo_url LIKE ? OR team_name LIKE ?)")

		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	switch f.Sort {
	case SortScore:
		query += " ORDER BY total_score DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	defer rows.Close()

	var projects []Project

	for rows.Next() {
		p, scanErr := s.scanProject(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		projects = append(projects, p)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate projects: %w", rowsErr)
	}

	return projects, nil
}

// leaderboardColumns maps the accepted sort keys to their score column.
// Keys outside the map fall back to the total.
var leaderboardColumns = map[string]string{
	"total":          "total_score",
	"originality":    "originality_score",
	"quality":        "quality_score",
	"security":       "security_score",
	"effort":         "effort_score",
	"implementation": "implementation_score",
	"engineering":    "engineering_score",
	"organization":   "organization_score",
	"documentation":  "documentation_score",
}

// LeaderboardSortColumn resolves a user-supplied sort key to a column
// name, defaulting to the total score.
func LeaderboardSortColumn(key string) string {
	if col, ok := leaderboardColumns[key]; ok {
		return col
	}

	return "total_score"
}

// Leaderboard returns completed projects ranked by the requested score
// column, the total by default.
func (s *Store) Leaderboard(ctx context.Context, limit int, sortKey string) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	column := LeaderboardSortColumn(sortKey)

	rows, err := s.db.QueryContext(ctx,
		projectColumns+` WHERE status = ? ORDER BY `+column+` DESC, created_at ASC LIMIT ?`,
		ProjectCompleted, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	defer rows.Close()

	var projects []Project

	for rows.Next() {
		p, scanErr := s.scanProject(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		projects = append(projects, p)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", rowsErr)
	}

	return projects, nil
}

// GetStats aggregates project counts, the average completed score and
// verdict totals.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Verdicts: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status = ? THEN total_score END), 0)
		FROM projects`,
		ProjectCompleted, ProjectPending, ProjectAnalyzing, ProjectFailed, ProjectCompleted,
	).Scan(&stats.TotalProjects, &stats.CompletedProjects, &stats.InProgressProjects,
		&stats.FailedProjects, &stats.AverageScore)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	rows, verdictErr := s.db.QueryContext(ctx,
		`SELECT verdict, COUNT(*) FROM projects WHERE status = ? AND verdict != '' GROUP BY verdict`,
		ProjectCompleted,
	)
	if verdictErr != nil {
		return Stats{}, fmt.Errorf("verdict counts: %w", verdictErr)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			verdict string
			count   int
		)

		if scanErr := rows.Scan(&verdict, &count); scanErr != nil {
			return Stats{}, fmt.Errorf("scan verdict count: %w", scanErr)
		}

		stats.Verdicts[verdict] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return Stats{}, fmt.Errorf("iterate verdict counts: %w", rowsErr)
	}

	return stats, nil
}

// TechStacks returns every distinct technology with its adoption count.
func (s *Store) TechStacks(ctx context.Context) ([]TechCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category, COUNT(DISTINCT project_id)
		FROM tech_stack
		GROUP BY name, category
		ORDER BY COUNT(DISTINCT project_id) DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("tech stacks: %w", err)
	}

	defer rows.Close()

	var counts []TechCount

	for rows.Next() {
		var tc TechCount
		if scanErr := rows.Scan(&tc.Name, &tc.Category, &tc.Count); scanErr != nil {
			return nil, fmt.Errorf("scan tech count: %w", scanErr)
		}

		counts = append(counts, tc)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate tech counts: %w", rowsErr)
	}

	return counts, nil
}
