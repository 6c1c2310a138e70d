// Package store persists projects, jobs and analysis results in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Project statuses.
const (
	ProjectPending   = "pending"
	ProjectAnalyzing = "analyzing"
	ProjectCompleted = "completed"
	ProjectFailed    = "failed"
)

// Job statuses.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Sentinel errors.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a project already exists for the repo URL.
	ErrDuplicate = errors.New("duplicate project")
)

// Project is one analyzed repository.
type Project struct {
	ID                   string    `json:"id"`
	RepoURL              string    `json:"repo_url"`
	TeamName             string    `json:"team_name"`
	Status               string    `json:"status"`
	TotalScore           float64   `json:"total_score"`
	OriginalityScore     float64   `json:"originality_score"`
	QualityScore         float64   `json:"quality_score"`
	SecurityScore        float64   `json:"security_score"`
	EffortScore          float64   `json:"effort_score"`
	ImplementationScore  float64   `json:"implementation_score"`
	EngineeringScore     float64   `json:"engineering_score"`
	OrganizationScore    float64   `json:"organization_score"`
	DocumentationScore   float64   `json:"documentation_score"`
	TotalCommits         int       `json:"total_commits"`
	Verdict              string    `json:"verdict"`
	Description          string    `json:"description"`
	PositiveFeedback     string    `json:"positive_feedback"`
	ConstructiveFeedback string    `json:"constructive_feedback"`
	AnalyzedAt           time.Time `json:"analyzed_at"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Job tracks one analysis run of a project.
type Job struct {
	ID        string    `json:"job_id"`
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TechEntry is one detected technology of a project.
type TechEntry struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Issue is one derived finding attached to a project. The probability
// fields are set only for the issue types they belong to.
type Issue struct {
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description"`
	File            string   `json:"file,omitempty"`
	AIProbability   *float64 `json:"ai_probability,omitempty"`
	PlagiarismScore *float64 `json:"plagiarism_score,omitempty"`
}

// TeamMember is one contributor with their commit share.
type TeamMember struct {
	Name            string  `json:"name"`
	Commits         int     `json:"commits"`
	ContributionPct float64 `json:"contribution_pct"`
}

// Store wraps the SQLite database. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *slog.Logger
}

// New opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection keeps the foreign_keys pragma in force and makes
	// ":memory:" behave as a single database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger.With("component", "store")}
	if initErr := s.initialize(); initErr != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize schema: %w", initErr)
	}

	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		repo_url TEXT NOT NULL UNIQUE,
		team_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		total_score REAL NOT NULL DEFAULT 0,
		originality_score REAL NOT NULL DEFAULT 0,
		quality_score REAL NOT NULL DEFAULT 0,
		security_score REAL NOT NULL DEFAULT 0,
		effort_score REAL NOT NULL DEFAULT 0,
		implementation_score REAL NOT NULL DEFAULT 0,
		engineering_score REAL NOT NULL DEFAULT 0,
		organization_score REAL NOT NULL DEFAULT 0,
		documentation_score REAL NOT NULL DEFAULT 0,
		total_commits INTEGER NOT NULL DEFAULT 0,
		verdict TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		positive_feedback TEXT NOT NULL DEFAULT '',
		constructive_feedback TEXT NOT NULL DEFAULT '',
		report_json BLOB,
		analyzed_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT '',
		progress INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tech_stack (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		category TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		description TEXT NOT NULL,
		file TEXT NOT NULL DEFAULT '',
		ai_probability REAL,
		plagiarism_score REAL
	);
	CREATE TABLE IF NOT EXISTS team_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		commits INTEGER NOT NULL,
		contribution_pct REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project_id);
	CREATE INDEX IF NOT EXISTS idx_tech_project ON tech_stack(project_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateProject inserts a pending project keyed by repo URL.
func (s *Store) CreateProject(ctx context.Context, repoURL, teamName string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := Project{
		ID:        uuid.NewString(),
		RepoURL:   repoURL,
		TeamName:  teamName,
		Status:    ProjectPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, repo_url, team_name, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.RepoURL, p.TeamName, p.Status, now.Unix(), now.Unix(),
	)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}

	return p, nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanProject(s.db.QueryRowContext(ctx, projectColumns+` WHERE id = ?`, id))
}

// GetProjectByURL fetches a project by repo URL.
func (s *Store) GetProjectByURL(ctx context.Context, repoURL string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanProject(s.db.QueryRowContext(ctx, projectColumns+` WHERE repo_url = ?`, repoURL))
}

const projectColumns = `SELECT id, repo_url, team_name, status, total_score,
	originality_score, quality_score, security_score, effort_score,
	implementation_score, engineering_score, organization_score, documentation_score,
	total_commits, verdict, description, positive_feedback, constructive_feedback,
	analyzed_at, created_at, updated_at
	FROM projects`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanProject(row rowScanner) (Project, error) {
	var (
		p                              Project
		analyzedAt, createdAt, updated int64
	)

	err := row.Scan(&p.ID, &p.RepoURL, &p.TeamName, &p.Status, &p.TotalScore,
		&p.OriginalityScore, &p.QualityScore, &p.SecurityScore, &p.EffortScore,
		&p.ImplementationScore, &p.EngineeringScore, &p.OrganizationScore, &p.DocumentationScore,
		&p.TotalCommits, &p.Verdict, &p.Description, &p.PositiveFeedback, &p.ConstructiveFeedback,
		&analyzedAt, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}

	if err != nil {
		return Project{}, fmt.Errorf("scan project: %w", err)
	}

	if analyzedAt > 0 {
		p.AnalyzedAt = time.Unix(analyzedAt, 0).UTC()
	}

	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()

	return p, nil
}

// SetProjectStatus transitions a project.
func (s *Store) SetProjectStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}

	return requireRow(res)
}

// DeleteProject removes a project; child rows cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	return requireRow(res)
}

// CreateJob inserts a queued job for the project.
func (s *Store) CreateJob(ctx context.Context, projectID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	j := Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, project_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		j.ID, j.ProjectID, j.Status, now.Unix(), now.Unix(),
	)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}

	return j, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		j                  Job
		createdAt, updated int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, status, stage, progress, error, created_at, updated_at
		 FROM jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.ProjectID, &j.Status, &j.Stage, &j.Progress, &j.Error, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}

	if err != nil {
		return Job{}, fmt.Errorf("scan job: %w", err)
	}

	j.CreatedAt = time.Unix(createdAt, 0).UTC()
	j.UpdatedAt = time.Unix(updated, 0).UTC()

	return j, nil
}

// UpdateJobProgress records the current stage and percentage of a
// running job.
func (s *Store) UpdateJobProgress(ctx context.Context, id, stage string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = ?, progress = ?, updated_at = ? WHERE id = ?`,
		JobRunning, stage, progress, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}

	return requireRow(res)
}

// FinishJob moves a job into a terminal state.
func (s *Store) FinishJob(ctx context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?,
			progress = CASE WHEN ? = ? THEN 100 ELSE progress END,
			error = ?, updated_at = ? WHERE id = ?`,
		status, status, JobCompleted, errMsg, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	return requireRow(res)
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}
