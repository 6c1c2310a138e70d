package server

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Sumatoshi-tech/repograde/internal/cache"
	"github.com/Sumatoshi-tech/repograde/internal/gitlib"
	"github.com/Sumatoshi-tech/repograde/internal/jobs"
	"github.com/Sumatoshi-tech/repograde/internal/report"
	"github.com/Sumatoshi-tech/repograde/internal/store"
)

// analyzeRequest is the submission body.
type analyzeRequest struct {
	RepoURL  string `json:"repo_url"`
	TeamName string `json:"team_name"`
}

// analyzeResponse acknowledges an accepted submission.
type analyzeResponse struct {
	JobID     string `json:"job_id"`
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
}

func (s *Server) handleAnalyzeRepo(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	project, job, err := s.jobs.Submit(r.Context(), req.RepoURL, req.TeamName)

	switch {
	case errors.Is(err, gitlib.ErrInvalidRepoURL):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusAccepted, analyzeResponse{
			JobID:     job.ID,
			ProjectID: project.ID,
			Status:    job.Status,
		})
	}
}

// batchRow is the outcome of one CSV row.
type batchRow struct {
	Row      int    `json:"row"`
	TeamName string `json:"team_name"`
	RepoURL  string `json:"repo_url"`
	JobID    string `json:"job_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleBatchUpload accepts a CSV with a `teamName,repoUrl` header,
// either as a multipart "file" field or as the raw request body, and
// submits every row.
func (s *Server) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	body, err := batchBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	header, headerErr := reader.Read()
	if headerErr != nil {
		s.writeError(w, http.StatusBadRequest, "empty CSV")

		return
	}

	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "teamName") ||
		!strings.EqualFold(strings.TrimSpace(header[1]), "repoUrl") {
		s.writeError(w, http.StatusBadRequest, "CSV header must be teamName,repoUrl")

		return
	}

	var results []batchRow

	for row := 1; ; row++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			results = append(results, batchRow{Row: row, Error: readErr.Error()})

			continue
		}

		if len(record) < 2 {
			results = append(results, batchRow{Row: row, Error: "expected teamName,repoUrl"})

			continue
		}

		team := strings.TrimSpace(record[0])
		url := strings.TrimSpace(record[1])
		entry := batchRow{Row: row, TeamName: team, RepoURL: url}

		_, job, submitErr := s.jobs.Submit(r.Context(), url, team)
		if submitErr != nil {
			entry.Error = submitErr.Error()
		} else {
			entry.JobID = job.ID
		}

		results = append(results, entry)
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{"results": results})
}

func batchBody(r *http.Request) (io.Reader, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}

		return file, nil
	}

	return r.Body, nil
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("job_id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown job")

		return
	}

	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	s.writeJSON(w, http.StatusOK, job)
}

// analysisResult pairs the project row with the full report.
type analysisResult struct {
	Project store.Project  `json:"project"`
	Report  *report.Report `json:"report"`
}

func (s *Server) handleAnalysisResult(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("job_id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown job")

		return
	}

	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	if job.Status != store.JobCompleted {
		s.writeError(w, http.StatusTooEarly, "analysis not finished")

		return
	}

	project, projectErr := s.store.GetProject(r.Context(), job.ProjectID)
	if projectErr != nil {
		s.writeError(w, http.StatusInternalServerError, projectErr.Error())

		return
	}

	rep, repErr := s.store.GetResult(r.Context(), job.ProjectID)
	if repErr != nil && !errors.Is(repErr, store.ErrNotFound) {
		s.writeError(w, http.StatusInternalServerError, repErr.Error())

		return
	}

	s.writeJSON(w, http.StatusOK, analysisResult{Project: project, Report: rep})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		Status: q.Get("status"),
		Tech:   q.Get("tech"),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}

	key := cache.NamespaceProjects + r.URL.RawQuery

	s.cached(w, key, s.listTTL, func() (any, error) {
		projects, err := s.store.ListProjects(r.Context(), filter)
		if err != nil {
			return nil, err
		}

		if projects == nil {
			projects = []store.Project{}
		}

		return map[string]any{"projects": projects}, nil
	})
}

// projectDetail is the full stored view of one project.
type projectDetail struct {
	Project store.Project      `json:"project"`
	Tech    []store.TechEntry  `json:"tech_stack"`
	Issues  []store.Issue      `json:"issues"`
	Members []store.TeamMember `json:"team_members"`
	Report  *report.Report     `json:"report,omitempty"`
}

func (s *Server) handleProjectDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	project, err := s.store.GetProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown project")

		return
	}

	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	s.cached(w, cache.NamespaceDetail+id, s.detailTTL, func() (any, error) {
		detail := projectDetail{Project: project}

		if detail.Tech, err = s.store.ProjectTech(r.Context(), id); err != nil {
			return nil, err
		}

		if detail.Issues, err = s.store.ProjectIssues(r.Context(), id); err != nil {
			return nil, err
		}

		if detail.Members, err = s.store.ProjectMembers(r.Context(), id); err != nil {
			return nil, err
		}

		rep, repErr := s.store.GetResult(r.Context(), id)
		if repErr != nil && !errors.Is(repErr, store.ErrNotFound) {
			return nil, repErr
		}

		detail.Report = rep

		return detail, nil
	})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := s.store.DeleteProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown project")

		return
	}

	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	if s.cache != nil {
		s.cache.Delete(cache.NamespaceDetail + id)
		s.cache.InvalidatePrefix(cache.NamespaceProjects)
		s.cache.InvalidatePrefix(cache.NamespaceLeaderboard)
		s.cache.InvalidatePrefix(cache.NamespaceStats)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	// The cache key carries the resolved column so every sort order is
	// cached independently.
	sortKey := r.URL.Query().Get("sort")
	key := cache.NamespaceLeaderboard + "full:" + store.LeaderboardSortColumn(sortKey)

	s.cached(w, key, s.listTTL, func() (any, error) {
		board, err := s.store.Leaderboard(r.Context(), 0, sortKey)
		if err != nil {
			return nil, err
		}

		if board == nil {
			board = []store.Project{}
		}

		return map[string]any{"leaderboard": board}, nil
	})
}

// chartData feeds a bar chart: one label and score per project.
type chartData struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

func (s *Server) handleLeaderboardChart(w http.ResponseWriter, r *http.Request) {
	s.cached(w, cache.NamespaceLeaderboard+"chart", s.chartTTL, func() (any, error) {
		board, err := s.store.Leaderboard(r.Context(), chartSize, "")
		if err != nil {
			return nil, err
		}

		data := chartData{Labels: []string{}, Scores: []float64{}}

		for _, p := range board {
			label := p.TeamName
			if label == "" {
				label = p.RepoURL
			}

			data.Labels = append(data.Labels, label)
			data.Scores = append(data.Scores, p.TotalScore)
		}

		return data, nil
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.cached(w, cache.NamespaceStats+"global", s.listTTL, func() (any, error) {
		return s.store.GetStats(r.Context())
	})
}

func (s *Server) handleTechStacks(w http.ResponseWriter, r *http.Request) {
	s.cached(w, cache.NamespaceProjects+"tech-stacks", s.listTTL, func() (any, error) {
		counts, err := s.store.TechStacks(r.Context())
		if err != nil {
			return nil, err
		}

		if counts == nil {
			counts = []store.TechCount{}
		}

		return map[string]any{"tech_stacks": counts}, nil
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}

	return nil
}
