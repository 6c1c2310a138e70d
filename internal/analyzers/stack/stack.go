// Package stack detects the technology stack of a working tree: language
// shares from file contents plus framework, database and devops markers
// from canonical manifest files.
package stack

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
)

// Categories for detected technologies.
const (
	CategoryLanguage  = "language"
	CategoryFramework = "framework"
	CategoryDatabase  = "database"
	CategoryDevOps    = "devops"
)

// detectSampleSize is the number of leading bytes read per file for
// language classification. enry only needs a prefix.
const detectSampleSize = 8 * 1024

// minLanguageShare is the minimum byte share (percent) for a language to
// appear in the breakdown.
const minLanguageShare = 1.0

// Entry is one detected technology.
type Entry struct {
	Technology string `json:"technology"`
	Category   string `json:"category"`
}

// LanguageShare is a language with its byte share of the tree.
type LanguageShare struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percentage"`
}

// Result is the tech stack detection output.
type Result struct {
	PrimaryLanguage string          `json:"primary_language"`
	Languages       []LanguageShare `json:"languages"`
	Entries         []Entry         `json:"entries"`
}

// marker maps a manifest filename (lowercased base name) to technologies.
type marker struct {
	file     string
	tech     string
	category string
}

// fileMarkers are detected by presence of the named file anywhere in the tree.
var fileMarkers = []marker{
	{file: "dockerfile", tech: "Docker", category: CategoryDevOps},
	{file: "docker-compose.yml", tech: "Docker Compose", category: CategoryDevOps},
	{file: "docker-compose.yaml", tech: "Docker Compose", category: CategoryDevOps},
	{file: "manage.py", tech: "Django", category: CategoryFramework},
	{file: "next.config.js", tech: "Next.js", category: CategoryFramework},
	{file: "next.config.mjs", tech: "Next.js", category: CategoryFramework},
	{file: "tailwind.config.js", tech: "Tailwind", category: CategoryFramework},
	{file: "pom.xml", tech: "Maven", category: CategoryDevOps},
	{file: "go.mod", tech: "Go Modules", category: CategoryDevOps},
	{file: ".gitlab-ci.yml", tech: "GitLab CI", category: CategoryDevOps},
	{file: "jenkinsfile", tech: "Jenkins", category: CategoryDevOps},
	{file: "pubspec.yaml", tech: "Flutter", category: CategoryFramework},
}

// depMarkers are detected by substring match inside dependency manifests
// (package.json, requirements.txt, go.mod, docker-compose files).
var depMarkers = []marker{
	{file: "react", tech: "React", category: CategoryFramework},
	{file: "express", tech: "Express", category: CategoryFramework},
	{file: "vue", tech: "Vue", category: CategoryFramework},
	{file: "flask", tech: "Flask", category: CategoryFramework},
	{file: "django", tech: "Django", category: CategoryFramework},
	{file: "fastapi", tech: "FastAPI", category: CategoryFramework},
	{file: "spring", tech: "Spring", category: CategoryFramework},
	{file: "postgres", tech: "PostgreSQL", category: CategoryDatabase},
	{file: "mysql", tech: "MySQL", category: CategoryDatabase},
	{file: "mongodb", tech: "MongoDB", category: CategoryDatabase},
	{file: "mongoose", tech: "MongoDB", category: CategoryDatabase},
	{file: "redis", tech: "Redis", category: CategoryDatabase},
	{file: "sqlite", tech: "SQLite", category: CategoryDatabase},
	{file: "kubernetes", tech: "Kubernetes", category: CategoryDevOps},
}

// manifestFiles are the manifests whose contents feed depMarkers.
var manifestFiles = map[string]struct{}{
	"package.json":        {},
	"requirements.txt":    {},
	"go.mod":              {},
	"docker-compose.yml":  {},
	"docker-compose.yaml": {},
	"pyproject.toml":      {},
	"gemfile":             {},
}

// Detect classifies the working tree at root.
func Detect(ctx context.Context, root string) (Result, error) {
	byteShare := make(map[string]int64)
	seenFiles := make(map[string]struct{})

	var manifestBody strings.Builder

	ciWorkflow := false

	walkErr := scan.Walk(ctx, root, func(f scan.File) error {
		base := strings.ToLower(path.Base(f.Rel))
		seenFiles[base] = struct{}{}

		if strings.HasPrefix(f.Rel, ".github/workflows/") {
			ciWorkflow = true
		}

		if enry.IsVendor(f.Rel) {
			return nil
		}

		if _, ok := manifestFiles[base]; ok {
			data, readErr := scan.ReadFile(f)
			if readErr == nil {
				manifestBody.WriteString(strings.ToLower(string(data)))
				manifestBody.WriteByte('\n')
			}
		}

		// Only source extensions count toward the language breakdown;
		// enry refines the extension guess from content.
		if f.Language() == "" {
			return nil
		}

		sample, readErr := scan.ReadFile(f)
		if readErr != nil {
			return nil
		}

		if len(sample) > detectSampleSize {
			sample = sample[:detectSampleSize]
		}

		lang := enry.GetLanguage(path.Base(f.Rel), sample)
		if lang == "" {
			lang = f.Language()
		}

		byteShare[lang] += f.Size

		return nil
	})
	if walkErr != nil {
		return Result{}, walkErr
	}

	result := Result{
		Languages: languageShares(byteShare),
	}

	if len(result.Languages) > 0 {
		result.PrimaryLanguage = result.Languages[0].Name
	}

	result.Entries = collectEntries(result.Languages, seenFiles, manifestBody.String(), ciWorkflow)

	return result, nil
}

// languageShares converts byte counts to sorted percentage shares.
func languageShares(byteShare map[string]int64) []LanguageShare {
	var total int64
	for _, n := range byteShare {
		total += n
	}

	if total == 0 {
		return nil
	}

	shares := make([]LanguageShare, 0, len(byteShare))

	for name, n := range byteShare {
		pct := float64(n) / float64(total) * 100
		if pct < minLanguageShare {
			continue
		}

		shares = append(shares, LanguageShare{Name: name, Percent: pct})
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Percent != shares[j].Percent {
			return shares[i].Percent > shares[j].Percent
		}

		return shares[i].Name < shares[j].Name
	})

	return shares
}

// collectEntries assembles the deduplicated technology list.
func collectEntries(langs []LanguageShare, seen map[string]struct{}, manifests string, ciWorkflow bool) []Entry {
	var entries []Entry

	added := make(map[string]struct{})

	add := func(tech, category string) {
		if _, ok := added[tech]; ok {
			return
		}

		added[tech] = struct{}{}
		entries = append(entries, Entry{Technology: tech, Category: category})
	}

	for _, l := range langs {
		add(l.Name, CategoryLanguage)
	}

	for _, m := range fileMarkers {
		if _, ok := seen[m.file]; ok {
			add(m.tech, m.category)
		}
	}

	for _, m := range depMarkers {
		if strings.Contains(manifests, m.file) {
			add(m.tech, m.category)
		}
	}

	if ciWorkflow {
		add("GitHub Actions", CategoryDevOps)
	}

	return entries
}
