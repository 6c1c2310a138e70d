package judge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
)

// Summary sizing.
const (
	// DefaultSummaryLimit caps the whole summary.
	DefaultSummaryLimit = 40000
	// treeDepthLimit bounds the directory tree section.
	treeDepthLimit = 3
	// treeFilesPerFolder truncates long folder listings.
	treeFilesPerFolder = 15
	// configFileLimit caps each canonical config file.
	configFileLimit = 2000
	// sampleFileLimit caps each sampled source file.
	sampleFileLimit = 3000
	// sampleFileCount is how many of the largest source files are sampled.
	sampleFileCount = 10
)

// criticalFiles are read in full (up to configFileLimit) when present at
// the repository root.
var criticalFiles = []string{
	"README.md", "requirements.txt", "package.json", "Dockerfile", "schema.sql", ".env.example",
}

// BuildSummary compresses the working tree at root into the text context
// sent to the judge: a directory tree, the canonical config files, and
// the largest source files.
func BuildSummary(ctx context.Context, root string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}

	var files []scan.File

	walkErr := scan.Walk(ctx, root, func(f scan.File) error {
		files = append(files, f)

		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("summarize %s: %w", root, walkErr)
	}

	var b strings.Builder

	b.WriteString("=== DIRECTORY STRUCTURE ===\n")
	b.WriteString(renderTree(files))

	b.WriteString("\n=== CRITICAL CONFIGURATION ===\n")

	byRel := make(map[string]scan.File, len(files))
	for _, f := range files {
		byRel[f.Rel] = f
	}

	for _, name := range criticalFiles {
		f, ok := byRel[name]
		if !ok {
			continue
		}

		data, readErr := scan.ReadFile(f)
		if readErr != nil {
			continue
		}

		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", name, clip(string(data), configFileLimit))
	}

	b.WriteString("\n=== SOURCE CODE SAMPLES ===\n")

	samples := largestSources(files)

	for _, f := range samples {
		if b.Len() > limit {
			break
		}

		data, readErr := scan.ReadFile(f)
		if readErr != nil {
			continue
		}

		fmt.Fprintf(&b, "\n--- FILE: %s ---\n%s\n", f.Rel, clip(string(data), sampleFileLimit))
	}

	summary := b.String()
	if len(summary) > limit {
		summary = summary[:limit]
	}

	return summary, nil
}

// renderTree draws the directory tree to treeDepthLimit, truncating
// folders with many files.
func renderTree(files []scan.File) string {
	byDir := make(map[string][]string)

	for _, f := range files {
		parts := strings.Split(f.Rel, "/")
		if len(parts) > treeDepthLimit+1 {
			continue
		}

		dir := strings.Join(parts[:len(parts)-1], "/")
		byDir[dir] = append(byDir[dir], parts[len(parts)-1])
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}

	sort.Strings(dirs)

	var b strings.Builder

	for _, dir := range dirs {
		depth := 0
		label := "./"

		if dir != "" {
			depth = strings.Count(dir, "/") + 1
			label = dir + "/"
		}

		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "%s%s\n", indent, label)

		names := byDir[dir]
		sort.Strings(names)

		for i, name := range names {
			if i >= treeFilesPerFolder {
				fmt.Fprintf(&b, "%s  ... (%d more files)\n", indent, len(names)-treeFilesPerFolder)

				break
			}

			fmt.Fprintf(&b, "%s  %s\n", indent, name)
		}
	}

	return b.String()
}

// largestSources picks the biggest source files; main logic tends to
// live there.
func largestSources(files []scan.File) []scan.File {
	var sources []scan.File

	for _, f := range files {
		if f.Language() != "" {
			sources = append(sources, f)
		}
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Size > sources[j].Size })

	if len(sources) > sampleFileCount {
		sources = sources[:sampleFileCount]
	}

	return sources
}

// clip truncates s to n characters.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
