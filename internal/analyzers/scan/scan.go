// Package scan provides the shared working-tree walk used by the detectors:
// skip rules for generated and vendored trees, source file collection with
// size caps, and best-effort file reads.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// skipDirs are directory names never descended into during analysis.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"__pycache__":  {},
	"venv":         {},
	".venv":        {},
	"dist":         {},
	"build":        {},
	"vendor":       {},
	".idea":        {},
	".vscode":      {},
}

// sourceExtensions maps analyzable source file extensions to a language name.
var sourceExtensions = map[string]string{
	".py":   "Python",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".java": "Java",
	".c":    "C",
	".h":    "C",
	".cpp":  "C++",
	".cc":   "C++",
	".go":   "Go",
	".rs":   "Rust",
	".rb":   "Ruby",
	".php":  "PHP",
	".cs":   "C#",
	".kt":   "Kotlin",
	".swift": "Swift",
}

// File is one regular file discovered under the repository root.
type File struct {
	// Path is the absolute path on disk.
	Path string
	// Rel is the path relative to the repository root, slash separated.
	Rel string
	// Size is the file size in bytes.
	Size int64
}

// Language returns the source language for the file extension, or "" when
// the extension is not a recognized source type.
func (f File) Language() string {
	return sourceExtensions[strings.ToLower(filepath.Ext(f.Path))]
}

// SkipDir reports whether a directory name is excluded from analysis walks.
func SkipDir(name string) bool {
	_, ok := skipDirs[name]

	return ok
}

// Walk traverses root depth-first, skipping excluded directories, and calls
// fn for every regular file. Cancellation is checked per entry.
func Walk(ctx context.Context, root string, fn func(File) error) error {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		return fn(File{Path: path, Rel: filepath.ToSlash(rel), Size: info.Size()})
	})
	if walkErr != nil {
		return fmt.Errorf("walk %s: %w", root, walkErr)
	}

	return nil
}

// SourceFiles collects files with a recognized source extension, skipping
// files larger than maxBytes. maxBytes <= 0 disables the size cap.
func SourceFiles(ctx context.Context, root string, maxBytes int64) ([]File, error) {
	var files []File

	err := Walk(ctx, root, func(f File) error {
		if f.Language() == "" {
			return nil
		}

		if maxBytes > 0 && f.Size > maxBytes {
			return nil
		}

		files = append(files, f)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ReadFile reads a file, tolerating non-UTF-8 content; bytes are returned
// as-is and callers treat them as best-effort text.
func ReadFile(f File) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Rel, err)
	}

	return data, nil
}
