package clones_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/repograde/internal/analyzers/clones"
	"github.com/Sumatoshi-tech/repograde/internal/analyzers/scan"
)

const pythonFib = `
def fibonacci(limit):
    values = [0, 1]
    while len(values) < limit:
        values.append(values[-1] + values[-2])
    return values

def main():
    print(fibonacci(20))
`

const pythonFibRenamed = `
def fibonacci(count):
    items = [0, 1]
    while len(items) < count:
        items.append(items[-1] + items[-2])
    return items

def main():
    print(fibonacci(20))
`

const pythonUnrelated = `
import json

def load_config(path):
    with open(path) as handle:
        return json.load(handle)

class Server:
    def __init__(self, host, port):
        self.host = host
        self.port = port
`

const rustSum = `
fn main() {
    let values = vec![1, 2, 3, 4, 5];
    let total: i32 = values.iter().sum();
    println!("total: {}", total);
}
`

func writeSource(t *testing.T, root, rel, body string) scan.File {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return scan.File{Path: path, Rel: rel, Size: int64(len(body))}
}

func TestDetectIdenticalFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	files := []scan.File{
		writeSource(t, root, "a.py", pythonFib),
		writeSource(t, root, "b.py", pythonFib),
	}

	res, err := clones.Detect(context.Background(), files, 0)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	assert.InEpsilon(t, 1.0, res.Max, 1e-9, "identical files must score 1.0")
	assert.Equal(t, "b.py", matchFor(res, "a.py").BestMatch)
}

func TestDetectRenamedClone(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	files := []scan.File{
		writeSource(t, root, "orig.py", pythonFib),
		writeSource(t, root, "copy.py", pythonFibRenamed),
		writeSource(t, root, "other.py", pythonUnrelated),
	}

	res, err := clones.Detect(context.Background(), files, 0)
	require.NoError(t, err)

	match := matchFor(res, "orig.py")
	assert.Equal(t, "copy.py", match.BestMatch)
	// Renaming identifiers defeats token fingerprints but not structure.
	assert.Greater(t, match.ASTSimilarity, 0.9)
	assert.Greater(t, match.Score, 0.5)
}

func TestDetectStructuralWhitelist(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	files := []scan.File{
		writeSource(t, root, "a.rs", rustSum),
		writeSource(t, root, "b.rs", rustSum),
	}

	res, err := clones.Detect(context.Background(), files, 0)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	match := matchFor(res, "a.rs")
	assert.Zero(t, match.ASTSimilarity, "rust is outside the structural whitelist")
	assert.InEpsilon(t, match.TokenSimilarity, match.Score, 1e-9)
}

func TestDetectRespectsFileCap(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	files := []scan.File{
		writeSource(t, root, "a.py", pythonFib),
		writeSource(t, root, "b.py", pythonFibRenamed),
		writeSource(t, root, "c.py", pythonUnrelated),
	}

	res, err := clones.Detect(context.Background(), files, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Compared)
}

func TestDetectDropsTinyFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	files := []scan.File{
		writeSource(t, root, "a.py", pythonFib),
		writeSource(t, root, "b.py", pythonFib),
		writeSource(t, root, "tiny.py", "x = 1\n"),
	}

	res, err := clones.Detect(context.Background(), files, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Compared)
	assert.Equal(t, clones.FileMatch{}, matchFor(res, "tiny.py"))
}

func TestASTSimilarityBounds(t *testing.T) {
	t.Parallel()

	a := clones.NodeTypes(context.Background(), "Python", []byte(pythonFib))
	b := clones.NodeTypes(context.Background(), "Python", []byte(pythonFib))
	require.NotEmpty(t, a)

	assert.InEpsilon(t, 1.0, clones.ASTSimilarity(a, b), 1e-9)
	assert.Zero(t, clones.ASTSimilarity(nil, a))
}

func matchFor(res clones.Result, path string) clones.FileMatch {
	for _, m := range res.Files {
		if m.Path == path {
			return m
		}
	}

	return clones.FileMatch{}
}
