package sqlaudit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLintRepositoryQueries(t *testing.T) {
	violations, err := Lint("../sqlinline")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestLintReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package q\n\nconst First = `--sql 0b8c1f1e-3a52-4c1b-9f3e-1c7d2a9b4e01\nSELECT 1`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst (\n\tSecond = `--sql 0b8c1f1e-3a52-4c1b-9f3e-1c7d2a9b4e01\nSELECT 2`\n\tBare = \"SELECT 3\"\n\tLabel = \"not a query\"\n)\n")
	writeGo(t, dir, "b_test.go", "package q\n\nconst Ignored = \"SELECT 4\"\n")

	violations, err := Lint(dir)
	require.NoError(t, err)
	require.Len(t, violations, 2)

	assert.Equal(t, "Second", violations[0].Name)
	assert.Contains(t, violations[0].Message, "already used by First")
	assert.Equal(t, "Bare", violations[1].Name)
	assert.Equal(t, 6, violations[1].Line)
}

func TestLintMissingPath(t *testing.T) {
	_, err := Lint(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
