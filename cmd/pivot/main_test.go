package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI against dir and returns what it printed.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	// Keep the CLI on the project's sqlite store.
	t.Setenv("PIVOT_POSTGRES_DSN", "")
	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"-C", dir}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := execute(t, dir, args...)
	require.NoError(t, err, "pivot %s", strings.Join(args, " "))
	return out
}

func setupStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustExecute(t, dir, "init")
	mustExecute(t, dir, "pivots", "add", "enrollments", "--left", "students", "--right", "courses")
	for _, id := range []string{"A1", "A2"} {
		mustExecute(t, dir, "entities", "add", "students", id, "--name", "Student "+id)
	}
	for _, id := range []string{"B101", "B102", "B103"} {
		mustExecute(t, dir, "entities", "add", "courses", id, "--name", "Course "+id)
	}
	return dir
}

func TestInit_CreatesFiles(t *testing.T) {
	dir := t.TempDir()

	out := mustExecute(t, dir, "init")

	assert.Contains(t, out, "Initialized sqlite store")
	assert.FileExists(t, filepath.Join(dir, ".pivot", "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, ".pivot", "pivots.yaml"))
}

func TestPivotsAdd_WritesPivotsFile(t *testing.T) {
	dir := setupStore(t)

	data, err := os.ReadFile(filepath.Join(dir, ".pivot", "pivots.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "enrollments")

	out := mustExecute(t, dir, "pivots", "list")
	assert.Contains(t, out, "enrollments")
	assert.Contains(t, out, "students")
	assert.Contains(t, out, "cascade")
}

func TestPivotsAdd_Duplicate(t *testing.T) {
	dir := setupStore(t)

	_, err := execute(t, dir, "pivots", "add", "enrollments", "--left", "students", "--right", "courses")
	assert.Error(t, err)
}

func TestLinkAndLinks(t *testing.T) {
	dir := setupStore(t)

	out := mustExecute(t, dir, "link", "enrollments", "A1", "B101", "-m", "grade=90", "-m", "term=fall")
	assert.Contains(t, out, "Linked A1 -> B101")

	out = mustExecute(t, dir, "link", "enrollments", "A1", "B101", "-m", "grade=95")
	assert.Contains(t, out, "Updated A1 -> B101")

	out = mustExecute(t, dir, "links", "enrollments", "--left", "A1", "--json")
	var res struct {
		Associations []struct {
			RightID  string         `json:"right_id"`
			Metadata map[string]any `json:"metadata"`
		} `json:"associations"`
		Total       int    `json:"total"`
		Fingerprint string `json:"fingerprint"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Associations, 1)
	assert.Equal(t, "B101", res.Associations[0].RightID)
	assert.Equal(t, float64(95), res.Associations[0].Metadata["grade"])
	assert.NotEmpty(t, res.Fingerprint)
}

func TestLink_MissingEntity(t *testing.T) {
	dir := setupStore(t)

	_, err := execute(t, dir, "link", "enrollments", "A1", "B999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "B999")
}

func TestUnlink(t *testing.T) {
	dir := setupStore(t)
	mustExecute(t, dir, "link", "enrollments", "A1", "B101")

	out := mustExecute(t, dir, "unlink", "enrollments", "A1", "B101")
	assert.Contains(t, out, "Unlinked")

	out = mustExecute(t, dir, "unlink", "enrollments", "A1", "B101")
	assert.Contains(t, out, "Not linked")
}

func TestSync(t *testing.T) {
	dir := setupStore(t)
	mustExecute(t, dir, "link", "enrollments", "A1", "B101")
	mustExecute(t, dir, "link", "enrollments", "A1", "B102")

	out := mustExecute(t, dir, "sync", "enrollments", "A1", "B102", "B103")
	assert.Contains(t, out, "1 added, 1 removed")
	assert.Contains(t, out, "+ B103")
	assert.Contains(t, out, "- B101")

	out = mustExecute(t, dir, "sync", "enrollments", "A1", "B103", "B102")
	assert.Contains(t, out, "already in sync")
}

func TestSync_AtomicOnMissingEntity(t *testing.T) {
	dir := setupStore(t)
	mustExecute(t, dir, "link", "enrollments", "A1", "B101")

	_, err := execute(t, dir, "sync", "enrollments", "A1", "B102", "B999")
	require.Error(t, err)

	out := mustExecute(t, dir, "links", "enrollments", "--left", "A1")
	assert.Contains(t, out, "A1 -> B101")
	assert.NotContains(t, out, "B102")
}

func TestSync_StaleFingerprint(t *testing.T) {
	dir := setupStore(t)

	_, err := execute(t, dir, "sync", "enrollments", "A1", "B101", "--if-match", "0000000000000000")
	require.Error(t, err)
}

func TestEntitiesDelete_Cascades(t *testing.T) {
	dir := setupStore(t)
	mustExecute(t, dir, "link", "enrollments", "A1", "B101")
	mustExecute(t, dir, "link", "enrollments", "A2", "B101")

	out := mustExecute(t, dir, "entities", "delete", "courses", "B101")
	assert.Contains(t, out, "enrollments: 2 associations removed")

	out = mustExecute(t, dir, "links", "enrollments")
	assert.Contains(t, out, "No associations found.")
}

func TestHistory(t *testing.T) {
	dir := setupStore(t)
	mustExecute(t, dir, "link", "enrollments", "A1", "B101")
	mustExecute(t, dir, "sync", "enrollments", "A1", "B102")

	out := mustExecute(t, dir, "history", "enrollments", "A1")
	assert.Contains(t, out, "link")
	assert.Contains(t, out, "synchronize")

	_, err := execute(t, dir, "history")
	assert.Error(t, err)
}

func TestImportExport_RoundTrip(t *testing.T) {
	dir := setupStore(t)
	csvFile := filepath.Join(dir, "links.csv")
	require.NoError(t, os.WriteFile(csvFile, []byte("left,right,grade\nA1,B101,90\nA2,B102,85\nA2,B999,70\n"), 0600))

	out := mustExecute(t, dir, "import", csvFile, "--pivot", "enrollments")
	assert.Contains(t, out, "Imported: 2 links")
	assert.Contains(t, out, "B999")

	exportFile := filepath.Join(dir, "out.csv")
	mustExecute(t, dir, "export", "enrollments", "-f", "csv", "-o", exportFile)
	data, err := os.ReadFile(exportFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "A1,B101")
	assert.Contains(t, string(data), "A2,B102")
}

func TestImport_DryRun(t *testing.T) {
	dir := setupStore(t)
	csvFile := filepath.Join(dir, "links.csv")
	require.NoError(t, os.WriteFile(csvFile, []byte("left,right\nA1,B101\n"), 0600))

	out := mustExecute(t, dir, "import", csvFile, "--pivot", "enrollments", "--dry-run")
	assert.Contains(t, out, "Dry run: 1 links would be imported")

	out = mustExecute(t, dir, "links", "enrollments")
	assert.Contains(t, out, "No associations found.")
}

func TestExport_InvalidFormat(t *testing.T) {
	dir := setupStore(t)

	_, err := execute(t, dir, "export", "enrollments", "-f", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestPivotsRemove(t *testing.T) {
	dir := setupStore(t)
	mustExecute(t, dir, "link", "enrollments", "A1", "B101")

	out := mustExecute(t, dir, "pivots", "remove", "enrollments")
	assert.Contains(t, out, "1 associations removed")

	out = mustExecute(t, dir, "pivots", "list")
	assert.Contains(t, out, "No pivots defined.")
}
