package ci_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testDatabaseVariable = "APP_TEST_DATABASE_URL"

func readProjectFile(t *testing.T, parts ...string) string {
	t.Helper()
	fullPath := filepath.Join(append([]string{"..", ".."}, parts...)...)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		t.Fatalf("read %s: %v", fullPath, err)
	}
	return string(data)
}

func TestWorkflowRunsVetAndTests(t *testing.T) {
	workflow := readProjectFile(t, ".github", "workflows", "go-tests.yml")
	for _, snippet := range []string{"go-version-file: go.mod", "go vet ./...", "go test ./..."} {
		if !strings.Contains(workflow, snippet) {
			t.Fatalf("workflow missing %q", snippet)
		}
	}
}

// The pgx user store integration test skips silently without a database, so CI
// must provide one under the exact variable name the test reads.
func TestWorkflowProvidesPostgresForUserStore(t *testing.T) {
	workflow := readProjectFile(t, ".github", "workflows", "go-tests.yml")
	storeTest := readProjectFile(t, "internal", "authkitpg", "user_store_pg_test.go")

	if !strings.Contains(storeTest, `os.Getenv("`+testDatabaseVariable+`")`) {
		t.Fatalf("user store test no longer reads %s", testDatabaseVariable)
	}
	if !strings.Contains(workflow, "image: postgres:") {
		t.Fatalf("workflow missing postgres service")
	}
	var databaseURL string
	for _, line := range strings.Split(workflow, "\n") {
		trimmed := strings.TrimSpace(line)
		if value, found := strings.CutPrefix(trimmed, testDatabaseVariable+":"); found {
			databaseURL = strings.TrimSpace(value)
		}
	}
	if !strings.HasPrefix(databaseURL, "postgres://") {
		t.Fatalf("expected %s to hold a postgres url, got %q", testDatabaseVariable, databaseURL)
	}
}
