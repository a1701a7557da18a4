package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden. Failed expectations fail t.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario, t.TempDir())
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Error(e)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, []byte(result.Text()))
	return nil
}

// GoldenPath returns where the transcript of the named scenario lives.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// UpdateGolden writes r's transcript as the golden file for name.
func UpdateGolden(dir, name string, r *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(GoldenPath(dir, name), []byte(r.Text()), 0o644)
}

// CompareGolden reports whether r's transcript matches the golden file for
// name. The returned diff is empty on a match.
func CompareGolden(dir, name string, r *Result) (bool, string, error) {
	want, err := os.ReadFile(GoldenPath(dir, name))
	if err != nil {
		return false, "", fmt.Errorf("failed to read golden file: %w", err)
	}
	got := r.Text()
	if string(want) == got {
		return true, "", nil
	}
	return false, firstDifference(string(want), got), nil
}

func firstDifference(want, got string) string {
	w := strings.Split(want, "\n")
	g := strings.Split(got, "\n")
	for i := 0; i < len(w) || i < len(g); i++ {
		var wl, gl string
		if i < len(w) {
			wl = w[i]
		}
		if i < len(g) {
			gl = g[i]
		}
		if wl != gl {
			return fmt.Sprintf("line %d: want %q, got %q", i+1, wl, gl)
		}
	}
	return ""
}
