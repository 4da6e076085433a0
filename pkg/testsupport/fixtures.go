package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// UpdateGoldenEnv forces CompareWithGolden to rewrite golden files.
const UpdateGoldenEnv = "UPDATE_GOLDEN"

// LoadFixture reads a fixture file relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON unmarshals a JSON fixture into dest.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadFixtureYAML unmarshals a YAML fixture into dest.
func LoadFixtureYAML(t *testing.T, path string, dest any) {
	t.Helper()

	if err := yaml.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal YAML fixture from %s: %v", path, err)
	}
}

// WriteGolden writes data to a golden file, creating its directory.
func WriteGolden(t *testing.T, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareWithGolden compares actual with the golden file at path. A missing
// golden file, or UPDATE_GOLDEN=1, records actual as the new golden output.
func CompareWithGolden(t *testing.T, path string, actual []byte) {
	t.Helper()

	if os.Getenv(UpdateGoldenEnv) == "1" {
		WriteGolden(t, path, actual)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Logf("golden file %s does not exist, creating it", path)
			WriteGolden(t, path, actual)
			return
		}
		t.Fatalf("failed to read golden file %s: %v", path, err)
	}

	if string(actual) != string(expected) {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, actual)
	}
}

// FixturePath returns the path of a file in the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath returns the path of a file in the testdata/golden directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}
