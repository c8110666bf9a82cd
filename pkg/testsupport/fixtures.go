package testsupport

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-fitsync/entity"
)

// UpdateGoldenEnv, when set to a non-empty value, makes golden comparisons
// rewrite the golden file instead of failing.
const UpdateGoldenEnv = "FITSYNC_UPDATE_GOLDEN"

// volatileFields are generated by the store or the clock and differ from
// run to run, so golden files never carry them.
var volatileFields = []string{"id", "created_at", "updated_at", "completed_at"}

// Dir returns the testdata directory shipped with this package, so tests
// in any package can load the shared fixtures.
func Dir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "testdata"
	}
	return filepath.Join(filepath.Dir(file), "testdata")
}

// SeedPath is the path of the shared entity dataset.
func SeedPath() string {
	return filepath.Join(Dir(), "seed.json")
}

// FixturePath joins filename onto the calling package's testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath joins filename onto the calling package's testdata/golden directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}

// LoadFixture reads a fixture file or fails the test.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// MarshalGolden renders v the way golden files are stored: indented JSON
// with a trailing newline.
func MarshalGolden(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal golden JSON: %v", err)
	}
	return append(data, '\n')
}

// Redact converts records into plain JSON documents without their
// volatile fields, sorted by the given field when one is named.
func Redact(t *testing.T, records []entity.Entity, sortBy string) []map[string]any {
	t.Helper()

	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("failed to marshal %s record: %v", r.EntityType(), err)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("failed to decode %s record: %v", r.EntityType(), err)
		}
		for _, f := range volatileFields {
			delete(doc, f)
		}
		out = append(out, doc)
	}

	if sortBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i][sortBy].(string)
			b, _ := out[j][sortBy].(string)
			return a < b
		})
	}
	return out
}

// CompareWithGolden compares actual with the golden file at path. A
// missing golden file is written, as is any file when UpdateGoldenEnv is set.
func CompareWithGolden(t *testing.T, path string, actual []byte) {
	t.Helper()

	if os.Getenv(UpdateGoldenEnv) != "" {
		writeGolden(t, path, actual)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Logf("golden file %s does not exist, creating it", path)
			writeGolden(t, path, actual)
			return
		}
		t.Fatalf("failed to read golden file %s: %v", path, err)
	}

	if string(actual) != string(expected) {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, actual)
	}
}

// CompareJSONWithGolden marshals v with MarshalGolden and compares it.
func CompareJSONWithGolden(t *testing.T, path string, v any) {
	t.Helper()
	CompareWithGolden(t, path, MarshalGolden(t, v))
}

// CompareRecordsWithGolden redacts records and compares them as JSON.
func CompareRecordsWithGolden(t *testing.T, path string, records []entity.Entity, sortBy string) {
	t.Helper()
	CompareJSONWithGolden(t, path, Redact(t, records, sortBy))
}

func writeGolden(t *testing.T, path string, data []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}
