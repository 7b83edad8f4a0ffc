// Package testutil provides shared test infrastructure for orderflow-sim.
// It holds fixture writers and assertion helpers used across the sim/,
// sim/workload/, sim/session/ and cmd/ test packages. It must not import sim.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertPercent fails the test when v is outside [0,100].
func AssertPercent(t *testing.T, name string, v float64) {
	t.Helper()
	if math.IsNaN(v) || v < 0 || v > 100 {
		t.Errorf("%s: got %v, want value in [0,100]", name, v)
	}
}

// WriteTempYAML writes content to a file named name inside a fresh temp dir
// and returns its path.
func WriteTempYAML(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// MustJSON marshals v and fails the test on error.
func MustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %T: %v", v, err)
	}
	return data
}

// Fingerprint returns the hex SHA-256 of v's JSON encoding.
func Fingerprint(t *testing.T, v any) string {
	t.Helper()
	sum := sha256.Sum256(MustJSON(t, v))
	return hex.EncodeToString(sum[:])
}
