package facebank

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLabelsList(t *testing.T) {
	labels, err := ParseLabels([]byte(`["alice", "bob", "alice"]`))
	if err != nil {
		t.Fatalf("ParseLabels: %v", err)
	}
	want := []string{"alice", "bob", "alice"}
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d", len(labels), len(want))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestParseLabelsMap(t *testing.T) {
	labels, err := ParseLabels([]byte(`{"1": "bob", "0": "alice"}`))
	if err != nil {
		t.Fatalf("ParseLabels: %v", err)
	}
	if len(labels) != 2 || labels[0] != "alice" || labels[1] != "bob" {
		t.Errorf("canonicalized labels = %v, want [alice bob]", labels)
	}
}

func TestParseLabelsBadShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `not json`},
		{"non-numeric key", `{"alice": "bob"}`},
		{"gap leaves out-of-range slot", `{"0": "alice", "2": "carol"}`},
		{"number scalar", `42`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseLabels([]byte(tc.raw)); err == nil {
				t.Errorf("ParseLabels(%q) succeeded, want error", tc.raw)
			}
		})
	}
}

func TestIndexRoundTrip(t *testing.T) {
	ix, err := NewFlatIndex(3,
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
	)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteIndex(&buf, ix); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	loaded, err := ReadIndex(&buf)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if loaded.Len() != 2 || loaded.Dim() != 3 {
		t.Fatalf("loaded index len=%d dim=%d, want 2/3", loaded.Len(), loaded.Dim())
	}

	dist, slot, err := loaded.Search([]float32{0, 0.9, 0.1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if slot != 1 {
		t.Errorf("nearest slot = %d, want 1", slot)
	}
	if dist <= 0 {
		t.Errorf("distance = %v, want > 0", dist)
	}
}

func TestIndexTruncatedArtifact(t *testing.T) {
	ix, _ := NewFlatIndex(4, []float32{1, 2, 3, 4})
	var buf bytes.Buffer
	if err := WriteIndex(&buf, ix); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-2]
	if _, err := ReadIndex(bytes.NewReader(truncated)); err == nil {
		t.Error("ReadIndex of truncated artifact succeeded, want error")
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	ix, _ := NewFlatIndex(8)
	dist, slot, err := ix.Search([]float32{1, 2, 3})
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if slot != -1 || dist != 0 {
		t.Errorf("empty index search = (%v, %d), want (0, -1)", dist, slot)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix, _ := NewFlatIndex(3, []float32{1, 0, 0})
	if _, _, err := ix.Search([]float32{1, 0}); !errors.Is(err, ErrMismatchDimension) {
		t.Errorf("Search error = %v, want ErrMismatchDimension", err)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("normalized length^2 = %v, want 1", sum)
	}

	zero := []float32{0, 0, 0}
	Normalize(zero)
	for _, x := range zero {
		if x != 0 {
			t.Fatal("Normalize mutated a zero vector")
		}
	}
}

func TestBankSlotMismatch(t *testing.T) {
	ix, _ := NewFlatIndex(2, []float32{1, 0}, []float32{0, 1})
	if _, err := New(ix, []string{"alice"}); !errors.Is(err, ErrSlotMismatch) {
		t.Errorf("New error = %v, want ErrSlotMismatch", err)
	}
}

func TestBankResolve(t *testing.T) {
	ix, _ := NewFlatIndex(2, []float32{1, 0}, []float32{0, 1})
	bank, err := New(ix, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := bank.Resolve(1); got != "bob" {
		t.Errorf("Resolve(1) = %q, want bob", got)
	}
	if got := bank.Resolve(5); got != "" {
		t.Errorf("Resolve(5) = %q, want empty", got)
	}
	if got := bank.Resolve(-1); got != "" {
		t.Errorf("Resolve(-1) = %q, want empty", got)
	}
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()

	ix, _ := NewFlatIndex(2, []float32{1, 0})
	var buf bytes.Buffer
	if err := WriteIndex(&buf, ix); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	indexPath := filepath.Join(dir, "face_bank.index")
	if err := os.WriteFile(indexPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	labelsPath := filepath.Join(dir, "name_map.json")
	if err := os.WriteFile(labelsPath, []byte(`["alice"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	bank, err := Load(indexPath, labelsPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bank.Len() != 1 || bank.Resolve(0) != "alice" {
		t.Errorf("loaded bank wrong: len=%d label=%q", bank.Len(), bank.Resolve(0))
	}

	if _, err := Load(filepath.Join(dir, "missing.index"), labelsPath); err == nil {
		t.Error("Load with missing index succeeded, want error")
	}
}
