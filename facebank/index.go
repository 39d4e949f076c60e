// Package facebank loads and queries the enrolled-identity artifacts: a flat
// vector index of face embeddings and the label map pairing each vector slot
// with an enrolled name. Both are built offline by the enrollment pipeline
// and are read-only for the lifetime of the process.
package facebank

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	ErrMismatchDimension = errors.New("embedding with mismatched dimension")
	ErrSlotMismatch      = errors.New("label count does not match vector count")
)

// FlatIndex is an exhaustive nearest-neighbor index over float32 vectors.
// Search returns squared L2 distance, which over unit-normalized vectors is
// monotone in cosine similarity. The index is immutable after load and safe
// for concurrent readers.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

func NewFlatIndex(dim int, vectors ...[]float32) (*FlatIndex, error) {
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrMismatchDimension, len(v), dim)
		}
	}
	return &FlatIndex{dim: dim, vectors: vectors}, nil
}

// LoadIndex reads a vector artifact: little-endian uint32 count, uint32
// dimension, then count*dim float32 values in slot order.
func LoadIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	defer f.Close()
	return ReadIndex(f)
}

// ReadIndex decodes the vector artifact from r.
func ReadIndex(r io.Reader) (*FlatIndex, error) {
	var header struct {
		Count uint32
		Dim   uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read vector index header: %w", err)
	}
	if header.Dim == 0 && header.Count > 0 {
		return nil, fmt.Errorf("vector index header: zero dimension with %d vectors", header.Count)
	}

	vectors := make([][]float32, header.Count)
	for i := range vectors {
		vec := make([]float32, header.Dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return &FlatIndex{dim: int(header.Dim), vectors: vectors}, nil
}

// WriteIndex encodes vectors in the artifact format. Used by tooling and
// tests; the serving path only reads.
func WriteIndex(w io.Writer, ix *FlatIndex) error {
	header := struct {
		Count uint32
		Dim   uint32
	}{uint32(len(ix.vectors)), uint32(ix.dim)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, vec := range ix.vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	return nil
}

func (ix *FlatIndex) Len() int { return len(ix.vectors) }
func (ix *FlatIndex) Dim() int { return ix.dim }

// Search returns the squared L2 distance and slot of the nearest vector, or
// slot -1 when the index is empty.
func (ix *FlatIndex) Search(query []float32) (distance float32, slot int, err error) {
	if len(ix.vectors) == 0 {
		return 0, -1, nil
	}
	if len(query) != ix.dim {
		return 0, -1, fmt.Errorf("%w: got %d, want %d", ErrMismatchDimension, len(query), ix.dim)
	}

	best := float32(math.MaxFloat32)
	bestSlot := -1
	for i, vec := range ix.vectors {
		var sum float32
		for j, q := range query {
			d := q - vec[j]
			sum += d * d
		}
		if sum < best {
			best = sum
			bestSlot = i
		}
	}
	return best, bestSlot, nil
}

// Normalize scales v to unit L2 length in place. A zero vector is left
// untouched.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
