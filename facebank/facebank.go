package facebank

import "fmt"

// Bank pairs the vector index with its label map. Loaded once at startup and
// shared read-only by every worker.
type Bank struct {
	index  *FlatIndex
	labels []string
}

// Load reads both artifacts and enforces the pairing invariant: one label
// per vector slot. A mismatch means the enrollment pipeline wrote
// inconsistent artifacts and the process must refuse to start.
func Load(indexPath, labelsPath string) (*Bank, error) {
	index, err := LoadIndex(indexPath)
	if err != nil {
		return nil, err
	}
	labels, err := LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}
	return New(index, labels)
}

func New(index *FlatIndex, labels []string) (*Bank, error) {
	if index.Len() != len(labels) {
		return nil, fmt.Errorf("%w: %d labels, %d vectors", ErrSlotMismatch, len(labels), index.Len())
	}
	return &Bank{index: index, labels: labels}, nil
}

func (b *Bank) Index() *FlatIndex { return b.index }
func (b *Bank) Len() int          { return b.index.Len() }

// Resolve maps a slot to its enrolled name. Slots outside the label map
// resolve to the empty string.
func (b *Bank) Resolve(slot int) string {
	if slot < 0 || slot >= len(b.labels) {
		return ""
	}
	return b.labels[slot]
}
