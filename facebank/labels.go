package facebank

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// LoadLabels reads the label map artifact. The enrollment tooling has
// historically written it in two shapes: a JSON array of names in slot
// order, or a JSON object keyed by decimal slot numbers. Both canonicalize
// to a dense slice indexed by slot; a gap or duplicate slot is a load error.
func LoadLabels(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open label map: %w", err)
	}
	return ParseLabels(raw)
}

// ParseLabels canonicalizes either label-map shape into a slot-ordered slice.
func ParseLabels(raw []byte) ([]string, error) {
	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList, nil
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("label map is neither a JSON array nor an object: %w", err)
	}

	labels := make([]string, len(asMap))
	seen := make([]bool, len(asMap))
	for key, name := range asMap {
		slot, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("label map key %q is not a slot number", key)
		}
		if slot < 0 || slot >= len(labels) {
			return nil, fmt.Errorf("label map slot %d out of range for %d entries", slot, len(labels))
		}
		if seen[slot] {
			return nil, fmt.Errorf("label map slot %d appears twice", slot)
		}
		seen[slot] = true
		labels[slot] = name
	}
	return labels, nil
}
