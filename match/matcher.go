// Package match turns a face embedding into a labeled, confidence-scored
// identity decision against the loaded face bank.
package match

import (
	"math"

	"github.com/Siri-Mahalaxmi/Aarani/facebank"
	"github.com/Siri-Mahalaxmi/Aarani/models"
)

// UnknownLabel is the sentinel reported when no enrolled identity clears the
// confidence threshold.
const UnknownLabel = "Unknown"

// DefaultConfidenceThreshold is the minimum confidence for accepting the
// nearest enrolled identity.
const DefaultConfidenceThreshold = 0.4

// Matcher is a stateless decision function over an immutable bank; one
// instance is shared by all workers.
type Matcher struct {
	bank      *facebank.Bank
	threshold float32
}

func NewMatcher(bank *facebank.Bank, threshold float32) *Matcher {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Matcher{bank: bank, threshold: threshold}
}

// Match normalizes the embedding, finds its nearest enrolled vector and
// converts the squared L2 distance to a confidence score (1 - distance,
// which is monotone in cosine similarity over unit vectors). Below the
// threshold the label is forced to UnknownLabel but the confidence is still
// reported so callers can audit near-misses. An empty bank matches as
// unknown with confidence 0; a wrong-dimension embedding is an error for
// this face only.
func (m *Matcher) Match(embedding []float32) (models.Match, error) {
	query := make([]float32, len(embedding))
	copy(query, embedding)
	facebank.Normalize(query)

	distance, slot, err := m.bank.Index().Search(query)
	if err != nil {
		return models.Match{}, err
	}
	if slot < 0 {
		return models.Match{Name: UnknownLabel, Confidence: 0}, nil
	}

	confidence := roundConfidence(1 - distance)
	name := m.bank.Resolve(slot)
	if confidence < m.threshold || name == "" {
		name = UnknownLabel
	}
	return models.Match{Name: name, Confidence: confidence}, nil
}

// roundConfidence trims the score to three decimals for the wire, matching
// what clients display.
func roundConfidence(c float32) float32 {
	return float32(math.Round(float64(c)*1000) / 1000)
}
