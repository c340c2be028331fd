package model

import (
	"fmt"
	"math"
	"strings"
)

// SearchMode selects the pgvector distance metric used for similarity search.
type SearchMode int

const (
	// EuclideanDistance is the L2 distance, operator <->.
	EuclideanDistance SearchMode = iota + 1
	// CosineDistance is 1 - cosine similarity, operator <=>.
	CosineDistance
)

type searchModeDef struct {
	name     string
	operator string
	// maxDistance converts a similarity threshold in [0, 1] into a distance cutoff.
	maxDistance func(score float64) float64
	// score converts a distance back into a similarity in [0, 1].
	score func(distance float64) float64
}

var searchModes = map[SearchMode]searchModeDef{
	EuclideanDistance: {
		name:     "euclidean",
		operator: "<->",
		// Euclidean distance is unbounded, so there is no exact inverse. The
		// similarity is approximated as 1/(1+d); a zero threshold disables
		// the cutoff.
		maxDistance: func(score float64) float64 {
			if score == 0 {
				return math.Inf(1)
			}
			return (1.0 / score) - 1.0
		},
		score: func(distance float64) float64 {
			return 1.0 / (1.0 + distance)
		},
	},
	CosineDistance: {
		name:     "cosine",
		operator: "<=>",
		maxDistance: func(score float64) float64 {
			return 1.0 - score
		},
		score: func(distance float64) float64 {
			return 1.0 - distance
		},
	},
}

// ParseSearchMode maps a config or query-string value onto a SearchMode.
func ParseSearchMode(s string) (SearchMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for mode, def := range searchModes {
		if def.name == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown search mode %q", ErrRetrieval, s)
}

func (m SearchMode) def() (searchModeDef, error) {
	def, ok := searchModes[m]
	if !ok {
		return searchModeDef{}, fmt.Errorf("%w: unknown search mode %d", ErrRetrieval, int(m))
	}
	return def, nil
}

func (m SearchMode) String() string {
	if def, ok := searchModes[m]; ok {
		return def.name
	}
	return fmt.Sprintf("SearchMode(%d)", int(m))
}

// Operator returns the pgvector distance operator for the mode.
func (m SearchMode) Operator() (string, error) {
	def, err := m.def()
	if err != nil {
		return "", err
	}
	return def.operator, nil
}

// MaxDistance converts a similarity threshold into the largest distance a
// search result may have.
func (m SearchMode) MaxDistance(scoreThreshold float64) (float64, error) {
	def, err := m.def()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(scoreThreshold) || scoreThreshold < 0 || scoreThreshold > 1 {
		return 0, fmt.Errorf("%w: score threshold %v outside [0, 1]", ErrConfiguration, scoreThreshold)
	}
	return def.maxDistance(scoreThreshold), nil
}

// Score converts a distance reported by the store into a similarity score.
func (m SearchMode) Score(distance float64) float64 {
	def, err := m.def()
	if err != nil {
		return 0
	}
	return def.score(distance)
}
