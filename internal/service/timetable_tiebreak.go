package service

import (
	"math"
	"math/rand"

	"github.com/mroth/weightedrand/v2"

	"github.com/xxiimcha/spcc-backend-sub000/internal/dto"
)

// defaultWeightedWindow is how far below the best score a candidate may sit and still be drawn.
const defaultWeightedWindow = 10.0

// TieBreaker picks one of the scored candidates and returns its position.
// Candidates arrive in day then slot order.
type TieBreaker interface {
	Choose(candidates []slotCandidate) int
}

// DeterministicTieBreak keeps the first candidate with the highest score.
type DeterministicTieBreak struct{}

func (DeterministicTieBreak) Choose(candidates []slotCandidate) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[best].Score {
			best = i
		}
	}
	return best
}

// WeightedTieBreak draws among near-best candidates with weights proportional to their
// score. The draw is reproducible for a given seed.
type WeightedTieBreak struct {
	rng    *rand.Rand
	window float64
}

// NewWeightedTieBreak builds a seeded strategy. A non-positive window uses the default.
func NewWeightedTieBreak(seed int64, window float64) *WeightedTieBreak {
	if window <= 0 {
		window = defaultWeightedWindow
	}
	return &WeightedTieBreak{rng: rand.New(rand.NewSource(seed)), window: window}
}

func (w *WeightedTieBreak) Choose(candidates []slotCandidate) int {
	best := DeterministicTieBreak{}.Choose(candidates)
	floor := candidates[best].Score - w.window

	choices := make([]weightedrand.Choice[int, uint], 0, len(candidates))
	for i, candidate := range candidates {
		if candidate.Score < floor {
			continue
		}
		weight := uint(math.Round(candidate.Score-floor)) + 1
		choices = append(choices, weightedrand.NewChoice(i, weight))
	}
	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return best
	}
	return chooser.PickSource(w.rng)
}

func newTieBreaker(settings generationSettings) TieBreaker {
	if settings.TieBreak == dto.TieBreakWeighted {
		return NewWeightedTieBreak(settings.Seed, defaultWeightedWindow)
	}
	return DeterministicTieBreak{}
}
