package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
)

func candidates(scores ...float64) []slotCandidate {
	out := make([]slotCandidate, len(scores))
	for i, score := range scores {
		out[i] = slotCandidate{Day: models.Monday, Slot: models.TimeRange{Start: models.Clock(i * 60), End: models.Clock(i*60 + 60)}, Score: score}
	}
	return out
}

func TestDeterministicTieBreakKeepsFirstBest(t *testing.T) {
	assert.Equal(t, 1, DeterministicTieBreak{}.Choose(candidates(10, 40, 40, 5)))
	assert.Equal(t, 0, DeterministicTieBreak{}.Choose(candidates(3)))
}

func TestWeightedTieBreakStaysInWindow(t *testing.T) {
	pool := candidates(50, -30, 48, 45, 0)
	strategy := NewWeightedTieBreak(7, 10)
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[strategy.Choose(pool)] = true
	}
	assert.False(t, seen[1])
	assert.False(t, seen[4])
	assert.True(t, seen[0])
}

func TestWeightedTieBreakIsSeeded(t *testing.T) {
	pool := candidates(50, 49, 48, 47, 46, 45)
	a := NewWeightedTieBreak(99, 0)
	b := NewWeightedTieBreak(99, 0)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Choose(pool), b.Choose(pool))
	}
}
