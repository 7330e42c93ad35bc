package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsecutiveAbsences(t *testing.T) {
	assert.Equal(t, 0, ConsecutiveAbsences(nil))
	assert.Equal(t, 0, ConsecutiveAbsences([]bool{true, false, false}))
	assert.Equal(t, 2, ConsecutiveAbsences([]bool{false, false, true, false}))
	assert.Equal(t, 3, ConsecutiveAbsences([]bool{false, false, false}))
}

func TestTrendOfTooFewSamples(t *testing.T) {
	assert.Equal(t, TrendStable, TrendOf(nil))
	assert.Equal(t, TrendStable, TrendOf([]bool{false, false, false}))
}

func TestTrendOfDeclining(t *testing.T) {
	// Most-recent-first: 1/5 present lately vs 4/5 present before.
	recent := []bool{false, true, false, false, false, true, true, true, true, false}
	assert.Equal(t, TrendDeclining, TrendOf(recent))
}

func TestTrendOfImproving(t *testing.T) {
	recent := []bool{true, true, true, true, false, false, true, false, false, false}
	assert.Equal(t, TrendImproving, TrendOf(recent))
}

func TestTrendOfStable(t *testing.T) {
	recent := []bool{true, false, true, false, true, false, true, false}
	assert.Equal(t, TrendStable, TrendOf(recent))
}

func TestTrendOfOddCountSplitsExtraIntoOlderHalf(t *testing.T) {
	// 5 samples: recent half is the first 2, older half the remaining 3.
	recent := []bool{false, false, true, true, true}
	assert.Equal(t, TrendDeclining, TrendOf(recent))
}

func TestClassifyHighOnPercent(t *testing.T) {
	level, atRisk := Classify(59, 0, TrendStable)
	assert.True(t, atRisk)
	assert.Equal(t, LevelHigh, level)
}

func TestClassifyHighOnStreak(t *testing.T) {
	level, atRisk := Classify(95, 4, TrendImproving)
	assert.True(t, atRisk)
	assert.Equal(t, LevelHigh, level)
}

func TestClassifyMediumOnPercent(t *testing.T) {
	level, atRisk := Classify(74, 0, TrendStable)
	assert.True(t, atRisk)
	assert.Equal(t, LevelMedium, level)
}

func TestClassifyMediumOnStreak(t *testing.T) {
	level, atRisk := Classify(90, 2, TrendStable)
	assert.True(t, atRisk)
	assert.Equal(t, LevelMedium, level)
}

func TestClassifyLowNeedsDecliningTrend(t *testing.T) {
	level, atRisk := Classify(79, 1, TrendDeclining)
	assert.True(t, atRisk)
	assert.Equal(t, LevelLow, level)

	_, atRisk = Classify(79, 1, TrendStable)
	assert.False(t, atRisk)
}

func TestClassifyBoundaries(t *testing.T) {
	// 75 is not < 75: one short streak and a stable trend is not at risk.
	_, atRisk := Classify(75, 1, TrendStable)
	assert.False(t, atRisk)

	// 80 is not < 80 even when declining.
	_, atRisk = Classify(80, 1, TrendDeclining)
	assert.False(t, atRisk)

	// 60 with a 3-streak falls through high into medium.
	level, atRisk := Classify(60, 3, TrendStable)
	assert.True(t, atRisk)
	assert.Equal(t, LevelMedium, level)
}
