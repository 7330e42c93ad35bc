// Package risk classifies students by attendance pattern for early
// intervention. The classifiers are pure functions over an ordered sequence
// of presence values so they recompute consistently and test in isolation
// from storage.
package risk

// Trend compares the recent half of a student's lookback window against the
// older half.
type Trend string

const (
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
	TrendImproving Trend = "improving"
)

// Level is a risk tier.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// rank orders levels for sorting, high first.
func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 0
	case LevelMedium:
		return 1
	default:
		return 2
	}
}

// ConsecutiveAbsences counts absences from the most recent session backward,
// stopping at the first presence. recent is ordered most-recent-first and is
// already capped at the lookback window, so an always-absent student reports
// the window size, not unbounded history.
func ConsecutiveAbsences(recent []bool) int {
	streak := 0
	for _, present := range recent {
		if present {
			break
		}
		streak++
	}
	return streak
}

// TrendOf splits the most-recent-first sequence at floor(n/2): the first
// half is "recent", the rest (including the extra element for odd n) is
// "older". Declining means the recent rate dropped more than 0.1 below the
// older rate; improving is the mirror. Fewer than 4 samples default to
// stable.
func TrendOf(recent []bool) Trend {
	if len(recent) < 4 {
		return TrendStable
	}
	half := len(recent) / 2
	recentRate := presenceRate(recent[:half])
	olderRate := presenceRate(recent[half:])
	switch {
	case recentRate < olderRate-0.1:
		return TrendDeclining
	case recentRate > olderRate+0.1:
		return TrendImproving
	default:
		return TrendStable
	}
}

// Classify maps the computed signals to a risk tier. Rules are evaluated in
// precedence order, first match wins; a student matching none is not at
// risk and the second return is false.
func Classify(attendancePercent, consecutiveAbsences int, trend Trend) (Level, bool) {
	switch {
	case attendancePercent < 60 || consecutiveAbsences >= 4:
		return LevelHigh, true
	case attendancePercent < 75 || consecutiveAbsences >= 2:
		return LevelMedium, true
	case attendancePercent < 80 && trend == TrendDeclining:
		return LevelLow, true
	default:
		return "", false
	}
}

func presenceRate(window []bool) float64 {
	if len(window) == 0 {
		return 0
	}
	present := 0
	for _, p := range window {
		if p {
			present++
		}
	}
	return float64(present) / float64(len(window))
}
