package vector

import (
	"math"
	"time"
)

const (
	freshWindow  = 7 * 24 * time.Hour
	recentWindow = 30 * 24 * time.Hour

	decayFactor = 0.1
	weightFloor = 0.1

	freshBonus = 0.2
)

// TimeWeight maps a document's age to a freshness weight:
// 0-7 days decays linearly 1.0->0.7, 7-30 days decays linearly 0.7->0.4,
// beyond 30 days the weight decays exponentially with factor 0.1 down to a
// floor of 0.1.
func TimeWeight(createdAt time.Time, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}

	switch {
	case age <= freshWindow:
		frac := float64(age) / float64(freshWindow)
		return 1.0 - 0.3*frac
	case age <= recentWindow:
		frac := float64(age-freshWindow) / float64(recentWindow-freshWindow)
		return 0.7 - 0.3*frac
	default:
		days := (age - recentWindow).Hours() / 24
		w := 0.4 * math.Exp(-decayFactor*days)
		if w < weightFloor {
			return weightFloor
		}
		return w
	}
}

// IsFresh reports whether the document is within the fresh-bonus window
func IsFresh(createdAt time.Time, now time.Time) bool {
	return now.Sub(createdAt) <= freshWindow
}
