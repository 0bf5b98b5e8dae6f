package vector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeWeightBands(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		age  time.Duration
		min  float64
		max  float64
	}{
		{"brand new", 0, 1.0, 1.0},
		{"three days", 3 * 24 * time.Hour, 0.7, 1.0},
		{"seven days", 7 * 24 * time.Hour, 0.7, 0.7},
		{"two weeks", 14 * 24 * time.Hour, 0.4, 0.7},
		{"thirty days", 30 * 24 * time.Hour, 0.4, 0.4},
		{"sixty days", 60 * 24 * time.Hour, 0.1, 0.4},
		{"a year", 365 * 24 * time.Hour, 0.1, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := TimeWeight(now.Add(-tt.age), now)
			assert.GreaterOrEqual(t, w, tt.min-1e-9)
			assert.LessOrEqual(t, w, tt.max+1e-9)
		})
	}
}

func TestTimeWeightMonotonicDecay(t *testing.T) {
	now := time.Now()
	prev := 1.1
	for days := 0; days <= 90; days++ {
		w := TimeWeight(now.Add(-time.Duration(days)*24*time.Hour), now)
		assert.LessOrEqual(t, w, prev+1e-9, "weight must not increase with age (day %d)", days)
		prev = w
	}
}

func TestIsFresh(t *testing.T) {
	now := time.Now()
	assert.True(t, IsFresh(now.Add(-24*time.Hour), now))
	assert.False(t, IsFresh(now.Add(-8*24*time.Hour), now))
}
