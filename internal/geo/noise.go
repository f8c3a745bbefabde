package geo

import (
	"math/rand"
	"sync"
	"time"
)

// MaxJitterDegrees bounds the privacy noise added to each axis of a real
// location before it is stored: independent uniform jitter of up to ±0.005°,
// roughly ±500 m at mid-latitudes. The jitter is per-axis, not a fixed-radius
// offset, so diagonal displacement can exceed 500 m. Virtual locations are
// never jittered.
const MaxJitterDegrees = 0.005

// Jitterer perturbs coordinates for privacy before persistence. Safe for
// concurrent use: one shared instance serves all request goroutines.
type Jitterer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJitterer returns a time-seeded Jitterer.
func NewJitterer() *Jitterer {
	return NewJittererWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewJittererWithSource returns a Jitterer with a caller-supplied source,
// used by tests to make the noise deterministic.
func NewJittererWithSource(src rand.Source) *Jitterer {
	return &Jitterer{rnd: rand.New(src)}
}

// Jitter returns the perturbed coordinate pair, kept inside the valid
// coordinate ranges: latitude is clamped at the poles, longitude wraps
// across the date line. The noised value becomes the only coordinate kept;
// the true reading is never persisted.
func (j *Jitterer) Jitter(lat, lng float64) (float64, float64) {
	lat = clamp(lat+j.offset(), -90, 90)

	lng += j.offset()
	if lng > 180 {
		lng -= 360
	} else if lng < -180 {
		lng += 360
	}

	return lat, lng
}

func (j *Jitterer) offset() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return (j.rnd.Float64()*2 - 1) * MaxJitterDegrees
}
