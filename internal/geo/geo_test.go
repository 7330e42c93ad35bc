package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersZeroForSamePoint(t *testing.T) {
	d := DistanceMeters(22.5726, 88.3639, 22.5726, 88.3639)
	assert.Equal(t, 0.0, d)
}

func TestDistanceMetersKnownDistance(t *testing.T) {
	// One degree of latitude is roughly 111.2 km.
	d := DistanceMeters(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 200)
}

func TestDistanceMetersSymmetric(t *testing.T) {
	a := DistanceMeters(22.5726, 88.3639, 22.5800, 88.3700)
	b := DistanceMeters(22.5800, 88.3700, 22.5726, 88.3639)
	assert.InDelta(t, a, b, 1e-9)
}

func TestWithinFence(t *testing.T) {
	// ~0.0005 degrees of latitude is about 55m.
	assert.True(t, WithinFence(22.5726, 88.3639, 60, 22.5731, 88.3639))
	assert.False(t, WithinFence(22.5726, 88.3639, 50, 22.5731, 88.3639))
}

func TestWithinFenceBoundaryIsInclusive(t *testing.T) {
	d := DistanceMeters(22.5726, 88.3639, 22.5731, 88.3639)
	assert.True(t, WithinFence(22.5726, 88.3639, d, 22.5731, 88.3639))
}
