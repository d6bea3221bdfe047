package splat

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func expf(v float32) float64 {
	return math.Exp(float64(v))
}

func sigmoid(v float32) float64 {
	return 1 / (1 + math.Exp(-float64(v)))
}

// assertVec3Near compares component-wise with an absolute tolerance.
func assertVec3Near(t *testing.T, want, got mgl32.Vec3, delta float64, msgAndArgs ...any) bool {
	t.Helper()
	return assert.InDeltaSlice(t, want[:], got[:], delta, msgAndArgs...)
}
