package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestAngleConversion(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldEqual, 90)
	test.That(t, DegToRad(-45), test.ShouldAlmostEqual, -math.Pi/4)
}

func TestIntHelpers(t *testing.T) {
	test.That(t, MaxInt(3, -1), test.ShouldEqual, 3)
	test.That(t, MinInt(3, -1), test.ShouldEqual, -1)
	test.That(t, Square(-3), test.ShouldEqual, 9)
}

func TestIsFinite(t *testing.T) {
	test.That(t, IsFinite(1e300), test.ShouldBeTrue)
	test.That(t, IsFinite(math.Inf(-1)), test.ShouldBeFalse)
	test.That(t, IsFinite(math.NaN()), test.ShouldBeFalse)
	test.That(t, Float64AlmostEqual(1, 1+1e-9, 1e-6), test.ShouldBeTrue)
}
