package octree

import (
	"testing"

	"go.viam.com/test"
)

func TestMorton3DRoundTrip(t *testing.T) {
	cases := [][3]uint32{
		{0, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{123, 456, 789},
		{1 << 20, 1 << 20, 1 << 20},
		{(1 << 21) - 1, (1 << 21) - 1, (1 << 21) - 1},
	}
	for _, c := range cases {
		m := EncodeMorton3D(c[0], c[1], c[2])
		x, y, z := DecodeMorton3D(m)
		test.That(t, [3]uint32{x, y, z}, test.ShouldResemble, c)
	}
}

func TestMorton2DRoundTrip(t *testing.T) {
	cases := [][2]uint32{
		{0, 0}, {1, 0}, {0, 1}, {31, 17}, {1 << 20, 1 << 20},
	}
	for _, c := range cases {
		m := EncodeMorton2D(c[0], c[1])
		x, y := DecodeMorton2D(m)
		test.That(t, [2]uint32{x, y}, test.ShouldResemble, c)
	}
}

func TestMortonOrderIsZCurve(t *testing.T) {
	// The four unit cells of a 2x2 block follow the z-curve.
	test.That(t, EncodeMorton2D(0, 0), test.ShouldEqual, uint64(0))
	test.That(t, EncodeMorton2D(1, 0), test.ShouldEqual, uint64(1))
	test.That(t, EncodeMorton2D(0, 1), test.ShouldEqual, uint64(2))
	test.That(t, EncodeMorton2D(1, 1), test.ShouldEqual, uint64(3))

	test.That(t, EncodeMorton3D(1, 1, 1), test.ShouldEqual, uint64(7))
	test.That(t, EncodeMorton3D(0, 0, 1), test.ShouldEqual, uint64(4))
}
