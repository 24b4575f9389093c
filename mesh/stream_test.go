package mesh

import (
	"bytes"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestCellStreamRoundTrip(t *testing.T) {
	m := newTestMesh(t, 2, 1, 0.5)
	id := m.LocatePoint(r3.Vector{X: 0.25, Y: 0.25})
	c, err := m.Cell(id)
	test.That(t, err, test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, c.WriteTo(&buf), test.ShouldBeNil)
	test.That(t, buf.Len(), test.ShouldEqual, c.BinarySize())

	got, err := ReadCell(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.ID(), test.ShouldEqual, c.ID())
	test.That(t, got.Type(), test.ShouldEqual, c.Type())
	test.That(t, got.Connect(), test.ShouldResemble, c.Connect())
	for face := 0; face < c.FaceCount(); face++ {
		test.That(t, got.Interfaces(face), test.ShouldResemble, c.Interfaces(face))
		test.That(t, got.Adjacencies(face), test.ShouldResemble, c.Adjacencies(face))
	}
	test.That(t, buf.Len(), test.ShouldEqual, 0)
}
