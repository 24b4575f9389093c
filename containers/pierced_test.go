package containers

import (
	"testing"

	"go.viam.com/test"
)

func TestPiercedVectorInsertErase(t *testing.T) {
	v := NewPiercedVector[string]()

	idA := v.Insert("a")
	idB := v.Insert("b")
	idC := v.Insert("c")
	test.That(t, v.Count(), test.ShouldEqual, 3)
	test.That(t, idA, test.ShouldNotEqual, idB)
	test.That(t, idB, test.ShouldNotEqual, idC)

	got, ok := v.Get(idB)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, *got, test.ShouldEqual, "b")

	test.That(t, v.Erase(idB), test.ShouldBeTrue)
	test.That(t, v.Erase(idB), test.ShouldBeFalse)
	test.That(t, v.Count(), test.ShouldEqual, 2)
	test.That(t, v.Exists(idB), test.ShouldBeFalse)

	// The hole is reclaimed but the old id is not reused.
	idD := v.Insert("d")
	test.That(t, idD, test.ShouldNotEqual, idB)
	test.That(t, v.Count(), test.ShouldEqual, 3)
}

func TestPiercedVectorIterationSkipsHoles(t *testing.T) {
	v := NewPiercedVector[int]()
	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, v.Insert(i))
	}
	v.Erase(ids[1])
	v.Erase(ids[3])

	var seen []int
	v.Range(func(id int64, item *int) bool {
		seen = append(seen, *item)
		return true
	})
	test.That(t, seen, test.ShouldResemble, []int{0, 2, 4})
	test.That(t, v.IDs(), test.ShouldResemble, []int64{ids[0], ids[2], ids[4]})
}

func TestPiercedVectorFlush(t *testing.T) {
	v := NewPiercedVector[int]()
	var ids []int64
	for i := 0; i < 6; i++ {
		ids = append(ids, v.Insert(10 * i))
	}
	v.Erase(ids[0])
	v.Erase(ids[4])

	v.Flush()
	test.That(t, v.Count(), test.ShouldEqual, 4)

	// All surviving ids still resolve to their items after compaction.
	for _, id := range []int64{ids[1], ids[2], ids[3], ids[5]} {
		got, ok := v.Get(id)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, int64(*got), test.ShouldEqual, 10*id)
	}
}

func TestPiercedVectorInsertWithID(t *testing.T) {
	v := NewPiercedVector[string]()
	test.That(t, v.InsertWithID(7, "x"), test.ShouldBeNil)
	test.That(t, v.InsertWithID(7, "y"), test.ShouldNotBeNil)
	test.That(t, v.InsertWithID(-1, "z"), test.ShouldNotBeNil)

	// Automatic ids skip past explicitly used ones.
	id := v.Insert("w")
	test.That(t, id, test.ShouldBeGreaterThan, int64(7))
}
