package model

import (
	"testing"

	"github.com/fabworks/modelio/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bedBox(w, d float64) *geom.BoundingBox2 {
	var bb geom.BoundingBox2
	bb.Merge(geom.Vec2{})
	bb.Merge(geom.Vec2{X: w, Y: d})
	return &bb
}

func TestArrangeObjectsFitsBed(t *testing.T) {
	m := cubeModel(t, 10)
	o := m.Objects[0]
	for i := 0; i < 4; i++ {
		o.AddInstance()
	}

	bed := bedBox(100, 100)
	require.NoError(t, m.ArrangeObjects(5, bed))

	// Every instance footprint stays on the bed and the centers keep
	// the minimum spacing.
	var centers []geom.Vec2
	for i := range o.Instances {
		bb := o.InstanceBoundingBox(i)
		assert.GreaterOrEqual(t, bb.Min.X, bed.Min.X-1e-9)
		assert.LessOrEqual(t, bb.Max.X, bed.Max.X+1e-9)
		assert.GreaterOrEqual(t, bb.Min.Y, bed.Min.Y-1e-9)
		assert.LessOrEqual(t, bb.Max.Y, bed.Max.Y+1e-9)
		c := bb.Center()
		centers = append(centers, geom.Vec2{X: c.X, Y: c.Y})
	}
	for i := range centers {
		for j := i + 1; j < len(centers); j++ {
			assert.GreaterOrEqual(t, centers[i].Distance(centers[j]), 10.0, "instances %d and %d", i, j)
		}
	}
}

func TestArrangeObjectsOverflow(t *testing.T) {
	m := cubeModel(t, 10)
	o := m.Objects[0]
	for i := 0; i < 9; i++ {
		o.AddInstance()
	}
	err := m.ArrangeObjects(5, bedBox(20, 20))
	assert.ErrorIs(t, err, ErrArrangeOverflow)
}

func TestDuplicate(t *testing.T) {
	m := cubeModel(t, 10)
	o := m.Objects[0]
	o.AddInstance()

	require.NoError(t, m.Duplicate(3, 5, bedBox(200, 200)))
	assert.Len(t, m.Objects, 1, "object count unchanged")
	assert.Len(t, o.Instances, 3)
}

func TestDuplicateOverflow(t *testing.T) {
	m := cubeModel(t, 10)
	m.Objects[0].AddInstance()
	err := m.Duplicate(50, 5, bedBox(30, 30))
	assert.ErrorIs(t, err, ErrArrangeOverflow)
}

func TestDuplicateObjects(t *testing.T) {
	m := cubeModel(t, 10)
	second := m.AddObject()
	second.AddVolume(cubeMesh(t, 10))
	m.AddDefaultInstances()

	require.NoError(t, m.DuplicateObjects(3, 5, bedBox(200, 200)))
	assert.Len(t, m.Objects[0].Instances, 3)
	assert.Len(t, m.Objects[1].Instances, 3)
}

func TestDuplicateObjectsGrid(t *testing.T) {
	m := cubeModel(t, 10)

	require.NoError(t, m.DuplicateObjectsGrid(3, 2, 5))
	o := m.Objects[0]
	require.Len(t, o.Instances, 6)

	// Offsets form a 3x2 grid with 15mm pitch.
	assert.Equal(t, geom.Vec2{}, o.Instances[0].Offset)
	last := o.Instances[len(o.Instances)-1]
	assert.InDelta(t, 30, last.Offset.X, 1e-9)
	assert.InDelta(t, 15, last.Offset.Y, 1e-9)
}

func TestDuplicateObjectsGridErrors(t *testing.T) {
	m := New()
	assert.ErrorIs(t, m.DuplicateObjectsGrid(2, 2, 5), ErrNoObjects)

	m = cubeModel(t, 10)
	m.AddObject()
	assert.ErrorIs(t, m.DuplicateObjectsGrid(2, 2, 5), ErrMultipleObjects)
}
