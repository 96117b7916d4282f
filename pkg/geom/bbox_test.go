package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBox3Merge(t *testing.T) {
	var bb BoundingBox3
	assert.False(t, bb.Defined)

	bb.Merge(Vec3{X: 1, Y: 2, Z: 3})
	assert.True(t, bb.Defined)
	assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, bb.Min)
	assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, bb.Max)

	bb.Merge(Vec3{X: -1, Y: 5, Z: 0})
	assert.Equal(t, Vec3{X: -1, Y: 2, Z: 0}, bb.Min)
	assert.Equal(t, Vec3{X: 1, Y: 5, Z: 3}, bb.Max)

	assert.Equal(t, Vec3{X: 2, Y: 3, Z: 3}, bb.Size())
	assert.Equal(t, Vec3{X: 0, Y: 3.5, Z: 1.5}, bb.Center())
}

func TestBoundingBoxMergeUndefined(t *testing.T) {
	var bb, other BoundingBox3
	bb.MergeBox(other)
	assert.False(t, bb.Defined)

	other.Merge(Vec3{X: 1})
	bb.MergeBox(other)
	assert.True(t, bb.Defined)
}

func TestBoundingBox2Translate(t *testing.T) {
	var bb BoundingBox2
	bb.Merge(Vec2{})
	bb.Merge(Vec2{X: 10, Y: 10})
	bb.Translate(5, -5)
	assert.Equal(t, Vec2{X: 5, Y: -5}, bb.Min)
	assert.Equal(t, Vec2{X: 15, Y: 5}, bb.Max)
}
