package geom

// BoundingBox2 is an axis-aligned 2D bounding box.
// The zero value is undefined until the first Merge.
type BoundingBox2 struct {
	Min, Max Vec2
	Defined  bool
}

// Merge grows the box to contain the point.
func (b *BoundingBox2) Merge(p Vec2) {
	if !b.Defined {
		b.Min, b.Max = p, p
		b.Defined = true
		return
	}
	b.Min.X = min(b.Min.X, p.X)
	b.Min.Y = min(b.Min.Y, p.Y)
	b.Max.X = max(b.Max.X, p.X)
	b.Max.Y = max(b.Max.Y, p.Y)
}

// MergeBox grows the box to contain another box.
func (b *BoundingBox2) MergeBox(other BoundingBox2) {
	if !other.Defined {
		return
	}
	b.Merge(other.Min)
	b.Merge(other.Max)
}

// Size returns the box extents.
func (b BoundingBox2) Size() Vec2 {
	return b.Max.Sub(b.Min)
}

// Center returns the box center.
func (b BoundingBox2) Center() Vec2 {
	return Vec2{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2}
}

// Translate shifts the box by (x, y).
func (b *BoundingBox2) Translate(x, y float64) {
	b.Min.X += x
	b.Min.Y += y
	b.Max.X += x
	b.Max.Y += y
}

// BoundingBox3 is an axis-aligned 3D bounding box.
// The zero value is undefined until the first Merge.
type BoundingBox3 struct {
	Min, Max Vec3
	Defined  bool
}

// Merge grows the box to contain the point.
func (b *BoundingBox3) Merge(p Vec3) {
	if !b.Defined {
		b.Min, b.Max = p, p
		b.Defined = true
		return
	}
	b.Min.X = min(b.Min.X, p.X)
	b.Min.Y = min(b.Min.Y, p.Y)
	b.Min.Z = min(b.Min.Z, p.Z)
	b.Max.X = max(b.Max.X, p.X)
	b.Max.Y = max(b.Max.Y, p.Y)
	b.Max.Z = max(b.Max.Z, p.Z)
}

// MergeBox grows the box to contain another box.
func (b *BoundingBox3) MergeBox(other BoundingBox3) {
	if !other.Defined {
		return
	}
	b.Merge(other.Min)
	b.Merge(other.Max)
}

// Size returns the box extents.
func (b BoundingBox3) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the box center.
func (b BoundingBox3) Center() Vec3 {
	return Vec3{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2, (b.Min.Z + b.Max.Z) / 2}
}

// Translate shifts the box by (x, y, z).
func (b *BoundingBox3) Translate(x, y, z float64) {
	b.Min = b.Min.Add(Vec3{x, y, z})
	b.Max = b.Max.Add(Vec3{x, y, z})
}

// XY projects the box onto the XY plane.
func (b BoundingBox3) XY() BoundingBox2 {
	return BoundingBox2{Min: b.Min.XY(), Max: b.Max.XY(), Defined: b.Defined}
}
