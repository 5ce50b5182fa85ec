package utils

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Box represents an axis-aligned bounding box in pixel coordinates.
// MinX/MinY is the top-left corner (x1, y1), MaxX/MaxY the bottom-right (x2, y2).
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// BoxFromSlice builds a Box from an [x1, y1, x2, y2] slice without reordering.
// It reports false when the slice does not hold exactly four values.
func BoxFromSlice(v []float64) (Box, bool) {
	if len(v) != 4 {
		return Box{}, false
	}
	return Box{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, true
}

// Slice returns the box as [x1, y1, x2, y2].
func (b Box) Slice() []float64 { return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} }

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (b Box) MarshalJSON() ([]byte, error) { return json.Marshal(b.Slice()) }

// UnmarshalJSON decodes an [x1, y1, x2, y2] array.
func (b *Box) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	box, ok := BoxFromSlice(v)
	if !ok {
		return fmt.Errorf("box must have 4 coordinates, got %d", len(v))
	}
	*b = box
	return nil
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area. Zero-size and inverted boxes have zero area.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IsEmpty reports whether the box has no area.
func (b Box) IsEmpty() bool { return b.Area() == 0 }

// Intersect returns the intersection of two boxes. The result is empty (possibly inverted)
// when the boxes do not overlap.
func (b Box) Intersect(o Box) Box {
	return Box{
		MinX: math.Max(b.MinX, o.MinX),
		MinY: math.Max(b.MinY, o.MinY),
		MaxX: math.Min(b.MaxX, o.MaxX),
		MaxY: math.Min(b.MaxY, o.MaxY),
	}
}

// Union returns the smallest box enclosing both boxes.
func (b Box) Union(o Box) Box {
	return Box{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Offset translates the box by dx, dy.
func (b Box) Offset(dx, dy float64) Box {
	return Box{MinX: b.MinX + dx, MinY: b.MinY + dy, MaxX: b.MaxX + dx, MaxY: b.MaxY + dy}
}

// Scale multiplies every coordinate by sx (horizontal) and sy (vertical).
func (b Box) Scale(sx, sy float64) Box {
	return Box{MinX: b.MinX * sx, MinY: b.MinY * sy, MaxX: b.MaxX * sx, MaxY: b.MaxY * sy}
}

// ContainsPoint reports whether p lies inside the box, borders included.
func (b Box) ContainsPoint(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Center returns the box midpoint.
func (b Box) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// TopLeft returns the (x1, y1) corner.
func (b Box) TopLeft() Point { return Point{X: b.MinX, Y: b.MinY} }

// Clamp restricts the box to the given width and height starting at the origin.
func (b Box) Clamp(width, height float64) Box {
	return Box{
		MinX: math.Max(0, math.Min(b.MinX, width)),
		MinY: math.Max(0, math.Min(b.MinY, height)),
		MaxX: math.Max(0, math.Min(b.MaxX, width)),
		MaxY: math.Max(0, math.Min(b.MaxY, height)),
	}
}

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

// BoxFromRect converts an image.Rectangle into a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{MinX: float64(r.Min.X), MinY: float64(r.Min.Y), MaxX: float64(r.Max.X), MaxY: float64(r.Max.Y)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// OverlapPercent returns the intersection area of a and b divided by the area of the
// smaller box, times 100. It is 0 when the boxes do not intersect or either box has no area.
func OverlapPercent(a, b Box) float64 {
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}
	inter := a.Intersect(b).Area()
	if inter == 0 {
		return 0
	}
	smaller := math.Min(areaA, areaB)
	if inter >= smaller {
		return 100
	}
	return math.Min(inter/smaller*100, 100)
}
