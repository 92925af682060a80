// Package region decides, sample by sample, whether the gaze point falls
// inside an on-screen region.
package region

// Bounds is an axis-aligned rectangle in viewport pixels.
type Bounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Rect builds Bounds from a position and size.
func Rect(x, y, width, height float64) Bounds {
	return Bounds{Left: x, Top: y, Right: x + width, Bottom: y + height}
}

// Expand grows the rectangle by margin on all four edges.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		Left:   b.Left - margin,
		Top:    b.Top - margin,
		Right:  b.Right + margin,
		Bottom: b.Bottom + margin,
	}
}

// Contains reports whether (x, y) lies inside or on the rectangle.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Right &&
		y >= b.Top && y <= b.Bottom
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() (x, y float64) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 {
	return b.Right - b.Left
}

// Height returns the vertical extent.
func (b Bounds) Height() float64 {
	return b.Bottom - b.Top
}

// Valid reports whether the rectangle has non-negative extent.
func (b Bounds) Valid() bool {
	return b.Right >= b.Left && b.Bottom >= b.Top
}
