package layout

// Shape is a screen's declared rectangle and jump-zone width, reported
// by the owning client (or the primary driver) and updated by DINF.
type Shape struct {
	X, Y          int
	Width, Height int
	ZoneSize      int
}

// Contains reports whether the point lies within the rectangle.
func (s Shape) Contains(x, y int) bool {
	return x >= s.X && x < s.X+s.Width && y >= s.Y && y < s.Y+s.Height
}

// Clamp pins (x, y) to the screen's interior.
func (s Shape) Clamp(x, y int) (int, int) {
	if x < s.X {
		x = s.X
	} else if x > s.X+s.Width-1 {
		x = s.X + s.Width - 1
	}
	if y < s.Y {
		y = s.Y
	} else if y > s.Y+s.Height-1 {
		y = s.Y + s.Height - 1
	}
	return x, y
}

// Center returns the midpoint of the rectangle, used when jumping back
// to the primary screen after a client disconnects.
func (s Shape) Center() (int, int) {
	return s.X + s.Width/2, s.Y + s.Height/2
}
