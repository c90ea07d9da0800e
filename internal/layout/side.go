// Package layout holds the screen/side primitives shared by config,
// clipboard, and switchengine: a screen's declared shape plus the
// directed edges of the 2-D layout.
package layout

import "fmt"

// Side identifies one of the four edges a screen can have a neighbor on.
type Side int

const (
	LeftSide Side = iota
	RightSide
	TopSide
	BottomSide
)

var sideNames = [...]string{"left", "right", "top", "bottom"}

func (s Side) String() string {
	if s < LeftSide || s > BottomSide {
		return fmt.Sprintf("Side(%d)", int(s))
	}
	return sideNames[s]
}

// Opposite returns the side a neighbor would need to point back through
// to reach the originating screen.
func (s Side) Opposite() Side {
	switch s {
	case LeftSide:
		return RightSide
	case RightSide:
		return LeftSide
	case TopSide:
		return BottomSide
	default:
		return TopSide
	}
}

// ParseSide maps a config-file keyword to a Side.
func ParseSide(s string) (Side, bool) {
	for i, name := range sideNames {
		if name == s {
			return Side(i), true
		}
	}
	return 0, false
}

// Sides enumerates all four sides, in a stable order used for mask
// bits and iteration (e.g. PrimaryClient.reconfigure's activeSideMask).
var Sides = [4]Side{LeftSide, RightSide, TopSide, BottomSide}
