package solver

import "math/bits"

// Constraint masks are 9-bit subsets of a 3x3 window anchored at a top-left
// corner (x, y): bit dy*3+dx addresses the cell (x+dx, y+dy). Every solver
// deduction reduces to translating one mask into another window's frame and
// taking an intersection or a difference there.
const (
	colLeft   uint16 = 0b001_001_001 // window column 0: bits 0, 3, 6
	colRight  uint16 = 0b100_100_100 // window column 2: bits 2, 5, 8
	rowTop    uint16 = 0b000_000_111 // window row 0: bits 0, 1, 2
	rowBottom uint16 = 0b111_000_000 // window row 2: bits 6, 7, 8
	fullMask  uint16 = 0b111_111_111
)

// AlignMask translates a mask anchored at (x2, y2) into the frame of a window
// anchored at (x1, y1). Cells that fall outside the target window are dropped;
// windows further than 2 cells apart on either axis share no cells, so the
// translated mask is 0.
func AlignMask(x1, y1, x2, y2 int, mask uint16) uint16 {
	dx, dy := x2-x1, y2-y1
	if dx <= -3 || dx >= 3 || dy <= -3 || dy >= 3 {
		return 0
	}
	for ; dx > 0; dx-- {
		mask = (mask &^ colRight) << 1
	}
	for ; dx < 0; dx++ {
		mask = (mask &^ colLeft) >> 1
	}
	for ; dy > 0; dy-- {
		mask = (mask &^ rowBottom) << 3
	}
	for ; dy < 0; dy++ {
		mask = (mask &^ rowTop) >> 3
	}
	return mask & fullMask
}

// Intersect returns the cells shared by both constraints, expressed in the
// first window's frame.
func Intersect(x1, y1 int, m1 uint16, x2, y2 int, m2 uint16) uint16 {
	return m1 & AlignMask(x1, y1, x2, y2, m2)
}

// Subtract returns the cells of the first constraint not shared with the
// second, expressed in the first window's frame.
func Subtract(x1, y1 int, m1 uint16, x2, y2 int, m2 uint16) uint16 {
	return m1 &^ AlignMask(x1, y1, x2, y2, m2)
}

// PopCount returns the number of cells a mask selects.
func PopCount(mask uint16) int {
	return bits.OnesCount16(mask)
}

// cellBit reports whether the mask of a window at (x, y) selects the absolute
// cell (cx, cy).
func cellBit(x, y int, mask uint16, cx, cy int) bool {
	if cx < x || cx >= x+3 || cy < y || cy >= y+3 {
		return false
	}
	return mask>>((cy-y)*3+(cx-x))&1 == 1
}
