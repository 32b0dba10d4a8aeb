package solver

import "testing"

func TestAlignMask(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 int
		mask           uint16
		expected       uint16
	}{
		{"Identity", 5, 5, 5, 5, 0b111_111_111, 0b111_111_111},
		{"Shift right one column", 0, 0, 1, 0, 0b001_001_001, 0b010_010_010},
		{"Shift right drops far column", 0, 0, 1, 0, 0b100_100_100, 0},
		{"Shift left one column", 1, 0, 0, 0, 0b010_010_010, 0b001_001_001},
		{"Shift left drops near column", 1, 0, 0, 0, 0b001_001_001, 0},
		{"Shift down one row", 0, 0, 0, 1, 0b000_000_111, 0b000_111_000},
		{"Shift down drops bottom row", 0, 0, 0, 1, 0b111_000_000, 0},
		{"Shift up one row", 0, 1, 0, 0, 0b000_111_000, 0b000_000_111},
		{"Diagonal", 0, 0, 1, 1, 0b000_000_001, 0b000_010_000},
		{"Two columns two rows", 0, 0, 2, 2, 0b000_000_001, 0b100_000_000},
		{"Windows three apart share nothing", 0, 0, 3, 0, 0b111_111_111, 0},
		{"Windows far apart vertically", 0, 5, 0, 0, 0b111_111_111, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlignMask(tt.x1, tt.y1, tt.x2, tt.y2, tt.mask)
			if got != tt.expected {
				t.Errorf("AlignMask() = %09b, want %09b", got, tt.expected)
			}
		})
	}
}

func TestIntersectAndSubtract(t *testing.T) {
	// Two horizontally adjacent windows sharing their middle columns.
	a := uint16(0b111_111_111)
	b := uint16(0b011_011_011) // columns 0-1 of the window at x=1

	inter := Intersect(0, 0, a, 1, 0, b)
	if inter != 0b110_110_110 {
		t.Errorf("Intersect = %09b, want %09b", inter, 0b110_110_110)
	}

	diff := Subtract(0, 0, a, 1, 0, b)
	if diff != 0b001_001_001 {
		t.Errorf("Subtract = %09b, want %09b", diff, 0b001_001_001)
	}
}

func TestPopCount(t *testing.T) {
	tests := []struct {
		mask     uint16
		expected int
	}{
		{0, 0},
		{0b1, 1},
		{0b111_111_111, 9},
		{0b101_010_101, 5},
	}
	for _, tt := range tests {
		if got := PopCount(tt.mask); got != tt.expected {
			t.Errorf("PopCount(%09b) = %d, want %d", tt.mask, got, tt.expected)
		}
	}
}

func TestCellBit(t *testing.T) {
	mask := uint16(0b000_010_001) // (x, y) and (x+1, y+1)
	if !cellBit(4, 4, mask, 4, 4) {
		t.Errorf("Expected bit 0 to cover the window origin")
	}
	if !cellBit(4, 4, mask, 5, 5) {
		t.Errorf("Expected bit 4 to cover (5, 5)")
	}
	if cellBit(4, 4, mask, 6, 6) {
		t.Errorf("Did not expect coverage at (6, 6)")
	}
	if cellBit(4, 4, mask, 3, 4) {
		t.Errorf("Cells left of the window are never covered")
	}
}
