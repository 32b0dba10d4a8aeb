package mines

import "testing"

func TestBitsetBasics(t *testing.T) {
	b := NewBitset(130) // spans three words

	for _, i := range []int{0, 63, 64, 129} {
		b.Set(i)
		if !b.Get(i) {
			t.Errorf("Bit %d not set", i)
		}
	}
	if b.Count() != 4 {
		t.Errorf("Count = %d, want 4", b.Count())
	}

	b.Clear(64)
	if b.Get(64) {
		t.Errorf("Bit 64 still set after Clear")
	}

	c := b.Clone()
	c.Set(10)
	if b.Get(10) {
		t.Errorf("Clone shares storage with the original")
	}

	b.Reset()
	if b.Count() != 0 {
		t.Errorf("Count = %d after Reset, want 0", b.Count())
	}
}
