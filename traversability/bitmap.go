// Package traversability builds the free/occupied floor grids a robot navigates, overlays the
// footprint of a dynamic human on them, and crops egocentric windows out of them.
package traversability

import (
	"github.com/pkg/errors"
)

// Bitmap is a dense boolean grid indexed by column x and row y. True means free.
type Bitmap struct {
	width  int
	height int
	bits   []bool
}

// NewBitmap returns a width x height bitmap with every cell false.
func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{width: width, height: height, bits: make([]bool, width*height)}
}

// NewFilledBitmap returns a width x height bitmap with every cell set to v.
func NewFilledBitmap(width, height int, v bool) *Bitmap {
	b := NewBitmap(width, height)
	if v {
		for i := range b.bits {
			b.bits[i] = true
		}
	}
	return b
}

// Width returns the number of columns.
func (b *Bitmap) Width() int {
	return b.width
}

// Height returns the number of rows.
func (b *Bitmap) Height() int {
	return b.height
}

// In reports whether (x, y) is inside the bitmap.
func (b *Bitmap) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.width && y < b.height
}

// Get returns the cell at column x, row y.
func (b *Bitmap) Get(x, y int) bool {
	return b.bits[y*b.width+x]
}

// Set sets the cell at column x, row y.
func (b *Bitmap) Set(x, y int, v bool) {
	b.bits[y*b.width+x] = v
}

// Count returns the number of true cells.
func (b *Bitmap) Count() int {
	n := 0
	for _, v := range b.bits {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	out := &Bitmap{width: b.width, height: b.height, bits: make([]bool, len(b.bits))}
	copy(out.bits, b.bits)
	return out
}

// Equal reports whether both bitmaps have the same shape and cells.
func (b *Bitmap) Equal(other *Bitmap) bool {
	if other == nil || b.width != other.width || b.height != other.height {
		return false
	}
	for i, v := range b.bits {
		if other.bits[i] != v {
			return false
		}
	}
	return true
}

// AndNot clears every cell of b that is set in mask, in place.
func (b *Bitmap) AndNot(mask *Bitmap) error {
	if err := b.checkShape(mask); err != nil {
		return err
	}
	for i, v := range mask.bits {
		if v {
			b.bits[i] = false
		}
	}
	return nil
}

// And keeps only the cells of b that are also set in other, in place.
func (b *Bitmap) And(other *Bitmap) error {
	if err := b.checkShape(other); err != nil {
		return err
	}
	for i, v := range other.bits {
		b.bits[i] = b.bits[i] && v
	}
	return nil
}

// Not inverts every cell in place.
func (b *Bitmap) Not() *Bitmap {
	for i, v := range b.bits {
		b.bits[i] = !v
	}
	return b
}

func (b *Bitmap) checkShape(other *Bitmap) error {
	if b.width != other.width || b.height != other.height {
		return errors.Errorf("bitmap shapes differ (%d,%d) != (%d,%d)", b.width, b.height, other.width, other.height)
	}
	return nil
}
