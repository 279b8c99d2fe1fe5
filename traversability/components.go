package traversability

// neighbors4 are the offsets of the 4-connected neighborhood.
var neighbors4 = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// labelComponents assigns a component label (starting at 1) to every cell whose value equals
// target, using 4-connectivity. It returns the labels and the size of every component, indexed by
// label.
func labelComponents(b *Bitmap, target bool) ([]int, []int) {
	labels := make([]int, len(b.bits))
	sizes := []int{0}
	stack := make([]int, 0, 64)
	for start, v := range b.bits {
		if v != target || labels[start] != 0 {
			continue
		}
		label := len(sizes)
		size := 0
		labels[start] = label
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, y := idx%b.width, idx/b.width
			for _, d := range neighbors4 {
				nx, ny := x+d[0], y+d[1]
				if !b.In(nx, ny) {
					continue
				}
				nidx := ny*b.width + nx
				if b.bits[nidx] == target && labels[nidx] == 0 {
					labels[nidx] = label
					stack = append(stack, nidx)
				}
			}
		}
		sizes = append(sizes, size)
	}
	return labels, sizes
}

// LargestComponent returns a copy of b where only the largest 4-connected region of free cells
// is left free. Ties go to the region found first in row-major order.
func LargestComponent(b *Bitmap) *Bitmap {
	labels, sizes := labelComponents(b, true)
	best := 0
	for label := 1; label < len(sizes); label++ {
		if sizes[label] > sizes[best] {
			best = label
		}
	}
	out := NewBitmap(b.width, b.height)
	if best == 0 {
		return out
	}
	for i, label := range labels {
		out.bits[i] = label == best
	}
	return out
}

// FillHoles returns a copy of b in which every 4-connected region of false cells smaller than
// minSize that does not touch the border is set true.
func FillHoles(b *Bitmap, minSize int) *Bitmap {
	labels, sizes := labelComponents(b, false)
	open := make([]bool, len(sizes))
	for x := 0; x < b.width; x++ {
		open[labels[x]] = true
		open[labels[(b.height-1)*b.width+x]] = true
	}
	for y := 0; y < b.height; y++ {
		open[labels[y*b.width]] = true
		open[labels[y*b.width+b.width-1]] = true
	}
	out := b.Clone()
	for i, label := range labels {
		if label != 0 && !open[label] && sizes[label] < minSize {
			out.bits[i] = true
		}
	}
	return out
}

// Disk returns the offsets of a digital disk of the given radius in cells: every integer offset
// (dx, dy) with dx*dx + dy*dy <= radius*radius.
func Disk(radius float64) [][2]int {
	r := int(radius)
	var offsets [][2]int
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy) <= radius*radius {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}

// Dilate returns a copy of b where every true cell is grown by the structuring element.
func Dilate(b *Bitmap, element [][2]int) *Bitmap {
	out := NewBitmap(b.width, b.height)
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			if !b.Get(x, y) {
				continue
			}
			for _, d := range element {
				nx, ny := x+d[0], y+d[1]
				if out.In(nx, ny) {
					out.Set(nx, ny, true)
				}
			}
		}
	}
	return out
}
