package index

// Flat kd-tree over 2D points, built once per index build. The tree is
// an implicit structure: ids is a permutation of item indices arranged
// so that each segment is split by its median along alternating axes.

type kdTree struct {
	ids      []int
	coords   []float64 // x,y pairs aligned with ids
	nodeSize int
}

func newKDTree(xs, ys []float64, nodeSize int) *kdTree {
	n := len(xs)
	t := &kdTree{
		ids:      make([]int, n),
		coords:   make([]float64, 2*n),
		nodeSize: nodeSize,
	}
	for i := 0; i < n; i++ {
		t.ids[i] = i
		t.coords[2*i] = xs[i]
		t.coords[2*i+1] = ys[i]
	}
	if n > 0 {
		t.sortKD(0, n-1, 0)
	}
	return t
}

func (t *kdTree) sortKD(left, right, axis int) {
	if right-left <= t.nodeSize {
		return
	}
	m := (left + right) >> 1
	t.selectKD(m, left, right, axis)
	t.sortKD(left, m-1, 1-axis)
	t.sortKD(m+1, right, 1-axis)
}

// selectKD partially sorts [left,right] so that the k-th element is in
// its final sorted position along the given axis (quickselect).
func (t *kdTree) selectKD(k, left, right, axis int) {
	for right > left {
		pivot := t.coords[2*k+axis]
		i, j := left, right
		t.swap(left, k)
		if t.coords[2*right+axis] > pivot {
			t.swap(left, right)
		}
		for i < j {
			t.swap(i, j)
			i++
			j--
			for t.coords[2*i+axis] < pivot {
				i++
			}
			for t.coords[2*j+axis] > pivot {
				j--
			}
		}
		if t.coords[2*left+axis] == pivot {
			t.swap(left, j)
		} else {
			j++
			t.swap(j, right)
		}
		if j <= k {
			left = j + 1
		}
		if k <= j {
			right = j - 1
		}
	}
}

func (t *kdTree) swap(i, j int) {
	t.ids[i], t.ids[j] = t.ids[j], t.ids[i]
	t.coords[2*i], t.coords[2*j] = t.coords[2*j], t.coords[2*i]
	t.coords[2*i+1], t.coords[2*j+1] = t.coords[2*j+1], t.coords[2*i+1]
}

type rangeFrame struct {
	left, right, axis int
}

// Range returns the indices of all points inside the rectangle.
func (t *kdTree) Range(minX, minY, maxX, maxY float64) []int {
	var result []int
	if len(t.ids) == 0 {
		return result
	}

	stack := []rangeFrame{{0, len(t.ids) - 1, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.right-f.left <= t.nodeSize {
			for i := f.left; i <= f.right; i++ {
				x, y := t.coords[2*i], t.coords[2*i+1]
				if x >= minX && x <= maxX && y >= minY && y <= maxY {
					result = append(result, t.ids[i])
				}
			}
			continue
		}

		m := (f.left + f.right) >> 1
		x, y := t.coords[2*m], t.coords[2*m+1]
		if x >= minX && x <= maxX && y >= minY && y <= maxY {
			result = append(result, t.ids[m])
		}

		if (f.axis == 0 && minX <= x) || (f.axis == 1 && minY <= y) {
			stack = append(stack, rangeFrame{f.left, m - 1, 1 - f.axis})
		}
		if (f.axis == 0 && maxX >= x) || (f.axis == 1 && maxY >= y) {
			stack = append(stack, rangeFrame{m + 1, f.right, 1 - f.axis})
		}
	}
	return result
}

// Within returns the indices of all points within radius r of (qx, qy).
func (t *kdTree) Within(qx, qy, r float64) []int {
	var result []int
	if len(t.ids) == 0 {
		return result
	}
	r2 := r * r

	stack := []rangeFrame{{0, len(t.ids) - 1, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.right-f.left <= t.nodeSize {
			for i := f.left; i <= f.right; i++ {
				if sqDist(t.coords[2*i], t.coords[2*i+1], qx, qy) <= r2 {
					result = append(result, t.ids[i])
				}
			}
			continue
		}

		m := (f.left + f.right) >> 1
		x, y := t.coords[2*m], t.coords[2*m+1]
		if sqDist(x, y, qx, qy) <= r2 {
			result = append(result, t.ids[m])
		}

		if (f.axis == 0 && qx-r <= x) || (f.axis == 1 && qy-r <= y) {
			stack = append(stack, rangeFrame{f.left, m - 1, 1 - f.axis})
		}
		if (f.axis == 0 && qx+r >= x) || (f.axis == 1 && qy+r >= y) {
			stack = append(stack, rangeFrame{m + 1, f.right, 1 - f.axis})
		}
	}
	return result
}

func sqDist(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return dx*dx + dy*dy
}
