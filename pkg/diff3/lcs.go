package diff3

// DiffType classifies a line in an edit script.
type DiffType int

const (
	Equal  DiffType = iota // Line is unchanged between a and b.
	Insert                 // Line was inserted (present in b only).
	Delete                 // Line was deleted (present in a only).
)

// DiffOp is a single operation in an edit script produced by MyersDiff.
type DiffOp struct {
	Type DiffType
	Line string
}

// MyersDiff computes the shortest edit script that turns a into b,
// operating on whole lines. It runs in O((N+M)*D) time.
func MyersDiff(a, b []string) []DiffOp {
	n, m := len(a), len(b)
	switch {
	case n == 0 && m == 0:
		return nil
	case n == 0:
		return uniformOps(Insert, b)
	case m == 0:
		return uniformOps(Delete, a)
	}

	offset := n + m
	v := make([]int, 2*offset+1)

	// trace[d] is a snapshot of v after edit distance d was explored.
	var trace [][]int
	for d := 0; d <= offset; d++ {
		for k := -d; k <= d; k += 2 {
			idx := k + offset
			var x int
			if k == -d || (k != d && v[idx-1] < v[idx+1]) {
				x = v[idx+1]
			} else {
				x = v[idx-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[idx] = x

			if x >= n && y >= m {
				trace = append(trace, append([]int(nil), v...))
				return backtrack(trace, a, b, d)
			}
		}
		trace = append(trace, append([]int(nil), v...))
	}
	return nil
}

func uniformOps(kind DiffType, lines []string) []DiffOp {
	ops := make([]DiffOp, len(lines))
	for i, line := range lines {
		ops[i] = DiffOp{Type: kind, Line: line}
	}
	return ops
}

// backtrack walks the trace from the end point back to the origin and
// returns the edit script in forward order.
func backtrack(trace [][]int, a, b []string, dFinal int) []DiffOp {
	offset := len(a) + len(b)
	x, y := len(a), len(b)

	var ops []DiffOp
	for d := dFinal; d > 0; d-- {
		k := x - y
		prev := trace[d-1]

		var prevK int
		if k == -d || (k != d && prev[k-1+offset] < prev[k+1+offset]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := prev[prevK+offset]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, DiffOp{Type: Equal, Line: a[x]})
		}
		if k == prevK+1 {
			x--
			ops = append(ops, DiffOp{Type: Delete, Line: a[x]})
		} else {
			y--
			ops = append(ops, DiffOp{Type: Insert, Line: b[y]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		ops = append(ops, DiffOp{Type: Equal, Line: a[x]})
	}

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}
