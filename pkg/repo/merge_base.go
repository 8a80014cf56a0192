package repo

import (
	"container/heap"
	"fmt"

	"github.com/odvcencio/grit/pkg/object"
)

const maxMergeBaseSteps = 1_000_000

// mergeBaseStepsLimit may be tightened by tests; values outside
// (0, maxMergeBaseSteps] fall back to the hard maximum.
var mergeBaseStepsLimit = maxMergeBaseSteps

func mergeBaseTraversalLimit() int {
	if mergeBaseStepsLimit <= 0 || mergeBaseStepsLimit > maxMergeBaseSteps {
		return maxMergeBaseSteps
	}
	return mergeBaseStepsLimit
}

func stepsLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum steps (%d)", limit)
}

// FindMergeBase returns the best common ancestor of a and b, or "" when
// the histories are unrelated. Among several candidates the one with the
// highest generation wins, ties broken by hash.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	state := r.getMergeTraversalState()
	if cached, ok := state.cachedBase(a, b); ok {
		return cached.base, nil
	}

	if ok, err := r.IsAncestor(a, b); err != nil {
		return "", err
	} else if ok {
		state.rememberBase(a, b, a, true)
		return a, nil
	}
	if ok, err := r.IsAncestor(b, a); err != nil {
		return "", err
	} else if ok {
		state.rememberBase(a, b, b, true)
		return b, nil
	}

	base, err := r.paintMergeBase(state, a, b)
	if err != nil {
		return "", fmt.Errorf("find merge base: %w", err)
	}
	state.rememberBase(a, b, base, base != "")
	return base, nil
}

const (
	paintLeft uint8 = 1 << iota
	paintRight
	paintBoth = paintLeft | paintRight
)

// paintMergeBase walks both histories in decreasing generation order. A
// commit is popped only after every descendant reachable from a or b, so
// its paint is final and the first commit painted from both sides is the
// merge base.
func (r *Repo) paintMergeBase(state *mergeBaseTraversalState, a, b object.Hash) (object.Hash, error) {
	limit := mergeBaseTraversalLimit()
	paint := make(map[object.Hash]uint8)
	queued := make(map[object.Hash]bool)
	var queue generationHeap

	push := func(h object.Hash, flags uint8) error {
		paint[h] |= flags
		if queued[h] {
			return nil
		}
		g, err := state.generation(r, h)
		if err != nil {
			return err
		}
		queued[h] = true
		heap.Push(&queue, generationItem{hash: h, generation: g})
		return nil
	}
	if err := push(a, paintLeft); err != nil {
		return "", err
	}
	if err := push(b, paintRight); err != nil {
		return "", err
	}

	for steps := 0; queue.Len() > 0; steps++ {
		if steps >= limit {
			return "", stepsLimitError(limit)
		}
		item := heap.Pop(&queue).(generationItem)
		delete(queued, item.hash)
		flags := paint[item.hash]
		if flags == paintBoth {
			return item.hash, nil
		}
		parents, err := state.parents(r, item.hash)
		if err != nil {
			return "", err
		}
		for _, p := range parents {
			if paint[p]&flags == flags && !queued[p] {
				continue
			}
			if err := push(p, flags); err != nil {
				return "", err
			}
		}
	}
	return "", nil
}

// IsAncestor reports whether ancestor is reachable from descendant. A
// commit is its own ancestor.
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	if ancestor == descendant {
		return true, nil
	}

	state := r.getMergeTraversalState()
	ancestorGen, err := state.generation(r, ancestor)
	if err != nil {
		return false, err
	}
	descendantGen, err := state.generation(r, descendant)
	if err != nil {
		return false, err
	}
	if ancestorGen >= descendantGen {
		return false, nil
	}

	limit := mergeBaseTraversalLimit()
	visited := map[object.Hash]bool{descendant: true}
	queue := []object.Hash{descendant}
	for steps := 0; len(queue) > 0; steps++ {
		if steps >= limit {
			return false, stepsLimitError(limit)
		}
		cur := queue[0]
		queue = queue[1:]

		parents, err := state.parents(r, cur)
		if err != nil {
			return false, err
		}
		for _, p := range parents {
			if p == ancestor {
				return true, nil
			}
			if visited[p] {
				continue
			}
			visited[p] = true
			g, err := state.generation(r, p)
			if err != nil {
				return false, err
			}
			// Nothing at or below the ancestor's generation can reach it.
			if g <= ancestorGen {
				continue
			}
			queue = append(queue, p)
		}
	}
	return false, nil
}
