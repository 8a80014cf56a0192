package repo

import (
	"fmt"

	"github.com/odvcencio/grit/pkg/object"
)

// RevList returns the commits reachable from include but not from
// exclude, oldest first. Parents always precede their children; among
// siblings the first-parent line comes first.
func (r *Repo) RevList(include, exclude []object.Hash) ([]object.Hash, error) {
	hidden, err := r.reachable(exclude)
	if err != nil {
		return nil, fmt.Errorf("rev-list: %w", err)
	}

	type frame struct {
		hash    object.Hash
		parents []object.Hash
		next    int
	}
	var out []object.Hash
	done := make(map[object.Hash]bool)
	onStack := make(map[object.Hash]bool)

	for _, start := range include {
		if start == "" || hidden[start] || done[start] {
			continue
		}
		c, err := r.Store.ReadCommit(start)
		if err != nil {
			return nil, fmt.Errorf("rev-list: read commit %s: %w", start, err)
		}
		stack := []frame{{hash: start, parents: c.Parents}}
		onStack[start] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.parents) {
				p := top.parents[top.next]
				top.next++
				if hidden[p] || done[p] {
					continue
				}
				if onStack[p] {
					return nil, fmt.Errorf("rev-list: commit graph cycle detected at %s", p)
				}
				pc, err := r.Store.ReadCommit(p)
				if err != nil {
					return nil, fmt.Errorf("rev-list: read commit %s: %w", p, err)
				}
				onStack[p] = true
				stack = append(stack, frame{hash: p, parents: pc.Parents})
				continue
			}
			done[top.hash] = true
			delete(onStack, top.hash)
			out = append(out, top.hash)
			stack = stack[:len(stack)-1]
		}
	}
	return out, nil
}

// reachable returns every commit reachable from starts, inclusive.
func (r *Repo) reachable(starts []object.Hash) (map[object.Hash]bool, error) {
	seen := make(map[object.Hash]bool)
	queue := make([]object.Hash, 0, len(starts))
	for _, s := range starts {
		if s != "" && !seen[s] {
			seen[s] = true
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", cur, err)
		}
		for _, p := range c.Parents {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return seen, nil
}
