package repo

import (
	"fmt"
	"sync"

	"github.com/odvcencio/grit/pkg/object"
)

type mergeBasePair struct {
	left  object.Hash
	right object.Hash
}

type mergeBaseResult struct {
	base  object.Hash
	found bool
}

// mergeBaseTraversalState memoizes generation numbers and merge-base
// answers for one Repo. Commit bodies are cached by the object store.
type mergeBaseTraversalState struct {
	mu sync.RWMutex

	generations map[object.Hash]uint64
	bases       map[mergeBasePair]mergeBaseResult
}

func newMergeBaseTraversalState() *mergeBaseTraversalState {
	return &mergeBaseTraversalState{
		generations: make(map[object.Hash]uint64),
		bases:       make(map[mergeBasePair]mergeBaseResult),
	}
}

func orderedPair(a, b object.Hash) mergeBasePair {
	if a <= b {
		return mergeBasePair{left: a, right: b}
	}
	return mergeBasePair{left: b, right: a}
}

func (s *mergeBaseTraversalState) cachedBase(a, b object.Hash) (mergeBaseResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.bases[orderedPair(a, b)]
	return res, ok
}

func (s *mergeBaseTraversalState) rememberBase(a, b, base object.Hash, found bool) {
	s.mu.Lock()
	s.bases[orderedPair(a, b)] = mergeBaseResult{base: base, found: found}
	s.mu.Unlock()
}

func (s *mergeBaseTraversalState) parents(r *Repo, h object.Hash) ([]object.Hash, error) {
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h, err)
	}
	return c.Parents, nil
}

// generation returns 1 + the largest parent generation; root commits are 1.
// It walks iteratively so deep linear histories do not grow the stack.
func (s *mergeBaseTraversalState) generation(r *Repo, h object.Hash) (uint64, error) {
	if h == "" {
		return 0, nil
	}
	s.mu.RLock()
	g, ok := s.generations[h]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	type frame struct {
		hash    object.Hash
		parents []object.Hash
	}
	onStack := map[object.Hash]bool{h: true}
	ps, err := s.parents(r, h)
	if err != nil {
		return 0, err
	}
	stack := []frame{{hash: h, parents: ps}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		pending := object.Hash("")
		var best uint64
		for _, p := range top.parents {
			s.mu.RLock()
			pg, known := s.generations[p]
			s.mu.RUnlock()
			if !known {
				pending = p
				break
			}
			best = max(best, pg)
		}
		if pending != "" {
			if onStack[pending] {
				return 0, fmt.Errorf("commit graph cycle detected at %s", pending)
			}
			pps, err := s.parents(r, pending)
			if err != nil {
				return 0, err
			}
			onStack[pending] = true
			stack = append(stack, frame{hash: pending, parents: pps})
			continue
		}

		s.mu.Lock()
		s.generations[top.hash] = best + 1
		s.mu.Unlock()
		delete(onStack, top.hash)
		stack = stack[:len(stack)-1]
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[h], nil
}
