// Package hierarchy resolves the nearest anchor ancestor of every entity.
package hierarchy

// State classifies the outcome of a parent walk.
type State int

const (
	// Anchored entities reach an anchor.
	Anchored State = iota
	// Orphan entities reach a node without a parent.
	Orphan
	// Cycle entities revisit a node before reaching an anchor.
	Cycle
)

func (s State) String() string {
	switch s {
	case Anchored:
		return "anchored"
	case Orphan:
		return "orphan"
	case Cycle:
		return "cycle"
	}
	return "unknown"
}

// Resolution is the walk result of one entity. Root is set only when Anchored.
type Resolution struct {
	State State
	Root  int64
}

// Resolve walks each entity's parent chain iteratively. An anchor is its own
// root. Every node seen on a walk is memoized with the walk's outcome.
func Resolve(entityIDs []int64, parents map[int64]int64, anchors map[int64]bool) map[int64]Resolution {
	memo := make(map[int64]Resolution, len(entityIDs))

	for _, id := range entityIDs {
		if _, ok := memo[id]; ok {
			continue
		}

		var path []int64
		onPath := map[int64]bool{}
		cur := id
		var res Resolution

		for {
			if r, ok := memo[cur]; ok {
				res = r
				break
			}
			if anchors[cur] {
				res = Resolution{State: Anchored, Root: cur}
				break
			}
			if onPath[cur] {
				res = Resolution{State: Cycle}
				break
			}
			path = append(path, cur)
			onPath[cur] = true

			next, ok := parents[cur]
			if !ok {
				res = Resolution{State: Orphan}
				break
			}
			cur = next
		}

		if res.State == Anchored && anchors[cur] {
			memo[cur] = res
		}
		for _, n := range path {
			memo[n] = res
		}
	}

	out := make(map[int64]Resolution, len(entityIDs))
	for _, id := range entityIDs {
		out[id] = memo[id]
	}
	return out
}

// ResolveRoots is Resolve collapsed to a nullable root per entity.
func ResolveRoots(entityIDs []int64, parents map[int64]int64, anchors map[int64]bool) map[int64]*int64 {
	return Roots(Resolve(entityIDs, parents, anchors))
}

// Roots maps anchored resolutions to their root and everything else to nil.
func Roots(res map[int64]Resolution) map[int64]*int64 {
	out := make(map[int64]*int64, len(res))
	for id, r := range res {
		if r.State != Anchored {
			out[id] = nil
			continue
		}
		root := r.Root
		out[id] = &root
	}
	return out
}

// Counts tallies resolutions by state.
func Counts(res map[int64]Resolution) map[State]int {
	out := map[State]int{}
	for _, r := range res {
		out[r.State]++
	}
	return out
}
