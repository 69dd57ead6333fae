package sheet

import "sort"

// Diff is the multiset difference between a participant's old and new
// claimed-item lists. Added holds item IDs present in new but not matched
// in old; Removed holds the reverse. Both are sorted ascending so the
// result does not depend on input ordering.
type Diff struct {
	Added   []int
	Removed []int
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffItemIDs computes the multiset difference between two item-id lists.
// Each element is matched at most once and duplicates are tracked by
// count, so swapping two copies of the same id nets to an empty diff.
// The laws old - Removed + Added == new (as multisets) and
// DiffItemIDs(a, a) == (∅, ∅) hold for all inputs.
func DiffItemIDs(oldIDs, newIDs []int) Diff {
	counts := make(map[int]int, len(oldIDs))
	for _, id := range oldIDs {
		counts[id]++
	}
	for _, id := range newIDs {
		counts[id]--
	}

	var d Diff
	for id, n := range counts {
		switch {
		case n > 0:
			for i := 0; i < n; i++ {
				d.Removed = append(d.Removed, id)
			}
		case n < 0:
			for i := 0; i < -n; i++ {
				d.Added = append(d.Added, id)
			}
		}
	}

	sort.Ints(d.Added)
	sort.Ints(d.Removed)
	return d
}
