package optimize

import (
	"sort"

	"github.com/san-kum/trussopt/internal/model"
	"github.com/san-kum/trussopt/internal/solver"
	"github.com/san-kum/trussopt/internal/topo"
)

// driver holds the per-run state shared by all topology optimizers:
// the symmetry mirror map and the blacklist of nodes whose removal has
// already failed.
type driver struct {
	mirror    map[int]int
	blacklist map[int]struct{}
}

func newDriver(st *model.Structure) *driver {
	d := &driver{blacklist: make(map[int]struct{})}
	if mirror, ok := st.DetectSymmetry(1e-6); ok {
		d.mirror = mirror
	}
	return d
}

func solveStructure(st *model.Structure) ([]float64, error) {
	k, err := st.AssembleStiffness()
	if err != nil {
		return nil, err
	}
	return solver.Solve(k, st.AssembleLoad(), st.FixedDofs())
}

// selectCandidates picks a batch of max(1, active*fraction) removal
// candidates sorted by ascending score, skipping protected and
// blacklisted nodes, keeping only removals that preserve connectivity.
func (d *driver) selectCandidates(st *model.Structure, scores []float64, fraction float64) []int {
	activeIDs := st.ActiveNodeIDs()
	if len(activeIDs) == 0 {
		return nil
	}
	targetRemove := int(float64(len(activeIDs)) * fraction)
	if targetRemove < 1 {
		targetRemove = 1
	}

	protected := make(map[int]struct{})
	for _, id := range topo.ProtectedIDs(st) {
		protected[id] = struct{}{}
	}
	for id := range d.blacklist {
		protected[id] = struct{}{}
	}

	removable := make([]int, 0, len(activeIDs))
	for _, id := range activeIDs {
		if _, skip := protected[id]; !skip {
			removable = append(removable, id)
		}
	}
	if len(removable) == 0 {
		return nil
	}
	sort.SliceStable(removable, func(a, b int) bool {
		return scores[removable[a]] < scores[removable[b]]
	})

	if d.mirror != nil {
		return d.selectSymmetric(st, removable, targetRemove)
	}
	return d.selectGreedy(st, removable, targetRemove)
}

// selectGreedy walks the sorted candidates, accepting each only if its
// removal keeps the remaining graph connected. The check runs on a
// mutable graph: remove, test, revert on failure.
func (d *driver) selectGreedy(st *model.Structure, sorted []int, targetRemove int) []int {
	var selected []int
	g := topo.FromStructure(st, nil)
	for _, nid := range sorted {
		if len(selected) >= targetRemove {
			break
		}
		if !g.Has(nid) {
			continue
		}
		g.Remove(nid)
		if g.NumNodes() > 1 && g.Connected() {
			selected = append(selected, nid)
		} else {
			g.Restore(nid)
		}
	}
	return selected
}

// selectSymmetric processes candidates as mirror pairs: both accepted
// together or neither. Nodes on the axis behave like singles.
func (d *driver) selectSymmetric(st *model.Structure, sorted []int, targetRemove int) []int {
	var selected []int
	processed := make(map[int]struct{})
	removableSet := make(map[int]struct{}, len(sorted))
	for _, id := range sorted {
		removableSet[id] = struct{}{}
	}
	g := topo.FromStructure(st, nil)

	tryRemove := func(ids []int) bool {
		removed := make([]int, 0, len(ids))
		for _, id := range ids {
			if g.Has(id) {
				g.Remove(id)
				removed = append(removed, id)
			}
		}
		if g.NumNodes() > 1 && g.Connected() {
			return true
		}
		for _, id := range removed {
			g.Restore(id)
		}
		return false
	}

	for _, nid := range sorted {
		if len(selected) >= targetRemove {
			break
		}
		if _, done := processed[nid]; done {
			continue
		}
		mid, hasMirror := d.mirror[nid]
		if !hasMirror || mid == nid {
			if tryRemove([]int{nid}) {
				selected = append(selected, nid)
				processed[nid] = struct{}{}
			}
			continue
		}
		_, mirrorRemovable := removableSet[mid]
		_, mirrorProcessed := processed[mid]
		if mirrorRemovable && !mirrorProcessed {
			if tryRemove([]int{nid, mid}) {
				selected = append(selected, nid, mid)
				processed[nid] = struct{}{}
				processed[mid] = struct{}{}
			}
		}
	}
	return selected
}

// mirrorGroups partitions a candidate batch into mirror pairs and
// singles for the fine-grained retry after a failed batch removal.
func (d *driver) mirrorGroups(candidates []int) [][]int {
	seen := make(map[int]struct{}, len(candidates))
	inBatch := make(map[int]struct{}, len(candidates))
	for _, id := range candidates {
		inBatch[id] = struct{}{}
	}
	var groups [][]int
	for _, nid := range candidates {
		if _, done := seen[nid]; done {
			continue
		}
		mid, hasMirror := 0, false
		if d.mirror != nil {
			mid, hasMirror = d.mirror[nid]
		}
		if hasMirror && mid != nid {
			_, mirrorInBatch := inBatch[mid]
			_, mirrorSeen := seen[mid]
			if mirrorInBatch && !mirrorSeen {
				groups = append(groups, []int{nid, mid})
				seen[nid] = struct{}{}
				seen[mid] = struct{}{}
				continue
			}
		}
		groups = append(groups, []int{nid})
		seen[nid] = struct{}{}
	}
	return groups
}

func (d *driver) blacklistWithMirror(ids []int) {
	for _, id := range ids {
		d.blacklist[id] = struct{}{}
		if d.mirror != nil {
			if mid, hit := d.mirror[id]; hit {
				d.blacklist[mid] = struct{}{}
			}
		}
	}
}

func exceedsStress(st *model.Structure, u []float64, maxStress float64) bool {
	if maxStress <= 0 {
		return false
	}
	return st.MaxStress(u) > maxStress
}

// tryStressRedistribution deactivates the unprotected endpoints of the
// single most-stressed spring. The change sticks only when the new max
// stress strictly decreases under a valid solve; otherwise it is reverted
// and the endpoints (plus mirrors) are blacklisted.
func (d *driver) tryStressRedistribution(st *model.Structure, u []float64) bool {
	protected := make(map[int]struct{})
	for _, id := range topo.ProtectedIDs(st) {
		protected[id] = struct{}{}
	}
	for id := range d.blacklist {
		protected[id] = struct{}{}
	}
	i, j, ok := st.MostStressedSpringNodes(u)
	if !ok {
		return false
	}
	var removable []int
	for _, id := range []int{i, j} {
		if _, hit := protected[id]; !hit {
			removable = append(removable, id)
		}
	}
	if len(removable) == 0 {
		return false
	}

	oldStress := st.MaxStress(u)
	st.DeactivateNodes(removable)
	if uNew, err := solveStructure(st); err == nil && st.MaxStress(uNew) < oldStress {
		return true
	}
	st.ReactivateNodes(removable)
	d.blacklistWithMirror(removable)
	return false
}
