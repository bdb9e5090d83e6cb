package topo

import (
	"sort"

	"github.com/san-kum/trussopt/internal/model"
)

// ValidTopology reports whether the active graph (minus exclude) is
// connected and every load-bearing node can reach some support. A graph
// with at most one node, or with no loads at all, is trivially valid.
func ValidTopology(st *model.Structure, exclude map[int]struct{}) bool {
	g := FromStructure(st, exclude)
	if g.NumNodes() <= 1 {
		return true
	}
	if !g.Connected() {
		return false
	}

	loads := make([]int, 0, 4)
	for _, id := range st.LoadIDs() {
		if g.Has(id) {
			loads = append(loads, id)
		}
	}
	if len(loads) == 0 {
		return true
	}
	supports := make(map[int]struct{}, 4)
	for _, id := range st.SupportIDs() {
		if g.Has(id) {
			supports[id] = struct{}{}
		}
	}
	if len(supports) == 0 {
		return false
	}

	for _, lid := range loads {
		reached := false
		for _, v := range g.reachable(lid) {
			if _, hit := supports[v]; hit {
				reached = true
				break
			}
		}
		if !reached {
			return false
		}
	}
	return true
}

// directProtected returns active nodes carrying a load or any fixity.
func directProtected(st *model.Structure) map[int]struct{} {
	protected := make(map[int]struct{})
	for i := range st.Nodes {
		n := &st.Nodes[i]
		if !n.Active {
			continue
		}
		if n.Loaded() || n.Supported() {
			protected[i] = struct{}{}
		}
	}
	return protected
}

// ProtectedIDs returns directly protected nodes plus their graph
// neighbors. Neighbors are protected too: disconnecting one could strand
// a protected node's only connection.
func ProtectedIDs(st *model.Structure) []int {
	direct := directProtected(st)
	g := FromStructure(st, nil)
	all := make(map[int]struct{}, len(direct)*2)
	for id := range direct {
		all[id] = struct{}{}
		g.Neighbors(id, func(nb int) {
			all[nb] = struct{}{}
		})
	}
	ids := make([]int, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// RemovableNodes finds structurally useless nodes: whole components
// missing a support or a load, plus fragments that an articulation point
// separates from every protected node. The articulation sweep iterates to
// a fixed point, since removing one fragment can expose new articulation
// points.
func RemovableNodes(st *model.Structure) map[int]struct{} {
	protected := directProtected(st)
	supports := make(map[int]struct{})
	loads := make(map[int]struct{})
	for _, id := range st.SupportIDs() {
		supports[id] = struct{}{}
	}
	for _, id := range st.LoadIDs() {
		loads[id] = struct{}{}
	}

	removable := make(map[int]struct{})
	g := FromStructure(st, nil)

	for _, comp := range g.Components() {
		hasSupport, hasLoad := false, false
		for _, id := range comp {
			if _, hit := supports[id]; hit {
				hasSupport = true
			}
			if _, hit := loads[id]; hit {
				hasLoad = true
			}
		}
		if !hasSupport || !hasLoad {
			for _, id := range comp {
				removable[id] = struct{}{}
			}
		}
	}

	for {
		work := FromStructure(st, removable)
		if work.NumNodes() < 2 {
			break
		}
		changed := false
		for _, ap := range work.ArticulationPoints() {
			if _, gone := removable[ap]; gone {
				continue
			}
			work.Remove(ap)
			for _, frag := range work.Components() {
				disjoint := true
				for _, id := range frag {
					if _, hit := protected[id]; hit {
						disjoint = false
						break
					}
				}
				if disjoint {
					for _, id := range frag {
						removable[id] = struct{}{}
					}
					if _, hit := protected[ap]; !hit {
						removable[ap] = struct{}{}
					}
					changed = true
				}
			}
			work.Restore(ap)
		}
		if !changed {
			break
		}
	}
	return removable
}

// RemoveUselessNodes deactivates every removable node and returns the ids
// it removed, sorted.
func RemoveUselessNodes(st *model.Structure) []int {
	removable := RemovableNodes(st)
	if len(removable) == 0 {
		return nil
	}
	ids := make([]int, 0, len(removable))
	for id := range removable {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	st.DeactivateNodes(ids)
	return ids
}
