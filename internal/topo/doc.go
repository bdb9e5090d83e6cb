// Package topo analyzes the connectivity of the active node/spring graph.
//
// The optimizer inner loop removes and reinserts trial nodes thousands of
// times per run, so [Graph] is an arena over stable node ids with an O(1)
// presence toggle instead of a rebuilt graph object per trial:
//
//	g := topo.FromStructure(st, nil)
//	g.Remove(id)
//	if !g.Connected() {
//	    g.Restore(id)
//	}
package topo
