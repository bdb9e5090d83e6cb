package optimize

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/trussopt/internal/model"
)

// RebuildResult reports what the support rebuilder did.
type RebuildResult struct {
	ReactivatedNodeIDs []int
	StressBefore       float64
	StressAfter        float64
	Candidates         int
	Clusters           int
	CombosTotal        int
	CombosTested       int
	Message            string
}

// RebuildOptions tunes the stressed-spring selection and the acceptance
// threshold of the rebuilder.
type RebuildOptions struct {
	// MinImprovement is the minimum relative stress reduction a subset
	// must deliver to be considered at all.
	MinImprovement float64
	// TopPercent selects the most stressed fraction of active springs.
	TopPercent float64
	// MinStressPct filters the selection to springs above this fraction
	// of the current max stress.
	MinStressPct float64
	OnProgress   func(tested, total int)
}

// DefaultRebuildOptions mirrors the interactive defaults.
func DefaultRebuildOptions() RebuildOptions {
	return RebuildOptions{
		MinImprovement: 0.05,
		TopPercent:     0.02,
		MinStressPct:   0.75,
	}
}

// RebuildSupport reactivates previously removed nodes next to the most
// stressed springs of an already-optimized structure. Candidates are
// clustered by connectivity through the stressed subgraph so independent
// hot-spots are searched separately; each cluster is brute-forced over
// all non-empty subsets (expanded with symmetry mirrors) and the cluster
// winners are recombined globally. The result is applied only when it
// strictly improves on the baseline stress.
func RebuildSupport(st *model.Structure, opts RebuildOptions) *RebuildResult {
	result := &RebuildResult{}

	u, err := solveStructure(st)
	if err != nil {
		result.Message = "structure is not solvable"
		return result
	}
	stressBefore := st.MaxStress(u)
	result.StressBefore = stressBefore
	result.StressAfter = stressBefore
	if stressBefore <= 0 {
		result.Message = "no stress present"
		return result
	}

	stresses := st.SpringStresses(u)
	type rankedSpring struct {
		idx    int
		stress float64
	}
	var ranked []rankedSpring
	for i := range st.Springs {
		if st.Springs[i].Active && stresses[i] > 0 {
			ranked = append(ranked, rankedSpring{i, stresses[i]})
		}
	}
	sort.Slice(ranked, func(a, b int) bool { return ranked[a].stress > ranked[b].stress })

	topCount := int(float64(len(ranked)) * opts.TopPercent)
	if topCount < 1 {
		topCount = 1
	}
	minStress := stressBefore * opts.MinStressPct

	var stressedSprings []int
	stressedNodes := make(map[int]struct{})
	for _, r := range ranked[:min(topCount, len(ranked))] {
		if r.stress < minStress {
			continue
		}
		stressedSprings = append(stressedSprings, r.idx)
		stressedNodes[st.Springs[r.idx].I] = struct{}{}
		stressedNodes[st.Springs[r.idx].J] = struct{}{}
	}
	if len(stressedNodes) == 0 {
		result.Message = "no highly stressed springs found"
		return result
	}

	// Bidirectional mirror lookup so either side of a pair resolves.
	var mirror map[int]int
	if m, ok := st.DetectSymmetry(1e-6); ok {
		mirror = make(map[int]int, 2*len(m))
		for a, b := range m {
			mirror[a] = b
			mirror[b] = a
		}
	}

	// Inactive neighbors of stressed nodes. Under symmetry, the smaller
	// id of a mirror pair represents both.
	candidateToStressed := make(map[int]map[int]struct{})
	for i := range st.Springs {
		s := &st.Springs[i]
		for _, pair := range [2][2]int{{s.I, s.J}, {s.J, s.I}} {
			hot, other := pair[0], pair[1]
			if _, stressedHit := stressedNodes[hot]; !stressedHit {
				continue
			}
			if st.Nodes[other].Active {
				continue
			}
			rep := other
			if mirror != nil {
				if m, hit := mirror[other]; hit && m < rep {
					rep = m
				}
			}
			if candidateToStressed[rep] == nil {
				candidateToStressed[rep] = make(map[int]struct{})
			}
			candidateToStressed[rep][hot] = struct{}{}
		}
	}
	if len(candidateToStressed) == 0 {
		result.Message = "no deactivated neighbor nodes available"
		return result
	}

	clusters := buildClusters(st, stressedSprings, candidateToStressed)
	if mirror != nil {
		clusters = reduceMirrorClusters(clusters, mirror)
	}

	for _, c := range clusters {
		result.Candidates += len(c)
		result.CombosTotal += (1 << len(c)) - 1
	}
	result.Clusters = len(clusters)

	expand := func(combo []int) []int {
		if mirror == nil {
			return append([]int(nil), combo...)
		}
		set := make(map[int]struct{}, 2*len(combo))
		for _, id := range combo {
			set[id] = struct{}{}
			if m, hit := mirror[id]; hit {
				set[m] = struct{}{}
			}
		}
		out := make([]int, 0, len(set))
		for id := range set {
			out = append(out, id)
		}
		sort.Ints(out)
		return out
	}

	trial := func(ids []int) (float64, bool) {
		var toggle []int
		for _, id := range ids {
			if !st.Nodes[id].Active {
				toggle = append(toggle, id)
			}
		}
		st.ReactivateNodes(toggle)
		uTrial, err := solveStructure(st)
		var stress float64
		ok := err == nil
		if ok {
			stress = st.MaxStress(uTrial)
		}
		st.DeactivateNodes(toggle)
		return stress, ok
	}

	// Local search per cluster.
	tested := 0
	var clusterWinners [][]int
	for _, cluster := range clusters {
		var bestCombo []int
		bestScore := 0.0
		bestStress := stressBefore
		for size := 1; size <= len(cluster); size++ {
			forEachCombination(cluster, size, func(combo []int) {
				tested++
				ids := expand(combo)
				if stress, ok := trial(ids); ok {
					reduction := (stressBefore - stress) / stressBefore
					if reduction >= opts.MinImprovement {
						score := reduction / math.Sqrt(float64(len(combo)))
						if score > bestScore || (score == bestScore && stress < bestStress) {
							bestScore = score
							bestStress = stress
							bestCombo = ids
						}
					}
				}
				if opts.OnProgress != nil {
					opts.OnProgress(tested, result.CombosTotal)
				}
			})
		}
		if len(bestCombo) > 0 {
			clusterWinners = append(clusterWinners, bestCombo)
		}
	}
	result.CombosTested = tested

	// Global recombination of cluster winners.
	var bestNodes []int
	bestStress := stressBefore
	for r := 1; r <= len(clusterWinners); r++ {
		forEachGroupCombination(clusterWinners, r, func(groups [][]int) {
			set := make(map[int]struct{})
			for _, g := range groups {
				for _, id := range g {
					set[id] = struct{}{}
				}
			}
			flat := make([]int, 0, len(set))
			for id := range set {
				flat = append(flat, id)
			}
			sort.Ints(flat)
			if stress, ok := trial(flat); ok && stress < bestStress {
				bestStress = stress
				bestNodes = flat
			}
		})
	}

	if len(bestNodes) > 0 && bestStress < stressBefore {
		st.ReactivateNodes(bestNodes)
		result.ReactivatedNodeIDs = bestNodes
		result.StressAfter = bestStress
		reduction := (stressBefore - bestStress) / stressBefore * 100
		result.Message = fmt.Sprintf("%d nodes reactivated, stress reduced from %.1f to %.1f MPa (%.1f%%)",
			len(bestNodes), stressBefore/1e6, bestStress/1e6, reduction)
		return result
	}
	result.Message = "no improvement achieved"
	return result
}

// buildClusters groups candidates whose stressed neighbors are connected
// through the stressed-spring subgraph, so independent hot-spots are
// optimized separately.
func buildClusters(st *model.Structure, stressedSprings []int, candidateToStressed map[int]map[int]struct{}) [][]int {
	adj := make(map[int][]int)
	for _, idx := range stressedSprings {
		s := &st.Springs[idx]
		adj[s.I] = append(adj[s.I], s.J)
		adj[s.J] = append(adj[s.J], s.I)
	}

	nodeToComp := make(map[int]int)
	comp := 0
	for start := range adj {
		if _, seen := nodeToComp[start]; seen {
			continue
		}
		stack := []int{start}
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, seen := nodeToComp[v]; seen {
				continue
			}
			nodeToComp[v] = comp
			stack = append(stack, adj[v]...)
		}
		comp++
	}

	grouped := make(map[int][]int)
	candidates := make([]int, 0, len(candidateToStressed))
	for c := range candidateToStressed {
		candidates = append(candidates, c)
	}
	sort.Ints(candidates)
	for _, candidate := range candidates {
		for hot := range candidateToStressed[candidate] {
			if compIdx, hit := nodeToComp[hot]; hit {
				grouped[compIdx] = append(grouped[compIdx], candidate)
				break
			}
		}
	}

	compIdxs := make([]int, 0, len(grouped))
	for idx := range grouped {
		compIdxs = append(compIdxs, idx)
	}
	sort.Ints(compIdxs)
	clusters := make([][]int, 0, len(compIdxs))
	for _, idx := range compIdxs {
		clusters = append(clusters, grouped[idx])
	}
	return clusters
}

// reduceMirrorClusters keeps one representative per mirror pair so the
// brute-force subsets stay small; expansion adds the mirrors back.
func reduceMirrorClusters(clusters [][]int, mirror map[int]int) [][]int {
	seen := make(map[int]struct{})
	var reduced [][]int
	for _, cluster := range clusters {
		var oneSide []int
		for _, id := range cluster {
			if _, done := seen[id]; done {
				continue
			}
			m, hit := mirror[id]
			if !hit {
				m = id
			}
			seen[id] = struct{}{}
			seen[m] = struct{}{}
			if m < id {
				id = m
			}
			oneSide = append(oneSide, id)
		}
		if len(oneSide) > 0 {
			reduced = append(reduced, oneSide)
		}
	}
	return reduced
}

// forEachCombination visits every size-k subset of items in order.
func forEachCombination(items []int, k int, fn func([]int)) {
	combo := make([]int, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			fn(combo)
			return
		}
		for i := start; i <= len(items)-(k-depth); i++ {
			combo[depth] = items[i]
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
}

// forEachGroupCombination visits every size-k subset of groups.
func forEachGroupCombination(groups [][]int, k int, fn func([][]int)) {
	combo := make([][]int, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			fn(combo)
			return
		}
		for i := start; i <= len(groups)-(k-depth); i++ {
			combo[depth] = groups[i]
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
}
