package topo

import "github.com/san-kum/trussopt/internal/model"

// Graph is an undirected adjacency arena over the currently-active nodes
// of a structure. Adjacency lists are built once; Remove and Restore only
// flip a presence bit, and traversals skip absent vertices.
type Graph struct {
	present []bool
	adj     [][]int
	count   int
}

// FromStructure builds the graph of active nodes connected by
// mechanically active springs, optionally excluding a trial removal set.
func FromStructure(st *model.Structure, exclude map[int]struct{}) *Graph {
	g := &Graph{
		present: make([]bool, len(st.Nodes)),
		adj:     make([][]int, len(st.Nodes)),
	}
	for i := range st.Nodes {
		if !st.Nodes[i].Active {
			continue
		}
		if _, skip := exclude[i]; skip {
			continue
		}
		g.present[i] = true
		g.count++
	}
	for i := range st.Springs {
		s := &st.Springs[i]
		if !s.Active {
			continue
		}
		if !g.Has(s.I) || !g.Has(s.J) {
			continue
		}
		g.adj[s.I] = append(g.adj[s.I], s.J)
		g.adj[s.J] = append(g.adj[s.J], s.I)
	}
	return g
}

// Has reports whether id is currently in the graph.
func (g *Graph) Has(id int) bool {
	return id >= 0 && id < len(g.present) && g.present[id]
}

// NumNodes returns the number of present vertices.
func (g *Graph) NumNodes() int { return g.count }

// Remove takes id out of the graph. No-op when already absent.
func (g *Graph) Remove(id int) {
	if g.Has(id) {
		g.present[id] = false
		g.count--
	}
}

// Restore re-inserts a vertex removed by Remove.
func (g *Graph) Restore(id int) {
	if id >= 0 && id < len(g.present) && !g.present[id] {
		g.present[id] = true
		g.count++
	}
}

// Neighbors calls fn for each present neighbor of id.
func (g *Graph) Neighbors(id int, fn func(nb int)) {
	for _, nb := range g.adj[id] {
		if g.present[nb] {
			fn(nb)
		}
	}
}

// Connected reports whether all present vertices form one component.
// The empty and single-vertex graphs count as connected.
func (g *Graph) Connected() bool {
	if g.count <= 1 {
		return true
	}
	start := -1
	for id, p := range g.present {
		if p {
			start = id
			break
		}
	}
	return len(g.reachable(start)) == g.count
}

// reachable returns the ids reachable from start via present vertices.
func (g *Graph) reachable(start int) []int {
	visited := make([]bool, len(g.present))
	visited[start] = true
	queue := []int{start}
	order := []int{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, nb := range g.adj[v] {
			if g.present[nb] && !visited[nb] {
				visited[nb] = true
				queue = append(queue, nb)
				order = append(order, nb)
			}
		}
	}
	return order
}

// Components returns the connected components over present vertices.
func (g *Graph) Components() [][]int {
	seen := make([]bool, len(g.present))
	var comps [][]int
	for id, p := range g.present {
		if !p || seen[id] {
			continue
		}
		comp := g.reachable(id)
		for _, v := range comp {
			seen[v] = true
		}
		comps = append(comps, comp)
	}
	return comps
}

// ArticulationPoints returns the present vertices whose removal would
// split their component. Iterative Tarjan lowpoint computation.
func (g *Graph) ArticulationPoints() []int {
	n := len(g.present)
	disc := make([]int, n)
	low := make([]int, n)
	parent := make([]int, n)
	isAP := make([]bool, n)
	for i := range parent {
		parent[i] = -1
		disc[i] = -1
	}
	timer := 0

	type frame struct {
		v, idx int
	}
	for root := 0; root < n; root++ {
		if !g.present[root] || disc[root] != -1 {
			continue
		}
		rootChildren := 0
		stack := []frame{{root, 0}}
		disc[root] = timer
		low[root] = timer
		timer++
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			v := top.v
			if top.idx < len(g.adj[v]) {
				nb := g.adj[v][top.idx]
				top.idx++
				if !g.present[nb] {
					continue
				}
				if disc[nb] == -1 {
					parent[nb] = v
					if v == root {
						rootChildren++
					}
					disc[nb] = timer
					low[nb] = timer
					timer++
					stack = append(stack, frame{nb, 0})
				} else if nb != parent[v] && disc[nb] < low[v] {
					low[v] = disc[nb]
				}
				continue
			}
			stack = stack[:len(stack)-1]
			p := parent[v]
			if p != -1 {
				if low[v] < low[p] {
					low[p] = low[v]
				}
				if p != root && low[v] >= disc[p] {
					isAP[p] = true
				}
			}
		}
		if rootChildren > 1 {
			isAP[root] = true
		}
	}

	var aps []int
	for id, ap := range isAP {
		if ap && g.present[id] {
			aps = append(aps, id)
		}
	}
	return aps
}
