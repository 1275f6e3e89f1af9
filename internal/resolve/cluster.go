package resolve

import "sort"

// Edge is an undirected similarity edge between two graph nodes (mention or
// entity ids) with its comparator score.
type Edge struct {
	A, B  string
	Score float64
}

// Graph is a similarity graph over mentions and candidate entities.
// Clustering takes connected components rather than greedy pairwise
// matching, so matching is transitive: A~B and B~C cluster {A,B,C} even
// without a direct A-C edge.
type Graph struct {
	parent   map[string]string
	rank     map[string]int
	entity   map[string]bool
	edges    []Edge
	nodeSeen map[string]bool
	order    []string
}

// NewGraph creates an empty similarity graph.
func NewGraph() *Graph {
	return &Graph{
		parent:   make(map[string]string),
		rank:     make(map[string]int),
		entity:   make(map[string]bool),
		nodeSeen: make(map[string]bool),
	}
}

// AddMention registers a mention node.
func (g *Graph) AddMention(id string) { g.addNode(id, false) }

// AddEntity registers a candidate entity node.
func (g *Graph) AddEntity(id string) { g.addNode(id, true) }

func (g *Graph) addNode(id string, isEntity bool) {
	if g.nodeSeen[id] {
		return
	}
	g.nodeSeen[id] = true
	g.parent[id] = id
	g.rank[id] = 0
	g.entity[id] = isEntity
	g.order = append(g.order, id)
}

// AddEdge links two nodes with a similarity score, registering them if
// needed. Mention-entity edges mark the entity as a candidate for the
// mention's component.
func (g *Graph) AddEdge(a, b string, score float64) {
	if a == b {
		return
	}
	g.addNode(a, g.entity[a])
	g.addNode(b, g.entity[b])
	g.edges = append(g.edges, Edge{A: a, B: b, Score: score})
	g.union(a, b)
}

func (g *Graph) find(id string) string {
	root := id
	for g.parent[root] != root {
		root = g.parent[root]
	}
	// Path compression.
	for g.parent[id] != root {
		g.parent[id], id = root, g.parent[id]
	}
	return root
}

func (g *Graph) union(a, b string) {
	ra, rb := g.find(a), g.find(b)
	if ra == rb {
		return
	}
	if g.rank[ra] < g.rank[rb] {
		ra, rb = rb, ra
	}
	g.parent[rb] = ra
	if g.rank[ra] == g.rank[rb] {
		g.rank[ra]++
	}
}

// Component is one connected component of the similarity graph.
type Component struct {
	MentionIDs []string
	EntityIDs  []string
	Edges      []Edge
}

// Ambiguous reports whether the component ties together more than one
// existing entity. Such ties are escalated to human review, never silently
// broken.
func (c *Component) Ambiguous() bool {
	return len(c.EntityIDs) > 1
}

// BestScore returns the maximum edge score incident to the given node.
func (c *Component) BestScore(id string) float64 {
	best := 0.0
	for _, e := range c.Edges {
		if (e.A == id || e.B == id) && e.Score > best {
			best = e.Score
		}
	}
	return best
}

// Components returns the connected components with node ids sorted for
// deterministic processing order.
func (g *Graph) Components() []Component {
	byRoot := make(map[string]*Component)
	var roots []string
	for _, id := range g.order {
		root := g.find(id)
		c, ok := byRoot[root]
		if !ok {
			c = &Component{}
			byRoot[root] = c
			roots = append(roots, root)
		}
		if g.entity[id] {
			c.EntityIDs = append(c.EntityIDs, id)
		} else {
			c.MentionIDs = append(c.MentionIDs, id)
		}
	}
	for _, e := range g.edges {
		byRoot[g.find(e.A)].Edges = append(byRoot[g.find(e.A)].Edges, e)
	}

	out := make([]Component, 0, len(roots))
	for _, root := range roots {
		c := byRoot[root]
		sort.Strings(c.MentionIDs)
		sort.Strings(c.EntityIDs)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return componentKey(out[i]) < componentKey(out[j])
	})
	return out
}

func componentKey(c Component) string {
	if len(c.MentionIDs) > 0 {
		return c.MentionIDs[0]
	}
	if len(c.EntityIDs) > 0 {
		return c.EntityIDs[0]
	}
	return ""
}

// MatchClosure computes the transitive closure of strong matches inside a
// component: starting from the seed nodes, every node reachable through
// edges at or above threshold joins the closure.
func (c *Component) MatchClosure(seeds []string, threshold float64) map[string]bool {
	in := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		in[s] = true
	}
	for changed := true; changed; {
		changed = false
		for _, e := range c.Edges {
			if e.Score < threshold {
				continue
			}
			switch {
			case in[e.A] && !in[e.B]:
				in[e.B] = true
				changed = true
			case in[e.B] && !in[e.A]:
				in[e.A] = true
				changed = true
			}
		}
	}
	return in
}
