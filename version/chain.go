package version

import "sort"

// ChainNode is the minimal view of a stored version that chain
// reconstruction needs.
type ChainNode struct {
	ID       string
	ParentID string // empty for a first version
	Version  int
}

// Chain rebuilds the chronological version chain for one canonical name from
// parent pointers. Nodes whose parent is absent become additional roots, so
// an orphaned node still appears in the result. Parent-pointer cycles are
// broken by a visited set; cycle members unreachable from any root are
// appended at the end. Every input node appears exactly once.
func Chain(nodes []ChainNode) []string {
	byID := make(map[string]ChainNode, len(nodes))
	children := make(map[string][]ChainNode, len(nodes))
	var roots []ChainNode

	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		if _, ok := byID[n.ParentID]; !ok {
			// dangling parent pointer: treat as a root
			roots = append(roots, n)
			continue
		}
		children[n.ParentID] = append(children[n.ParentID], n)
	}

	sortNodes(roots)
	for _, c := range children {
		sortNodes(c)
	}

	visited := make(map[string]bool, len(nodes))
	chain := make([]string, 0, len(nodes))

	var walk func(n ChainNode)
	walk = func(n ChainNode) {
		if visited[n.ID] {
			return
		}
		visited[n.ID] = true
		chain = append(chain, n.ID)
		for _, c := range children[n.ID] {
			walk(c)
		}
	}

	for _, r := range roots {
		walk(r)
	}

	// nodes only reachable through a cycle have no root at all
	var leftover []ChainNode
	for _, n := range nodes {
		if !visited[n.ID] {
			leftover = append(leftover, n)
		}
	}
	sortNodes(leftover)
	for _, n := range leftover {
		walk(n)
	}

	return chain
}

func sortNodes(nodes []ChainNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Version != nodes[j].Version {
			return nodes[i].Version < nodes[j].Version
		}

		return nodes[i].ID < nodes[j].ID
	})
}
