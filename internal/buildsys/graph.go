package buildsys

import "fmt"

// Node is one target's position in a batch's build graph: it must be
// compiled after every target named in Requires.
type Node struct {
	Name     string
	Requires []string
}

// Order topologically sorts nodes with Kahn's algorithm, the same
// in-degree-queue shape the teacher uses for module load ordering
// (kernel/threads/registry/loader.go GetDependencyOrder), adapted here
// from module IDs to build targets.
func Order(nodes []Node) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	graph := make(map[string][]string, len(nodes))
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.Name] = true
		if _, ok := inDegree[n.Name]; !ok {
			inDegree[n.Name] = 0
		}
	}

	for _, n := range nodes {
		for _, req := range n.Requires {
			if !known[req] {
				continue // dependency outside this batch; nothing to order against
			}
			graph[req] = append(graph[req], n.Name)
			inDegree[n.Name]++
		}
	}

	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if inDegree[n.Name] == 0 {
			queue = append(queue, n.Name)
		}
	}

	result := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, name)

		for _, neighbor := range graph[name] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(nodes) {
		return nil, fmt.Errorf("buildsys: circular dependency among batch targets")
	}
	return result, nil
}
