package theme

// FindCycle reports a dependency cycle reachable from start, walking edges
// "a depends on b". The returned path begins and ends with the same id. It
// returns nil when the reachable subgraph is acyclic.
func FindCycle(graph map[string][]string, start string) []string {
	type frame struct {
		id   string
		next int
	}

	visiting := make(map[string]bool)
	done := make(map[string]bool)
	stack := []frame{{id: start}}
	visiting[start] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		deps := graph[top.id]
		if top.next >= len(deps) {
			visiting[top.id] = false
			done[top.id] = true
			stack = stack[:len(stack)-1]
			continue
		}

		dep := deps[top.next]
		top.next++

		if visiting[dep] {
			path := make([]string, 0, len(stack)+1)
			inCycle := false
			for _, f := range stack {
				if f.id == dep {
					inCycle = true
				}
				if inCycle {
					path = append(path, f.id)
				}
			}
			return append(path, dep)
		}
		if done[dep] {
			continue
		}
		visiting[dep] = true
		stack = append(stack, frame{id: dep})
	}
	return nil
}
