package template

// CycleResult reports circular references among a set of named
// templates. Each cycle is the chain of names from the first
// occurrence of the revisited node through the node that closed the
// loop, inclusive.
type CycleResult struct {
	HasCycles bool
	Cycles    [][]string
}

// DetectCircularReferences takes a map from variable name to its
// template text, builds the dependency graph (an edge A->B when A's
// template references B by name) and reports every cycle found,
// including self-references. Shared dependencies that do not close a
// loop (diamond shapes) are not cycles.
func DetectCircularReferences(templates map[string]string) CycleResult {
	edges := make(map[string][]string, len(templates))
	for name, text := range templates {
		parsed := Parse(text)
		seen := map[string]bool{}
		for _, ref := range parsed.References {
			if _, ok := templates[ref.Name]; !ok {
				continue
			}
			if seen[ref.Name] {
				continue
			}
			seen[ref.Name] = true
			edges[name] = append(edges[name], ref.Name)
		}
	}

	var result CycleResult
	visited := map[string]bool{}

	// Iterative depth-first search with an explicit recursion stack;
	// a back-edge into the stack is a cycle. Nodes are never
	// re-expanded once fully explored, so diamonds terminate.
	for start := range templates {
		if visited[start] {
			continue
		}

		type frame struct {
			node string
			next int
		}
		stack := []frame{{node: start}}
		onStack := map[string]int{start: 0}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := edges[top.node]
			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				if at, ok := onStack[dep]; ok {
					cycle := make([]string, 0, len(stack)-at)
					for _, f := range stack[at:] {
						cycle = append(cycle, f.node)
					}
					result.Cycles = append(result.Cycles, cycle)
					continue
				}
				if visited[dep] {
					continue
				}
				onStack[dep] = len(stack)
				stack = append(stack, frame{node: dep})
				continue
			}
			visited[top.node] = true
			delete(onStack, top.node)
			stack = stack[:len(stack)-1]
		}
	}

	result.HasCycles = len(result.Cycles) > 0
	return result
}
