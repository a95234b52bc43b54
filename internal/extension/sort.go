package extension

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// CycleError reports extensions whose peer dependencies form a cycle.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return "extension dependency cycle detected between: " + strings.Join(e.Names, ", ")
}

// Sort orders extensions so that each one comes after every extension in
// the groups it depends on. Extensions sharing a name form one group.
// Dependencies on groups that are not present are ignored. Ties are broken
// by name, then path, so the result does not depend on directory order.
func Sort(exts []*LocalExtension) ([]*LocalExtension, error) {
	nodes := make([]*LocalExtension, len(exts))
	copy(nodes, exts)
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].Path < nodes[j].Path
	})

	groups := map[string][]int{}
	for i, n := range nodes {
		groups[n.Name] = append(groups[n.Name], i)
	}

	pending := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, dep := range lo.Uniq(n.Deps) {
			for _, j := range groups[dep] {
				pending[i]++
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	sorted := make([]*LocalExtension, 0, len(nodes))
	done := make([]bool, len(nodes))
	for len(sorted) < len(nodes) {
		next := -1
		for i := range nodes {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		done[next] = true
		sorted = append(sorted, nodes[next])
		for _, d := range dependents[next] {
			pending[d]--
		}
	}

	if len(sorted) < len(nodes) {
		var names []string
		for i, n := range nodes {
			if !done[i] {
				names = append(names, n.Name)
			}
		}
		names = lo.Uniq(names)
		sort.Strings(names)
		return nil, &CycleError{Names: names}
	}
	return sorted, nil
}
