// Copyright (c) 2025 loonghao
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package manifest

import (
	"fmt"
	"sort"
)

// ScriptOrder returns the execution order for one requested script: its
// transitive dependencies first, the script last. Ordering is
// deterministic; among ready scripts the lexicographically smallest runs
// first. A dependency cycle is an error.
func (m *Manifest) ScriptOrder(name string) ([]string, error) {
	if _, ok := m.Scripts[name]; !ok {
		return nil, fmt.Errorf("unknown script %q", name)
	}

	// Collect the transitive closure.
	needed := make(map[string]bool)
	var collect func(n string)
	collect = func(n string) {
		if needed[n] {
			return
		}
		needed[n] = true
		for _, dep := range m.Scripts[n].Depends {
			collect(dep)
		}
	}
	collect(name)

	// Kahn's algorithm with a sorted ready set.
	indegree := make(map[string]int, len(needed))
	dependents := make(map[string][]string, len(needed))
	for n := range needed {
		indegree[n] += 0
		for _, dep := range m.Scripts[n].Depends {
			indegree[n]++
			dependents[dep] = append(dependents[dep], n)
		}
	}

	var ready []string
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(needed))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		changed := false
		for _, dep := range dependents[n] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				changed = true
			}
		}
		if changed {
			sort.Strings(ready)
		}
	}

	if len(order) != len(needed) {
		var stuck []string
		for n, d := range indegree {
			if d > 0 {
				stuck = append(stuck, n)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("script dependency cycle involving %v", stuck)
	}
	return order, nil
}
