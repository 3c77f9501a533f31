package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/me/vmbroker/pkg/model"
)

// Depth validates the dependency edges of nodes and returns the number of
// nodes on the longest dependency chain. It uses Kahn's algorithm, so a
// cycle leaves nodes unvisited and is reported with model.ErrCycle.
//
// Duplicate parent references are collapsed in place.
func Depth(nodes []model.TaskNode) (int, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			return 0, fmt.Errorf("task %d has an empty id", i)
		}
		if _, dup := index[n.ID]; dup {
			return 0, fmt.Errorf("duplicate task id %q", n.ID)
		}
		index[n.ID] = i
	}

	// forward[A] = [B, C] means A must complete before B and C.
	forward := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		seen := make(map[string]bool, len(n.Parents))
		parents := n.Parents[:0]
		for _, p := range n.Parents {
			if p == n.ID {
				return 0, fmt.Errorf("task %q depends on itself: %w", n.ID, model.ErrCycle)
			}
			if _, ok := index[p]; !ok {
				return 0, fmt.Errorf("task %q: parent: %w", n.ID, &model.UnknownNodeError{ID: p})
			}
			if seen[p] {
				continue
			}
			seen[p] = true
			parents = append(parents, p)
			forward[p] = append(forward[p], n.ID)
			inDegree[n.ID]++
		}
		n.Parents = parents
	}

	level := make(map[string]int, len(nodes))
	var queue []string
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
			level[n.ID] = 1
		}
	}

	depth, visited := 0, 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		depth = max(depth, level[id])

		for _, succ := range forward[id] {
			level[succ] = max(level[succ], level[id]+1)
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if visited != len(nodes) {
		var cycleNodes []string
		for id, deg := range inDegree {
			if deg > 0 {
				cycleNodes = append(cycleNodes, id)
			}
		}
		sort.Strings(cycleNodes)
		return 0, fmt.Errorf("%w involving tasks: %s", model.ErrCycle, strings.Join(cycleNodes, ", "))
	}
	return depth, nil
}
