// Package cluster partitions agent populations into role-coherent groups for
// map-reduce resolution. Keeping a cluster to one role keeps the narrative
// resolution plausible while bounding prompt size.
package cluster

import (
	"sort"
	"strings"

	"github.com/talgya/idealworld/internal/agents"
)

// ByRole partitions agents into clusters of at most maxPerCluster members.
// Agents sharing a role (case-insensitive) stay together where possible:
// groups are taken largest-first, oversize groups are chunked at the max,
// and any leftover chunk smaller than half the max is routed to an overflow
// pool instead of forming an undersized cluster. Overflow agents then fill
// whichever existing cluster is currently smallest; a new singleton cluster
// appears only when every cluster is already full.
func ByRole(all []agents.Agent, maxPerCluster int) [][]agents.Agent {
	if maxPerCluster < 1 {
		maxPerCluster = 1
	}

	byRole := make(map[string][]agents.Agent)
	var order []string
	for _, a := range all {
		role := strings.ToLower(a.Role)
		if _, ok := byRole[role]; !ok {
			order = append(order, role)
		}
		byRole[role] = append(byRole[role], a)
	}

	// Largest group first; stable on first-seen order for ties.
	sort.SliceStable(order, func(i, j int) bool {
		return len(byRole[order[i]]) > len(byRole[order[j]])
	})

	minChunk := (maxPerCluster + 1) / 2
	var clusters [][]agents.Agent
	var overflow []agents.Agent

	for _, role := range order {
		group := byRole[role]
		if len(group) <= maxPerCluster {
			clusters = append(clusters, append([]agents.Agent(nil), group...))
			continue
		}
		for i := 0; i < len(group); i += maxPerCluster {
			end := i + maxPerCluster
			if end > len(group) {
				end = len(group)
			}
			chunk := group[i:end]
			if len(chunk) >= minChunk {
				clusters = append(clusters, append([]agents.Agent(nil), chunk...))
			} else {
				overflow = append(overflow, chunk...)
			}
		}
	}

	for _, a := range overflow {
		smallest := -1
		for i, c := range clusters {
			if len(c) >= maxPerCluster {
				continue
			}
			if smallest == -1 || len(c) < len(clusters[smallest]) {
				smallest = i
			}
		}
		if smallest >= 0 {
			clusters[smallest] = append(clusters[smallest], a)
		} else {
			clusters = append(clusters, []agents.Agent{a})
		}
	}

	return clusters
}
