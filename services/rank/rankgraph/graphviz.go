// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rankgraph

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianSearch/services/rank/querygraph"
)

// =============================================================================
// DOT Rendering (debug only, no compatibility guarantee)
// =============================================================================

// DOT renders the trie as a Graphviz digraph. Trie nodes get
// sequential IDs in DFS order; edges are labeled with the edge ID they
// carry, and value-holding nodes render filled so complete paths are
// visible at a glance.
func (p *PathsMap[V]) DOT() string {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString("  rankdir = LR;\n")
	b.WriteString("  node [shape = circle];\n")

	counter := 0
	p.dotRec(&b, &counter, 0)

	b.WriteString("}\n")
	return b.String()
}

// dotRec writes this node's subtree. parent is the caller's node
// counter value; counter holds the next unassigned ID.
func (p *PathsMap[V]) dotRec(b *strings.Builder, counter *int, parent int) {
	if p.hasValue {
		fmt.Fprintf(b, "  n%d [style = filled];\n", parent)
	}
	for i := range p.children {
		*counter++
		id := *counter
		fmt.Fprintf(b, "  n%d -> n%d [label = \"%d\"];\n", parent, id, p.children[i].edge)
		p.children[i].node.dotRec(b, counter, id)
	}
}

// DOTWithPath renders the graph with one path highlighted: live query
// nodes (start blue, end red, Deleted skipped), then every live edge,
// red when its ID is on path and green otherwise. Tombstoned slots are
// not rendered, so a stale path entry simply has no highlighted edge.
func (g *RankingRuleGraph[D]) DOTWithPath(path []EdgeID) string {
	onPath := make(map[EdgeID]bool, len(path))
	for _, id := range path {
		onPath[id] = true
	}

	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString("  rankdir = LR;\n")
	b.WriteString("  node [shape = record];\n")

	for i := 0; i < g.query.Len(); i++ {
		id := NodeID(i)
		node, err := g.query.NodeAt(id)
		if err != nil || node.Kind == querygraph.KindDeleted {
			continue
		}
		label := node.Kind.String()
		if node.Kind == querygraph.KindTerm {
			label = node.Term.Text
		}
		fmt.Fprintf(&b, "  %d [label = \"%d: %s\"]", id, id, escapeDOTLabel(label))
		switch id {
		case g.query.Root:
			b.WriteString(" [color = blue]")
		case g.query.End:
			b.WriteString(" [color = red]")
		}
		b.WriteString(";\n")
	}

	for i, e := range g.edges {
		if e == nil {
			continue
		}
		color := "green"
		if onPath[EdgeID(i)] {
			color = "red"
		}
		label := fmt.Sprintf("cost %d", e.Cost)
		if e.Details != nil {
			if s, ok := any(e.Details).(fmt.Stringer); ok {
				label += " " + s.String()
			}
		}
		fmt.Fprintf(&b, "  %d -> %d [label = \"%s\", color = %s];\n",
			e.From, e.To, escapeDOTLabel(label), color)
	}

	b.WriteString("}\n")
	return b.String()
}

// escapeDOTLabel escapes characters that would break a quoted DOT
// label.
func escapeDOTLabel(s string) string {
	replacer := strings.NewReplacer(
		`"`, `\"`,
		"\n", `\n`,
		`\`, `\\`,
	)
	return replacer.Replace(s)
}
