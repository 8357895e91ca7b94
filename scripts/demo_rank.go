//go:build ignore

// Demo script to exercise the full ranking pipeline.
// Run with: go run scripts/demo_rank.go
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSearch/services/rank"
	"github.com/AleutianAI/AleutianSearch/services/rank/multisearch"
	"github.com/AleutianAI/AleutianSearch/services/rank/querygraph"
	"github.com/AleutianAI/AleutianSearch/services/rank/rankgraph"
	"github.com/AleutianAI/AleutianSearch/services/rank/rules"
)

// demoQuery misspells "experience" on purpose so the typo rule has
// work to do.
const demoQuery = "jimi hendrix experiance"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	banner("RANKING PIPELINE INTEGRATION DEMO")

	// 1. Create the ranking service
	section("Step 1: Creating the Ranking Service")
	svc, err := rank.NewService(rank.DefaultServiceConfig())
	if err != nil {
		log.Fatalf("  ✗ NewService failed: %v", err)
	}
	fmt.Println("  ✓ Service created (typo + proximity rules enabled)")

	// 2. Index a small album catalog
	section("Step 2: Indexing the Album Catalog")
	idx, err := svc.CreateIndex("albums")
	if err != nil {
		log.Fatalf("  ✗ CreateIndex failed: %v", err)
	}
	corpus := []rank.Document{
		{ID: 1, Text: "axis bold as love by the jimi hendrix experience"},
		{ID: 2, Text: "are you experienced jimi hendrix debut album"},
		{ID: 3, Text: "electric ladyland third studio album by jimi hendrix"},
		{ID: 4, Text: "band of gypsys hendrix live"},
		{ID: 5, Text: "the experience of sound a recording history"},
		{ID: 6, Text: "jimmy page session years anthology"},
		{ID: 7, Text: "hendrix plays monterey"},
		{ID: 8, Text: "hendrix jimi rare tapes"},
		{ID: 9, Text: "the jimi experience hendrix live"},
	}
	for _, doc := range corpus {
		if err := idx.AddDocument(ctx, doc); err != nil {
			log.Fatalf("  ✗ AddDocument %d failed: %v", doc.ID, err)
		}
	}
	fmt.Printf("  ✓ Indexed %d documents into %q\n", idx.Len(), idx.UID())

	// 3. Build the query graph
	section("Step 3: Building the Query Graph")
	words := strings.Fields(strings.ToLower(demoQuery))
	terms := make([]querygraph.Term, len(words))
	for i, w := range words {
		terms[i] = querygraph.Term{Text: w, Position: i}
	}
	qg, err := querygraph.Build(ctx, terms)
	if err != nil {
		log.Fatalf("  ✗ Build failed: %v", err)
	}
	fmt.Printf("  ✓ Query %q: %d nodes (start + %d terms + end)\n", demoQuery, qg.Len(), len(terms))
	for _, id := range qg.TermNodes() {
		node, err := qg.NodeAt(id)
		if err != nil {
			log.Fatalf("  ✗ NodeAt(%d) failed: %v", id, err)
		}
		fmt.Printf("    - node %d: %q (typo budget %d)\n", id, node.Term.Text, node.Term.MaxTypos)
	}

	// 4. Build one edge layer per ranking rule
	section("Step 4: Building the Ranking-Rule Graphs")
	tg, err := rules.BuildTypoGraph(ctx, qg)
	if err != nil {
		log.Fatalf("  ✗ BuildTypoGraph failed: %v", err)
	}
	fmt.Printf("  ✓ Typo graph: %d live edges in %d slots\n", tg.LiveEdges(), tg.NumEdgeSlots())
	pg, err := rules.BuildProximityGraph(ctx, qg)
	if err != nil {
		log.Fatalf("  ✗ BuildProximityGraph failed: %v", err)
	}
	fmt.Printf("  ✓ Proximity graph: %d live edges in %d slots\n", pg.LiveEdges(), pg.NumEdgeSlots())

	// 5. The path trie in isolation
	section("Step 5: PathsMap Trie Operations")
	pm := rankgraph.NewPathsMap[uint64]()
	pm.Insert([]rankgraph.EdgeID{1, 2}, 5)
	pm.Insert([]rankgraph.EdgeID{1, 3}, 7)
	pm.Insert([]rankgraph.EdgeID{4}, 2)
	fmt.Println("  ✓ Inserted paths [1 2], [1 3], [4] sharing the [1] prefix")
	fmt.Printf("    ContainsPrefixOfPath([1 2 9]): %v\n", pm.ContainsPrefixOfPath([]rankgraph.EdgeID{1, 2, 9}))
	fmt.Printf("    EdgeIndicesAfterPrefix([1]):   %v\n", pm.EdgeIndicesAfterPrefix([]rankgraph.EdgeID{1}))
	pm.RemoveEdge(3)
	fmt.Println("  ✓ RemoveEdge(3) dropped the [1 3] path")
	for {
		edges, value, ok := pm.RemoveFirst()
		if !ok {
			break
		}
		fmt.Printf("    drained %v → %d\n", edges, value)
	}
	fmt.Printf("  ✓ Drained leftmost-first, trie empty: %v\n", pm.IsEmpty())

	// 6. Enumerate every typo path in cost order
	section("Step 6: Draining Typo Paths Cheapest-First")
	state, err := rankgraph.NewKCheapestPathsState(ctx, tg)
	if err != nil {
		log.Fatalf("  ✗ NewKCheapestPathsState failed: %v", err)
	}
	cache := rankgraph.NewEmptyPathsCache()
	enumerated := 0
	for {
		into := rankgraph.NewPathsMap[uint64]()
		ok, err := state.ComputePathsOfNextLowestCost(ctx, cache, into)
		if err != nil {
			log.Fatalf("  ✗ ComputePathsOfNextLowestCost failed: %v", err)
		}
		if !ok {
			break
		}
		for {
			edges, cost, found := into.RemoveFirst()
			if !found {
				break
			}
			enumerated++
			fmt.Printf("    cost %d: %s\n", cost, typoPathString(tg, edges))
		}
	}
	fmt.Printf("  ✓ Enumerated %d paths in nondecreasing cost order\n", enumerated)

	// 7. Forbid an edge and re-drain
	section("Step 7: Pruning Known-Empty Paths")
	forbidden, ok := findTypoEdge(tg, "experiance", 0)
	if !ok {
		log.Fatal("  ✗ no zero-typo edge for \"experiance\"")
	}
	cache = rankgraph.NewEmptyPathsCache()
	cache.ForbidEdge(forbidden)
	fmt.Printf("  ✓ Forbade edge %d (condition \"experiance t0\")\n", forbidden)
	state, err = rankgraph.NewKCheapestPathsState(ctx, tg)
	if err != nil {
		log.Fatalf("  ✗ NewKCheapestPathsState failed: %v", err)
	}
	viable, err := state.RemoveEmptyPaths(ctx, cache)
	if err != nil {
		log.Fatalf("  ✗ RemoveEmptyPaths failed: %v", err)
	}
	fmt.Printf("  ✓ State reconciled with cache, viable paths remain: %v\n", viable)
	survivors := 0
	for {
		into := rankgraph.NewPathsMap[uint64]()
		ok, err := state.ComputePathsOfNextLowestCost(ctx, cache, into)
		if err != nil {
			log.Fatalf("  ✗ ComputePathsOfNextLowestCost failed: %v", err)
		}
		if !ok {
			break
		}
		for {
			edges, cost, found := into.RemoveFirst()
			if !found {
				break
			}
			survivors++
			fmt.Printf("    cost %d: %s\n", cost, typoPathString(tg, edges))
		}
	}
	fmt.Printf("  ✓ %d of %d paths survive the forbidden edge\n", survivors, enumerated)

	// 8. The whole pipeline through the service
	section("Step 8: End-to-End Ranked Search")
	result, err := svc.SearchIndex(ctx, rank.Query{IndexUID: "albums", Q: demoQuery})
	if err != nil {
		log.Fatalf("  ✗ SearchIndex failed: %v", err)
	}
	fmt.Printf("  ✓ %d of %d candidates returned in %v\n",
		len(result.Hits), result.TotalHits, result.ProcessingTime)
	for i, h := range result.Hits {
		doc, err := idx.Document(h.DocID)
		if err != nil {
			log.Fatalf("  ✗ Document(%d) failed: %v", h.DocID, err)
		}
		fmt.Printf("    %2d. doc %d (typo %s, proximity %s) %q\n",
			i+1, h.DocID, costLabel(h.TypoCost), costLabel(h.ProximityCost), doc.Text)
	}

	// 9. Fan out over two indexes
	section("Step 9: Multi-Search Fan-Out")
	venues, err := svc.CreateIndex("venues")
	if err != nil {
		log.Fatalf("  ✗ CreateIndex failed: %v", err)
	}
	for _, doc := range []rank.Document{
		{ID: 1, Text: "monterey pop festival fairgrounds"},
		{ID: 2, Text: "fillmore east new york"},
		{ID: 3, Text: "woodstock bethel farm stage"},
	} {
		if err := venues.AddDocument(ctx, doc); err != nil {
			log.Fatalf("  ✗ AddDocument failed: %v", err)
		}
	}
	runner, err := multisearch.NewRunner(svc, multisearch.DefaultConfig())
	if err != nil {
		log.Fatalf("  ✗ NewRunner failed: %v", err)
	}
	results, err := runner.Run(ctx, multisearch.Request{Queries: []rank.Query{
		{IndexUID: "albums", Q: "hendrix live", Limit: 3},
		{IndexUID: "venues", Q: "montery festival"},
		{IndexUID: "albums", Q: "electric ladyland"},
	}})
	if err != nil {
		log.Fatalf("  ✗ Run failed: %v", err)
	}
	for _, res := range results {
		fmt.Printf("  ✓ %s %q: %d hits\n", res.IndexUID, res.Result.Query, len(res.Result.Hits))
	}
	if _, err := runner.Run(ctx, multisearch.Request{Queries: []rank.Query{
		{IndexUID: "live albums", Q: "hendrix"},
	}}); err != nil {
		fmt.Printf("  ✓ Malformed index UID rejected: %v\n", err)
	} else {
		fmt.Println("  ✗ malformed index UID was accepted")
	}
	agg := runner.Aggregator()
	fmt.Printf("  ✓ Aggregator: received=%d succeeded=%d failed=%d\n",
		agg.Received(), agg.Succeeded(), agg.Failed())

	// 10. Cancellation
	section("Step 10: Cancellation Propagation")
	cancelCtx, cancelNow := context.WithCancel(ctx)
	cancelNow()
	if _, err := svc.SearchIndex(cancelCtx, rank.Query{IndexUID: "albums", Q: demoQuery}); err != nil {
		fmt.Printf("  ✓ Cancellation detected: %v\n", err)
	} else {
		fmt.Println("  ✗ cancelled search unexpectedly succeeded")
	}

	// 11. DOT rendering for debugging
	section("Step 11: Graphviz Diagnostics")
	dot, err := svc.VisualizeRule(ctx, demoQuery, rank.RuleTypo)
	if err != nil {
		log.Fatalf("  ✗ VisualizeRule failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(dot), "\n")
	fmt.Printf("  ✓ Typo graph rendered with cheapest path highlighted: %d DOT lines\n", len(lines))
	for _, l := range lines[:min(4, len(lines))] {
		fmt.Printf("    %s\n", l)
	}
	fmt.Println("    ...")

	// Summary
	bar := strings.Repeat("═", 66)
	fmt.Printf("\n╔%s╗\n", bar)
	fmt.Printf("║%s║\n", pad("DEMO SUMMARY", 66))
	fmt.Printf("╠%s╣\n", bar)
	for _, line := range []string{
		"Index:             ✓ Positional postings, typo lookups",
		"Query graph:       ✓ Typo budgets derived per term",
		"PathsMap:          ✓ Prefix trie + leftmost-first drain",
		"K-cheapest paths:  ✓ Cost-ordered enumeration",
		"Empty-path cache:  ✓ Forbidden edges pruned",
		"Search:            ✓ (typo, proximity, doc ID) ordering",
		"Multi-search:      ✓ Concurrent fan-out + UID validation",
		"Cancellation:      ✓ Propagation working",
	} {
		fmt.Printf("║  %-64s║\n", line)
	}
	fmt.Printf("╠%s╣\n", bar)
	fmt.Printf("║  %-64s║\n", "Ranking pipeline:  ✓ FULLY OPERATIONAL")
	fmt.Printf("╚%s╝\n", bar)
}

// banner prints a double-line heading box.
func banner(title string) {
	bar := strings.Repeat("═", 66)
	fmt.Printf("╔%s╗\n", bar)
	fmt.Printf("║%s║\n", pad(title, 66))
	fmt.Printf("╚%s╝\n", bar)
}

// section prints a single-line step box.
func section(title string) {
	bar := strings.Repeat("─", 65)
	fmt.Printf("\n┌%s┐\n", bar)
	fmt.Printf("│ %-64s│\n", title)
	fmt.Printf("└%s┘\n", bar)
}

// pad centers title in a field of the given rune width.
func pad(title string, width int) string {
	gap := width - len(title)
	if gap < 0 {
		return title
	}
	left := gap / 2
	return strings.Repeat(" ", left) + title + strings.Repeat(" ", gap-left)
}

// typoPathString renders a typo path as its edge conditions, ε for an
// unconditional edge.
func typoPathString(g *rankgraph.RankingRuleGraph[rules.TypoCondition], edges []rankgraph.EdgeID) string {
	parts := make([]string, 0, len(edges))
	for _, id := range edges {
		e, err := g.Edge(id)
		switch {
		case err != nil:
			parts = append(parts, fmt.Sprintf("edge%d?", id))
		case e.Details == nil:
			parts = append(parts, "ε")
		default:
			parts = append(parts, e.Details.String())
		}
	}
	return strings.Join(parts, " → ")
}

// findTypoEdge locates the edge carrying the given term/typo condition.
func findTypoEdge(g *rankgraph.RankingRuleGraph[rules.TypoCondition], term string, typos uint8) (rankgraph.EdgeID, bool) {
	for id := 0; id < g.NumEdgeSlots(); id++ {
		e, err := g.Edge(rankgraph.EdgeID(id))
		if err != nil || e.Details == nil {
			continue
		}
		if e.Details.Term == term && e.Details.NbTypos == typos {
			return rankgraph.EdgeID(id), true
		}
	}
	return 0, false
}

// costLabel renders a bucket cost, naming the flushed tail bucket.
func costLabel(c uint64) string {
	if c == math.MaxUint64 {
		return "unranked"
	}
	return fmt.Sprintf("%d", c)
}
