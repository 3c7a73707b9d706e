// Package cleanupbuilder compiles the generational mark-and-sweep
// statements that run after ingestion. Every upsert stamps lastupdated with
// the run's update tag; cleanup deletes what the current tag did not touch,
// scoped to the schema's sub-resource so one tenant's sync never deletes
// another's data.
package cleanupbuilder

import (
	"fmt"
	"strings"

	"github.com/trellisec/assetgraph/internal/graph/model"
)

// BuildCleanupQueries compiles the ordered cleanup statements for a node
// schema. With a sub-resource relationship: stale nodes in scope, then
// stale sub-resource relationships, then stale other relationships. Without
// one only relationships are cleaned, unless the schema opts into an
// unscoped sweep. Statements are parameterized by $UPDATE_TAG and
// $LIMIT_SIZE; deletes are batched so the runner can loop until done.
func BuildCleanupQueries(node model.NodeSchema) ([]string, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}
	if node.SubResourceRelationship != nil && node.UnscopedCleanup {
		return nil, fmt.Errorf(
			"%w: node schema %s has a sub-resource relationship and unscoped cleanup; "+
				"an unscoped sweep would delete stale %s nodes across every sub-resource",
			model.ErrInvalidSchema, node.Label, node.Label,
		)
	}

	if node.SubResourceRelationship == nil {
		return unscopedQueries(node), nil
	}

	sub := *node.SubResourceRelationship
	scopeMatch := fmt.Sprintf("MATCH (n:%s)%s", node.Label, scopePath(sub))

	queries := []string{
		scopeMatch + deleteClause("n", true),
		scopeMatch + deleteClause("s", false),
	}
	for _, rel := range node.OtherRelationships {
		queries = append(queries, scopeMatch+relMatch(rel)+deleteClause("r", false))
	}
	return queries, nil
}

// BuildCleanupQueriesForMatchLink compiles the single statement that sweeps
// stale match-link relationships inside the scope recorded on each
// relationship instance.
func BuildCleanupQueriesForMatchLink(link model.MatchLinkSchema) ([]string, error) {
	if err := link.Validate(); err != nil {
		return nil, err
	}

	pattern := fmt.Sprintf("(:%s)-[r:%s]->(:%s)", link.SourceLabel, link.RelLabel, link.TargetLabel)
	if link.Direction == model.LinkDirectionInward {
		pattern = fmt.Sprintf("(:%s)<-[r:%s]-(:%s)", link.SourceLabel, link.RelLabel, link.TargetLabel)
	}

	query := fmt.Sprintf(
		"MATCH %s\nWHERE r.%s <> $UPDATE_TAG\n"+
			"    AND r.%s = $%s\n    AND r.%s = $%s\n"+
			"WITH r LIMIT $LIMIT_SIZE\nDELETE r;",
		pattern, model.PropLastUpdated,
		model.PropSubResourceLabel, model.PropSubResourceLabel,
		model.PropSubResourceID, model.PropSubResourceID,
	)
	return []string{query}, nil
}

// unscopedQueries handles schemas without a sub-resource relationship:
// relationship sweeps only, plus a global node sweep when the schema
// explicitly opts in. Shared node types populated by several independent
// sources rely on the relationship-only default.
func unscopedQueries(node model.NodeSchema) []string {
	var queries []string
	if node.UnscopedCleanup {
		queries = append(queries, fmt.Sprintf("MATCH (n:%s)", node.Label)+deleteClause("n", true))
	}
	for _, rel := range node.OtherRelationships {
		queries = append(queries, fmt.Sprintf("MATCH (n:%s)", node.Label)+relMatch(rel)+deleteClause("r", false))
	}
	return queries
}

func scopePath(sub model.RelSchema) string {
	arrow := fmt.Sprintf("-[s:%s]->", sub.RelLabel)
	if sub.Direction == model.LinkDirectionInward {
		arrow = fmt.Sprintf("<-[s:%s]-", sub.RelLabel)
	}
	return fmt.Sprintf("%s(:%s{%s})", arrow, sub.TargetLabel, matchClause(sub.TargetMatcher))
}

func relMatch(rel model.RelSchema) string {
	if rel.Direction == model.LinkDirectionInward {
		return fmt.Sprintf("\nMATCH (n)<-[r:%s]-(:%s)", rel.RelLabel, rel.TargetLabel)
	}
	return fmt.Sprintf("\nMATCH (n)-[r:%s]->(:%s)", rel.RelLabel, rel.TargetLabel)
}

// deleteClause renders the stale-entity filter and batched delete for the
// given variable. Nodes are detach-deleted so their remaining edges go too.
func deleteClause(v string, detach bool) string {
	del := "DELETE"
	if detach {
		del = "DETACH DELETE"
	}
	return fmt.Sprintf(
		"\nWHERE %s.%s <> $UPDATE_TAG\nWITH %s LIMIT $LIMIT_SIZE\n%s %s;",
		v, model.PropLastUpdated, v, del, v,
	)
}

func matchClause(m model.Matcher) string {
	parts := make([]string, len(m))
	for i, f := range m {
		parts[i] = fmt.Sprintf("%s: %s", f.Key, f.Ref)
	}
	return strings.Join(parts, ", ")
}
