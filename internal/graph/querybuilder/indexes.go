package querybuilder

import (
	"fmt"

	"github.com/trellisec/assetgraph/internal/graph/model"
)

const indexQueryPrefix = "CREATE INDEX IF NOT EXISTS"

// BuildCreateIndexQueries generates idempotent index statements for a node
// schema: the primary label's id and lastupdated, every extra and
// conditional label's id, each conditional label's condition fields on the
// primary label (the conditional label may not exist on a node yet), every
// relationship target's matcher keys, and every extra-indexed property.
// Duplicates are suppressed; statement order is deterministic.
func BuildCreateIndexQueries(node model.NodeSchema) ([]string, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}

	set := newIndexSet()
	set.add(node.Label, model.PropID)
	set.add(node.Label, model.PropLastUpdated)

	for _, label := range node.ExtraLabels {
		set.add(label, model.PropID)
	}
	for _, cl := range node.ConditionalLabels {
		set.add(cl.Label, model.PropID)
		for _, c := range cl.Conditions {
			set.add(node.Label, c.Field)
		}
	}
	for _, rel := range node.AllRelationships() {
		for _, f := range rel.TargetMatcher {
			set.add(rel.TargetLabel, f.Key)
		}
	}
	for _, p := range node.Properties {
		if p.Ref.ExtraIndex {
			set.add(node.Label, p.Key)
		}
	}
	return set.queries, nil
}

// BuildCreateIndexQueriesForMatchLink generates index statements for both
// endpoints of a match link plus a composite index on the relationship's
// generational and scope stamps, which the match-link cleanup query scans.
func BuildCreateIndexQueriesForMatchLink(link model.MatchLinkSchema) ([]string, error) {
	if err := link.Validate(); err != nil {
		return nil, err
	}

	set := newIndexSet()
	for _, f := range link.SourceMatcher {
		set.add(link.SourceLabel, f.Key)
	}
	for _, f := range link.TargetMatcher {
		set.add(link.TargetLabel, f.Key)
	}

	relPattern := fmt.Sprintf("()-[r:%s]->()", link.RelLabel)
	if link.Direction == model.LinkDirectionInward {
		relPattern = fmt.Sprintf("()<-[r:%s]-()", link.RelLabel)
	}
	set.queries = append(set.queries, fmt.Sprintf(
		"%s FOR %s ON (r.%s, r.%s, r.%s);",
		indexQueryPrefix, relPattern,
		model.PropLastUpdated, model.PropSubResourceLabel, model.PropSubResourceID,
	))
	return set.queries, nil
}

type indexSet struct {
	seen    map[string]struct{}
	queries []string
}

func newIndexSet() *indexSet {
	return &indexSet{seen: make(map[string]struct{})}
}

func (s *indexSet) add(label, attribute string) {
	key := label + "." + attribute
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.queries = append(s.queries, fmt.Sprintf(
		"%s FOR (n:%s) ON (n.%s);", indexQueryPrefix, label, attribute,
	))
}
