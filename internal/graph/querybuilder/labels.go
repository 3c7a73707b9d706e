package querybuilder

import (
	"fmt"
	"strings"

	"github.com/trellisec/assetgraph/internal/graph/model"
)

// ConditionalLabelQueryPair holds the two statements that maintain one
// conditional label. Remove must run before Set so nodes whose properties
// drifted out of the conditions lose the label in the same sync.
type ConditionalLabelQueryPair struct {
	Label  string
	Remove string
	Set    string
}

// BuildConditionalLabelQueries compiles one REMOVE/SET statement pair per
// conditional label, in declaration order. Labels with no conditions are
// skipped. When the schema declares a sub-resource relationship, both
// statements are constrained to the current sub-resource scope.
func BuildConditionalLabelQueries(node model.NodeSchema) ([]ConditionalLabelQueryPair, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}

	scopePath := ""
	if rel := node.SubResourceRelationship; rel != nil {
		arrow := fmt.Sprintf("-[:%s]->", rel.RelLabel)
		if rel.Direction == model.LinkDirectionInward {
			arrow = fmt.Sprintf("<-[:%s]-", rel.RelLabel)
		}
		scopePath = fmt.Sprintf("%s(:%s{%s})", arrow, rel.TargetLabel, matchClause(rel.TargetMatcher))
	}

	var pairs []ConditionalLabelQueryPair
	for _, cl := range node.ConditionalLabels {
		if len(cl.Conditions) == 0 {
			continue
		}

		conditions := make([]string, len(cl.Conditions))
		for i, c := range cl.Conditions {
			conditions[i] = fmt.Sprintf("n.%s = \"%s\"", c.Field, escapeCypherString(c.Value))
		}

		pairs = append(pairs, ConditionalLabelQueryPair{
			Label: cl.Label,
			Remove: fmt.Sprintf(
				"MATCH (n:%s:%s)%s\nREMOVE n:%s",
				node.Label, cl.Label, scopePath, cl.Label,
			),
			Set: fmt.Sprintf(
				"MATCH (n:%s)%s\nWHERE %s\nSET n:%s",
				node.Label, scopePath, strings.Join(conditions, " AND "), cl.Label,
			),
		})
	}
	return pairs, nil
}

// escapeCypherString escapes a literal for interpolation into a statement.
// Condition values are schema-time constants, not per-row parameters, so
// they cannot be bound. Backslashes escape first.
func escapeCypherString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
