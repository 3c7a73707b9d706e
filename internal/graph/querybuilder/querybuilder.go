// Package querybuilder compiles declarative schemas into Cypher statements
// so resource modules never handwrite ingestion queries. Generated
// statements iterate a $DictList batch parameter and are idempotent.
package querybuilder

import (
	"fmt"
	"strings"

	"github.com/trellisec/assetgraph/internal/graph/model"
	"github.com/trellisec/assetgraph/internal/version"
)

// BuildIngestionQuery compiles a node schema into one bulk upsert statement.
// The statement expects a $DictList parameter holding the batch rows and a
// scope parameter for every scope-bound ref (at minimum $lastupdated).
func BuildIngestionQuery(node model.NodeSchema) (string, error) {
	if err := node.Validate(); err != nil {
		return "", err
	}
	return renderIngestion(node, node.SubResourceRelationship, node.OtherRelationships), nil
}

// BuildSelectedIngestionQuery compiles a node schema with only the selected
// relationships attached. An empty selection produces a node-only statement.
// Every selected relationship must be declared on the schema.
func BuildSelectedIngestionQuery(node model.NodeSchema, selected []model.RelSchema) (string, error) {
	if err := node.Validate(); err != nil {
		return "", err
	}

	var subResource *model.RelSchema
	var others []model.RelSchema
	for _, sel := range selected {
		declared, isSubResource := findRelationship(node, sel)
		if declared == nil {
			return "", fmt.Errorf(
				"%w: relationship %s to %s is not declared on node schema %s",
				model.ErrInvalidSchema, sel.RelLabel, sel.TargetLabel, node.Label,
			)
		}
		if isSubResource {
			subResource = declared
		} else {
			others = append(others, *declared)
		}
	}
	return renderIngestion(node, subResource, others), nil
}

// BuildMatchLinkQuery compiles a match-link schema into a statement that
// connects two existing node sets and stamps each relationship with its
// sub-resource scope.
func BuildMatchLinkQuery(link model.MatchLinkSchema) (string, error) {
	if err := link.Validate(); err != nil {
		return "", err
	}

	rel := fmt.Sprintf("(from)-[r:%s]->(to)", link.RelLabel)
	if link.Direction == model.LinkDirectionInward {
		rel = fmt.Sprintf("(from)<-[r:%s]-(to)", link.RelLabel)
	}

	var b strings.Builder
	b.WriteString("UNWIND $DictList AS item\n")
	fmt.Fprintf(&b, "MATCH (from:%s{%s})\n", link.SourceLabel, matchClause(link.SourceMatcher))
	fmt.Fprintf(&b, "MATCH (to:%s{%s})\n", link.TargetLabel, matchClause(link.TargetMatcher))
	fmt.Fprintf(&b, "MERGE %s\n", rel)
	b.WriteString("ON CREATE SET r.firstseen = timestamp()\n")
	b.WriteString("SET\n")
	b.WriteString(setClause("r", link.Module, link.Properties, nil))
	return b.String(), nil
}

func findRelationship(node model.NodeSchema, sel model.RelSchema) (*model.RelSchema, bool) {
	if sub := node.SubResourceRelationship; sub != nil &&
		sub.RelLabel == sel.RelLabel && sub.TargetLabel == sel.TargetLabel {
		return sub, true
	}
	for i, rel := range node.OtherRelationships {
		if rel.RelLabel == sel.RelLabel && rel.TargetLabel == sel.TargetLabel {
			return &node.OtherRelationships[i], false
		}
	}
	return nil, false
}

func renderIngestion(node model.NodeSchema, subResource *model.RelSchema, others []model.RelSchema) string {
	var b strings.Builder
	b.WriteString("UNWIND $DictList AS item\n")
	fmt.Fprintf(&b, "MERGE (i:%s{id: %s})\n", node.Label, node.IDRef())
	b.WriteString("ON CREATE SET i.firstseen = timestamp()\n")
	b.WriteString("SET\n")
	b.WriteString(setClause("i", node.Module, node.Properties, node.ExtraLabels))

	var blocks []string
	if subResource != nil {
		blocks = append(blocks, subResourceBlock(node.Module, *subResource))
	}
	for num, rel := range others {
		blocks = append(blocks, otherRelBlock(node.Module, rel, num))
	}
	if len(blocks) > 0 {
		b.WriteString("\nWITH i, item\nCALL {\n")
		b.WriteString(indent(strings.Join(blocks, "\nUNION\n"), "    "))
		b.WriteString("\n}")
	}
	return b.String()
}

// setClause renders the comma-separated SET body for var v: provenance
// stamps first, then every property except id (the MERGE clause already set
// it), then extra labels.
func setClause(v, module string, props model.Properties, extraLabels []string) string {
	var lines []string
	if module != "" {
		lines = append(lines,
			fmt.Sprintf("%s._module_name = %q", v, module),
			fmt.Sprintf("%s._module_version = %q", v, version.Version),
		)
	}
	for _, p := range props {
		if p.Key == model.PropID {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s.%s = %s", v, p.Key, p.Ref))
	}
	if len(extraLabels) > 0 {
		lines = append(lines, v+":"+strings.Join(extraLabels, ":"))
	}
	return "    " + strings.Join(lines, ",\n    ")
}

// subResourceBlock attaches the owning tenant node. The tenant may not be
// loaded yet, so the match is optional and the MERGE is skipped on null.
func subResourceBlock(module string, rel model.RelSchema) string {
	var b strings.Builder
	b.WriteString("WITH i, item\n")
	fmt.Fprintf(&b, "OPTIONAL MATCH (j:%s{%s})\n", rel.TargetLabel, matchClause(rel.TargetMatcher))
	b.WriteString("WITH i, item, j WHERE j IS NOT NULL\n")
	b.WriteString(mergeRel("i", "r", "j", rel) + "\n")
	b.WriteString("ON CREATE SET r.firstseen = timestamp()\n")
	b.WriteString("SET\n")
	b.WriteString(setClause("r", module, rel.Properties, nil))
	return b.String()
}

func otherRelBlock(module string, rel model.RelSchema, num int) string {
	nodeVar := fmt.Sprintf("n%d", num)
	relVar := fmt.Sprintf("r%d", num)

	var b strings.Builder
	b.WriteString("WITH i, item\n")
	fmt.Fprintf(&b, "OPTIONAL MATCH (%s:%s)\n", nodeVar, rel.TargetLabel)
	fmt.Fprintf(&b, "WHERE %s\n", whereClause(nodeVar, rel.TargetMatcher))
	fmt.Fprintf(&b, "WITH i, item, %s WHERE %s IS NOT NULL\n", nodeVar, nodeVar)
	b.WriteString(mergeRel("i", relVar, nodeVar, rel) + "\n")
	fmt.Fprintf(&b, "ON CREATE SET %s.firstseen = timestamp()\n", relVar)
	b.WriteString("SET\n")
	b.WriteString(setClause(relVar, module, rel.Properties, nil))
	return b.String()
}

func mergeRel(srcVar, relVar, dstVar string, rel model.RelSchema) string {
	if rel.Direction == model.LinkDirectionInward {
		return fmt.Sprintf("MERGE (%s)<-[%s:%s]-(%s)", srcVar, relVar, rel.RelLabel, dstVar)
	}
	return fmt.Sprintf("MERGE (%s)-[%s:%s]->(%s)", srcVar, relVar, rel.RelLabel, dstVar)
}

// matchClause renders a matcher as an inline property map: `id: $AWS_ID`.
// Used where an exact match is sufficient.
func matchClause(m model.Matcher) string {
	parts := make([]string, len(m))
	for i, f := range m {
		parts[i] = fmt.Sprintf("%s: %s", f.Key, f.Ref)
	}
	return strings.Join(parts, ", ")
}

// whereClause renders a matcher as WHERE conditions, honoring the ref's
// comparison flags. Conditions are ANDed.
func whereClause(nodeVar string, m model.Matcher) string {
	parts := make([]string, len(m))
	for i, f := range m {
		switch {
		case f.Ref.FuzzyAndIgnoreCase:
			parts[i] = fmt.Sprintf("toLower(%s.%s) CONTAINS toLower(%s)", nodeVar, f.Key, f.Ref)
		case f.Ref.IgnoreCase:
			parts[i] = fmt.Sprintf("toLower(%s.%s) = toLower(%s)", nodeVar, f.Key, f.Ref)
		case f.Ref.OneToMany:
			parts[i] = fmt.Sprintf("%s.%s IN %s", nodeVar, f.Key, f.Ref)
		default:
			parts[i] = fmt.Sprintf("%s.%s = %s", nodeVar, f.Key, f.Ref)
		}
	}
	return strings.Join(parts, "\n    AND ")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
