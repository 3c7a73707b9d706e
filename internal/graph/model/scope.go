package model

import "sort"

// ScopeKeys returns every scope parameter name the schema's generated
// statements will reference, deduplicated and sorted. Callers use it to
// check a batch's scope parameters before anything executes.
func (s NodeSchema) ScopeKeys() []string {
	seen := make(map[string]struct{})
	collectScopeKeys(seen, s.Properties)
	for _, rel := range s.AllRelationships() {
		collectScopeKeys(seen, rel.Properties)
		for _, f := range rel.TargetMatcher {
			if f.Ref.SetInScope {
				seen[f.Ref.Name] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// ScopeKeys returns every scope parameter name the match-link statement
// will reference, deduplicated and sorted.
func (m MatchLinkSchema) ScopeKeys() []string {
	seen := make(map[string]struct{})
	collectScopeKeys(seen, m.Properties)
	for _, matcher := range []Matcher{m.SourceMatcher, m.TargetMatcher} {
		for _, f := range matcher {
			if f.Ref.SetInScope {
				seen[f.Ref.Name] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func collectScopeKeys(seen map[string]struct{}, props Properties) {
	for _, p := range props {
		if p.Ref.SetInScope {
			seen[p.Ref.Name] = struct{}{}
		}
	}
}

func sortedKeys(seen map[string]struct{}) []string {
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
