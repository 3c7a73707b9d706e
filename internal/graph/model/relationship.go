package model

import "fmt"

// LinkDirection orients a relationship relative to the node being ingested.
type LinkDirection string

const (
	// LinkDirectionInward points at the ingested node: (i)<-[r]-(matched).
	LinkDirectionInward LinkDirection = "inward"
	// LinkDirectionOutward points away from it: (i)-[r]->(matched).
	LinkDirectionOutward LinkDirection = "outward"
)

// MatchField is one key = ref test used to locate an existing node.
type MatchField struct {
	Key string
	Ref PropertyRef
}

// Matcher locates existing nodes by one or more property tests, ANDed.
type Matcher []MatchField

// RelSchema declares a relationship from an ingested node to nodes that
// already exist in the graph.
type RelSchema struct {
	TargetLabel   string
	TargetMatcher Matcher
	Direction     LinkDirection
	RelLabel      string

	// Properties set on the relationship itself; lastupdated is required.
	Properties Properties
}

// Validate checks the relationship declaration.
func (r RelSchema) Validate() error {
	if r.TargetLabel == "" {
		return fmt.Errorf("%w: relationship requires a target label", ErrInvalidSchema)
	}
	if r.RelLabel == "" {
		return fmt.Errorf("%w: relationship to %s requires a label", ErrInvalidSchema, r.TargetLabel)
	}
	if r.Direction != LinkDirectionInward && r.Direction != LinkDirectionOutward {
		return fmt.Errorf("%w: relationship %s has no direction", ErrInvalidSchema, r.RelLabel)
	}
	if err := r.TargetMatcher.validate(r.RelLabel); err != nil {
		return err
	}
	return validateRelProperties(r.RelLabel, r.Properties)
}

// MatchLinkSchema declares a relationship between two node types that are
// both loaded elsewhere. It owns no node, so every relationship instance
// carries its own sub-resource scope stamp for generational cleanup.
type MatchLinkSchema struct {
	SourceLabel   string
	SourceMatcher Matcher
	TargetLabel   string
	TargetMatcher Matcher
	Direction     LinkDirection
	RelLabel      string
	Properties    Properties
	Module        string
}

// Validate checks the match-link declaration, including the mandatory
// scope stamp properties.
func (m MatchLinkSchema) Validate() error {
	if m.SourceLabel == "" || m.TargetLabel == "" {
		return fmt.Errorf("%w: match link requires source and target labels", ErrInvalidSchema)
	}
	if m.RelLabel == "" {
		return fmt.Errorf("%w: match link %s->%s requires a relationship label", ErrInvalidSchema, m.SourceLabel, m.TargetLabel)
	}
	if m.Direction != LinkDirectionInward && m.Direction != LinkDirectionOutward {
		return fmt.Errorf("%w: match link %s has no direction", ErrInvalidSchema, m.RelLabel)
	}
	if err := m.SourceMatcher.validate(m.RelLabel); err != nil {
		return err
	}
	if err := m.TargetMatcher.validate(m.RelLabel); err != nil {
		return err
	}
	if err := validateRelProperties(m.RelLabel, m.Properties); err != nil {
		return err
	}
	for _, key := range []string{PropSubResourceLabel, PropSubResourceID} {
		ref, ok := m.Properties.Get(key)
		if !ok {
			return fmt.Errorf("%w: match link %s requires property %q", ErrInvalidSchema, m.RelLabel, key)
		}
		if !ref.SetInScope {
			return fmt.Errorf("%w: match link %s property %q must be scope-bound", ErrInvalidSchema, m.RelLabel, key)
		}
	}
	return nil
}

func (m Matcher) validate(relLabel string) error {
	if len(m) == 0 {
		return fmt.Errorf("%w: relationship %s matcher references no properties", ErrInvalidSchema, relLabel)
	}
	for _, f := range m {
		if f.Key == PropLastUpdated || f.Key == PropFirstSeen {
			return fmt.Errorf("%w: relationship %s matches on reserved property %q", ErrInvalidSchema, relLabel, f.Key)
		}
		if f.Ref.OneToMany && (f.Ref.IgnoreCase || f.Ref.FuzzyAndIgnoreCase) {
			return fmt.Errorf(
				"%w: relationship %s matcher key %q combines one-to-many with case-insensitive matching",
				ErrInvalidSchema, relLabel, f.Key,
			)
		}
	}
	return nil
}

func validateRelProperties(relLabel string, props Properties) error {
	if !props.Has(PropLastUpdated) {
		return fmt.Errorf("%w: relationship %s requires a %q property", ErrInvalidSchema, relLabel, PropLastUpdated)
	}
	for _, key := range []string{PropID, PropFirstSeen} {
		if props.Has(key) {
			return fmt.Errorf("%w: relationship %s declares reserved property %q", ErrInvalidSchema, relLabel, key)
		}
	}
	return nil
}
