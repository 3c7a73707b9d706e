package model

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema wraps every schema validation failure so callers can
// distinguish configuration mistakes from data and execution errors.
var ErrInvalidSchema = errors.New("invalid schema")

// ConditionalLabel is an extra node label applied only while the node's
// property values satisfy every condition. Conditions are ANDed; values are
// compared as literals.
type ConditionalLabel struct {
	Label      string
	Conditions []LabelCondition
}

// LabelCondition is one field = value test of a ConditionalLabel.
type LabelCondition struct {
	Field string
	Value string
}

// NodeSchema declares the graph shape of one resource type: its label,
// properties, extra labels, and relationships. Schemas are constructed once
// per type and never mutated; the compilers treat them as read-only.
type NodeSchema struct {
	Label      string
	Properties Properties

	// ExtraLabels are set unconditionally at ingestion time.
	ExtraLabels []string

	// ConditionalLabels are maintained by a separate statement pair per
	// label and never appear in the ingestion statement.
	ConditionalLabels []ConditionalLabel

	// SubResourceRelationship attaches every node to its owning tenant
	// node and scopes generational cleanup. Its matcher refs must be
	// scope-bound.
	SubResourceRelationship *RelSchema

	OtherRelationships []RelSchema

	// UnscopedCleanup sweeps stale nodes globally instead of within the
	// sub-resource scope. Only valid without a sub-resource relationship;
	// meant for node types shared across unrelated sync sources.
	UnscopedCleanup bool

	// Module stamps provenance (_module_name) on everything the ingestion
	// statement touches. Empty disables stamping.
	Module string
}

// Validate checks the schema for authorship mistakes. Compiler entry points
// call it before generating anything.
func (s NodeSchema) Validate() error {
	if s.Label == "" {
		return fmt.Errorf("%w: node schema requires a label", ErrInvalidSchema)
	}
	idRef, hasID := s.Properties.Get(PropID)
	if !hasID {
		return fmt.Errorf("%w: node schema %s requires an %q property", ErrInvalidSchema, s.Label, PropID)
	}
	if idRef.SetInScope {
		return fmt.Errorf("%w: node schema %s %q property must come from the row", ErrInvalidSchema, s.Label, PropID)
	}
	if !s.Properties.Has(PropLastUpdated) {
		return fmt.Errorf("%w: node schema %s requires a %q property", ErrInvalidSchema, s.Label, PropLastUpdated)
	}
	if s.Properties.Has(PropFirstSeen) {
		return fmt.Errorf("%w: node schema %s declares reserved property %q", ErrInvalidSchema, s.Label, PropFirstSeen)
	}
	if s.SubResourceRelationship != nil {
		if err := s.SubResourceRelationship.Validate(); err != nil {
			return fmt.Errorf("node schema %s sub resource relationship: %w", s.Label, err)
		}
		for _, f := range s.SubResourceRelationship.TargetMatcher {
			if !f.Ref.SetInScope {
				return fmt.Errorf(
					"%w: node schema %s sub resource matcher key %q must be scope-bound",
					ErrInvalidSchema, s.Label, f.Key,
				)
			}
		}
	}
	for _, rel := range s.OtherRelationships {
		if err := rel.Validate(); err != nil {
			return fmt.Errorf("node schema %s relationship %s: %w", s.Label, rel.RelLabel, err)
		}
	}
	return nil
}

// IDRef returns the ref that supplies node identity.
func (s NodeSchema) IDRef() PropertyRef {
	ref, _ := s.Properties.Get(PropID)
	return ref
}

// AllRelationships returns the sub-resource relationship (when declared)
// followed by the other relationships, in declaration order.
func (s NodeSchema) AllRelationships() []RelSchema {
	var rels []RelSchema
	if s.SubResourceRelationship != nil {
		rels = append(rels, *s.SubResourceRelationship)
	}
	return append(rels, s.OtherRelationships...)
}
