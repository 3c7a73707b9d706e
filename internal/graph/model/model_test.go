package model

import (
	"errors"
	"strings"
	"testing"
)

func validNode() NodeSchema {
	return NodeSchema{
		Label: "S3Bucket",
		Properties: Properties{
			{Key: "id", Ref: PropertyRef{Name: "Name"}},
			{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
			{Key: "region", Ref: PropertyRef{Name: "Region"}},
		},
		SubResourceRelationship: &RelSchema{
			TargetLabel: "AWSAccount",
			TargetMatcher: Matcher{
				{Key: "id", Ref: PropertyRef{Name: "AWS_ID", SetInScope: true}},
			},
			Direction: LinkDirectionInward,
			RelLabel:  "RESOURCE",
			Properties: Properties{
				{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
			},
		},
	}
}

func TestPropertyRefString(t *testing.T) {
	if got := (PropertyRef{Name: "Region"}).String(); got != "item.Region" {
		t.Errorf("per-row ref rendered %q", got)
	}
	if got := (PropertyRef{Name: "AWS_ID", SetInScope: true}).String(); got != "$AWS_ID" {
		t.Errorf("scope ref rendered %q", got)
	}
}

func TestNodeSchemaValidate(t *testing.T) {
	if err := validNode().Validate(); err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}
}

func TestNodeSchemaValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NodeSchema)
		wantMsg string
	}{
		{
			name:    "missing label",
			mutate:  func(s *NodeSchema) { s.Label = "" },
			wantMsg: "requires a label",
		},
		{
			name: "missing id",
			mutate: func(s *NodeSchema) {
				s.Properties = Properties{
					{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
				}
			},
			wantMsg: `requires an "id" property`,
		},
		{
			name: "scope-bound id",
			mutate: func(s *NodeSchema) {
				s.Properties = Properties{
					{Key: "id", Ref: PropertyRef{Name: "Name", SetInScope: true}},
					{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
				}
			},
			wantMsg: "must come from the row",
		},
		{
			name: "missing lastupdated",
			mutate: func(s *NodeSchema) {
				s.Properties = Properties{{Key: "id", Ref: PropertyRef{Name: "Name"}}}
			},
			wantMsg: `requires a "lastupdated" property`,
		},
		{
			name: "declares firstseen",
			mutate: func(s *NodeSchema) {
				s.Properties = append(s.Properties, Property{Key: "firstseen", Ref: PropertyRef{Name: "FirstSeen"}})
			},
			wantMsg: "reserved property",
		},
		{
			name: "sub resource matcher not scope-bound",
			mutate: func(s *NodeSchema) {
				s.SubResourceRelationship.TargetMatcher = Matcher{
					{Key: "id", Ref: PropertyRef{Name: "AccountID"}},
				}
			},
			wantMsg: "must be scope-bound",
		},
		{
			name: "relationship without matcher",
			mutate: func(s *NodeSchema) {
				s.OtherRelationships = []RelSchema{{
					TargetLabel: "KMSKey",
					Direction:   LinkDirectionOutward,
					RelLabel:    "ENCRYPTED_BY",
					Properties: Properties{
						{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
					},
				}}
			},
			wantMsg: "matcher references no properties",
		},
		{
			name: "relationship without direction",
			mutate: func(s *NodeSchema) {
				s.OtherRelationships = []RelSchema{{
					TargetLabel:   "KMSKey",
					TargetMatcher: Matcher{{Key: "id", Ref: PropertyRef{Name: "KeyArn"}}},
					RelLabel:      "ENCRYPTED_BY",
					Properties: Properties{
						{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
					},
				}}
			},
			wantMsg: "has no direction",
		},
		{
			name: "matcher on reserved property",
			mutate: func(s *NodeSchema) {
				s.OtherRelationships = []RelSchema{{
					TargetLabel:   "KMSKey",
					TargetMatcher: Matcher{{Key: "lastupdated", Ref: PropertyRef{Name: "Tag"}}},
					Direction:     LinkDirectionOutward,
					RelLabel:      "ENCRYPTED_BY",
					Properties: Properties{
						{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
					},
				}}
			},
			wantMsg: "reserved property",
		},
		{
			name: "one-to-many combined with ignore-case",
			mutate: func(s *NodeSchema) {
				s.OtherRelationships = []RelSchema{{
					TargetLabel:   "EC2Instance",
					TargetMatcher: Matcher{{Key: "instanceid", Ref: PropertyRef{Name: "InstanceIds", OneToMany: true, IgnoreCase: true}}},
					Direction:     LinkDirectionOutward,
					RelLabel:      "ATTACHED_TO",
					Properties: Properties{
						{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
					},
				}}
			},
			wantMsg: "combines one-to-many",
		},
		{
			name: "relationship missing lastupdated",
			mutate: func(s *NodeSchema) {
				s.SubResourceRelationship.Properties = nil
			},
			wantMsg: `requires a "lastupdated" property`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			schema := validNode()
			tc.mutate(&schema)
			err := schema.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidSchema) {
				t.Errorf("error %v is not ErrInvalidSchema", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestMatchLinkValidate(t *testing.T) {
	link := MatchLinkSchema{
		SourceLabel:   "Dependency",
		SourceMatcher: Matcher{{Key: "id", Ref: PropertyRef{Name: "dependency_id"}}},
		TargetLabel:   "GitHubRepository",
		TargetMatcher: Matcher{{Key: "id", Ref: PropertyRef{Name: "repo_url"}}},
		Direction:     LinkDirectionOutward,
		RelLabel:      "HAS_DEP",
		Properties: Properties{
			{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
			{Key: "_sub_resource_label", Ref: PropertyRef{Name: "_sub_resource_label", SetInScope: true}},
			{Key: "_sub_resource_id", Ref: PropertyRef{Name: "_sub_resource_id", SetInScope: true}},
		},
	}
	if err := link.Validate(); err != nil {
		t.Fatalf("valid match link rejected: %v", err)
	}

	missing := link
	missing.Properties = Properties{
		{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
	}
	err := missing.Validate()
	if err == nil || !strings.Contains(err.Error(), "_sub_resource_label") {
		t.Errorf("missing scope stamp not rejected: %v", err)
	}

	perRow := link
	perRow.Properties = Properties{
		{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
		{Key: "_sub_resource_label", Ref: PropertyRef{Name: "_sub_resource_label"}},
		{Key: "_sub_resource_id", Ref: PropertyRef{Name: "_sub_resource_id", SetInScope: true}},
	}
	err = perRow.Validate()
	if err == nil || !strings.Contains(err.Error(), "scope-bound") {
		t.Errorf("per-row scope stamp not rejected: %v", err)
	}
}

func TestAllRelationships(t *testing.T) {
	schema := validNode()
	schema.OtherRelationships = []RelSchema{{
		TargetLabel:   "KMSKey",
		TargetMatcher: Matcher{{Key: "id", Ref: PropertyRef{Name: "KeyArn"}}},
		Direction:     LinkDirectionOutward,
		RelLabel:      "ENCRYPTED_BY",
		Properties: Properties{
			{Key: "lastupdated", Ref: PropertyRef{Name: "lastupdated", SetInScope: true}},
		},
	}}

	rels := schema.AllRelationships()
	if len(rels) != 2 {
		t.Fatalf("got %d relationships, want 2", len(rels))
	}
	if rels[0].RelLabel != "RESOURCE" || rels[1].RelLabel != "ENCRYPTED_BY" {
		t.Errorf("relationship order %s, %s", rels[0].RelLabel, rels[1].RelLabel)
	}

	bare := validNode()
	bare.SubResourceRelationship = nil
	if got := bare.AllRelationships(); len(got) != 0 {
		t.Errorf("bare schema returned %d relationships", len(got))
	}
}
