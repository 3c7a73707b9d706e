package querybuilder

import (
	"strings"
	"testing"

	"github.com/trellisec/assetgraph/internal/graph/model"
)

func TestBuildCreateIndexQueries(t *testing.T) {
	schema := bucketSchema()
	schema.ConditionalLabels = []model.ConditionalLabel{
		{Label: "ExposedS3Bucket", Conditions: []model.LabelCondition{{Field: "anonymous_access", Value: "true"}}},
	}

	queries, err := BuildCreateIndexQueries(schema)
	if err != nil {
		t.Fatalf("BuildCreateIndexQueries: %v", err)
	}

	want := []string{
		"CREATE INDEX IF NOT EXISTS FOR (n:S3Bucket) ON (n.id);",
		"CREATE INDEX IF NOT EXISTS FOR (n:S3Bucket) ON (n.lastupdated);",
		"CREATE INDEX IF NOT EXISTS FOR (n:Resource) ON (n.id);",
		"CREATE INDEX IF NOT EXISTS FOR (n:ExposedS3Bucket) ON (n.id);",
		"CREATE INDEX IF NOT EXISTS FOR (n:S3Bucket) ON (n.anonymous_access);",
		"CREATE INDEX IF NOT EXISTS FOR (n:AWSAccount) ON (n.id);",
		"CREATE INDEX IF NOT EXISTS FOR (n:KMSKey) ON (n.id);",
		"CREATE INDEX IF NOT EXISTS FOR (n:S3Bucket) ON (n.arn);",
	}
	if len(queries) != len(want) {
		t.Fatalf("got %d queries, want %d:\n%s", len(queries), len(want), strings.Join(queries, "\n"))
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Errorf("query %d:\ngot  %s\nwant %s", i, queries[i], want[i])
		}
	}
}

func TestBuildCreateIndexQueries_Deduplicates(t *testing.T) {
	schema := bucketSchema()
	// id already indexed via the primary label; an extra-index flag on it
	// must not produce a second statement.
	schema.Properties = model.Properties{
		{Key: "id", Ref: model.PropertyRef{Name: "Name", ExtraIndex: true}},
		{Key: "lastupdated", Ref: model.PropertyRef{Name: "lastupdated", SetInScope: true}},
	}
	schema.OtherRelationships = nil

	queries, err := BuildCreateIndexQueries(schema)
	if err != nil {
		t.Fatalf("BuildCreateIndexQueries: %v", err)
	}

	seen := make(map[string]int)
	for _, q := range queries {
		seen[q]++
		if seen[q] > 1 {
			t.Errorf("duplicate index statement: %s", q)
		}
	}
}

func TestBuildCreateIndexQueries_AllIdempotent(t *testing.T) {
	queries, err := BuildCreateIndexQueries(bucketSchema())
	if err != nil {
		t.Fatalf("BuildCreateIndexQueries: %v", err)
	}
	for _, q := range queries {
		if !strings.HasPrefix(q, "CREATE INDEX IF NOT EXISTS") {
			t.Errorf("statement is not idempotent: %s", q)
		}
	}
}

func TestBuildCreateIndexQueriesForMatchLink(t *testing.T) {
	queries, err := BuildCreateIndexQueriesForMatchLink(matchLink())
	if err != nil {
		t.Fatalf("BuildCreateIndexQueriesForMatchLink: %v", err)
	}

	want := []string{
		"CREATE INDEX IF NOT EXISTS FOR (n:Dependency) ON (n.id);",
		"CREATE INDEX IF NOT EXISTS FOR (n:GitHubRepository) ON (n.id);",
		"CREATE INDEX IF NOT EXISTS FOR ()-[r:REQUIRES]->() ON (r.lastupdated, r._sub_resource_label, r._sub_resource_id);",
	}
	if len(queries) != len(want) {
		t.Fatalf("got %d queries, want %d:\n%s", len(queries), len(want), strings.Join(queries, "\n"))
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Errorf("query %d:\ngot  %s\nwant %s", i, queries[i], want[i])
		}
	}
}

func TestBuildCreateIndexQueriesForMatchLink_Inward(t *testing.T) {
	link := matchLink()
	link.Direction = model.LinkDirectionInward

	queries, err := BuildCreateIndexQueriesForMatchLink(link)
	if err != nil {
		t.Fatalf("BuildCreateIndexQueriesForMatchLink: %v", err)
	}
	last := queries[len(queries)-1]
	if !strings.Contains(last, "()<-[r:REQUIRES]-()") {
		t.Errorf("inward relationship index pattern wrong: %s", last)
	}
}
