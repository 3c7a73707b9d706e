// Package s3 syncs S3 buckets into the graph: list buckets, flatten them to
// rows, load them under the owning AWSAccount, and sweep the stale
// generation.
package s3

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/trellisec/assetgraph/internal/graph"
	"github.com/trellisec/assetgraph/internal/graph/model"
	"github.com/trellisec/assetgraph/internal/sync"
)

// allUsersGranteeURI marks an ACL grant to everyone on the internet.
const allUsersGranteeURI = "http://acs.amazonaws.com/groups/global/AllUsers"

// BucketsAPI is the slice of the S3 client the module needs.
type BucketsAPI interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, in *s3.GetBucketLocationInput, opts ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketAcl(ctx context.Context, in *s3.GetBucketAclInput, opts ...func(*s3.Options)) (*s3.GetBucketAclOutput, error)
}

// Bucket is one fetched bucket with the per-bucket detail calls resolved.
type Bucket struct {
	Name            string
	CreationDate    int64
	Region          string
	AnonymousAccess bool
}

// BucketSchema describes the S3Bucket node type: scoped to its AWSAccount,
// generically labeled Resource, and flagged ExposedS3Bucket while its ACL
// grants anonymous access.
func BucketSchema() model.NodeSchema {
	return model.NodeSchema{
		Label: "S3Bucket",
		Properties: model.Properties{
			{Key: "id", Ref: model.PropertyRef{Name: "Name"}},
			{Key: "lastupdated", Ref: model.PropertyRef{Name: "lastupdated", SetInScope: true}},
			{Key: "name", Ref: model.PropertyRef{Name: "Name"}},
			{Key: "arn", Ref: model.PropertyRef{Name: "Arn", ExtraIndex: true}},
			{Key: "region", Ref: model.PropertyRef{Name: "Region"}},
			{Key: "creationdate", Ref: model.PropertyRef{Name: "CreationDate"}},
			{Key: "anonymous_access", Ref: model.PropertyRef{Name: "AnonymousAccess"}},
		},
		ExtraLabels: []string{"Resource"},
		ConditionalLabels: []model.ConditionalLabel{
			{Label: "ExposedS3Bucket", Conditions: []model.LabelCondition{
				{Field: "anonymous_access", Value: "true"},
			}},
		},
		SubResourceRelationship: &model.RelSchema{
			TargetLabel: "AWSAccount",
			TargetMatcher: model.Matcher{
				{Key: "id", Ref: model.PropertyRef{Name: "AWS_ID", SetInScope: true}},
			},
			Direction: model.LinkDirectionInward,
			RelLabel:  "RESOURCE",
			Properties: model.Properties{
				{Key: "lastupdated", Ref: model.PropertyRef{Name: "lastupdated", SetInScope: true}},
			},
		},
		Module: "aws:s3",
	}
}

// Get lists every bucket and resolves region and ACL exposure per bucket.
// The per-bucket calls are best effort: a bucket whose detail calls fail
// still syncs with what ListBuckets returned.
func Get(ctx context.Context, client BucketsAPI, logger *slog.Logger) ([]Bucket, error) {
	out, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		bucket := Bucket{Name: aws.ToString(b.Name)}
		if b.CreationDate != nil {
			bucket.CreationDate = b.CreationDate.Unix()
		}

		loc, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: b.Name})
		if err != nil {
			logger.Warn("get bucket location failed",
				slog.String("bucket", bucket.Name),
				slog.String("error", err.Error()))
		} else {
			bucket.Region = regionFromLocation(loc.LocationConstraint)
		}

		acl, err := client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: b.Name})
		if err != nil {
			logger.Warn("get bucket acl failed",
				slog.String("bucket", bucket.Name),
				slog.String("error", err.Error()))
		} else {
			bucket.AnonymousAccess = hasAnonymousGrant(acl.Grants)
		}

		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// Transform flattens fetched buckets into ingestion rows.
func Transform(buckets []Bucket) []map[string]any {
	rows := make([]map[string]any, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, map[string]any{
			"Name":            b.Name,
			"Arn":             "arn:aws:s3:::" + b.Name,
			"Region":          b.Region,
			"CreationDate":    b.CreationDate,
			"AnonymousAccess": fmt.Sprintf("%t", b.AnonymousAccess),
		})
	}
	return rows
}

// Sync runs the full bucket stage: fetch, transform, load, cleanup.
func Sync(ctx context.Context, sess graph.Session, engine *sync.Engine, client BucketsAPI, logger *slog.Logger, params sync.Params) error {
	fetch := func(ctx context.Context) ([]map[string]any, error) {
		buckets, err := Get(ctx, client, logger)
		if err != nil {
			return nil, err
		}
		return Transform(buckets), nil
	}
	return engine.RunNodeSync(ctx, sess, BucketSchema(), fetch, params)
}

// regionFromLocation maps the LocationConstraint quirk: us-east-1 buckets
// report an empty constraint.
func regionFromLocation(c types.BucketLocationConstraint) string {
	if c == "" {
		return "us-east-1"
	}
	return string(c)
}

func hasAnonymousGrant(grants []types.Grant) bool {
	for _, g := range grants {
		if g.Grantee != nil && aws.ToString(g.Grantee.URI) == allUsersGranteeURI {
			return true
		}
	}
	return false
}
