package s3

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeBucketsAPI struct {
	buckets   []types.Bucket
	locations map[string]types.BucketLocationConstraint
	acls      map[string][]types.Grant
}

func (f *fakeBucketsAPI) ListBuckets(ctx context.Context, in *awss3.ListBucketsInput, opts ...func(*awss3.Options)) (*awss3.ListBucketsOutput, error) {
	return &awss3.ListBucketsOutput{Buckets: f.buckets}, nil
}

func (f *fakeBucketsAPI) GetBucketLocation(ctx context.Context, in *awss3.GetBucketLocationInput, opts ...func(*awss3.Options)) (*awss3.GetBucketLocationOutput, error) {
	return &awss3.GetBucketLocationOutput{LocationConstraint: f.locations[aws.ToString(in.Bucket)]}, nil
}

func (f *fakeBucketsAPI) GetBucketAcl(ctx context.Context, in *awss3.GetBucketAclInput, opts ...func(*awss3.Options)) (*awss3.GetBucketAclOutput, error) {
	return &awss3.GetBucketAclOutput{Grants: f.acls[aws.ToString(in.Bucket)]}, nil
}

func TestGet(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeBucketsAPI{
		buckets: []types.Bucket{
			{Name: aws.String("logs"), CreationDate: &created},
			{Name: aws.String("public-site")},
		},
		locations: map[string]types.BucketLocationConstraint{
			"logs": types.BucketLocationConstraintEuWest1,
		},
		acls: map[string][]types.Grant{
			"public-site": {
				{Grantee: &types.Grantee{URI: aws.String(allUsersGranteeURI)}, Permission: types.PermissionRead},
			},
		},
	}

	buckets, err := Get(context.Background(), client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}

	logs := buckets[0]
	if logs.Region != "eu-west-1" || logs.CreationDate != created.Unix() || logs.AnonymousAccess {
		t.Errorf("logs bucket = %+v", logs)
	}

	site := buckets[1]
	// Empty LocationConstraint means us-east-1.
	if site.Region != "us-east-1" {
		t.Errorf("public-site region = %q, want us-east-1", site.Region)
	}
	if !site.AnonymousAccess {
		t.Error("public-site AllUsers grant not detected")
	}
}

func TestTransform(t *testing.T) {
	rows := Transform([]Bucket{
		{Name: "logs", Region: "eu-west-1", CreationDate: 1709251200},
		{Name: "public-site", Region: "us-east-1", AnonymousAccess: true},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if rows[0]["Arn"] != "arn:aws:s3:::logs" {
		t.Errorf("Arn = %v", rows[0]["Arn"])
	}
	if rows[0]["AnonymousAccess"] != "false" || rows[1]["AnonymousAccess"] != "true" {
		t.Errorf("AnonymousAccess rendering: %v, %v", rows[0]["AnonymousAccess"], rows[1]["AnonymousAccess"])
	}
}

func TestBucketSchemaIsValid(t *testing.T) {
	if err := BucketSchema().Validate(); err != nil {
		t.Fatalf("BucketSchema: %v", err)
	}
}
