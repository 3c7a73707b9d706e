package aws

import (
	"context"

	"github.com/trellisec/assetgraph/internal/graph"
	"github.com/trellisec/assetgraph/internal/graph/model"
	"github.com/trellisec/assetgraph/internal/sync"
)

// AccountSchema describes the AWSAccount tenant node every scoped resource
// hangs off. It has no sub-resource of its own and is never swept: accounts
// are shared anchors, not generational data.
func AccountSchema() model.NodeSchema {
	return model.NodeSchema{
		Label: "AWSAccount",
		Properties: model.Properties{
			{Key: "id", Ref: model.PropertyRef{Name: "Id"}},
			{Key: "lastupdated", Ref: model.PropertyRef{Name: "lastupdated", SetInScope: true}},
			{Key: "name", Ref: model.PropertyRef{Name: "Name"}},
		},
		Module: "aws:account",
	}
}

// LoadAccount upserts the tenant node itself. It must run before any scoped
// module so sub-resource attachment finds its target.
func LoadAccount(ctx context.Context, sess graph.Session, loader *graph.Loader, accountID string, params sync.Params) error {
	rows := []map[string]any{
		{"Id": accountID, "Name": accountID},
	}
	return loader.Load(ctx, sess, AccountSchema(), rows, params)
}
