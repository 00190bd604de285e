package gen

import (
	"rewards-controlplane/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen", fx.Provide(ProvideNode))

// ProvideNode uses NODE_ID so replicas never mint the same id.
func ProvideNode(cfg *config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

// ID returns a new snowflake id in its string form.
func ID(node *snowflake.Node) string {
	return node.Generate().String()
}
