package featureflags

import (
	"context"

	"rewards-controlplane/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

const (
	DetectionFastMode     = "detection_fast_mode"
	RecommendationImages  = "recommendation_images"
	BurnoutAutoMilestones = "burnout_auto_milestones"
)

// FeatureFlag answers per-identity feature questions. Identities are company
// ids so flags can be rolled out tenant by tenant.
type FeatureFlag interface {
	Enabled(ctx context.Context, identifier, feature string, fallback bool) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		zap.L().Info("flagsmith api key not set, feature flags use defaults")
		return Static(nil)
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Enabled(ctx context.Context, identifier, feature string, fallback bool) bool {
	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		zap.L().Warn("failed to fetch identity flags", zap.String("identifier", identifier), zap.Error(err))
		return fallback
	}

	enabled, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return fallback
	}
	return enabled
}

type static map[string]bool

// Static returns a FeatureFlag answering from a fixed map; unknown features
// return the caller's fallback.
func Static(values map[string]bool) FeatureFlag {
	return static(values)
}

func (s static) Enabled(_ context.Context, _, feature string, fallback bool) bool {
	if v, ok := s[feature]; ok {
		return v
	}
	return fallback
}
