package dashboard

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/retailpulse-lab/retailpulse/internal/analyst"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
	"github.com/retailpulse-lab/retailpulse/internal/model"
)

// Analyst is the ask path of the semantic analyst. Nil when the analyst
// is disabled by configuration.
type Analyst interface {
	Ask(ctx context.Context, question string) (analyst.Answer, error)
}

// Service implements the read-side API: feature snapshots, the active
// model manifest and the semantic analyst.
type Service struct {
	features storage.FeatureStore
	registry *model.Registry
	analyst  Analyst
}

func NewService(features storage.FeatureStore, registry *model.Registry, analyst Analyst) *Service {
	if features == nil {
		panic("dashboard: feature store must not be nil")
	}
	if registry == nil {
		panic("dashboard: model registry must not be nil")
	}
	return &Service{
		features: features,
		registry: registry,
		analyst:  analyst,
	}
}

// RegisterRoutes registers the dashboard API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/features/:kind/:bucket_key", s.GetFeatureHandler)
	r.GET("/v1/models/active", s.GetActiveModelHandler)
	r.POST("/v1/analyst/ask", s.AskHandler)
}
