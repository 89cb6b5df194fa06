package ingestion

import (
	"github.com/gin-gonic/gin"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage"
)

type Service struct {
	stream           storage.EventStream
	maxBodySizeBytes int
}

func NewService(stream storage.EventStream, maxBodySizeMB int) *Service {
	if stream == nil {
		panic("ingestion: stream must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		stream:           stream,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.IngestHandler)
}
