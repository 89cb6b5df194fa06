package dashboard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	httperr "github.com/retailpulse-lab/retailpulse/internal/core/errors"
	"github.com/retailpulse-lab/retailpulse/internal/core/feature"
	"github.com/retailpulse-lab/retailpulse/internal/model"
)

// GetFeatureHandler handles GET /v1/features/:kind/:bucket_key
func (s *Service) GetFeatureHandler(c *gin.Context) {
	kind := feature.BucketKind(c.Param("kind"))
	bucketKey := c.Param("bucket_key")

	if !feature.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "Invalid bucket kind",
			Details:   gin.H{"kind": string(kind), "supported": feature.Kinds},
		})
		return
	}

	snapshot, found, err := s.features.Get(c.Request.Context(), kind, bucketKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to read feature snapshot",
			Details:   err.Error(),
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "No events have touched this bucket yet",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":       kind,
		"bucket_key": bucketKey,
		"key":        feature.StoreKey(kind, bucketKey),
		"snapshot":   snapshot,
	})
}

// GetActiveModelHandler handles GET /v1/models/active
func (s *Service) GetActiveModelHandler(c *gin.Context) {
	artifact, err := s.registry.Active(c.Request.Context())
	if err != nil {
		if errors.Is(err, model.ErrNoActive) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpNotFoundError,
				Message:   "No model has been promoted yet",
			})
			return
		}

		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to read active model",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, artifact)
}

// AskHandler handles POST /v1/analyst/ask
func (s *Service) AskHandler(c *gin.Context) {
	if s.analyst == nil {
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpUpstreamError,
			Message:   "Analyst is disabled",
		})
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON body",
			Details:   err.Error(),
		})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpValidationError,
			Message:   "question is required",
		})
		return
	}

	answer, err := s.analyst.Ask(c.Request.Context(), req.Question)
	if err != nil {
		// Embedding, retrieval and generation all depend on the local
		// model server.
		c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
			ErrorType: httperr.HttpUpstreamError,
			Message:   "Analyst backend unavailable",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, answer)
}
