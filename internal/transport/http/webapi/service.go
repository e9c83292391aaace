package webapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arluqh/pregnancy-food-checker/internal/domain/analysis"
	"github.com/arluqh/pregnancy-food-checker/internal/platform/config"
	"github.com/arluqh/pregnancy-food-checker/internal/platform/errors"
	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

const healthMessage = "pregnancy meal checker API"

// Service serves the informational API routes.
type Service struct {
	logger *utils.Logger
	config *config.Config
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AvoidFoodsResponse is returned by GET /api/foods/avoid.
type AvoidFoodsResponse struct {
	AvoidFoods map[string]analysis.AvoidFood `json:"avoid_foods"`
}

func NewService(config *config.Config, logger *utils.Logger) (*Service, error) {
	if config == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "logger is required")
	}

	return &Service{
		logger: logger,
		config: config,
	}, nil
}

// Register mounts the health and catalog routes.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.GET("/health", s.handleHealth)
	router.GET("/foods/avoid", s.handleAvoidFoods)

	s.logger.InfoTag("HTTP", "webapi routes registered")
	return nil
}

// handleHealth reports that the service is up.
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Message: healthMessage})
}

// handleAvoidFoods returns the catalog of food categories to avoid.
// @Summary Foods to avoid during pregnancy
// @Tags Foods
// @Produce json
// @Success 200 {object} AvoidFoodsResponse
// @Router /foods/avoid [get]
func (s *Service) handleAvoidFoods(c *gin.Context) {
	c.JSON(http.StatusOK, AvoidFoodsResponse{AvoidFoods: analysis.AvoidFoods()})
}
