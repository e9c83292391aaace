// Package analyze serves POST /api/analyze: admission, rate limiting, payload
// validation and inference, in that order.
package analyze

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/arluqh/pregnancy-food-checker/internal/domain/analysis"
	"github.com/arluqh/pregnancy-food-checker/internal/domain/eventbus"
	"github.com/arluqh/pregnancy-food-checker/internal/domain/gatekeeper"
	"github.com/arluqh/pregnancy-food-checker/internal/domain/image"
	"github.com/arluqh/pregnancy-food-checker/internal/domain/ratelimit"
	"github.com/arluqh/pregnancy-food-checker/internal/platform/errors"
	httptransport "github.com/arluqh/pregnancy-food-checker/internal/transport/http"
	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

// DefaultMaxBodyBytes caps the request body.
const DefaultMaxBodyBytes = 11 << 20

const (
	MessageContentType   = "Content-Type must be application/json"
	MessageForbidden     = "access denied"
	MessageInvalidBody   = "invalid JSON body"
	MessageBodyTooLarge  = "request body too large"
	MessageMissingImage  = "no image provided"
	MessageNotConfigured = "analysis service is not configured: credential not configured"

	stagePayload = "payload"
	stageConfig  = "config"
)

// Inferer runs the vision model on a validated image.
type Inferer interface {
	Configured() bool
	Infer(ctx context.Context, base64Image, mimeType, prompt string) analysis.Verdict
}

// Publisher receives analysis and rejection events.
type Publisher interface {
	PublishAsync(topic string, args ...interface{}) bool
}

type Options struct {
	Gatekeeper   *gatekeeper.Gatekeeper
	Limiter      ratelimit.Limiter
	Validator    *image.Validator
	Inferer      Inferer
	Publisher    Publisher
	MaxRequests  int
	Window       time.Duration
	MaxBodyBytes int64
}

// Service wires the analysis pipeline to HTTP.
type Service struct {
	gate         *gatekeeper.Gatekeeper
	limiter      ratelimit.Limiter
	validator    *image.Validator
	inferer      Inferer
	publisher    Publisher
	maxRequests  int
	window       time.Duration
	maxBodyBytes int64
	logger       *utils.Logger
	now          func() time.Time
}

type analyzeRequest struct {
	Image any `json:"image"`
}

// Response is the success body of POST /api/analyze.
type Response struct {
	Success bool             `json:"success"`
	Result  analysis.Verdict `json:"result"`
}

func NewService(opts Options, logger *utils.Logger) (*Service, error) {
	if opts.Gatekeeper == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "gatekeeper is required")
	}
	if opts.Limiter == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "limiter is required")
	}
	if opts.Validator == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "validator is required")
	}
	if opts.Inferer == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "inferer is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "logger is required")
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	window := opts.Window
	if window <= 0 {
		window = time.Hour
	}
	return &Service{
		gate:         opts.Gatekeeper,
		limiter:      opts.Limiter,
		validator:    opts.Validator,
		inferer:      opts.Inferer,
		publisher:    opts.Publisher,
		maxRequests:  opts.MaxRequests,
		window:       window,
		maxBodyBytes: maxBody,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Register mounts the analyze route on the API group.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.POST("/analyze", s.handleAnalyze)
	s.logger.InfoTag("HTTP", "analyze route registered, strict=%t", s.gate.Strict())
	return nil
}

// handleAnalyze checks a meal photo for foods to avoid during pregnancy.
// @Summary Analyze a meal photo
// @Tags Analyze
// @Accept json
// @Produce json
// @Param request body analyzeRequest true "image data URL"
// @Success 200 {object} Response
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /analyze [post]
func (s *Service) handleAnalyze(c *gin.Context) {
	started := s.now()
	requestID := httptransport.RequestID(c)

	gate := s.gate.Evaluate(gatekeeper.Request{
		ContentType: c.GetHeader("Content-Type"),
		UserAgent:   c.GetHeader("User-Agent"),
		Referrer:    c.GetHeader("Referer"),
		Host:        c.Request.Host,
	})
	if !gate.Passed {
		status, message := http.StatusForbidden, MessageForbidden
		if gate.Stage == gatekeeper.StageContentType {
			status, message = http.StatusBadRequest, MessageContentType
		}
		s.logger.WarnTag("Gatekeeper", "request rejected: request_id=%s stage=%s reason=%s",
			requestID, gate.Stage, gate.Reason)
		s.reject(c, requestID, string(gate.Stage), gate.Reason, status, message)
		return
	}

	ip := httptransport.ClientIP(c)
	decision, err := s.limiter.Check(c.Request.Context(), ratelimit.Identity(ip, c.GetHeader("User-Agent")))
	if err != nil {
		// Store outages admit the request.
		s.logger.WarnTag("RateLimit", "limiter unavailable, admitting request: request_id=%s err=%v", requestID, err)
	} else {
		c.Header("X-RateLimit-Limit", strconv.Itoa(s.maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := decision.RetryAfter(s.now())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.logger.WarnTag("RateLimit", "rate limit exceeded: request_id=%s ip=%s retry_after=%ds",
				requestID, ip, retryAfter)
			s.publish(eventbus.EventRequestRejected, eventbus.RejectionEventData{
				RequestID: requestID,
				Stage:     eventbus.StageRateLimit,
				Reason:    "rate limit exceeded",
				Status:    http.StatusTooManyRequests,
			})
			httptransport.RespondRateLimited(c, http.StatusTooManyRequests, s.limitMessage(), retryAfter)
			return
		}
	}

	req, status, message := s.decodeBody(c)
	if status != 0 {
		s.reject(c, requestID, stagePayload, message, status, message)
		return
	}
	if req.Image == nil {
		s.reject(c, requestID, stagePayload, MessageMissingImage, http.StatusBadRequest, MessageMissingImage)
		return
	}

	validated := s.validator.Validate(req.Image)
	if !validated.OK {
		s.logger.InfoTag("Image", "payload rejected: request_id=%s reason=%s", requestID, validated.Reason)
		s.reject(c, requestID, stagePayload, validated.Reason, http.StatusBadRequest, validated.Reason)
		return
	}

	if !s.inferer.Configured() {
		s.logger.ErrorTag("Analyze", "inference credential missing: request_id=%s", requestID)
		s.reject(c, requestID, stageConfig, analysis.MessageNoCredential, http.StatusInternalServerError, MessageNotConfigured)
		return
	}

	verdict := s.inferer.Infer(c.Request.Context(), validated.Data, validated.MIMEType, validated.Prompt)
	elapsed := s.now().Sub(started)
	s.logger.InfoTag("Analyze", "analysis finished: request_id=%s outcome=%s foods=%d elapsed=%s",
		requestID, verdict.Outcome(), len(verdict.DetectedFood), elapsed)
	s.publish(eventbus.EventAnalysisCompleted, eventbus.AnalysisEventData{
		RequestID:    requestID,
		Outcome:      verdict.Outcome(),
		DetectedFood: verdict.DetectedFood,
		Duration:     elapsed,
	})

	c.JSON(http.StatusOK, Response{Success: true, Result: verdict})
}

func (s *Service) decodeBody(c *gin.Context) (analyzeRequest, int, string) {
	var req analyzeRequest
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return req, http.StatusBadRequest, MessageBodyTooLarge
		}
		return req, http.StatusBadRequest, MessageInvalidBody
	}
	if err := sonic.Unmarshal(body, &req); err != nil {
		return req, http.StatusBadRequest, MessageInvalidBody
	}
	return req, 0, ""
}

func (s *Service) limitMessage() string {
	return fmt.Sprintf("rate limit exceeded: the limit is %d requests per %s, please try again later",
		s.maxRequests, humanWindow(s.window))
}

func (s *Service) reject(c *gin.Context, requestID, stage, reason string, status int, message string) {
	s.publish(eventbus.EventRequestRejected, eventbus.RejectionEventData{
		RequestID: requestID,
		Stage:     stage,
		Reason:    reason,
		Status:    status,
	})
	httptransport.RespondError(c, status, message)
}

func (s *Service) publish(topic string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if !s.publisher.PublishAsync(topic, data) {
		s.logger.DebugTag("Events", "event dropped: topic=%s", topic)
	}
}

func humanWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
