package eventbus

import (
	"github.com/arluqh/pregnancy-food-checker/internal/domain/analysis"
	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

// StageRateLimit is the rejection stage used for limiter denials.
const StageRateLimit = "rate_limit"

// MetricsSink receives counters derived from events.
type MetricsSink interface {
	IncVerdict(outcome string)
	IncRiskyFood(category string)
	IncRejection(stage string)
	IncRateLimited()
}

// RecordingHandler turns events into metrics and log lines.
type RecordingHandler struct {
	metrics MetricsSink
	logger  *utils.Logger
}

func NewRecordingHandler(metrics MetricsSink, logger *utils.Logger) *RecordingHandler {
	if logger == nil {
		logger = utils.DefaultLogger
	}
	return &RecordingHandler{metrics: metrics, logger: logger}
}

// Register subscribes the handler to every topic it understands.
func (h *RecordingHandler) Register(bus *AsyncEventBus) error {
	if err := bus.Subscribe(EventAnalysisCompleted, h.HandleAnalysis); err != nil {
		return err
	}
	return bus.Subscribe(EventRequestRejected, h.HandleRejection)
}

func (h *RecordingHandler) HandleAnalysis(data AnalysisEventData) {
	if h.metrics != nil {
		h.metrics.IncVerdict(data.Outcome)
		for _, name := range data.DetectedFood {
			h.metrics.IncRiskyFood(analysis.Categorize(name))
		}
	}
	h.logger.InfoTag("Events", "analysis completed: request_id=%s outcome=%s risky=%d duration=%s",
		data.RequestID, data.Outcome, len(data.DetectedFood), data.Duration)
}

func (h *RecordingHandler) HandleRejection(data RejectionEventData) {
	if h.metrics != nil {
		h.metrics.IncRejection(data.Stage)
		if data.Stage == StageRateLimit {
			h.metrics.IncRateLimited()
		}
	}
	h.logger.InfoTag("Events", "request rejected: request_id=%s stage=%s status=%d reason=%s",
		data.RequestID, data.Stage, data.Status, data.Reason)
}
