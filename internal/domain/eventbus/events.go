package eventbus

import "time"

// 事件类型定义
const (
	EventAnalysisCompleted = "analysis:completed"
	EventRequestRejected   = "request:rejected"
)

// AnalysisEventData describes a request that reached inference.
type AnalysisEventData struct {
	RequestID    string
	Outcome      string
	DetectedFood []string
	Duration     time.Duration
}

// RejectionEventData describes a request refused before inference.
type RejectionEventData struct {
	RequestID string
	Stage     string
	Reason    string
	Status    int
}
