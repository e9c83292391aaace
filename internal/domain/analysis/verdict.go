// Package analysis turns model output into the verdict returned to clients.
package analysis

import "strings"

const (
	MessageSafe  = "This meal looks safe to enjoy during pregnancy."
	MessageRisky = "This meal contains foods that may be risky during pregnancy. Please review the details."

	MessageNoCredential = "credential not configured"
	MessageUnavailable  = "inference service temporarily unavailable"
	MessageTryLater     = "inference service temporarily unavailable, please try again later"
	MessageNoResponse   = "no response from model"
	MessageNoText       = "no text in model response"
)

// Verdict is the client-facing analysis outcome. DetectedFood is nil only for
// hard failures, and serialises as null in that case.
type Verdict struct {
	Safe         bool     `json:"safe"`
	DetectedFood []string `json:"detected_food"`
	Message      string   `json:"message"`
	Details      string   `json:"details"`
}

// FoodItem is one sanitised entry from the model response.
type FoodItem struct {
	Name    string
	Risk    bool
	Details string
}

// Failure builds a hard-failure verdict.
func Failure(message, details string) Verdict {
	return Verdict{
		Safe:         false,
		DetectedFood: nil,
		Message:      message,
		Details:      details,
	}
}

// FromFoods folds sanitised items into a verdict.
func FromFoods(foods []FoodItem) Verdict {
	var (
		names []string
		lines []string
	)
	for _, f := range foods {
		if !f.Risk {
			continue
		}
		names = append(names, f.Name)
		lines = append(lines, f.Name+": "+f.Details)
	}

	if len(names) == 0 {
		return Verdict{
			Safe:         true,
			DetectedFood: []string{},
			Message:      MessageSafe,
			Details:      "",
		}
	}
	return Verdict{
		Safe:         false,
		DetectedFood: names,
		Message:      MessageRisky,
		Details:      strings.Join(lines, "\n"),
	}
}

// Failed reports whether v is a hard-failure verdict.
func (v Verdict) Failed() bool {
	return v.DetectedFood == nil
}

// Outcome labels the verdict for metrics and events.
func (v Verdict) Outcome() string {
	switch {
	case v.Failed():
		return "failed"
	case v.Safe:
		return "safe"
	default:
		return "risky"
	}
}
