// Package gatekeeper holds the admission predicates applied to request
// metadata before any body is read.
package gatekeeper

import (
	"net/url"
	"strings"
)

const (
	ReasonContentTypeMissing = "content-type not set"
	ReasonContentTypeInvalid = "content-type must be application/json"
	ReasonUserAgentMissing   = "user-agent not set"
	ReasonBotUserAgent       = "bot user-agent detected"
	ReasonReferrerMissing    = "referrer not set"
	ReasonReferrerInvalid    = "invalid referrer"
	ReasonReferrerMismatch   = "referrer origin mismatch"
)

// Stage names the check that produced a Result.
type Stage string

const (
	StageNone        Stage = ""
	StageContentType Stage = "content_type"
	StageUserAgent   Stage = "user_agent"
	StageReferrer    Stage = "referrer"
)

type Result struct {
	Passed bool
	Reason string
	Stage  Stage
}

func pass() Result { return Result{Passed: true} }

func fail(stage Stage, reason string) Result {
	return Result{Passed: false, Reason: reason, Stage: stage}
}

// Request is the subset of request metadata the gatekeeper inspects.
type Request struct {
	ContentType string
	UserAgent   string
	Referrer    string
	Host        string
}

// Gatekeeper evaluates admission predicates. It is safe for concurrent use.
type Gatekeeper struct {
	botPatterns []string
	strict      bool
}

// New builds a Gatekeeper. Patterns are matched case-insensitively as substrings.
func New(botPatterns []string, strict bool) *Gatekeeper {
	patterns := make([]string, 0, len(botPatterns))
	for _, p := range botPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Gatekeeper{botPatterns: patterns, strict: strict}
}

// Strict reports whether referrer enforcement is on.
func (g *Gatekeeper) Strict() bool {
	return g.strict
}

// CheckContentType requires an application/json content type.
func (g *Gatekeeper) CheckContentType(value string) Result {
	if strings.TrimSpace(value) == "" {
		return fail(StageContentType, ReasonContentTypeMissing)
	}
	if !strings.Contains(strings.ToLower(value), "application/json") {
		return fail(StageContentType, ReasonContentTypeInvalid)
	}
	return pass()
}

// CheckUserAgent rejects missing user agents and known automated clients.
func (g *Gatekeeper) CheckUserAgent(value string) Result {
	if strings.TrimSpace(value) == "" {
		return fail(StageUserAgent, ReasonUserAgentMissing)
	}
	ua := strings.ToLower(value)
	for _, p := range g.botPatterns {
		if strings.Contains(ua, p) {
			return fail(StageUserAgent, ReasonBotUserAgent)
		}
	}
	return pass()
}

// CheckReferrer requires the referrer origin to be https://{host}.
func (g *Gatekeeper) CheckReferrer(referrer, host string) Result {
	if strings.TrimSpace(referrer) == "" {
		return fail(StageReferrer, ReasonReferrerMissing)
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fail(StageReferrer, ReasonReferrerInvalid)
	}
	origin := strings.ToLower(u.Scheme + "://" + u.Host)
	if origin != "https://"+strings.ToLower(host) {
		return fail(StageReferrer, ReasonReferrerMismatch)
	}
	return pass()
}

// Evaluate runs content-type, user-agent and, in strict mode, referrer checks
// in that order, stopping at the first failure.
func (g *Gatekeeper) Evaluate(req Request) Result {
	if res := g.CheckContentType(req.ContentType); !res.Passed {
		return res
	}
	if res := g.CheckUserAgent(req.UserAgent); !res.Passed {
		return res
	}
	if g.strict {
		if res := g.CheckReferrer(req.Referrer, req.Host); !res.Passed {
			return res
		}
	}
	return pass()
}
