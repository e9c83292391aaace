package httptransport

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// MessageInternal is the only text clients see for unexpected failures.
const MessageInternal = "internal server error"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// RespondError aborts the request with a JSON error body.
func RespondError(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorResponse{Error: message})
}

// RespondRateLimited aborts with 429 and the seconds until the window resets.
func RespondRateLimited(c *gin.Context, httpStatus int, message string, retryAfter int) {
	c.AbortWithStatusJSON(httpStatus, ErrorResponse{Error: message, RetryAfter: retryAfter})
}

// ClientIP resolves the caller address: first X-Forwarded-For entry, then
// X-Real-IP, then the connection peer.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := c.RemoteIP(); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
