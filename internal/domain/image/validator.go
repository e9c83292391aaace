package image

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

const (
	// DefaultMaxSize bounds the whole data URL string.
	DefaultMaxSize = 10 * 1024 * 1024

	probeLength = 100
)

var (
	mimePattern   = regexp.MustCompile(`^data:([^;]+);`)
	base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)
)

// DefaultFormats is the allow-list used when none is configured.
var DefaultFormats = []string{"jpeg", "jpg", "png", "webp"}

type Options struct {
	MaxSize        int
	AllowedFormats []string
	// Inspector, when set, decodes and inspects the full body.
	Inspector *Inspector
}

// Validator checks untrusted image data URLs before they reach inference.
type Validator struct {
	maxSize   int
	allowed   map[string]struct{}
	inspector *Inspector
	logger    *utils.Logger
}

func NewValidator(opts Options, logger *utils.Logger) *Validator {
	if logger == nil {
		logger = utils.DefaultLogger
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	formats := opts.AllowedFormats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	allowed := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		allowed["image/"+strings.ToLower(strings.TrimSpace(f))] = struct{}{}
	}
	return &Validator{
		maxSize:   maxSize,
		allowed:   allowed,
		inspector: opts.Inspector,
		logger:    logger,
	}
}

func reject(reason string) Result {
	return Result{OK: false, Reason: reason}
}

// Validate runs the checks in order and stops at the first failure.
func (v *Validator) Validate(raw any) Result {
	s, ok := raw.(string)
	if !ok || s == "" {
		return reject(ReasonInvalidData)
	}
	if !strings.HasPrefix(s, "data:") {
		return reject(ReasonInvalidFormat)
	}
	if !strings.HasPrefix(s, "data:image/") {
		return reject(ReasonUnsupported)
	}
	if len(s) > v.maxSize {
		return reject(ReasonTooLarge)
	}

	header, body, found := strings.Cut(s, ",")
	if !found || header == "" || body == "" {
		return reject(ReasonMalformedURL)
	}

	m := mimePattern.FindStringSubmatch(header)
	if m == nil {
		return reject(ReasonUnsupported)
	}
	mimeType := strings.ToLower(strings.TrimSpace(m[1]))
	if _, ok := v.allowed[mimeType]; !ok {
		return reject(ReasonUnsupported)
	}

	if !base64Pattern.MatchString(body) {
		return reject(ReasonInvalidBase64)
	}
	if !probeDecode(body) {
		return reject(ReasonInvalidBase64)
	}

	res := Result{
		OK:       true,
		Prompt:   AnalysisPrompt,
		MIMEType: normalizeMIME(mimeType),
		Data:     body,
	}

	if v.inspector != nil {
		decoded, err := decodeBody(body)
		if err != nil {
			return reject(ReasonInvalidBase64)
		}
		inspected := v.inspector.Inspect(decoded, strings.TrimPrefix(mimeType, "image/"))
		if !inspected.IsValid {
			v.logger.WarnTag("Image", "deep scan rejected payload: risk=%s err=%v",
				inspected.SecurityRisk, inspected.Error)
			return reject(ReasonContentRejected)
		}
		res.Inspection = &inspected.Inspection
	}

	return res
}

// probeDecode decodes a short prefix of the body as a cheap well-formedness
// check.
func probeDecode(body string) bool {
	probe := body
	if len(probe) > probeLength {
		probe = probe[:probeLength]
	}
	probe = strings.TrimRight(probe, "=")
	if len(probe)%4 == 1 {
		return false
	}
	_, err := base64.RawStdEncoding.DecodeString(probe)
	return err == nil
}

func decodeBody(body string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
}

func normalizeMIME(mimeType string) string {
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}
