package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

// InspectorConfig bounds what a decoded image may look like.
type InspectorConfig struct {
	MaxFileSize    int64
	MaxWidth       int
	MaxHeight      int
	MaxPixels      int64
	AllowedFormats []string
}

// Inspector performs layered checks against decoded image bytes.
type Inspector struct {
	config InspectorConfig
	logger *utils.Logger
}

func NewInspector(config InspectorConfig, logger *utils.Logger) *Inspector {
	if logger == nil {
		logger = utils.DefaultLogger
	}
	return &Inspector{config: config, logger: logger}
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"webp": {0x52, 0x49, 0x46, 0x46},
}

var suspiciousSignatures = [][]byte{
	{0x4D, 0x5A},             // PE executable
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
	{0x25, 0x50, 0x44, 0x46}, // PDF
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x1F, 0x8B, 0x08},       // gzip
}

// Inspect validates raw image bytes against the declared format.
func (v *Inspector) Inspect(data []byte, declaredFormat string) InspectionResult {
	result := InspectionResult{}
	declaredFormat = strings.ToLower(declaredFormat)

	if len(data) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		result.SecurityRisk = "empty payload"
		return result
	}

	if v.config.MaxFileSize > 0 && int64(len(data)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf("file size exceeds limit: %d bytes (max %d bytes)",
			len(data), v.config.MaxFileSize)
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("Image", "oversized image: size=%d max_size=%d format=%s",
			len(data), v.config.MaxFileSize, declaredFormat)
		return result
	}

	if v.scanForMaliciousContent(data) {
		result.Error = fmt.Errorf("potential malicious content detected")
		result.SecurityRisk = "suspicious content"
		return result
	}

	if !v.validateFileSignature(data, declaredFormat) {
		v.logger.WarnTag("Image", "file signature mismatch: declared_format=%s actual_header=%x",
			declaredFormat, data[:min(len(data), 16)])
		result.Error = fmt.Errorf("file signature does not match %s", declaredFormat)
		result.SecurityRisk = "signature mismatch"
		return result
	}

	return v.validateImageDecoding(data, declaredFormat)
}

func (v *Inspector) isFormatAllowed(format string) bool {
	if len(v.config.AllowedFormats) == 0 {
		return true
	}
	format = strings.ToLower(format)
	for _, allowed := range v.config.AllowedFormats {
		if strings.ToLower(allowed) == format {
			return true
		}
	}
	return false
}

func (v *Inspector) validateFileSignature(data []byte, format string) bool {
	signature, ok := imageSignatures[format]
	if !ok {
		return false
	}
	if !bytes.HasPrefix(data, signature) {
		return false
	}
	if format == "webp" {
		return len(data) >= 12 && string(data[8:12]) == "WEBP"
	}
	return true
}

func (v *Inspector) scanForMaliciousContent(data []byte) bool {
	for _, signature := range suspiciousSignatures {
		if bytes.HasPrefix(data, signature) {
			v.logger.WarnTag("Image", "detected non-image signature: signature_hex=%x", signature)
			return true
		}
	}
	return false
}

func (v *Inspector) validateImageDecoding(data []byte, declaredFormat string) InspectionResult {
	result := InspectionResult{}

	cfg, actualFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("decode image config: %w", err)
		result.SecurityRisk = "corrupted image data"
		return result
	}

	if !v.isFormatAllowed(actualFormat) {
		result.Error = fmt.Errorf("decoded format %s not allowed", actualFormat)
		result.SecurityRisk = "unapproved format"
		return result
	}
	if normalizeFormat(declaredFormat) != actualFormat {
		result.Error = fmt.Errorf("declared %s but decoded %s", declaredFormat, actualFormat)
		result.SecurityRisk = "format mismatch"
		return result
	}

	if (v.config.MaxWidth > 0 && cfg.Width > v.config.MaxWidth) ||
		(v.config.MaxHeight > 0 && cfg.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}

	totalPixels := int64(cfg.Width) * int64(cfg.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("pixel count exceeds limit: %d (max %d)", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	result.IsValid = true
	result.Inspection = Inspection{
		Format:   actualFormat,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FileSize: int64(len(data)),
	}

	v.logger.DebugTag("Image", "image inspection success: format=%s width=%d height=%d size=%d",
		actualFormat, cfg.Width, cfg.Height, len(data))

	return result
}

func normalizeFormat(format string) string {
	format = strings.ToLower(format)
	if format == "jpg" {
		return "jpeg"
	}
	return format
}
