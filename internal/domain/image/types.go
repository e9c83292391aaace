package image

const (
	ReasonInvalidData     = "invalid image data"
	ReasonInvalidFormat   = "invalid image format"
	ReasonUnsupported     = "unsupported image format"
	ReasonTooLarge        = "image too large"
	ReasonMalformedURL    = "invalid image data format"
	ReasonInvalidBase64   = "invalid base64 encoding"
	ReasonContentRejected = "image content rejected"
)

// Result captures the outcome of payload validation.
type Result struct {
	OK     bool
	Reason string
	// Prompt is the fixed analysis instruction, set only when OK.
	Prompt string
	// MIMEType is the normalised type, e.g. image/jpeg.
	MIMEType string
	// Data is the base64 body of the data URL.
	Data       string
	Inspection *Inspection
}

// Inspection holds what deep scanning learned about the decoded image.
type Inspection struct {
	Format   string
	Width    int
	Height   int
	FileSize int64
}

// InspectionResult captures the outcome of content inspection.
type InspectionResult struct {
	IsValid      bool
	Inspection   Inspection
	Error        error
	SecurityRisk string
}
