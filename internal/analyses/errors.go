package analyses

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNoImage       = errors.New("an image file, imageUrl or imageKey is required")
	ErrImageNotFound = errors.New("no uploaded image for imageKey")
	ErrOCRFailed     = errors.New("ocr failed")
	ErrJobTimeout    = errors.New("analysis timed out")
	ErrNotConfigured = errors.New("analysis backend not configured")
)

const (
	ErrorCodeOCRFailed     = "OCR_FAILED"
	ErrorCodeJobTimeout    = "JOB_TIMEOUT"
	ErrorCodeConfiguration = "CONFIGURATION_ERROR"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeStorage       = "STORAGE_ERROR"
	ErrorCodeInternal      = "INTERNAL_ERROR"
)

// Remediation hints surfaced to callers next to the error category.
const (
	hintTimeout   = "try a smaller or clearer screenshot"
	hintOCR       = "make sure the screenshot contains readable text"
	hintConfigure = "set OPENAI_API_KEY (or configure MODEL_ROSTER_FILE) and restart the service"
	hintUpload    = "upload the screenshot again via /api/v1/uploads and retry with the new imageKey"
)
