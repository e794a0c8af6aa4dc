package pipeline

import "errors"

// Sentinel errors for the taxonomy a stage worker can produce, wrapped with
// %w so callers can match them with errors.Is. internal/api maps
// ErrValidation to HTTP 400; the scheduler does not inspect them and
// retries every stage-level failure the same way.
var (
	ErrAuthentication  = errors.New("upstream authentication failed")
	ErrScraping        = errors.New("upstream scraping failed")
	ErrLLMProvider     = errors.New("LLM provider call failed")
	ErrDuplicateItem   = errors.New("duplicate work item")
	ErrValidation      = errors.New("process validation failed")
	ErrTimeoutExceeded = errors.New("process exceeded its maximum duration")
)
