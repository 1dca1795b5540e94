package forecast

import (
	"errors"
	"fmt"
)

// Typed error kinds surfaced by the service layer. Transport layers map these
// to status codes with errors.Is/errors.As, never by matching message text.
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrEmptyPortfolio    = errors.New("portfolio has no sites")
	ErrSiteNotFound      = errors.New("site not found")
	ErrJobNotFound       = errors.New("forecast job not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrModelRegistration = errors.New("model registration rejected")
)

// ProcessingError wraps any model or persistence failure raised while a job
// was being processed. The same message is durably recorded on the job row.
type ProcessingError struct {
	JobID string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("forecast processing failed for job %s: %v", e.JobID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
